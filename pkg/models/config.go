package models

type Config struct {
    BigQuery BigQuery `yaml:"bigquery"`
    Stats    Stats    `yaml:"stats"`
    Logging  Logging  `yaml:"logging"`
}

type BigQuery struct {
    ProjectID          string `yaml:"project_id"`
    ServiceAccountFile string `yaml:"service_account_file"`
    Location           string `yaml:"location,omitempty"`
    Timeout            string `yaml:"timeout,omitempty"` // Go duration, e.g. "5m"
}

type Stats struct {
    Dataset         string            `yaml:"dataset"`
    Table           string            `yaml:"table"`
    ContinueOnError bool              `yaml:"continue_on_error"`
    Concurrency     int               `yaml:"concurrency"`
    DryRun          bool              `yaml:"dry_run"`
    Labels          map[string]string `yaml:"labels,omitempty"`
}

type Logging struct {
    Level  string `yaml:"level"`
    Format string `yaml:"format"` // "json" or "text"
}

// DefaultConfig returns the settings used when nothing else is configured
func DefaultConfig() *Config {
    return &Config{
        Stats: Stats{
            Dataset:     "utils",
            Table:       "daily_storage_stats",
            Concurrency: 1,
        },
        Logging: Logging{
            Level:  "info",
            Format: "json",
        },
    }
}
