package cmd

import (
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/spf13/cobra"
    "github.com/spf13/pflag"
    "github.com/spf13/viper"

    "bqstats/internal/auth"
    "bqstats/internal/collector"
    "bqstats/internal/config"
    "bqstats/internal/observability"
    "bqstats/internal/provision"
    "bqstats/internal/stats"
    "bqstats/internal/ui"
    "bqstats/internal/warehouse"
    "bqstats/pkg/errors"
    "bqstats/pkg/models"
)

// EnvPrefix prefixes every environment variable the CLI reads
const EnvPrefix = "BQSTATS"

// flagKeys maps each flag to its config file key. The environment variable
// is EnvPrefix plus the upper-cased last key segment, e.g. BQSTATS_PROJECT_ID.
var flagKeys = map[string]string{
    "project_id":           "bigquery.project_id",
    "service_account_file": "bigquery.service_account_file",
    "location":             "bigquery.location",
    "timeout":              "bigquery.timeout",
    "dataset":              "stats.dataset",
    "table":                "stats.table",
    "continue-on-error":    "stats.continue_on_error",
    "concurrency":          "stats.concurrency",
    "dry-run":              "stats.dry_run",
    "log-level":            "logging.level",
    "log-format":           "logging.format",
}

// newCollector builds the collector for a run; tests swap it for a fake warehouse
var newCollector = func(cfg collector.Config, logger observability.Observer) *collector.Collector {
    return collector.New(cfg, logger)
}

var rootCmd = newRootCmd()

// newRootCmd builds the command tree with its own viper instance
func newRootCmd() *cobra.Command {
    v := viper.New()
    var cfgFile string

    cmd := &cobra.Command{
        Use:   "bqstats",
        Short: "Record BigQuery table storage statistics",
        Long: `bqstats appends one row per table of every dataset in a BigQuery project
to a bookkeeping table (utils.daily_storage_stats by default): row count,
size in bytes, creation and last modification time, stamped with the time
of the run. The dataset and table are created on first use.`,
        SilenceUsage:  true,
        SilenceErrors: true,
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            ui.SetOutput(cmd.OutOrStdout())
            return readConfig(v, cfgFile)
        },
        RunE: func(cmd *cobra.Command, args []string) error {
            return runCollect(cmd, v)
        },
    }

    flags := cmd.PersistentFlags()
    flags.StringVar(&cfgFile, "config", "", "config file (default ./bqstats.yaml or ~/.bqstats/config.yaml)")
    flags.String("project_id", "", "Google Cloud project to scan (required)")
    flags.String("service_account_file", "", "path to the service account JSON key (required)")
    flags.String("location", "", "BigQuery location for the bookkeeping dataset and query jobs")
    flags.Duration("timeout", 0, "timeout for each BigQuery operation, e.g. 30s or 5m (0 means none)")
    flags.String("dataset", provision.DefaultDatasetID, "bookkeeping dataset")
    flags.String("table", provision.DefaultTableID, "stats table inside the bookkeeping dataset")
    flags.String("log-level", "info", "log level (debug, info, warn, error)")
    flags.String("log-format", "json", "log format (json or text)")

    local := cmd.Flags()
    local.Bool("dry-run", false, "validate every query and estimate bytes without inserting")
    local.Bool("continue-on-error", false, "record every dataset and report all failures at the end")
    local.Int("concurrency", 1, "datasets recorded in parallel (requires --continue-on-error)")

    bindFlags(v, flags)
    bindFlags(v, local)

    cmd.AddCommand(newVersionCmd(), newSchemaCmd(v), newInitCmd())
    return cmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
    if err := rootCmd.Execute(); err != nil {
        ui.ShowError(err)
        os.Exit(1)
    }
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
    flags.VisitAll(func(f *pflag.Flag) {
        key, ok := flagKeys[f.Name]
        if !ok {
            return
        }
        _ = v.BindPFlag(key, f)
        _ = v.BindEnv(key, envName(key))
    })
}

func envName(key string) string {
    parts := strings.Split(key, ".")
    return EnvPrefix + "_" + strings.ToUpper(parts[len(parts)-1])
}

// readConfig loads --config, $BQSTATS_CONFIG, ./bqstats.yaml or
// ~/.bqstats/config.yaml, in that order. Only an explicitly named file must exist.
func readConfig(v *viper.Viper, cfgFile string) error {
    explicit := cfgFile != "" || os.Getenv(config.EnvConfigFile) != ""

    switch {
    case cfgFile != "":
        v.SetConfigFile(cfgFile)
    case explicit:
        v.SetConfigFile(config.GetConfigFile())
    case fileExists("bqstats.yaml"):
        v.SetConfigFile("bqstats.yaml")
    case fileExists(config.GetConfigFile()):
        v.SetConfigFile(config.GetConfigFile())
    default:
        return nil
    }
    v.SetConfigType("yaml")

    if err := v.ReadInConfig(); err != nil {
        return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config file").
            WithContext("file", v.ConfigFileUsed()).
            WithSeverity(errors.SeverityCritical)
    }
    return nil
}

func fileExists(path string) bool {
    info, err := os.Stat(path)
    return err == nil && !info.IsDir()
}

// settingsFromViper resolves flags, environment and config file into one config
func settingsFromViper(v *viper.Viper) (*models.Config, time.Duration, error) {
    cfg := models.DefaultConfig()
    cfg.BigQuery = models.BigQuery{
        ProjectID:          strings.TrimSpace(v.GetString("bigquery.project_id")),
        ServiceAccountFile: strings.TrimSpace(v.GetString("bigquery.service_account_file")),
        Location:           v.GetString("bigquery.location"),
        Timeout:            v.GetString("bigquery.timeout"),
    }
    cfg.Stats = models.Stats{
        Dataset:         v.GetString("stats.dataset"),
        Table:           v.GetString("stats.table"),
        ContinueOnError: v.GetBool("stats.continue_on_error"),
        Concurrency:     v.GetInt("stats.concurrency"),
        DryRun:          v.GetBool("stats.dry_run"),
        Labels:          v.GetStringMapString("stats.labels"),
    }
    cfg.Logging = models.Logging{
        Level:  v.GetString("logging.level"),
        Format: v.GetString("logging.format"),
    }

    var missing []string
    if cfg.BigQuery.ProjectID == "" {
        missing = append(missing, "project_id")
    }
    if cfg.BigQuery.ServiceAccountFile == "" {
        missing = append(missing, "service_account_file")
    }
    if len(missing) > 0 {
        return nil, 0, errors.MissingConfigError(missing...)
    }

    timeout, err := parseTimeout(cfg.BigQuery.Timeout)
    if err != nil {
        return nil, 0, err
    }
    if cfg.Stats.Concurrency < 1 {
        return nil, 0, errors.ConfigError("concurrency must be at least 1", "concurrency")
    }
    if f := strings.ToLower(cfg.Logging.Format); f != "json" && f != "text" {
        return nil, 0, errors.ConfigError(fmt.Sprintf("unknown log format %q", cfg.Logging.Format), "log-format")
    }

    return cfg, timeout, nil
}

func parseTimeout(s string) (time.Duration, error) {
    if s == "" {
        return 0, nil
    }
    d, err := time.ParseDuration(s)
    if err != nil || d < 0 {
        return 0, errors.ConfigError(fmt.Sprintf("invalid timeout %q", s), "timeout")
    }
    return d, nil
}

func newLogger(cmd *cobra.Command, cfg *models.Config) *observability.Logger {
    return observability.NewLogger(observability.LoggerConfig{
        Level:   observability.LogLevelFromString(cfg.Logging.Level),
        Output:  cmd.ErrOrStderr(),
        Service: "bqstats",
        Version: Version,
        Encoder: observability.EncoderFromString(cfg.Logging.Format),
    })
}

func collectorConfig(cfg *models.Config, timeout time.Duration) collector.Config {
    return collector.Config{
        Auth: auth.Options{
            ProjectID:       cfg.BigQuery.ProjectID,
            CredentialsFile: cfg.BigQuery.ServiceAccountFile,
            Config: warehouse.Config{
                Location: cfg.BigQuery.Location,
                Timeout:  timeout,
            },
        },
        Provision: provision.Config{
            DatasetID: cfg.Stats.Dataset,
            TableID:   cfg.Stats.Table,
            Location:  cfg.BigQuery.Location,
            Labels:    cfg.Stats.Labels,
        },
        Stats: stats.Config{
            ContinueOnError: cfg.Stats.ContinueOnError,
            Concurrency:     cfg.Stats.Concurrency,
            DryRun:          cfg.Stats.DryRun,
            Timeout:         timeout,
            Labels:          cfg.Stats.Labels,
        },
    }
}

func runCollect(cmd *cobra.Command, v *viper.Viper) error {
    cfg, timeout, err := settingsFromViper(v)
    if err != nil {
        _ = cmd.Usage()
        return err
    }

    logger := newLogger(cmd, cfg)
    if cfg.Stats.Concurrency > 1 && !cfg.Stats.ContinueOnError {
        logger.Warnf("--concurrency %d ignored without --continue-on-error", cfg.Stats.Concurrency)
    }

    summary, err := newCollector(collectorConfig(cfg, timeout), logger).Run(cmd.Context())
    if summary != nil {
        showSummary(summary, cfg.Stats.DryRun)
    }
    if err != nil {
        return err
    }

    if cfg.Stats.DryRun {
        ui.ShowSuccess(fmt.Sprintf("Dry run validated %d datasets", summary.Succeeded))
    } else {
        ui.ShowSuccess(fmt.Sprintf("Recorded stats for %d datasets", summary.Succeeded))
    }
    return nil
}

func showSummary(summary *stats.Summary, dryRun bool) {
    table := ui.NewTable()
    table.AddHeader("Run", "Processing time", "Datasets", "Succeeded", "Failed", "Bytes processed", "Duration")
    bytesLabel := fmt.Sprintf("%d", summary.BytesProcessed)
    if dryRun {
        bytesLabel += " (estimated)"
    }
    table.AddRow(
        summary.RunID,
        summary.ProcessingTime.Format(time.RFC3339),
        fmt.Sprintf("%d", summary.Datasets),
        fmt.Sprintf("%d", summary.Succeeded),
        fmt.Sprintf("%d", summary.Failed),
        bytesLabel,
        summary.Duration.Round(time.Millisecond).String(),
    )
    table.Render()
}
