package config

import (
    "fmt"
    "os"
    "path/filepath"
    "bqstats/internal/common"
    "bqstats/pkg/models"
    "gopkg.in/yaml.v3"
)

// EnvConfigFile overrides the config file location
const EnvConfigFile = "BQSTATS_CONFIG"

func GetConfigPath() string {
    // Check for environment variable first
    if configPath := os.Getenv(EnvConfigFile); configPath != "" {
        return filepath.Dir(configPath)
    }
    home, _ := os.UserHomeDir()
    return filepath.Join(home, ".bqstats")
}

func GetConfigFile() string {
    // Check for environment variable first
    if configFile := os.Getenv(EnvConfigFile); configFile != "" {
        // Validate the path to prevent directory traversal
        cleaned, err := common.CleanPath(configFile)
        if err != nil {
            // Fall back to default if invalid
            home, _ := os.UserHomeDir()
            return filepath.Join(home, ".bqstats", "config.yaml")
        }
        return cleaned
    }
    return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads the config file, returning defaults when it does not exist
func Load() (*models.Config, error) {
    return LoadFile(GetConfigFile())
}

// LoadFile reads path on top of the defaults
func LoadFile(path string) (*models.Config, error) {
    cleanedPath, err := common.CleanPath(path)
    if err != nil {
        return nil, fmt.Errorf("invalid config file path: %w", err)
    }

    config := models.DefaultConfig()

    if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
        return config, nil
    }

    data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
    if err != nil {
        return nil, fmt.Errorf("failed to read config file: %w", err)
    }

    if err := yaml.Unmarshal(data, config); err != nil {
        return nil, fmt.Errorf("failed to unmarshal config: %w", err)
    }
    return config, nil
}

// Save writes config to the config file, creating its directory
func Save(config *models.Config) error {
    configFile := GetConfigFile()
    if err := os.MkdirAll(filepath.Dir(configFile), common.DirPermissionSecure); err != nil {
        return fmt.Errorf("failed to create config directory: %w", err)
    }

    data, err := yaml.Marshal(config)
    if err != nil {
        return fmt.Errorf("failed to marshal config: %w", err)
    }

    if err := os.WriteFile(configFile, data, common.FilePermissionSecure); err != nil {
        return fmt.Errorf("failed to write config file: %w", err)
    }

    return nil
}

func Exists() bool {
    _, err := os.Stat(GetConfigFile())
    return err == nil
}
