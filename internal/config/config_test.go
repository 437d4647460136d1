package config

import (
    "os"
    "path/filepath"
    "testing"
    "bqstats/pkg/models"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
    t.Helper()
    tempDir := t.TempDir()
    t.Setenv("HOME", tempDir)
    t.Setenv(EnvConfigFile, "")
    return tempDir
}

func TestGetConfigPath(t *testing.T) {
    home := withHome(t)
    assert.Equal(t, filepath.Join(home, ".bqstats"), GetConfigPath())
    assert.Equal(t, filepath.Join(home, ".bqstats", "config.yaml"), GetConfigFile())
}

func TestGetConfigFileFromEnv(t *testing.T) {
    home := withHome(t)

    custom := filepath.Join(home, "conf", "bqstats.yaml")
    t.Setenv(EnvConfigFile, custom)
    assert.Equal(t, custom, GetConfigFile())
    assert.Equal(t, filepath.Join(home, "conf"), GetConfigPath())

    // Traversal falls back to the default location
    t.Setenv(EnvConfigFile, "../../etc/bqstats.yaml")
    assert.Equal(t, filepath.Join(home, ".bqstats", "config.yaml"), GetConfigFile())
}

func TestSaveAndLoad(t *testing.T) {
    withHome(t)

    testConfig := models.DefaultConfig()
    testConfig.BigQuery = models.BigQuery{
        ProjectID:          "my-project",
        ServiceAccountFile: "/keys/sa.json",
        Location:           "EU",
        Timeout:            "10m",
    }
    testConfig.Stats.ContinueOnError = true
    testConfig.Stats.Concurrency = 3

    require.NoError(t, Save(testConfig))
    assert.True(t, Exists())

    info, err := os.Stat(GetConfigFile())
    require.NoError(t, err)
    assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

    loaded, err := Load()
    require.NoError(t, err)
    assert.Equal(t, testConfig, loaded)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
    withHome(t)

    assert.False(t, Exists())
    loaded, err := Load()
    require.NoError(t, err)
    assert.Equal(t, models.DefaultConfig(), loaded)
}

func TestLoadFileKeepsDefaultsForUnsetKeys(t *testing.T) {
    home := withHome(t)
    path := filepath.Join(home, "partial.yaml")
    require.NoError(t, os.WriteFile(path, []byte("bigquery:\n  project_id: my-project\n"), 0600))

    loaded, err := LoadFile(path)
    require.NoError(t, err)
    assert.Equal(t, "my-project", loaded.BigQuery.ProjectID)
    assert.Equal(t, "utils", loaded.Stats.Dataset)
    assert.Equal(t, "daily_storage_stats", loaded.Stats.Table)
}

func TestLoadFileRejectsInvalidYAML(t *testing.T) {
    home := withHome(t)
    path := filepath.Join(home, "broken.yaml")
    require.NoError(t, os.WriteFile(path, []byte("bigquery: [unclosed"), 0600))

    _, err := LoadFile(path)
    assert.Error(t, err)
    assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestSaveWithInvalidPath(t *testing.T) {
    t.Setenv(EnvConfigFile, "")
    t.Setenv("HOME", "/dev/null/not-a-dir")

    err := Save(models.DefaultConfig())
    assert.Error(t, err)
    assert.Contains(t, err.Error(), "failed to create config directory")
}
