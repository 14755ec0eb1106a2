package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "contactimport")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, ProviderAnthropic, cfg.Classifier.Provider)
	assert.Equal(t, 60*time.Second, cfg.Classifier.Timeout.Duration())
	assert.Equal(t, 3, cfg.Classifier.MaxRetries)
	assert.Equal(t, 50, cfg.Classifier.RateLimitPerMinute)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 100, cfg.Import.BatchSize)
	assert.Equal(t, ValidationReachable, cfg.Import.Validation)
	assert.Equal(t, DuplicateLastWins, cfg.Import.DuplicateTargets)
	assert.Equal(t, 1, cfg.Import.Concurrency)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "contactimport", cfg.Events.SubjectPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.False(t, cfg.Telemetry.Logs)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_host: 0.0.0.0
  http_port: 8088
  shutdown_timeout: 5s
classifier:
  provider: heuristic
  timeout: 15s
store:
  driver: sqlite
  sqlite_path: /tmp/contacts.db
import:
  batch_size: 25
  validation: strict
  duplicate_targets: reject
  concurrency: 4
events:
  enabled: true
  nats_url: nats://nats:4222
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, ProviderHeuristic, cfg.Classifier.Provider)
	assert.Equal(t, 15*time.Second, cfg.Classifier.Timeout.Duration())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/contacts.db", cfg.Store.SQLitePath)
	assert.Equal(t, 25, cfg.Import.BatchSize)
	assert.Equal(t, ValidationStrict, cfg.Import.Validation)
	assert.Equal(t, DuplicateReject, cfg.Import.DuplicateTargets)
	assert.Equal(t, 4, cfg.Import.Concurrency)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "nats://nats:4222", cfg.Events.NATSURL)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\nimport:\n  batch_size: 25\n", 0600)

	t.Setenv("CONTACTIMPORT_SERVER_HTTP_PORT", "7777")
	t.Setenv("CONTACTIMPORT_IMPORT_BATCH_SIZE", "10")
	t.Setenv("CONTACTIMPORT_CLASSIFIER_API_KEY", "sk-from-env")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Import.BatchSize)
	assert.Equal(t, "sk-from-env", cfg.Classifier.APIKey.Value())
}

func TestLoadWithFile_ProviderKeyFallback(t *testing.T) {
	setupTestHome(t)
	t.Setenv("CONTACTIMPORT_CLASSIFIER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Classifier.APIKey.Value())
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_TooLarge(t *testing.T) {
	dir := setupTestHome(t)
	big := make([]byte, maxConfigFileSize+10)
	for i := range big {
		big[i] = '#'
	}
	path := writeConfig(t, dir, string(big), 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "import:\n  validation: lenient\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown validation policy")
}

func TestValidateConfigPath(t *testing.T) {
	dir := setupTestHome(t)

	valid := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "sub", "config.yaml"),
		"/etc/contactimport/config.yaml",
	}
	for _, p := range valid {
		assert.NoError(t, validateConfigPath(p), p)
	}

	invalid := []string{
		"/etc/passwd",
		"/tmp/config.yaml",
		"/etc/contactimport../etc/passwd",
		filepath.Join(dir, "..", "..", "config.yaml"),
	}
	for _, p := range invalid {
		assert.Error(t, validateConfigPath(p), p)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("CONTACTIMPORT_SERVER_HTTP_PORT"))
	assert.Equal(t, "import.duplicate_targets", envKey("CONTACTIMPORT_IMPORT_DUPLICATE_TARGETS"))
	assert.Equal(t, "logging", envKey("CONTACTIMPORT_LOGGING"))
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/.config/contactimport/contacts.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "contactimport", "contacts.db"), got)

	got, err = ExpandHome("/var/lib/contacts.db")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/contacts.db", got)
}
