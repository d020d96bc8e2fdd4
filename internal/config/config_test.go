package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty directory so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "vigyl.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(8192), cfg.Anthropic.MaxTokens)
	assert.Equal(t, int64(4096), cfg.Anthropic.ImpactMaxTokens)
	assert.Equal(t, 0, cfg.Generation.ImpactMaxIndustries)
	assert.Equal(t, 3, cfg.Generation.RetryAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Generation.CallTimeout())
	assert.Equal(t, time.Minute, cfg.Generation.CircuitReset())
	initial, maxBackoff := cfg.Generation.RetryBackoff()
	assert.Equal(t, time.Second, initial)
	assert.Equal(t, 20*time.Second, maxBackoff)
	assert.Equal(t, 3, cfg.Cache.CASRetries)
	assert.InDelta(t, 0.6, cfg.Match.SimilarityThreshold, 0.001)
	assert.Empty(t, cfg.Seed.Path)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.InDelta(t, 5.0, cfg.Salesforce.RateLimit, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/vigyl
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://app.vigyl.test
match:
  similarity_threshold: 0.75
seed:
  path: /etc/vigyl/seed.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/vigyl", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.vigyl.test"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 0.75, cfg.Match.SimilarityThreshold, 0.001)
	assert.Equal(t, "/etc/vigyl/seed.yaml", cfg.Seed.Path)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Cache.CASRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("VIGYL_STORE_DRIVER", "postgres")
	t.Setenv("VIGYL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("VIGYL_SERVER_PORT", "3000")
	t.Setenv("VIGYL_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "vigyl.db"
	cfg.Match.SimilarityThreshold = 0.6
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateStore(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("store"))

	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateGenerate_MissingKey(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port 0 is out of range")
}

func TestValidateCRM(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("crm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce.client_id is required")
	assert.Contains(t, err.Error(), "salesforce.username is required")
	assert.Contains(t, err.Error(), "salesforce.key_path is required")

	cfg.Salesforce = SalesforceConfig{ClientID: "cid", Username: "ops@vigyl.test", KeyPath: "/keys/sf.pem"}
	assert.NoError(t, cfg.Validate("crm"))
}

func TestValidate_Threshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.SimilarityThreshold = 1.5
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.similarity_threshold")
}

func TestLoad_WithFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "staging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: postgres\n"), 0o644))

	cfg, err := Load(WithFile(path))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "vigyl.db", cfg.Store.DatabaseURL)

	_, err = Load(WithFile(filepath.Join(dir, "missing.yaml")))
	require.Error(t, err)
}

func TestLoad_WithFlags(t *testing.T) {
	chdirTemp(t)
	t.Setenv("VIGYL_STORE_DATABASE_URL", "from-env.db")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("store-driver", "", "")
	fs.String("database-url", "", "")
	fs.String("seed", "", "")
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--database-url", "from-flag.db", "--seed", "custom.yaml"}))

	cfg, err := Load(WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, "from-flag.db", cfg.Store.DatabaseURL, "set flags win over env")
	assert.Equal(t, "custom.yaml", cfg.Seed.Path)
	assert.Equal(t, "sqlite", cfg.Store.Driver, "unset flags keep defaults")
	assert.Equal(t, "info", cfg.Log.Level)
}
