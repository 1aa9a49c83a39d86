package config

import (
	"omega/internal/models"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory without a stray .env file and
// clears variables that Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		"OMEGA_ENV_FILE", "GEMINI_API_KEY", "GEMINI_MODEL", "OWNER_TOKEN", "GUMROAD_SECRET",
		"PORT", "OMEGA_PORT", "OMEGA_STORAGE_TYPE", "OMEGA_DATABASE_DSN", "OMEGA_MEMORY_LIMIT",
		"OMEGA_MEMORY_DECAY", "OMEGA_REQUIRE_PLAN", "OMEGA_RATE_LIMIT_REQUESTS", "OMEGA_LOG_LEVEL",
		"OMEGA_RATE_LIMIT_TRUST_PROXY", "OMEGA_RATE_LIMIT_TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, models.StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, 10, config.Memory.Limit)
	assert.Equal(t, 24*time.Hour, config.Memory.Decay)
	assert.Equal(t, 1000, config.Audit.Capacity)
	assert.Equal(t, "gemini-1.5-flash", config.Generator.Model)
	assert.False(t, config.Plans.RequirePlan)
	assert.Empty(t, config.Generator.APIKey)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := isolate(t)
	configFile := filepath.Join(dir, "omega.yaml")

	configContent := `
server:
  port: 9000
  host: "127.0.0.1"
  read_timeout: 10s
storage:
  type: sqlite
  database:
    dsn: ./plans.db
security:
  rate_limit:
    enabled: true
    requests: 25
    window: 30s
    cleanup_interval: 1m
memory:
  limit: 5
  decay: 2h
plans:
  require_plan: true
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	config, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 10*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, models.StorageTypeSQLite, config.Storage.Type)
	assert.Equal(t, "./plans.db", config.Storage.Database.DSN)
	assert.Equal(t, 25, config.Security.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, config.Security.RateLimit.Window)
	assert.Equal(t, 5, config.Memory.Limit)
	assert.Equal(t, 2*time.Hour, config.Memory.Decay)
	assert.True(t, config.Plans.RequirePlan)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	isolate(t)

	_, err := Load("/nonexistent/omega.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	configFile := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server: [unclosed"), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "key-123")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("OWNER_TOKEN", "owner")
	t.Setenv("GUMROAD_SECRET", "shh")
	t.Setenv("PORT", "7000")
	t.Setenv("OMEGA_MEMORY_LIMIT", "3")
	t.Setenv("OMEGA_MEMORY_DECAY", "90m")
	t.Setenv("OMEGA_REQUIRE_PLAN", "true")
	t.Setenv("OMEGA_RATE_LIMIT_REQUESTS", "not-a-number")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "key-123", config.Generator.APIKey)
	assert.Equal(t, "gemini-2.0-flash", config.Generator.Model)
	assert.Equal(t, "owner", config.Security.OwnerToken)
	assert.Equal(t, "shh", config.Webhook.Secret)
	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, 3, config.Memory.Limit)
	assert.Equal(t, 90*time.Minute, config.Memory.Decay)
	assert.True(t, config.Plans.RequirePlan)
	assert.Equal(t, 10, config.Security.RateLimit.Requests, "invalid values keep the default")
	assert.False(t, config.Security.RateLimit.TrustProxyHeaders)
}

func TestLoad_TrustedProxies(t *testing.T) {
	isolate(t)
	t.Setenv("OMEGA_RATE_LIMIT_TRUST_PROXY", "true")
	t.Setenv("OMEGA_RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	config, err := Load("")
	require.NoError(t, err)
	assert.True(t, config.Security.RateLimit.TrustProxyHeaders)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, config.Security.RateLimit.TrustedProxies)
}

func TestLoad_OmegaPortBeatsPort(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "7000")
	t.Setenv("OMEGA_PORT", "7100")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7100, config.Server.Port)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OWNER_TOKEN=from-dotenv\nOMEGA_MEMORY_LIMIT=4\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("OWNER_TOKEN")
		os.Unsetenv("OMEGA_MEMORY_LIMIT")
	})

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", config.Security.OwnerToken)
	assert.Equal(t, 4, config.Memory.Limit)
}

func TestLoad_ExplicitEnvFileMustExist(t *testing.T) {
	isolate(t)
	t.Setenv("OMEGA_ENV_FILE", "/nonexistent/omega.env")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}

func TestLoad_ValidationFailure(t *testing.T) {
	isolate(t)
	t.Setenv("OMEGA_STORAGE_TYPE", "sqlite")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSaveExample(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "configs", "example.yaml")

	require.NoError(t, SaveExample(path))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.StorageTypeSQLite, config.Storage.Type)
	assert.Equal(t, "./data/omega.db", config.Storage.Database.DSN)
}
