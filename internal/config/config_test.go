package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  port: 18080
  read_timeout: 30s
  write_timeout: 60s
  rate_per_second: 10
providers:
  groq:
    enabled: true
monitoring:
  log_level: debug
  telemetry_enabled: true
  telemetry_path: /tmp/telemetry.jsonl
`

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))

	require.NoError(t, err)
	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10, cfg.Server.RatePerSecond)
	assert.True(t, cfg.Providers["groq"].Enabled)
	assert.Equal(t, "debug", cfg.Monitoring.LogLevel)
	assert.True(t, cfg.Monitoring.TelemetryEnabled)
}

func TestLoadFromBytes_EnvExpansionWithDefault(t *testing.T) {
	yaml := `
server:
  port: ${TEST_GATEWAY_PORT:-9999}
  read_timeout: 30s
  write_timeout: 60s
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port, "default used when env unset")

	t.Setenv("TEST_GATEWAY_PORT", "8123")
	cfg, err = LoadFromBytes([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Server.Port, "env value wins")
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("server: [not a map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestValidate_PortRequired(t *testing.T) {
	_, err := LoadFromBytes([]byte(`
server:
  read_timeout: 30s
  write_timeout: 60s
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 70000
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server.port")
}

func TestValidate_DatasetPathRequiredWhenEnabled(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second
	cfg.Dataset.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.path")
}

func TestApplyEnvOverrides_SessionPaths(t *testing.T) {
	t.Setenv("SESSION_TELEMETRY_LOG", "/tmp/session-telemetry.jsonl")
	t.Setenv("SESSION_DATASET_DB", "/tmp/session-dataset.db")

	cfg, err := LoadFromBytes([]byte(validYAML))

	require.NoError(t, err)
	assert.Equal(t, "/tmp/session-telemetry.jsonl", cfg.Monitoring.TelemetryPath)
	assert.Equal(t, "/tmp/session-dataset.db", cfg.Dataset.Path)
	assert.True(t, cfg.Dataset.Enabled, "dataset export enabled by env override")
}

func TestResolveSecret_TrimsWhitespace(t *testing.T) {
	t.Setenv("TEST_SECRET_KEY", "  value-with-space  ")
	assert.Equal(t, "value-with-space", ResolveSecret("TEST_SECRET_KEY"))
	assert.Empty(t, ResolveSecret("TEST_SECRET_KEY_UNSET"))
}

func TestEnvNames_VendorPattern(t *testing.T) {
	assert.Equal(t, "GROQ_API_KEY", APIKeyEnv("groq"))
	assert.Equal(t, "GROQ_API_BASE", APIBaseEnv("groq"))
	assert.Equal(t, "MY_VENDOR_API_KEY", APIKeyEnv("my-vendor"))
}
