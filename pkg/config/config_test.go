package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assemblage-lab/governor/pkg/config"
)

var envKeys = []string{
	"GOVERNOR_CONFIG", "LOG_LEVEL", "GOVERNOR_LOG_FORMAT", "DATABASE_URL", "GOVERNOR_DOCUMENT_ID",
	"GOVERNOR_CONSTITUTION", "LLM_SERVICE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_SMART_MODEL",
	"GOVERNOR_ORACLE_TIMEOUT", "GOVERNOR_ORACLE_FAIL_CLOSED", "GOVERNOR_ORACLE_RATE", "GOVERNOR_ORACLE_BURST",
	"LLM_TOKEN_SECRET", "LLM_TOKEN_AUDIENCE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "GOVERNOR_CACHE_TTL",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "GOVERNOR_OTLP_INSECURE", "GOVERNOR_TRACE_SAMPLE_RATE", "GOVERNOR_ENVIRONMENT",
	"ARTIFACT_STORAGE_TYPE", "ARTIFACT_DIR", "ARTIFACT_BUCKET", "ARTIFACT_PREFIX", "ARTIFACT_REGION", "ARTIFACT_ENDPOINT",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

// The governor must run offline with no configuration at all.
func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "data/ledger.json", cfg.DatabaseURL)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.OracleEnabled())
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Telemetry.Endpoint)
	assert.Equal(t, "fs", cfg.Artifacts.Type)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://governor@db:5432/governor")
	t.Setenv("LLM_SERVICE_URL", "http://llm:8080/v1")
	t.Setenv("LLM_MODEL", "local-model")
	t.Setenv("GOVERNOR_ORACLE_TIMEOUT", "5s")
	t.Setenv("GOVERNOR_ORACLE_FAIL_CLOSED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")

	cfg, err := config.Load("")
	require.NoError(t, err)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, "postgres://governor@db:5432/governor", cfg.DatabaseURL)
	assert.True(t, cfg.OracleEnabled())
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.LLM.FailClosed)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "otel:4317", cfg.Telemetry.Endpoint)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "governor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: WARN
log_format: json
database_url: sqlite:/var/lib/governor/ledger.db
constitution: rules.yaml
llm:
  service_url: http://gateway/v1
  timeout: 10s
  burst: 8
artifacts:
  type: s3
  bucket: statuses
`), 0o600))
	t.Setenv("LOG_LEVEL", "ERROR")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.LogLevel, "env wins over file")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "sqlite:/var/lib/governor/ledger.db", cfg.DatabaseURL)
	assert.Equal(t, "rules.yaml", cfg.ConstitutionPath)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 8, cfg.LLM.Burst)
	assert.Equal(t, 2.0, cfg.LLM.RateLimit, "unset keys keep defaults")
	assert.Equal(t, "s3", cfg.Artifacts.Type)
	assert.Equal(t, "statuses", cfg.Artifacts.Bucket)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "governor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("document_id: report-7\n"), 0o600))
	t.Setenv("GOVERNOR_CONFIG", path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "report-7", cfg.DocumentID)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]func(t *testing.T) string{
		"bad duration": func(t *testing.T) string {
			t.Setenv("GOVERNOR_ORACLE_TIMEOUT", "soon")
			return ""
		},
		"bad bool": func(t *testing.T) string {
			t.Setenv("GOVERNOR_ORACLE_FAIL_CLOSED", "maybe")
			return ""
		},
		"bad level": func(t *testing.T) string {
			t.Setenv("LOG_LEVEL", "LOUD")
			return ""
		},
		"bad sample rate": func(t *testing.T) string {
			t.Setenv("GOVERNOR_TRACE_SAMPLE_RATE", "2")
			return ""
		},
		"missing file": func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "absent.yaml")
		},
		"bad yaml": func(t *testing.T) string {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o600))
			return path
		},
		"bad format": func(t *testing.T) string {
			t.Setenv("GOVERNOR_LOG_FORMAT", "xml")
			return ""
		},
	}
	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			cleanEnv(t)
			_, err := config.Load(setup(t))
			require.Error(t, err)
		})
	}
}
