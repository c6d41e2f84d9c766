// Package config loads governor settings from defaults, an optional YAML
// file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds governor configuration.
type Config struct {
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"` // text | json
	DatabaseURL      string `yaml:"database_url"`
	DocumentID       string `yaml:"document_id"`
	ConstitutionPath string `yaml:"constitution"`

	LLM       LLMConfig       `yaml:"llm"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// LLMConfig configures the Pattern Sentinel oracle. An empty ServiceURL
// disables the oracle.
type LLMConfig struct {
	ServiceURL    string        `yaml:"service_url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	SmartModel    string        `yaml:"smart_model"`
	Timeout       time.Duration `yaml:"timeout"`
	FailClosed    bool          `yaml:"fail_closed"`
	RateLimit     float64       `yaml:"rate_limit"` // calls per second
	Burst         int           `yaml:"burst"`
	TokenSecret   string        `yaml:"token_secret"`
	TokenIssuer   string        `yaml:"token_issuer"`
	TokenAudience string        `yaml:"token_audience"`
}

// RedisConfig configures the opinion cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// TelemetryConfig configures OTLP export. An empty Endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
	Environment string  `yaml:"environment"`
}

// ArtifactsConfig selects where exported statuses go.
type ArtifactsConfig struct {
	Type     string `yaml:"type"` // fs | s3 | gcs
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:    "INFO",
		LogFormat:   "text",
		DatabaseURL: "data/ledger.json",
		DocumentID:  "default",
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Timeout:     20 * time.Second,
			RateLimit:   2,
			Burst:       4,
			TokenIssuer: "governor",
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			SampleRate:  1.0,
			Environment: "development",
		},
		Artifacts: ArtifactsConfig{
			Type: "fs",
			Dir:  "data/artifacts",
		},
	}
}

// Load builds the configuration. path may be empty; GOVERNOR_CONFIG is
// used when it is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GOVERNOR_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("GOVERNOR_LOG_FORMAT", &c.LogFormat)
	str("DATABASE_URL", &c.DatabaseURL)
	str("GOVERNOR_DOCUMENT_ID", &c.DocumentID)
	str("GOVERNOR_CONSTITUTION", &c.ConstitutionPath)

	str("LLM_SERVICE_URL", &c.LLM.ServiceURL)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_SMART_MODEL", &c.LLM.SmartModel)
	duration("GOVERNOR_ORACLE_TIMEOUT", &c.LLM.Timeout)
	boolean("GOVERNOR_ORACLE_FAIL_CLOSED", &c.LLM.FailClosed)
	float("GOVERNOR_ORACLE_RATE", &c.LLM.RateLimit)
	integer("GOVERNOR_ORACLE_BURST", &c.LLM.Burst)
	str("LLM_TOKEN_SECRET", &c.LLM.TokenSecret)
	str("LLM_TOKEN_AUDIENCE", &c.LLM.TokenAudience)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	duration("GOVERNOR_CACHE_TTL", &c.Redis.TTL)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	boolean("GOVERNOR_OTLP_INSECURE", &c.Telemetry.Insecure)
	float("GOVERNOR_TRACE_SAMPLE_RATE", &c.Telemetry.SampleRate)
	str("GOVERNOR_ENVIRONMENT", &c.Telemetry.Environment)

	str("ARTIFACT_STORAGE_TYPE", &c.Artifacts.Type)
	str("ARTIFACT_DIR", &c.Artifacts.Dir)
	str("ARTIFACT_BUCKET", &c.Artifacts.Bucket)
	str("ARTIFACT_PREFIX", &c.Artifacts.Prefix)
	str("ARTIFACT_REGION", &c.Artifacts.Region)
	str("ARTIFACT_ENDPOINT", &c.Artifacts.Endpoint)

	return errors.Join(errs...)
}

// Validate rejects settings the governor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.LLM.RateLimit <= 0 || c.LLM.Burst < 1 {
		errs = append(errs, errors.New("llm.rate_limit and llm.burst must be positive"))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be within [0,1], got %v", c.Telemetry.SampleRate))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// OracleEnabled reports whether a model endpoint is configured.
func (c *Config) OracleEnabled() bool {
	return c.LLM.ServiceURL != ""
}
