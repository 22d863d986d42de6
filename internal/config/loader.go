package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tuneforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("TUNEFORGE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TUNEFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "TUNEFORGE_CORS_ORIGIN")
	setInt64(&cfg.Server.MaxBodySize, "TUNEFORGE_MAX_BODY_SIZE")
	setDuration(&cfg.Server.RequestTimeout, "TUNEFORGE_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "TUNEFORGE_SHUTDOWN_TIMEOUT")
	setBool(&cfg.Server.TrustProxy, "TUNEFORGE_TRUST_PROXY")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TUNEFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TUNEFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TUNEFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TUNEFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TUNEFORGE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setInt64(&cfg.Cache.L1MaxSizeMB, "TUNEFORGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "TUNEFORGE_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "TUNEFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "TUNEFORGE_CACHE_L2_TTL")

	setString(&cfg.Logging.Level, "TUNEFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TUNEFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TUNEFORGE_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "TUNEFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TUNEFORGE_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "TUNEFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "TUNEFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "TUNEFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "TUNEFORGE_RATE_MAX_IDLE_TIME")

	setDuration(&cfg.Tools.ExecTimeout, "TUNEFORGE_TOOL_EXEC_TIMEOUT")
	setInt64(&cfg.Tools.MaxResponseSize, "TUNEFORGE_TOOL_MAX_RESPONSE_SIZE")

	setString(&cfg.Idempotency.Bucket, "TUNEFORGE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "TUNEFORGE_IDEMPOTENCY_TTL")

	setBool(&cfg.OTEL.Enabled, "TUNEFORGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "TUNEFORGE_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")

	setBool(&cfg.MCP.Enabled, "TUNEFORGE_MCP_ENABLED")
	setString(&cfg.MCP.Name, "TUNEFORGE_MCP_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.MaxBodySize < 1 {
		return errors.New("server.max_body_size must be >= 1")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.RequestsPerSecond <= 0 {
		return errors.New("rate.requests_per_second must be > 0")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Tools.ExecTimeout <= 0 {
		return errors.New("tools.exec_timeout must be > 0")
	}
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint == "" {
		return errors.New("otel.endpoint is required when otel is enabled")
	}
	if cfg.MCP.Enabled && cfg.MCP.Name == "" {
		return errors.New("mcp.name is required when mcp is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
