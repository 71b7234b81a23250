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
const DefaultConfigFile = "coach.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "COACH_PORT")
	setString(&cfg.Server.CORSOrigin, "COACH_CORS_ORIGIN")
	setFloat64(&cfg.Server.RateLimit.RPS, "COACH_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimit.Burst, "COACH_RATE_LIMIT_BURST")

	// Collaborator endpoints keep the names the deployment already uses.
	setString(&cfg.Services.Mood, "AGENT_MOOD_URL")
	setString(&cfg.Services.Brain, "AGENT_CERVEAU_URL")
	setString(&cfg.Services.Speech, "AGENT_SPEECH_URL")
	setString(&cfg.Services.Knowledge, "AGENT_KNOWLEDGE_URL")
	setString(&cfg.Services.Vision, "AGENT_VISION_URL")
	setString(&cfg.Services.Memory, "AGENT_MEMORY_URL")
	setString(&cfg.Services.Manager, "AGENT_MANAGER_URL")
	setDuration(&cfg.Worker.Timeout, "COACH_WORKER_TIMEOUT")

	// Router
	setString(&cfg.Router.Mode, "COACH_ROUTER_MODE")
	setString(&cfg.Router.Model, "COACH_ROUTER_MODEL")
	setFloat64(&cfg.Router.Temperature, "COACH_ROUTER_TEMPERATURE")
	setInt(&cfg.Router.MaxTokens, "COACH_ROUTER_MAX_TOKENS")
	setDuration(&cfg.Router.CacheTTL, "COACH_ROUTER_CACHE_TTL")

	// Orchestrator
	setBool(&cfg.Orchestrator.ParallelGather, "COACH_ORCH_PARALLEL_GATHER")
	setInt(&cfg.Orchestrator.MaxParallel, "COACH_ORCH_MAX_PARALLEL")
	setBool(&cfg.Orchestrator.ThreadVision, "COACH_ORCH_THREAD_VISION")

	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setInt(&cfg.Breaker.MaxFailures, "COACH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "COACH_BREAKER_TIMEOUT")
	setString(&cfg.Logging.Level, "COACH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "COACH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "COACH_LOG_ASYNC")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "COACH_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "COACH_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "COACH_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "COACH_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "COACH_PG_HEALTH_CHECK")
	setInt64(&cfg.Cache.MaxSizeMB, "COACH_CACHE_SIZE_MB")
	setString(&cfg.Cache.SharedBucket, "COACH_CACHE_SHARED_BUCKET")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "COACH_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "COACH_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "COACH_OTEL_SAMPLE_RATE")
	setBool(&cfg.MCP.Enabled, "COACH_MCP_ENABLED")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Router.Mode {
	case RouterRemote:
		if cfg.Services.Manager == "" {
			return errors.New("services.manager is required in remote router mode")
		}
	case RouterLocal:
	default:
		return fmt.Errorf("router.mode must be %q or %q, got %q", RouterRemote, RouterLocal, cfg.Router.Mode)
	}
	if cfg.Server.RateLimit.RPS < 0 {
		return errors.New("server.rate_limit.rps must be >= 0")
	}
	if cfg.Worker.Timeout <= 0 {
		return errors.New("worker.timeout must be > 0")
	}
	if cfg.Router.MaxTokens < 1 {
		return errors.New("router.max_tokens must be >= 1")
	}
	if cfg.Router.CacheTTL < 0 {
		return errors.New("router.cache_ttl must be >= 0")
	}
	if cfg.Orchestrator.MaxParallel < 1 {
		return errors.New("orchestrator.max_parallel must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within [0,1]")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
