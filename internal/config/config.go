// Package config provides hierarchical configuration loading for CoachForge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds runtime configuration shared by the CoachForge services.
type Config struct {
	Server       Server       `yaml:"server"`
	Services     Services     `yaml:"services"`
	Worker       Worker       `yaml:"worker"`
	Router       Router       `yaml:"router"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	LiteLLM      LiteLLM      `yaml:"litellm"`
	Breaker      Breaker      `yaml:"breaker"`
	Logging      Logging      `yaml:"logging"`
	NATS         NATS         `yaml:"nats"`
	Postgres     Postgres     `yaml:"postgres"`
	Cache        Cache        `yaml:"cache"`
	OTEL         OTEL         `yaml:"otel"`
	MCP          MCP          `yaml:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string    `yaml:"port"`
	CORSOrigin string    `yaml:"cors_origin"`
	RateLimit  RateLimit `yaml:"rate_limit"`
}

// RateLimit bounds inbound /mcp requests per client. RPS 0 disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Services holds the /mcp endpoint of every collaborator.
type Services struct {
	Mood      string `yaml:"mood"`
	Brain     string `yaml:"brain"`
	Speech    string `yaml:"speech"`
	Knowledge string `yaml:"knowledge"`
	Vision    string `yaml:"vision"`
	Memory    string `yaml:"memory"`
	Manager   string `yaml:"manager"`
}

// Worker holds outbound worker call settings.
type Worker struct {
	Timeout time.Duration `yaml:"timeout"` // Per-call timeout (default: 30s)
}

// Router modes.
const (
	RouterRemote = "remote"
	RouterLocal  = "local"
)

// Router holds service routing configuration.
type Router struct {
	Mode        string        `yaml:"mode"`        // "remote" | "local" (default: "remote")
	Model       string        `yaml:"model"`       // LLM model used for routing
	Temperature float64       `yaml:"temperature"` // default: 0
	MaxTokens   int           `yaml:"max_tokens"`  // default: 512
	CacheTTL    time.Duration `yaml:"cache_ttl"`   // 0 disables the decision cache
}

// Orchestrator holds turn execution configuration.
type Orchestrator struct {
	ParallelGather bool `yaml:"parallel_gather"` // Run independent pass-1 steps concurrently
	MaxParallel    int  `yaml:"max_parallel"`    // Max concurrent worker calls (default: 4)
	ThreadVision   bool `yaml:"thread_vision"`   // Pass vision_result to the coaching call
}

// LiteLLM holds LiteLLM proxy configuration.
type LiteLLM struct {
	URL       string `yaml:"url"`
	MasterKey string `yaml:"master_key"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// NATS holds NATS JetStream configuration. An empty URL disables turn events.
type NATS struct {
	URL string `yaml:"url"`
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// Cache holds the routing cache configuration. With NATS configured, the
// in-process cache is backed by the SharedBucket KV bucket.
type Cache struct {
	MaxSizeMB    int64  `yaml:"max_size_mb"`
	SharedBucket string `yaml:"shared_bucket"` // empty keeps the cache process-local
}

// OTEL holds OpenTelemetry configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MCP holds the MCP tool server configuration.
type MCP struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8000",
			CORSOrigin: "http://localhost:3000",
			RateLimit: RateLimit{
				RPS:   5,
				Burst: 20,
			},
		},
		Services: Services{
			Mood:      "http://127.0.0.1:8001/mcp",
			Brain:     "http://127.0.0.1:8002/mcp",
			Memory:    "http://127.0.0.1:8003/mcp",
			Manager:   "http://127.0.0.1:8004/mcp",
			Vision:    "http://127.0.0.1:8005/mcp",
			Speech:    "http://127.0.0.1:8006/mcp",
			Knowledge: "http://127.0.0.1:8007/mcp",
		},
		Worker: Worker{
			Timeout: 30 * time.Second,
		},
		Router: Router{
			Mode:        RouterRemote,
			Model:       "groq/llama-3.3-70b-versatile",
			Temperature: 0,
			MaxTokens:   512,
			CacheTTL:    10 * time.Minute,
		},
		Orchestrator: Orchestrator{
			ParallelGather: false,
			MaxParallel:    4,
		},
		LiteLLM: LiteLLM{
			URL: "http://localhost:4000",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "coach-orchestrator",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		Cache: Cache{
			MaxSizeMB:    32,
			SharedBucket: "coach_routes",
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "coachforge",
			Insecure:    true,
			SampleRate:  1.0,
		},
		MCP: MCP{
			Enabled: true,
		},
	}
}
