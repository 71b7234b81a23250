package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.Server.Port)
	}
	if cfg.Worker.Timeout != 30*time.Second {
		t.Errorf("expected worker timeout 30s, got %v", cfg.Worker.Timeout)
	}
	if cfg.Router.Mode != RouterRemote {
		t.Errorf("expected remote router, got %s", cfg.Router.Mode)
	}
	if cfg.Orchestrator.ParallelGather {
		t.Error("parallel gather must be off by default")
	}
	if cfg.Orchestrator.ThreadVision {
		t.Error("vision threading must be off by default")
	}
	if cfg.Services.Mood != "http://127.0.0.1:8001/mcp" {
		t.Errorf("unexpected mood URL %s", cfg.Services.Mood)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
services:
  vision: "http://vision:9000/mcp"
router:
  mode: local
  cache_ttl: 1m
orchestrator:
  parallel_gather: true
  max_parallel: 2
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Services.Vision != "http://vision:9000/mcp" {
		t.Errorf("expected vision override, got %s", cfg.Services.Vision)
	}
	if cfg.Router.Mode != RouterLocal || cfg.Router.CacheTTL != time.Minute {
		t.Errorf("unexpected router %+v", cfg.Router)
	}
	if !cfg.Orchestrator.ParallelGather || cfg.Orchestrator.MaxParallel != 2 {
		t.Errorf("unexpected orchestrator %+v", cfg.Orchestrator)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Services.Speech != "http://127.0.0.1:8006/mcp" {
		t.Errorf("expected default speech URL, got %s", cfg.Services.Speech)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("COACH_PORT", "7070")
	t.Setenv("AGENT_MOOD_URL", "http://mood:1/mcp")
	t.Setenv("AGENT_CERVEAU_URL", "http://brain:2/mcp")
	t.Setenv("AGENT_SPEECH_URL", "http://speech:3/mcp")
	t.Setenv("AGENT_KNOWLEDGE_URL", "http://knowledge:4/mcp")
	t.Setenv("AGENT_VISION_URL", "http://vision:5/mcp")
	t.Setenv("AGENT_MEMORY_URL", "http://memory:6/mcp")
	t.Setenv("AGENT_MANAGER_URL", "http://manager:7/mcp")
	t.Setenv("COACH_WORKER_TIMEOUT", "5s")
	t.Setenv("COACH_ORCH_THREAD_VISION", "true")
	t.Setenv("COACH_LOG_LEVEL", "warn")
	t.Setenv("COACH_RATE_LIMIT_RPS", "0")
	t.Setenv("COACH_CACHE_SHARED_BUCKET", "")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	want := Services{
		Mood:      "http://mood:1/mcp",
		Brain:     "http://brain:2/mcp",
		Speech:    "http://speech:3/mcp",
		Knowledge: "http://knowledge:4/mcp",
		Vision:    "http://vision:5/mcp",
		Memory:    "http://memory:6/mcp",
		Manager:   "http://manager:7/mcp",
	}
	if cfg.Services != want {
		t.Errorf("services = %+v, want %+v", cfg.Services, want)
	}
	if cfg.Worker.Timeout != 5*time.Second {
		t.Errorf("expected worker timeout 5s, got %v", cfg.Worker.Timeout)
	}
	if !cfg.Orchestrator.ThreadVision {
		t.Error("expected thread_vision from env")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Server.RateLimit.RPS != 0 {
		t.Errorf("expected rate limit disabled, got %v", cfg.Server.RateLimit.RPS)
	}
	if cfg.Cache.SharedBucket != "coach_routes" {
		t.Errorf("empty env must not clear shared bucket, got %q", cfg.Cache.SharedBucket)
	}
}

func TestEnvIgnoresUnparsable(t *testing.T) {
	cfg := Defaults()
	t.Setenv("COACH_ORCH_MAX_PARALLEL", "many")
	t.Setenv("COACH_WORKER_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Orchestrator.MaxParallel != 4 {
		t.Errorf("expected default max_parallel, got %d", cfg.Orchestrator.MaxParallel)
	}
	if cfg.Worker.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.Worker.Timeout)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "unknown router mode",
			modify: func(c *Config) { c.Router.Mode = "psychic" },
			errMsg: `router.mode must be "remote" or "local", got "psychic"`,
		},
		{
			name:   "remote router without manager",
			modify: func(c *Config) { c.Services.Manager = "" },
			errMsg: "services.manager is required in remote router mode",
		},
		{
			name:   "negative rate limit",
			modify: func(c *Config) { c.Server.RateLimit.RPS = -1 },
			errMsg: "server.rate_limit.rps must be >= 0",
		},
		{
			name:   "zero worker timeout",
			modify: func(c *Config) { c.Worker.Timeout = 0 },
			errMsg: "worker.timeout must be > 0",
		},
		{
			name:   "zero max tokens",
			modify: func(c *Config) { c.Router.MaxTokens = 0 },
			errMsg: "router.max_tokens must be >= 1",
		},
		{
			name:   "zero max parallel",
			modify: func(c *Config) { c.Orchestrator.MaxParallel = 0 },
			errMsg: "orchestrator.max_parallel must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "sample rate above one",
			modify: func(c *Config) { c.OTEL.SampleRate = 1.5 },
			errMsg: "otel.sample_rate must be within [0,1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidateLocalRouterWithoutManager(t *testing.T) {
	cfg := Defaults()
	cfg.Router.Mode = RouterLocal
	cfg.Services.Manager = ""
	if err := validate(&cfg); err != nil {
		t.Errorf("local router needs no manager URL, got %v", err)
	}
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{"--port", "9090", "--log-level", "debug"})
	if err != nil {
		t.Fatal(err)
	}

	if flags.Port == nil || *flags.Port != "9090" {
		t.Errorf("expected port 9090, got %v", flags.Port)
	}
	if flags.LogLevel == nil || *flags.LogLevel != "debug" {
		t.Errorf("expected log-level debug, got %v", flags.LogLevel)
	}
	// Unset flags remain nil
	if flags.DSN != nil {
		t.Errorf("expected nil DSN, got %v", *flags.DSN)
	}
	if flags.ConfigPath != nil {
		t.Errorf("expected nil ConfigPath, got %v", *flags.ConfigPath)
	}
}

func TestParseFlagsShorthand(t *testing.T) {
	flags, err := ParseFlags([]string{"-p", "7070", "-c", "custom.yaml"})
	if err != nil {
		t.Fatal(err)
	}

	if flags.Port == nil || *flags.Port != "7070" {
		t.Errorf("expected port 7070, got %v", flags.Port)
	}
	if flags.ConfigPath == nil || *flags.ConfigPath != "custom.yaml" {
		t.Errorf("expected config custom.yaml, got %v", flags.ConfigPath)
	}
}

func TestParseFlagsInvalid(t *testing.T) {
	_, err := ParseFlags([]string{"--unknown-flag"})
	if err == nil {
		t.Error("expected error for unknown flag, got nil")
	}
}

func TestApplyCLINilFlags(t *testing.T) {
	cfg := Defaults()
	original := cfg

	applyCLI(&cfg, CLIFlags{})

	if cfg != original {
		t.Errorf("nil flags changed config: %+v", cfg)
	}
}

func TestCLIOverridesEnv(t *testing.T) {
	t.Setenv("COACH_PORT", "7070")
	t.Setenv("COACH_ROUTER_MODE", "remote")

	flags, err := ParseFlags([]string{"--port", "3333", "--router-mode", "local", "-c", filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadWithCLI(flags)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "3333" {
		t.Errorf("expected CLI port 3333 to override ENV 7070, got %s", cfg.Server.Port)
	}
	if cfg.Router.Mode != RouterLocal {
		t.Errorf("expected CLI router mode local, got %s", cfg.Router.Mode)
	}
}

func TestLoadWithCLICustomConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "custom.yaml")
	content := `
server:
  port: "5555"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	flags, err := ParseFlags([]string{"--config", yamlPath})
	if err != nil {
		t.Fatal(err)
	}

	cfg, resolvedPath, err := LoadWithCLI(flags)
	if err != nil {
		t.Fatal(err)
	}

	if resolvedPath != yamlPath {
		t.Errorf("expected resolved path %s, got %s", yamlPath, resolvedPath)
	}
	if cfg.Server.Port != "5555" {
		t.Errorf("expected port 5555 from custom YAML, got %s", cfg.Server.Port)
	}
}
