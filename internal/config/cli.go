package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// CLIFlags holds command-line overrides. Nil fields were not set.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
	RouterMode *string
}

// ParseFlags parses service flags from args (without the program name).
func ParseFlags(args []string) (CLIFlags, error) {
	fs := pflag.NewFlagSet("coach", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to YAML config file")
	port := fs.StringP("port", "p", "", "HTTP listen port")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN")
	natsURL := fs.String("nats-url", "", "NATS server URL")
	routerMode := fs.String("router-mode", "", "router mode (remote, local)")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	pick := func(name string, v *string) *string {
		if fs.Changed(name) {
			return v
		}
		return nil
	}
	flags.ConfigPath = pick("config", configPath)
	flags.Port = pick("port", port)
	flags.LogLevel = pick("log-level", logLevel)
	flags.DSN = pick("dsn", dsn)
	flags.NatsURL = pick("nats-url", natsURL)
	flags.RouterMode = pick("router-mode", routerMode)
	return flags, nil
}

// LoadWithCLI loads configuration with CLI flags as the highest layer:
// defaults < YAML < ENV < CLI. It returns the YAML path that was used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.RouterMode != nil {
		cfg.Router.Mode = *flags.RouterMode
	}
}
