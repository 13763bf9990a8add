package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          int           `env:"PORT" envDefault:"3318"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	DatabaseType  string        `env:"DATABASE_TYPE" envDefault:"sqlite"`
	JWTSecret     string        `env:"JWT_SECRET"`
	SweepSecret   string        `env:"SWEEP_SECRET"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
	LedgerSeason  string        `env:"LEDGER_SEASON" envDefault:"default"`
	OTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadDotEnv reads .env files into the environment. Missing files are
// ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ParseEnv fills a Config from the environment only.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseFlags reads the environment, then applies CLI overrides and validates
func ParseFlags(args []string) (Config, error) {
	cfg, err := ParseEnv()
	if err != nil {
		return Config{}, err
	}

	fset := flag.NewFlagSet("mission-control", flag.ContinueOnError)

	// Network and storage (can be CLI args or env)
	fset.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fset.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fset.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fset.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Token signing secret (prefer env)")
	fset.StringVar(&cfg.SweepSecret, "sweep-secret", cfg.SweepSecret, "Sweep endpoint secret (prefer env)")

	fset.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Deadline sweep interval")
	fset.StringVar(&cfg.LedgerSeason, "season", cfg.LedgerSeason, "Ledger season")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and normalizes the database type.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	c.DatabaseType = strings.ToLower(strings.TrimSpace(c.DatabaseType))
	switch c.DatabaseType {
	case "":
		c.DatabaseType = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.DatabaseType)
	}

	// Secrets - MUST be provided
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET required")
	}

	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	return nil
}
