// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setBaseEnv sets the required variables and clears the optional ones.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_SECRET", "test-secret")
	for _, key := range []string{"PORT", "DATABASE_TYPE", "SWEEP_SECRET", "SWEEP_INTERVAL", "LEDGER_SEASON", "OTEL_EXPORTER_OTLP_ENDPOINT", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3318 {
		t.Errorf("expected default port 3318, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected sqlite, got %q", cfg.DatabaseType)
	}
	if cfg.SweepInterval != 5*time.Second {
		t.Errorf("expected 5s sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.LedgerSeason != "default" {
		t.Errorf("expected default season, got %q", cfg.LedgerSeason)
	}
}

func TestParseFlags_EnvVars(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "Postgres")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("LEDGER_SEASON", "s2")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "postgres" {
		t.Errorf("expected postgres, got %q", cfg.DatabaseType)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.SweepInterval)
	}
	if cfg.LedgerSeason != "s2" {
		t.Errorf("expected season s2, got %q", cfg.LedgerSeason)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:other.db", "-jwt-secret", "cli-secret"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "file:other.db" {
		t.Errorf("expected CLI database URL, got %q", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "cli-secret" {
		t.Errorf("expected CLI secret, got %q", cfg.JWTSecret)
	}
}

func TestParseFlags_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, nil},
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}, nil},
		{"bad port env", map[string]string{"PORT": "abc"}, nil},
		{"port out of range", nil, []string{"-p", "70000"}},
		{"unknown database type", nil, []string{"-t", "mysql"}},
		{"bad interval", map[string]string{"SWEEP_INTERVAL": "soon"}, nil},
		{"zero interval", nil, []string{"-sweep-interval", "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := ParseFlags(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LEDGER_SEASON", "from-env")
	os.Unsetenv("LEDGER_SEASON")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEDGER_SEASON=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LedgerSeason != "from-file" {
		t.Errorf("expected season from .env, got %q", cfg.LedgerSeason)
	}
}
