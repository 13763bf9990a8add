// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := cliparse.ParseFlags(args)

LoadDotEnv reads a .env file if one exists. Variables already present in the
environment are not overwritten.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: SQLite path or PostgreSQL connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - JWTSecret: HS256 key for identity tokens (required)
  - SweepSecret: Shared secret for POST /internal/sweep
  - SweepInterval: Deadline sweep period (default: 5s)
  - LedgerSeason: Season key for point credits (default: "default")
  - OTLPEndpoint: OTLP/HTTP trace endpoint; tracing is off when empty
  - LogLevel: debug, info, warn or error (default: info)

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	-jwt-secret      Token signing secret
	-sweep-secret    Sweep endpoint secret
	-sweep-interval  Deadline sweep interval
	-season          Ledger season
	-log-level       Log level

# Environment Variables

Flags fall back to environment variables:

	PORT                         → -p
	DATABASE_URL                 → -d
	DATABASE_TYPE                → -t
	JWT_SECRET                   → -jwt-secret
	SWEEP_SECRET                 → -sweep-secret
	SWEEP_INTERVAL               → -sweep-interval
	LEDGER_SEASON                → -season
	LOG_LEVEL                    → -log-level
	OTEL_EXPORTER_OTLP_ENDPOINT

CLI flags take precedence over environment variables.
*/
package cliparse
