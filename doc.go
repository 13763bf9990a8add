// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Mission Control server.

Mission Control runs one collaborative rocket mission per community post.
Players design the rocket, a countdown launches it, the crowd picks a single
flight action, and everyone involved is credited points on a season ledger.

# Commands

	mission-control serve [flags]   # HTTP API, scheduler worker, deadline sweep
	mission-control sweep [flags]   # one sweep pass, then exit
	mission-control reset <post>    # moderator reset to IDLE

# Configuration

Settings come from the environment (a .env file is loaded if present), with
flag overrides:

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - JWT_SECRET (--jwt-secret): HMAC secret for bearer tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - SWEEP_SECRET (--sweep-secret): enables POST /internal/sweep
  - SWEEP_INTERVAL (--sweep-interval): in-process sweep period (default: 5s)
  - LEDGER_SEASON (--season): ledger season (default: default)
  - OTEL_EXPORTER_OTLP_ENDPOINT: enables trace export
  - LOG_LEVEL (--log-level): debug, info, warn, error

# Architecture

  - mission: the phase machine; every write is read, transform, compare-and-swap
  - tally: deterministic vote ranking
  - timer: countdown state and its job/publish side effects
  - scheduler: durable job queue, worker and deadline sweep
  - ledger: idempotent point credits
  - pubsub: in-process topics and the WebSocket stream
  - handlers, router, middleware: HTTP surface
  - auth: JWT identity
  - db: connections, schema and the mission store
  - cliparse, telemetry, clock: configuration, tracing, time

See package documentation for each component.
*/
package main
