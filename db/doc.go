// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and persists mission documents.

# Connections

Open accepts "sqlite" (modernc.org/sqlite, pure Go) or "postgres" (lib/pq).
Queries are written once with ? placeholders; DB.Q rebinds them to $N for
PostgreSQL. SQLite connections are limited to one open connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - mission_record: one JSON document per post with a version counter
  - scheduled_job: timer deadlines awaiting re-invocation
  - ledger_credit: one row per awarded (season, mission, user, reason)
  - ledger_total: running season totals

Timestamps are stored as epoch milliseconds.

# Mission Store

[Store] is a compare-and-swap document store. Put succeeds only if the
stored version still matches the one that was read; otherwise it returns
ErrStaleWrite and the caller re-reads. [SQLStore] is the production
implementation and [MemoryStore] backs unit tests.

The store also keeps the earliest running deadline of each document in
next_deadline so DueDeadlines can find expired missions without decoding
every record.
*/
package db
