// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a *sql.DB tagged with its dialect. Queries are written with ?
// placeholders and rebound for PostgreSQL by Q.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the database named by dbType ("sqlite" or "postgres").
func Open(dbType, url string) (*DB, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(dbType)))
	if dialect == "" {
		dialect = DialectSQLite
	}

	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// SQLite allows a single writer; serialize at the pool instead of
	// surfacing SQLITE_BUSY.
	if dialect == DialectSQLite {
		conn.SetMaxOpenConns(1)
	}

	return &DB{DB: conn, Dialect: dialect}, nil
}

// Q rebinds ? placeholders to $N for PostgreSQL.
func (d *DB) Q(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
