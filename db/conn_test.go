// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import "testing"

func TestQ(t *testing.T) {
	query := "SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?"

	pg := &DB{Dialect: DialectPostgres}
	if got, want := pg.Q(query), "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	lite := &DB{Dialect: DialectSQLite}
	if got := lite.Q(query); got != query {
		t.Errorf("Expected SQLite query unchanged, got %q", got)
	}
}

func TestOpen(t *testing.T) {
	testCases := []struct {
		name    string
		dbType  string
		dialect Dialect
		wantErr bool
	}{
		{"sqlite", "sqlite", DialectSQLite, false},
		{"default is sqlite", "", DialectSQLite, false},
		{"case insensitive", " Postgres ", DialectPostgres, false},
		{"unknown", "oracle", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// sql.Open is lazy, so no server is needed for postgres
			conn, err := Open(tc.dbType, "file::memory:")
			if tc.wantErr {
				if err == nil {
					conn.Close()
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer conn.Close()
			if conn.Dialect != tc.dialect {
				t.Errorf("Expected dialect %s, got %s", tc.dialect, conn.Dialect)
			}
		})
	}
}
