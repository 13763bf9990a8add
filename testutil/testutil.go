// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/mission-control/auth"
	"github.com/danielhkuo/mission-control/cliparse"
	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/pubsub"
	"github.com/danielhkuo/mission-control/scheduler"
)

// TestJWTSecret signs every token minted by tests
const TestJWTSecret = "test-jwt-secret"

// TestSweepSecret guards the sweep endpoint in tests
const TestSweepSecret = "test-sweep-secret"

// Epoch is where test clocks start. It sits on a whole second so values
// survive the millisecond round trip through the database.
var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupTestDB creates a fresh SQLite database file with the full schema
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseURL:   "file:test.db",
		DatabaseType:  "sqlite",
		JWTSecret:     TestJWTSecret,
		SweepSecret:   TestSweepSecret,
		SweepInterval: 5 * time.Second,
		LedgerSeason:  "test-season",
	}
}

// App is a fully wired service on a temp database with a fake clock and a
// settable launch roll.
type App struct {
	DB       *db.DB
	Store    *db.SQLStore
	Ledger   *ledger.Ledger
	Hub      *pubsub.Hub
	Queue    *scheduler.Queue
	Worker   *scheduler.Worker
	Sweeper  *scheduler.Sweeper
	Machine  *mission.Machine
	Clock    *clock.Fake
	Resolver *auth.Resolver

	roll atomic.Uint64
}

// NewApp wires every component the way main does, on test infrastructure.
func NewApp(t *testing.T) *App {
	t.Helper()

	cfg := GetTestConfig()
	conn := SetupTestDB(t)
	clk := clock.NewFake(Epoch)

	a := &App{
		DB:       conn,
		Store:    db.NewSQLStore(conn),
		Ledger:   ledger.New(conn, cfg.LedgerSeason),
		Hub:      pubsub.NewHub(),
		Queue:    scheduler.NewQueue(conn),
		Clock:    clk,
		Resolver: auth.NewResolver(cfg.JWTSecret, clk.Now),
	}
	a.SetRoll(0)

	a.Machine = mission.New(mission.Deps{
		Store:     a.Store,
		Ledger:    a.Ledger,
		Publisher: a.Hub,
		Scheduler: a.Queue,
		Clock:     clk,
		Roller:    mission.RollerFunc(a.nextRoll),
	})
	a.Worker = scheduler.NewWorker(a.Queue, a.Machine, clk, scheduler.Config{})
	a.Sweeper = scheduler.NewSweeper(a.Store, a.Machine, 0)
	return a
}

// SetRoll fixes the launch roll returned from now on.
func (a *App) SetRoll(v float64) {
	a.roll.Store(uint64(v * 1000))
}

func (a *App) nextRoll() float64 {
	return float64(a.roll.Load()) / 1000
}

// Token mints a bearer token for username.
func (a *App) Token(t *testing.T, username string, moderator bool) string {
	t.Helper()
	token, err := a.Resolver.Issue(auth.Identity{Username: username, Moderator: moderator}, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// AuthHeader returns request headers carrying a token for username.
func (a *App) AuthHeader(t *testing.T, username string, moderator bool) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + a.Token(t, username, moderator)}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
