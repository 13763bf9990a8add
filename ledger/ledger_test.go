// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/ledger"
)

func newLedger(t *testing.T, season string) (*db.DB, *ledger.Ledger) {
	t.Helper()
	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn, ledger.New(conn, season)
}

func TestCreditPoints_Idempotent(t *testing.T) {
	_, l := newLedger(t, "s1")
	ctx := context.Background()

	res, err := l.CreditPoints(ctx, "m1", "alice", ledger.ReasonMissionSuccess, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.NewTotal != 20 {
		t.Errorf("Expected first credit of 20, got %+v", res)
	}

	res, err = l.CreditPoints(ctx, "m1", "alice", ledger.ReasonMissionSuccess, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.NewTotal != 20 {
		t.Errorf("Expected repeat to be a no-op at 20, got %+v", res)
	}

	// A different reason or mission is a new key
	if res, _ := l.CreditPoints(ctx, "m1", "alice", ledger.ReasonDecisiveAction, 0); !res.OK || res.NewTotal != 25 {
		t.Errorf("Expected decisive credit to reach 25, got %+v", res)
	}
	if res, _ := l.CreditPoints(ctx, "m2", "alice", ledger.ReasonMissionSuccess, 7); !res.OK || res.NewTotal != 32 {
		t.Errorf("Expected explicit 7 points to reach 32, got %+v", res)
	}
}

func TestCreditPoints_Concurrent(t *testing.T) {
	_, l := newLedger(t, "s1")
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.CreditPoints(ctx, "m1", "bob", ledger.ReasonMissionFail, 0)
			if err != nil {
				t.Errorf("CreditPoints failed: %v", err)
				return
			}
			if res.OK {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Errorf("Expected exactly one successful credit, got %d", ok)
	}
	if total, _ := l.Total(ctx, "bob"); total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
}

func TestBulkCreditPoints(t *testing.T) {
	_, l := newLedger(t, "")
	ctx := context.Background()

	if l.Season() != "default" {
		t.Errorf("Expected default season, got %q", l.Season())
	}

	results, err := l.BulkCreditPoints(ctx, "m1", []string{"a", "b", "a"}, ledger.ReasonMissionAbort, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || !results[0].OK || !results[1].OK || results[2].OK {
		t.Errorf("Expected the duplicate user to be a no-op, got %+v", results)
	}
	if total, _ := l.Total(ctx, "a"); total != 10 {
		t.Errorf("Expected a to hold 10, got %d", total)
	}
}

func TestTotal_SeasonsAreSeparate(t *testing.T) {
	conn, spring := newLedger(t, "spring")
	autumn := ledger.New(conn, "autumn")
	ctx := context.Background()

	spring.CreditPoints(ctx, "m1", "carol", ledger.ReasonMissionSuccess, 0)

	if total, _ := autumn.Total(ctx, "carol"); total != 0 {
		t.Errorf("Expected nothing in autumn, got %d", total)
	}
	if total, _ := spring.Total(ctx, "nobody"); total != 0 {
		t.Errorf("Expected 0 for unknown user, got %d", total)
	}
}
