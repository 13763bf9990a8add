// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/mission-control/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	conn, err := Open("sqlite", filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	// Running it twice is harmless
	if err := CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Second CreateSchema failed: %v", err)
	}
	return conn
}

// stores runs fn against both Store implementations.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sql", func(t *testing.T) { fn(t, NewSQLStore(openTestDB(t))) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestStore_GetUnknownIsIdle(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		m, err := s.Get(context.Background(), "nobody")
		if err != nil {
			t.Fatal(err)
		}
		if m.Phase != models.PhaseIdle || m.Version != 0 || m.PostID != "nobody" {
			t.Errorf("Expected fresh IDLE document, got %+v", m)
		}
		if m.Timers == nil || m.Participants == nil {
			t.Error("Expected initialized collections")
		}
	})
}

func TestStore_CompareAndSwap(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		m, _ := s.Get(ctx, "p1")
		m.Phase = models.PhaseDesign
		m.Fuel = 60
		v, err := s.Put(ctx, m)
		if err != nil || v != 1 {
			t.Fatalf("Expected first write at version 1, got %d (err=%v)", v, err)
		}

		a, _ := s.Get(ctx, "p1")
		b, _ := s.Get(ctx, "p1")
		if a.Version != 1 || a.Fuel != 60 {
			t.Fatalf("Unexpected stored document %+v", a)
		}

		a.Fuel = 70
		if v, err := s.Put(ctx, a); err != nil || v != 2 {
			t.Fatalf("Expected version 2, got %d (err=%v)", v, err)
		}

		// b read version 1 and lost the race
		b.Fuel = 80
		if _, err := s.Put(ctx, b); !errors.Is(err, ErrStaleWrite) {
			t.Errorf("Expected ErrStaleWrite, got %v", err)
		}

		// A second creator also loses
		fresh := models.NewIdleMission("p1")
		if _, err := s.Put(ctx, fresh); !errors.Is(err, ErrStaleWrite) {
			t.Errorf("Expected ErrStaleWrite for duplicate create, got %v", err)
		}

		got, _ := s.Get(ctx, "p1")
		if got.Fuel != 70 || got.Version != 2 {
			t.Errorf("Expected the winning write to stick, got fuel=%d version=%d", got.Fuel, got.Version)
		}
	})
}

func TestStore_RoundTripsTimersAndVotes(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ends := t0.Add(time.Minute)
		payload := models.PayloadProbe

		m := models.NewIdleMission("p1")
		m.Phase = models.PhaseLaunch
		m.Payload = &payload
		m.Timers[models.TimerLaunch] = &models.Timer{Status: models.TimerRunning, EndsAt: &ends}
		m.VoteWindow = &models.VoteWindow{
			ID:                "w1",
			Phase:             models.PhaseLaunch,
			Options:           []string{models.OptionManualLaunch},
			Status:            models.VoteOpen,
			Ballots:           map[string]string{"alice": models.OptionManualLaunch},
			OptionFirstVoteAt: map[string]time.Time{models.OptionManualLaunch: t0},
		}
		if _, err := s.Put(ctx, m); err != nil {
			t.Fatal(err)
		}

		got, err := s.Get(ctx, "p1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Payload == nil || *got.Payload != payload {
			t.Errorf("Expected payload %s, got %v", payload, got.Payload)
		}
		launch := got.Timers[models.TimerLaunch]
		if launch == nil || !launch.EndsAt.Equal(ends) {
			t.Errorf("Expected launch timer ending %v, got %+v", ends, launch)
		}
		if got.VoteWindow == nil || got.VoteWindow.Ballots["alice"] != models.OptionManualLaunch {
			t.Errorf("Expected ballot to survive, got %+v", got.VoteWindow)
		}
	})
}

func TestStore_DueDeadlines(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		put := func(postID string, status string, endsAt time.Time) {
			m := models.NewIdleMission(postID)
			m.Phase = models.PhaseLaunch
			m.Timers[models.TimerLaunch] = &models.Timer{Status: status, EndsAt: &endsAt}
			if _, err := s.Put(ctx, m); err != nil {
				t.Fatal(err)
			}
		}
		put("late", models.TimerRunning, t0.Add(-time.Minute))
		put("later", models.TimerRunning, t0.Add(-time.Second))
		put("future", models.TimerRunning, t0.Add(time.Minute))
		put("paused", models.TimerPaused, t0.Add(-time.Hour))
		idle := models.NewIdleMission("idle")
		if _, err := s.Put(ctx, idle); err != nil {
			t.Fatal(err)
		}

		due, err := s.DueDeadlines(ctx, t0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(due) != 2 || due[0] != "late" || due[1] != "later" {
			t.Errorf("Expected [late later], got %v", due)
		}

		due, _ = s.DueDeadlines(ctx, t0, 1)
		if len(due) != 1 || due[0] != "late" {
			t.Errorf("Expected limit to keep the earliest, got %v", due)
		}
	})
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	m := models.NewIdleMission("p1")
	m.Participants = append(m.Participants, "alice")
	if _, err := s.Put(ctx, m); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy after the write changes nothing stored
	m.Participants[0] = "mallory"
	got, _ := s.Get(ctx, "p1")
	if got.Participants[0] != "alice" {
		t.Errorf("Expected stored participant alice, got %s", got.Participants[0])
	}
}
