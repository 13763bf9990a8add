// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/models"
)

var (
	// ErrStaleWrite means the record changed between read and write.
	ErrStaleWrite = errors.New("stale write: mission record was modified concurrently")
)

// Store persists mission documents with compare-and-swap semantics.
type Store interface {
	// Get returns the document for postID, or a fresh IDLE document with
	// Version 0 if none was ever written.
	Get(ctx context.Context, postID string) (*models.Mission, error)

	// Put writes m if the stored version still equals m.Version and returns
	// the new version. A mismatch returns ErrStaleWrite.
	Put(ctx context.Context, m *models.Mission) (int64, error)

	// DueDeadlines lists posts whose earliest running timer expired at or
	// before now.
	DueDeadlines(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// SQLStore keeps each mission as a JSON document in mission_record.
type SQLStore struct {
	db *DB
}

func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, postID string) (*models.Mission, error) {
	var version int64
	var doc string
	err := s.db.QueryRowContext(ctx, s.db.Q(`
		SELECT version, doc FROM mission_record WHERE post_id = ?
	`), postID).Scan(&version, &doc)

	if err == sql.ErrNoRows {
		return models.NewIdleMission(postID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mission %s: %w", postID, err)
	}

	return decode(postID, version, []byte(doc))
}

func (s *SQLStore) Put(ctx context.Context, m *models.Mission) (int64, error) {
	doc, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("failed to encode mission %s: %w", m.PostID, err)
	}

	deadline := nullableMillis(m.NextDeadline())
	now := time.Now().UnixMilli()

	var res sql.Result
	if m.Version == 0 {
		res, err = s.db.ExecContext(ctx, s.db.Q(`
			INSERT INTO mission_record (post_id, version, phase, doc, next_deadline, updated_at)
			VALUES (?, 1, ?, ?, ?, ?)
			ON CONFLICT (post_id) DO NOTHING
		`), m.PostID, string(m.Phase), string(doc), deadline, now)
	} else {
		res, err = s.db.ExecContext(ctx, s.db.Q(`
			UPDATE mission_record
			SET version = version + 1, phase = ?, doc = ?, next_deadline = ?, updated_at = ?
			WHERE post_id = ? AND version = ?
		`), string(m.Phase), string(doc), deadline, now, m.PostID, m.Version)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write mission %s: %w", m.PostID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to write mission %s: %w", m.PostID, err)
	}
	if n == 0 {
		return 0, ErrStaleWrite
	}

	return m.Version + 1, nil
}

func (s *SQLStore) DueDeadlines(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, s.db.Q(`
		SELECT post_id FROM mission_record
		WHERE next_deadline IS NOT NULL AND next_deadline <= ?
		ORDER BY next_deadline
		LIMIT ?
	`), now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due deadlines: %w", err)
	}
	defer rows.Close()

	var posts []string
	for rows.Next() {
		var postID string
		if err := rows.Scan(&postID); err != nil {
			return nil, err
		}
		posts = append(posts, postID)
	}

	return posts, rows.Err()
}

// MemoryStore is an in-process Store. Documents are held encoded so callers
// can never mutate a committed record through a shared pointer.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]memoryEntry
}

type memoryEntry struct {
	version  int64
	doc      []byte
	deadline *time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, postID string) (*models.Mission, error) {
	s.mu.Lock()
	entry, ok := s.docs[postID]
	s.mu.Unlock()

	if !ok {
		return models.NewIdleMission(postID), nil
	}
	return decode(postID, entry.version, entry.doc)
}

func (s *MemoryStore) Put(_ context.Context, m *models.Mission) (int64, error) {
	doc, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("failed to encode mission %s: %w", m.PostID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.docs[m.PostID].version
	if current != m.Version {
		return 0, ErrStaleWrite
	}

	s.docs[m.PostID] = memoryEntry{version: current + 1, doc: doc, deadline: m.NextDeadline()}
	return current + 1, nil
}

func (s *MemoryStore) DueDeadlines(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type due struct {
		postID   string
		deadline time.Time
	}
	var found []due
	for postID, entry := range s.docs {
		if entry.deadline != nil && !entry.deadline.After(now) {
			found = append(found, due{postID, *entry.deadline})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].deadline.Equal(found[j].deadline) {
			return found[i].deadline.Before(found[j].deadline)
		}
		return found[i].postID < found[j].postID
	})

	posts := make([]string, 0, len(found))
	for i, d := range found {
		if limit > 0 && i >= limit {
			break
		}
		posts = append(posts, d.postID)
	}
	return posts, nil
}

func decode(postID string, version int64, doc []byte) (*models.Mission, error) {
	m := models.NewIdleMission(postID)
	if err := json.Unmarshal(doc, m); err != nil {
		return nil, fmt.Errorf("failed to decode mission %s: %w", postID, err)
	}
	m.PostID = postID
	m.Version = version
	if m.Timers == nil {
		m.Timers = map[models.TimerKind]*models.Timer{}
	}
	if m.Participants == nil {
		m.Participants = []string{}
	}
	if m.DecisiveActions == nil {
		m.DecisiveActions = []string{}
	}
	return m, nil
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: clock.UnixMilli(t), Valid: true}
}
