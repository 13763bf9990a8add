// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package clock

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	testCases := []struct {
		in, expected int
	}{
		{-50, 0},
		{-1, 0},
		{0, 0},
		{42, 42},
		{100, 100},
		{101, 100},
		{1 << 20, 100},
	}
	for _, tc := range testCases {
		if got := Clamp(tc.in); got != tc.expected {
			t.Errorf("Clamp(%d): expected %d, got %d", tc.in, tc.expected, got)
		}
	}

	// Any sequence of deltas stays in range
	v := 50
	for i := -300; i <= 300; i += 37 {
		v = Clamp(v + i)
		if v < 0 || v > 100 {
			t.Fatalf("Clamp escaped range: %d", v)
		}
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	f := NewFake(start)

	if !f.Now().Equal(start) || f.Now().Location() != time.UTC {
		t.Errorf("Expected UTC start time, got %v", f.Now())
	}

	f.Advance(90 * time.Second)
	if got := f.Now().Sub(start); got != 90*time.Second {
		t.Errorf("Expected 90s advance, got %v", got)
	}

	f.Set(start)
	if !f.Now().Equal(start) {
		t.Errorf("Expected Set to rewind, got %v", f.Now())
	}
}

func TestUnixMilliRoundTrip(t *testing.T) {
	if UnixMilli(nil) != 0 || FromUnixMilli(0) != nil {
		t.Error("Expected nil to map to 0 and back")
	}

	ts := time.Date(2025, 3, 1, 12, 0, 0, int(250*time.Millisecond), time.UTC)
	back := FromUnixMilli(UnixMilli(&ts))
	if back == nil || !back.Equal(ts) {
		t.Errorf("Expected %v, got %v", ts, back)
	}
}
