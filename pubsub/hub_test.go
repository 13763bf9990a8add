// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscription) map[string]any {
	t.Helper()
	select {
	case data, ok := <-sub.C():
		if !ok {
			t.Fatal("Subscription closed unexpectedly")
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Bad payload %s: %v", data, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for message")
	}
	return nil
}

func TestTopics(t *testing.T) {
	if HUDTopic("p1") != "mission:p1:hud" {
		t.Errorf("Unexpected hud topic %q", HUDTopic("p1"))
	}
	if TimerTopic("p1") != "mission:p1:timer" {
		t.Errorf("Unexpected timer topic %q", TimerTopic("p1"))
	}
}

func TestHub_FanOut(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	a := h.Subscribe(HUDTopic("p1"), TimerTopic("p1"))
	b := h.Subscribe(HUDTopic("p1"))
	other := h.Subscribe(HUDTopic("p2"))
	defer a.Close()
	defer b.Close()
	defer other.Close()

	if n := h.Subscribers(HUDTopic("p1")); n != 2 {
		t.Errorf("Expected 2 subscribers, got %d", n)
	}

	h.Publish(ctx, HUDTopic("p1"), map[string]any{"type": "hud", "n": 1})
	h.Publish(ctx, TimerTopic("p1"), map[string]any{"kind": "LAUNCH"})

	if msg := receive(t, a); msg["type"] != "hud" {
		t.Errorf("Expected hud for a, got %v", msg)
	}
	if msg := receive(t, a); msg["kind"] != "LAUNCH" {
		t.Errorf("Expected timer event for a, got %v", msg)
	}
	if msg := receive(t, b); msg["type"] != "hud" {
		t.Errorf("Expected hud for b, got %v", msg)
	}

	select {
	case data := <-other.C():
		t.Errorf("Expected nothing on p2, got %s", data)
	default:
	}
}

func TestHub_DropsForSlowSubscribers(t *testing.T) {
	h := NewHub()
	ctx := context.Background()
	sub := h.Subscribe("t")
	defer sub.Close()

	for i := 0; i < sendBuffer+10; i++ {
		if err := h.Publish(ctx, "t", i); err != nil {
			t.Fatalf("Publish must not fail on a full buffer: %v", err)
		}
	}
	if got := len(sub.C()); got != sendBuffer {
		t.Errorf("Expected %d buffered messages, got %d", sendBuffer, got)
	}
}

func TestHub_PublishRejectsUnencodable(t *testing.T) {
	h := NewHub()
	if err := h.Publish(context.Background(), "t", make(chan int)); err == nil {
		t.Error("Expected encode error")
	}
}

func TestSubscription_Close(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("t")

	sub.Close()
	sub.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("Expected closed channel")
	}
	if n := h.Subscribers("t"); n != 0 {
		t.Errorf("Expected topic emptied, got %d", n)
	}
	// Publishing after everyone left is fine
	h.Publish(context.Background(), "t", "x")
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("t1", "t2")
	b := h.Subscribe("t2")

	h.Close()

	for _, sub := range []*Subscription{a, b} {
		if _, ok := <-sub.C(); ok {
			t.Error("Expected every subscription closed")
		}
	}
	if h.Subscribers("t2") != 0 {
		t.Error("Expected no subscribers left")
	}
	// Closing a subscription the hub already closed is harmless
	a.Close()
}
