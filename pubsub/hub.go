// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// HUDTopic carries mission snapshots for one post.
func HUDTopic(postID string) string { return "mission:" + postID + ":hud" }

// TimerTopic carries timer state transitions for one post.
func TimerTopic(postID string) string { return "mission:" + postID + ":timer" }

// sendBuffer bounds how far a slow subscriber may fall behind before
// messages to it are dropped.
const sendBuffer = 32

// Subscription receives encoded messages for the topics it joined.
type Subscription struct {
	hub    *Hub
	topics []string
	ch     chan []byte
	once   sync.Once
}

// C is closed when the subscription is cancelled.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Close leaves every topic. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub is an in-process topic fan-out. Delivery is best effort: a full
// subscriber buffer drops the message and clients re-poll the snapshot.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe joins topics and returns the receiving end.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{hub: h, topics: topics, ch: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		subs, ok := h.topics[topic]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.topics[topic] = subs
		}
		subs[sub] = struct{}{}
	}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range sub.topics {
		subs := h.topics[topic]
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish encodes msg as JSON and offers it to every subscriber of topic.
func (h *Hub) Publish(_ context.Context, topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		slog.Warn("dropped messages for slow subscribers", "topic", topic, "dropped", dropped)
	}
	return nil
}

// Subscribers reports how many subscriptions joined topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close cancels every subscription. Connected clients see their stream end.
func (h *Hub) Close() {
	h.mu.RLock()
	seen := make(map[*Subscription]struct{})
	for _, subs := range h.topics {
		for sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for sub := range seen {
		sub.Close()
	}
}
