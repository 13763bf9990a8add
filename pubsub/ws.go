// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotFunc returns the messages a newly connected client needs to catch
// up (current HUD and timers) before live updates start.
type SnapshotFunc func(ctx context.Context, postID string) ([]any, error)

type clientMessage struct {
	Type   string `json:"type"`
	SentAt int64  `json:"sentAt"`
}

type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

// Handler upgrades GET /missions/{post}/ws and streams the post's hud and
// timer topics to the client.
type Handler struct {
	hub      *Hub
	snapshot SnapshotFunc
	now      func() time.Time
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, snapshot SnapshotFunc, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		hub:      hub,
		snapshot: snapshot,
		now:      now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("post")
	if postID == "" {
		http.Error(w, "missing post", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "post_id", postID)
		return
	}

	sub := h.hub.Subscribe(HUDTopic(postID), TimerTopic(postID))
	defer sub.Close()

	// The snapshot goes out before the writer starts draining the
	// subscription. Anything published meanwhile waits in the buffer and
	// lands after it, so the client ends on the newest state.
	if h.snapshot != nil {
		msgs, err := h.snapshot(r.Context(), postID)
		if err != nil {
			slog.Warn("failed to load websocket snapshot", "error", err, "post_id", postID)
		}
		for _, msg := range msgs {
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
	}

	// Replies to heartbeats share the writer goroutine with topic traffic
	replies := make(chan []byte, 4)
	done := make(chan struct{})
	go h.writeLoop(conn, sub, replies, done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			close(replies)
			<-done
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.Debug("discarding malformed websocket message", "error", err, "post_id", postID)
			continue
		}

		if msg.Type != "heartbeat" {
			continue
		}
		data, _ := json.Marshal(heartbeatMessage{
			Type:       "heartbeat",
			ServerTime: h.now().UnixMilli(),
			ClientTime: msg.SentAt,
		})
		select {
		case replies <- data:
		default:
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *Subscription, replies <-chan []byte, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	write := func(data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	for {
		select {
		case data, ok := <-replies:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(data) {
				return
			}
		case data, ok := <-sub.C():
			if !ok || !write(data) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
