// Package ws implements the WebSocket adapter for real-time client communication.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
)

const (
	writeTimeout = 5 * time.Second
	// sendBuffer is the number of frames queued per connection. A client
	// that falls further behind is disconnected.
	sendBuffer = 64
)

// OwnerResolver returns the ID of the user a connecting client acts as.
type OwnerResolver func(r *http.Request) (string, error)

// conn wraps a single WebSocket connection. Frames are queued on send and
// written by the connection's own writer goroutine.
type conn struct {
	ws      *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	ownerID string
	send    chan []byte
}

func newConn(ctx context.Context, ws *websocket.Conn, ownerID string) *conn {
	ctx, cancel := context.WithCancel(ctx)
	return &conn{ws: ws, ctx: ctx, cancel: cancel, ownerID: ownerID, send: make(chan []byte, sendBuffer)}
}

// Hub manages all active WebSocket connections and pushes domain events to
// the clients owning the affected workspace.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	origins []string
	resolve OwnerResolver
}

var _ broadcast.Broadcaster = (*Hub)(nil)

// NewHub creates a hub. allowedOrigin is the CORS origin accepted on upgrade;
// empty or "*" accepts any origin.
func NewHub(allowedOrigin string, resolve OwnerResolver) *Hub {
	h := &Hub{conns: make(map[*conn]struct{}), resolve: resolve}
	if allowedOrigin != "" && allowedOrigin != "*" {
		if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
			h.origins = []string{u.Host}
		}
	}
	return h
}

// HandleWS upgrades the request to a WebSocket. The caller must resolve to
// a registered user; otherwise the request is rejected with 401.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	var ownerID string
	if h.resolve != nil {
		id, err := h.resolve(r)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ownerID = id
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.origins,
		InsecureSkipVerify: len(h.origins) == 0,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The read and write loops outlive the handler, so they must not use r.Context().
	c := newConn(context.Background(), ws, ownerID)

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr, "owner_id", ownerID)

	go h.writeLoop(c)
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(c.ctx); err != nil {
				return
			}
		}
	}()
}

// writeLoop drains c.send until the connection is removed.
func (h *Hub) writeLoop(c *conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "owner_id", c.ownerID, "error", err)
				h.remove(c)
				return
			}
		}
	}
}

// Broadcast sends ev to every connection owned by ev.OwnerID.
func (h *Hub) Broadcast(_ context.Context, ev event.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal ws event payload", "type", ev.Type, "error", err)
		return
	}
	h.send(ev.OwnerID, Message{Type: string(ev.Type), Payload: payload})
}

// send queues msg for every connection of ownerID without blocking. A
// connection whose queue is full is removed; cancelling its context ends the
// read loop, which closes the socket.
func (h *Hub) send(ownerID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if c.ownerID == ownerID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			slog.Warn("websocket send queue full, dropping client", "owner_id", c.ownerID)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*conn]struct{})
	h.mu.Unlock()

	for c := range conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutdown")
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "owner_id", c.ownerID)
	}
}
