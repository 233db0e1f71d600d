// Package ws delivers notification pushes to connected clients. Every
// connection joins the room of the identity in its token, so a user with
// several tabs open receives each push on all of them.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

type authenticator interface {
	Parse(raw string) (actor.Actor, error)
}

// envelope is what travels over the Redis channel between instances.
type envelope struct {
	RecipientID string          `json:"recipientId"`
	Frame       json.RawMessage `json:"frame"`
}

// Hub tracks live connections per recipient.
type Hub struct {
	auth       authenticator
	tokenOf    func(r *http.Request) string
	upgrader   websocket.Upgrader
	sendBuffer int

	rdb     goredis.UniversalClient
	channel string

	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	closed bool
	wg     sync.WaitGroup
}

type option func(*Hub)

// NewHub creates a hub. tokenOf extracts the bearer token from the
// handshake request.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewHub(auth authenticator, tokenOf func(r *http.Request) string, opts ...option) *Hub {
	h := &Hub{
		auth:    auth,
		tokenOf: tokenOf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuffer: 16,
		rooms:      make(map[string]map[*client]struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// WithRedisRelay routes pushes through a Redis channel so a recipient
// connected to another instance still receives them. RunRelay must be running
// on every instance.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRedisRelay(rdb goredis.UniversalClient, channel string) option {
	return func(h *Hub) {
		h.rdb = rdb
		h.channel = channel
	}
}

// WithSendBuffer bounds the frames queued per connection. A connection that
// falls further behind is dropped.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSendBuffer(n int) option {
	return func(h *Hub) {
		h.sendBuffer = n
	}
}

// WithAllowedOrigins restricts browser handshakes to the given origins.
// Without it any origin is accepted.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAllowedOrigins(origins []string) option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}

		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[o] = struct{}{}
		}

		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]

			return ok
		}
	}
}

// ServeHTTP authenticates the handshake and upgrades the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, err := h.auth.Parse(h.tokenOf(r))
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)

		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)

		return
	}

	c := &client{hub: h, conn: conn, recipientID: a.ID, send: make(chan []byte, h.sendBuffer)}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()

		return
	}

	slog.Debug("Websocket connected", "recipient_id", a.ID)

	go c.writePump()
	go c.readPump()
}

// Push delivers a frame to the recipient's connections, through the relay
// when one is configured. An offline recipient is not an error, the durable
// record is already stored.
func (h *Hub) Push(ctx context.Context, recipientID string, push notification.Push) error {
	frame, err := json.Marshal(push)
	if err != nil {
		return fmt.Errorf("failed to encode push: %w", err)
	}

	if h.rdb == nil {
		h.deliver(recipientID, frame)

		return nil
	}

	payload, err := json.Marshal(envelope{RecipientID: recipientID, Frame: frame})
	if err != nil {
		return fmt.Errorf("failed to encode relay envelope: %w", err)
	}

	if err := h.rdb.Publish(ctx, h.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish push: %w", err)
	}

	return nil
}

// RunRelay delivers frames published by any instance to local connections
// until ctx is done. Without a relay it just waits for ctx.
func (h *Hub) RunRelay(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()

		return nil
	}

	sub := h.rdb.Subscribe(ctx, h.channel)
	defer sub.Close()

	// wait for the subscription so nothing published afterwards is missed
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("failed to subscribe to %s: %w", h.channel, err)
	}

	slog.Info("Push relay subscribed", "channel", h.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("Dropping malformed relay message", "error", err)

				continue
			}

			h.deliver(env.RecipientID, env.Frame)
		}
	}
}

// Connections returns the number of live connections of recipientID.
func (h *Hub) Connections(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[recipientID])
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for _, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
	}
	h.rooms = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hub) deliver(recipientID string, frame []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.rooms[recipientID] {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("Dropping slow websocket client", "recipient_id", recipientID)
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	room, ok := h.rooms[c.recipientID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.recipientID] = room
	}
	room[c] = struct{}{}
	// under the lock so Close never waits on a zero counter that is about to grow
	h.wg.Add(2)

	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.recipientID]
	if !ok {
		return
	}

	if _, ok := room[c]; !ok {
		return
	}

	delete(room, c)
	close(c.send)

	if len(room) == 0 {
		delete(h.rooms, c.recipientID)
	}
}
