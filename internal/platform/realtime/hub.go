// Package realtime pushes alert events to connected clients over WebSockets.
// Channels register unauthenticated, bind to a user through an explicit
// authenticate handshake, and receive only events addressed to that user.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/metrics"
)

const (
	EventNewAlert      = "new-alert"
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth-error"
)

var (
	ErrUnroutable           = errors.New("realtime: event has no target user")
	ErrClientClosed         = errors.New("realtime: client is not connected")
	ErrAlreadyAuthenticated = errors.New("realtime: client already authenticated")
)

// Event is a message pushed to clients. UserID selects the recipients.
type Event struct {
	Type      string          `json:"type"`
	UserID    uuid.UUID       `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage represents an inbound message from a client.
type ClientMessage struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
}

// Publisher delivers events to the channels of the event's user. Delivery is
// best effort: Publish never blocks on slow clients.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// ClientState is the lifecycle position of a channel.
type ClientState int

const (
	StateConnected ClientState = iota
	StateAuthenticated
	StateDisconnected
)

func (s ClientState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Client is one live channel.
type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte
	state  ClientState
}

func NewClient(bufferSize int) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, bufferSize),
	}
}

// Hub tracks live channels and routes events by authenticated user.
// Safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[*Client]struct{}
	all   map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[uuid.UUID]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
	}
}

// Register adds a channel in the connected state.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.state = StateConnected
	h.all[client] = struct{}{}
	metrics.RealtimeConnections.Inc()
}

// Authenticate binds a connected channel to userID. A channel authenticates
// once; reconnecting is the only way to change identity.
func (h *Hub) Authenticate(client *Client, userID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return ErrClientClosed
	}
	if client.state == StateAuthenticated {
		return ErrAlreadyAuthenticated
	}

	client.UserID = userID
	client.state = StateAuthenticated
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Client]struct{})
	}
	h.users[userID][client] = struct{}{}
	return nil
}

// Unregister removes a channel and closes its Send queue. Idempotent.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	if client.state == StateAuthenticated {
		if set, ok := h.users[client.UserID]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(h.users, client.UserID)
			}
		}
	}

	delete(h.all, client)
	client.state = StateDisconnected
	close(client.Send)
	metrics.RealtimeConnections.Dec()
}

// State returns the channel's lifecycle state.
func (h *Hub) State(client *Client) ClientState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.state
}

// Publish implements Publisher for this process's channels.
func (h *Hub) Publish(_ context.Context, event Event) error {
	if event.UserID == uuid.Nil {
		return ErrUnroutable
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.users[event.UserID] {
		enqueue(client, data)
	}
	return nil
}

// SendTo queues an event for a single channel regardless of its user, used
// for handshake replies.
func (h *Hub) SendTo(client *Client, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.all[client]; !ok {
		return ErrClientClosed
	}
	enqueue(client, data)
	return nil
}

// enqueue must be called with h.mu held so Send cannot be closed concurrently.
func enqueue(client *Client, data []byte) {
	select {
	case client.Send <- data:
		metrics.RealtimeEventsTotal.WithLabelValues("delivered").Inc()
	default:
		// Slow consumer; the event is lost for this channel.
		metrics.RealtimeEventsTotal.WithLabelValues("dropped").Inc()
	}
}

// ClientCount returns the total number of connected channels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// UserCount returns the number of authenticated channels for userID.
func (h *Hub) UserCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
