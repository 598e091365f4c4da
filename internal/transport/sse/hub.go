package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected   = "connected"
	keepaliveComment = "keep-alive"

	defaultHeartbeatInterval = 20 * time.Second
)

var ErrHubClosed = errors.New("hub closed")

// Hub fans events out to every live stream of one role.
// Broadcast and Heartbeat iterate an immutable snapshot; membership changes
// replace the snapshot under mu.
type Hub struct {
	role              string
	bufferSize        int
	heartbeatInterval time.Duration
	idleTimeout       time.Duration
	now               func() time.Time

	mu     sync.Mutex
	conns  atomic.Pointer[[]*Conn]
	closed bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

type option func(*Hub)

// WithBufferSize sets how many frames a connection may have queued before it counts as slow.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBufferSize(n int) option {
	return func(h *Hub) {
		h.bufferSize = n
	}
}

// WithHeartbeatInterval sets the keepalive period. Non-positive values keep the default.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithHeartbeatInterval(d time.Duration) option {
	return func(h *Hub) {
		h.heartbeatInterval = d
	}
}

// WithIdleTimeout closes connections without a completed write for d. Zero disables it.
// Keepalives are the only writes a quiet connection gets, so a timeout not longer
// than the heartbeat interval is raised to twice the interval.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIdleTimeout(d time.Duration) option {
	return func(h *Hub) {
		h.idleTimeout = d
	}
}

// WithClock sets the time source for activity and idle checks.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(h *Hub) {
		h.now = now
	}
}

// NewHub creates the hub of one role.
func NewHub(role string, opts ...option) *Hub {
	h := &Hub{
		role:              role,
		bufferSize:        32,
		heartbeatInterval: defaultHeartbeatInterval,
		now:               time.Now,
		stopCh:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.bufferSize < 1 {
		h.bufferSize = 1
	}
	if h.heartbeatInterval <= 0 {
		h.heartbeatInterval = defaultHeartbeatInterval
	}
	if h.idleTimeout > 0 && h.idleTimeout <= h.heartbeatInterval {
		slog.Warn("Idle timeout raised above heartbeat interval",
			"role", role,
			"idle_timeout", h.idleTimeout,
			"heartbeat_interval", h.heartbeatInterval,
		)
		h.idleTimeout = 2 * h.heartbeatInterval
	}
	h.conns.Store(&[]*Conn{})

	return h
}

// Role names the audience of the hub.
func (h *Hub) Role() string {
	return h.role
}

func (h *Hub) snapshot() []*Conn {
	return *h.conns.Load()
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	return len(h.snapshot())
}

// Subscribe registers a new connection and queues the connected frame on it.
func (h *Hub) Subscribe() (*Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	c := newConn(uuid.NewString(), h.bufferSize, h.now())
	data, err := json.Marshal(map[string]string{"connId": c.id, "role": h.role})
	if err != nil {
		return nil, fmt.Errorf("failed to encode connected frame: %w", err)
	}
	if err := c.send(Frame{Event: EventConnected, Data: data}); err != nil {
		return nil, err
	}

	next := append(slices.Clone(h.snapshot()), c)
	h.conns.Store(&next)

	slog.Info("Stream subscribed", "role", h.role, "conn_id", c.id, "clients", len(next))

	return c, nil
}

// Unsubscribe removes and closes the connection with the given id.
// It reports whether the connection was still registered.
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.snapshot()
	i := slices.IndexFunc(current, func(c *Conn) bool { return c.id == id })
	if i < 0 {
		return false
	}

	current[i].Close()
	next := slices.Delete(slices.Clone(current), i, i+1)
	h.conns.Store(&next)

	slog.Info("Stream unsubscribed", "role", h.role, "conn_id", id, "clients", len(next))

	return true
}

func (h *Hub) remove(dead []*Conn, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(h.snapshot()), func(c *Conn) bool {
		return slices.Contains(dead, c)
	})
	h.conns.Store(&next)

	for _, c := range dead {
		c.Close()
		slog.Info("Stream dropped", "role", h.role, "conn_id", c.id, "reason", reason)
	}
}

// fanout attempts f once on every live connection and drops those that fail.
func (h *Hub) fanout(f Frame) int {
	var (
		delivered int
		dead      []*Conn
		reason    string
	)
	for _, c := range h.snapshot() {
		if err := c.send(f); err != nil {
			dead = append(dead, c)
			reason = err.Error()

			continue
		}
		delivered++
	}
	if len(dead) > 0 {
		h.remove(dead, reason)
	}

	return delivered
}

// Broadcast sends one named event with a JSON payload to every live connection.
// It returns how many connections accepted the frame.
func (h *Hub) Broadcast(name string, payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s event: %w", name, err)
	}

	return h.fanout(Frame{Event: name, Data: data}), nil
}

// Heartbeat closes idle connections and sends a keepalive comment to the rest.
func (h *Hub) Heartbeat() int {
	if h.idleTimeout > 0 {
		cutoff := h.now().Add(-h.idleTimeout)
		var idle []*Conn
		for _, c := range h.snapshot() {
			if c.LastActivity().Before(cutoff) {
				idle = append(idle, c)
			}
		}
		if len(idle) > 0 {
			h.remove(idle, "idle timeout")
		}
	}

	return h.fanout(Frame{Comment: keepaliveComment})
}

// Run sends heartbeats until ctx is done or the hub is stopped.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	slog.Info("Stream heartbeat started", "role", h.role, "interval", h.heartbeatInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.Heartbeat()
		}
	}
}

// Stop ends the heartbeat loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

// Close stops the heartbeat, closes every connection and refuses new subscriptions.
func (h *Hub) Close() {
	h.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, c := range h.snapshot() {
		c.Close()
	}
	h.conns.Store(&[]*Conn{})

	slog.Info("Stream hub closed", "role", h.role)
}
