package sse

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("connection send buffer full")
)

// Conn is one live client stream. The hub queues frames; the HTTP handler drains them.
type Conn struct {
	id        string
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	// lastActivity is the unix nano time of the last completed client write.
	lastActivity atomic.Int64
}

func newConn(id string, buffer int, now time.Time) *Conn {
	c := &Conn{
		id:     id,
		frames: make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
	c.lastActivity.Store(now.UnixNano())

	return c
}

// ID is the stable handle of the connection.
func (c *Conn) ID() string {
	return c.id
}

// Frames yields queued frames in order.
func (c *Conn) Frames() <-chan Frame {
	return c.frames
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection CLOSED. It is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Touch records a completed write to the client.
func (c *Conn) Touch(at time.Time) {
	c.lastActivity.Store(at.UnixNano())
}

// LastActivity returns the time of the last completed write.
func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// send queues f without blocking.
func (c *Conn) send(f Frame) error {
	if c.Closed() {
		return ErrConnClosed
	}

	select {
	case c.frames <- f:
		return nil
	default:
		return ErrSlowConsumer
	}
}
