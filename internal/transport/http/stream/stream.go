package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
	"github.com/corray333/backend-labs/floor/internal/transport/sse"
	"github.com/spf13/viper"
)

type hub interface {
	Role() string
	Subscribe() (*sse.Conn, error)
	Unsubscribe(id string) bool
}

// Stream serves a text/event-stream of the hub's events until the client or the hub goes away.
func Stream(w http.ResponseWriter, r *http.Request, hub hub) {
	c, err := hub.Subscribe()
	if err != nil {
		slog.Warn("Stream rejected", "role", hub.Role(), "error", err)
		respond.JSON(w, http.StatusServiceUnavailable, respond.ErrorBody{Kind: "UNAVAILABLE", Message: err.Error()})

		return
	}
	defer hub.Unsubscribe(c.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	writeTimeout := viper.GetDuration("sse.write_timeout")
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.Done():
			return
		case f := <-c.Frames():
			// Deadline support is optional for the writer; http.ErrNotSupported is fine.
			_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := f.WriteTo(w); err != nil {
				slog.Info("Stream write failed", "role", hub.Role(), "conn_id", c.ID(), "error", err)
				c.Close()

				return
			}
			if err := rc.Flush(); err != nil {
				slog.Info("Stream flush failed", "role", hub.Role(), "conn_id", c.ID(), "error", err)
				c.Close()

				return
			}
			c.Touch(time.Now())
		}
	}
}
