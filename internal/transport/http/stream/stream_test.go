package stream

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/floor/internal/transport/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	event string
	data  string
}

// readFrame reads lines up to the next blank line, skipping comment-only frames.
func readFrame(t *testing.T, r *bufio.Reader) frame {
	t.Helper()

	for {
		var f frame
		comment := false
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				break
			}
			switch {
			case strings.HasPrefix(line, ":"):
				comment = true
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data += strings.TrimPrefix(line, "data: ")
			}
		}
		if comment && f.event == "" {
			continue
		}

		return f
	}
}

func newServer(t *testing.T, hub *sse.Hub) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Stream(w, r, hub)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func open(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func TestStreamDeliversEvents(t *testing.T) {
	hub := sse.NewHub("kitchen")
	srv := newServer(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := open(t, ctx, srv.URL)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)
	connected := readFrame(t, reader)
	assert.Equal(t, sse.EventConnected, connected.event)
	assert.Contains(t, connected.data, `"role":"kitchen"`)

	n, err := hub.Broadcast("new-order", map[string]int{"orderId": 7})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := readFrame(t, reader)
	assert.Equal(t, "new-order", got.event)
	assert.JSONEq(t, `{"orderId":7}`, got.data)

	hub.Heartbeat()
	_, err = hub.Broadcast("update-order", map[string]int{"orderId": 8})
	require.NoError(t, err)
	assert.Equal(t, "update-order", readFrame(t, reader).event)
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	hub := sse.NewHub("waitstaff")
	srv := newServer(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	resp := open(t, ctx, srv.URL)
	readFrame(t, bufio.NewReader(resp.Body))
	assert.Equal(t, 1, hub.Len())

	cancel()
	resp.Body.Close()

	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamEndsWhenHubCloses(t *testing.T) {
	hub := sse.NewHub("manager")
	srv := newServer(t, hub)

	resp := open(t, context.Background(), srv.URL)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readFrame(t, reader)

	hub.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(reader)
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after hub close")
	}
}

func TestStreamRejectedByClosedHub(t *testing.T) {
	hub := sse.NewHub("kitchen")
	hub.Close()

	rec := httptest.NewRecorder()
	Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), hub)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
