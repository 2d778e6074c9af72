package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

var errStreamClosed = errors.New("event stream closed")

// sseChannel writes bulk action events to an open event-stream response.
// It implements bulk.Channel so the connection can be registered as a report subscriber.
type sseChannel struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	closed  bool
	done    chan struct{}
	doneOne sync.Once
}

// startSSE writes the event-stream headers and returns the channel bound to w.
func startSSE(w http.ResponseWriter) *sseChannel {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	_ = rc.Flush()

	return &sseChannel{w: w, rc: rc, done: make(chan struct{})}
}

// Emit writes one event. report:complete ends the stream.
func (c *sseChannel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errStreamClosed
	}

	if _, err = fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data); err == nil {
		err = c.rc.Flush()
	}
	if err != nil {
		c.closeLocked()
		return fmt.Errorf("write %s event: %w", event, err)
	}

	if event == model.EventReportComplete {
		c.closeLocked()
	}
	return nil
}

// Done is closed once the stream has ended.
func (c *sseChannel) Done() <-chan struct{} { return c.done }

// Close stops accepting events. Emit returns errStreamClosed afterwards.
func (c *sseChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *sseChannel) closeLocked() {
	c.closed = true
	c.doneOne.Do(func() { close(c.done) })
}
