package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/askfolio/internal/domain/stream"
)

// sseEncoder writes each event as one `data: <json>` frame and flushes it.
// Headers are sent with the first event so errors before it can still be
// answered with a plain JSON response.
type sseEncoder struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

var _ stream.Encoder = (*sseEncoder)(nil)

func newSSEEncoder(w http.ResponseWriter) *sseEncoder {
	return &sseEncoder{w: w, rc: http.NewResponseController(w)}
}

// Encode implements stream.Encoder.
func (e *sseEncoder) Encode(ev stream.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := e.rc.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	return nil
}

// Started reports whether any event (and so the headers) went out.
func (e *sseEncoder) Started() bool { return e.started }
