// Package stream defines the typed events of a streaming chat response and the
// ordering rules they follow: one session event first, content fragments, then
// exactly one terminal event (done or error).
package stream

import (
	"errors"
	"fmt"
)

// Kind is the event discriminator sent as "type" on the wire.
type Kind string

// Event kinds.
const (
	KindSession Kind = "session"
	KindContent Kind = "content"
	KindDone    Kind = "done"
	KindError   Kind = "error"
)

// Event is one streaming chat event.
type Event struct {
	Kind      Kind   `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Encoder serializes a single event onto the transport.
type Encoder interface {
	Encode(ev Event) error
}

// ErrOutOfOrder is returned when an event would break the stream ordering.
var ErrOutOfOrder = errors.New("stream: event out of order")

type state int

const (
	stateNew state = iota
	stateOpen
	stateClosed
)

// Writer enforces event ordering on top of an Encoder. Not safe for concurrent use.
type Writer struct {
	enc   Encoder
	state state
}

// NewWriter wraps enc.
func NewWriter(enc Encoder) *Writer {
	return &Writer{enc: enc}
}

// Session emits the opening event.
func (w *Writer) Session(id string) error {
	if w.state != stateNew {
		return fmt.Errorf("%w: session after start", ErrOutOfOrder)
	}
	w.state = stateOpen
	return w.enc.Encode(Event{Kind: KindSession, SessionID: id})
}

// Content emits a text fragment. Empty fragments are dropped.
func (w *Writer) Content(fragment string) error {
	if w.state != stateOpen {
		return fmt.Errorf("%w: content outside open stream", ErrOutOfOrder)
	}
	if fragment == "" {
		return nil
	}
	return w.enc.Encode(Event{Kind: KindContent, Content: fragment})
}

// Done emits the successful terminal event.
func (w *Writer) Done() error {
	return w.terminate(Event{Kind: KindDone})
}

// Fail emits the error terminal event.
func (w *Writer) Fail(msg string) error {
	return w.terminate(Event{Kind: KindError, Error: msg})
}

// Closed reports whether a terminal event was written.
func (w *Writer) Closed() bool {
	return w.state == stateClosed
}

func (w *Writer) terminate(ev Event) error {
	if w.state != stateOpen {
		return fmt.Errorf("%w: %s outside open stream", ErrOutOfOrder, ev.Kind)
	}
	w.state = stateClosed
	return w.enc.Encode(ev)
}
