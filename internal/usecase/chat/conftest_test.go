package chat

import (
	"context"
	"io"
	"sync"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/domain/stream"
)

type fakeCompleter struct {
	answer    string
	err       error
	fragments []string
	streamErr error // returned by Recv after all fragments
	openErr   error

	mu       sync.Mutex
	requests []domain.CompletionRequest
	streams  []*fakeStream
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.answer, f.err
}

func (f *fakeCompleter) CompleteStream(_ context.Context, req domain.CompletionRequest) (domain.CompletionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeStream{fragments: append([]string(nil), f.fragments...), tailErr: f.streamErr}
	f.streams = append(f.streams, s)
	return s, nil
}

type fakeStream struct {
	fragments []string
	tailErr   error
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.fragments) == 0 {
		if s.tailErr != nil {
			return "", s.tailErr
		}
		return "", io.EOF
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeSource struct {
	text  string
	err   error
	calls int
}

func (f *fakeSource) Context(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

// recordingEncoder collects events; failAfter > 0 makes the n-th Encode fail.
type recordingEncoder struct {
	events    []stream.Event
	failAfter int
	err       error
}

func (r *recordingEncoder) Encode(ev stream.Event) error {
	if r.failAfter > 0 && len(r.events) >= r.failAfter {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEncoder) kinds() []stream.Kind {
	out := make([]stream.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
