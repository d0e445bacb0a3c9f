package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/domain/stream"
	"github.com/kailas-cloud/askfolio/internal/session"
	chatuc "github.com/kailas-cloud/askfolio/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/askfolio/internal/usecase/health"
)

// fakeChat replays a scripted turn against the real stream writer.
type fakeChat struct {
	reply     chatuc.Reply
	err       error
	fragments []string
	streamErr error // returned after the session event; the writer gets Fail
	openErr   error // returned before any event

	gotSession string
	gotMessage string
}

func (f *fakeChat) Chat(_ context.Context, sessionID, message string) (chatuc.Reply, error) {
	f.gotSession, f.gotMessage = sessionID, message
	return f.reply, f.err
}

func (f *fakeChat) ChatStream(_ context.Context, sessionID, message string, w *stream.Writer) error {
	f.gotSession, f.gotMessage = sessionID, message
	if f.openErr != nil {
		return f.openErr
	}
	if err := w.Session("sess-1"); err != nil {
		return err
	}
	for _, frag := range f.fragments {
		if err := w.Content(frag); err != nil {
			return err
		}
	}
	if f.streamErr != nil {
		_ = w.Fail("The assistant is temporarily unavailable. Please try again.")
		return f.streamErr
	}
	return w.Done()
}

type fakeHealth struct {
	report healthuc.Report
}

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type testEnv struct {
	chat     *fakeChat
	sessions *session.Memory
	handler  http.Handler
}

func newTestEnv(t *testing.T, cfg RouterConfig) *testEnv {
	t.Helper()
	env := &testEnv{chat: &fakeChat{}, sessions: session.NewMemory(nil)}
	health := fakeHealth{report: healthuc.Report{
		Status:      healthuc.Healthy,
		Collections: map[string]bool{"cv": true, "github": true},
		Checks:      map[string]healthuc.CheckResult{},
	}}
	srv := NewServer(env.chat, env.sessions, health, zap.NewNop())
	env.handler = NewRouter(srv, cfg, zap.NewNop())
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}
