package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pinger func(context.Context) error

func (p pinger) Ping(ctx context.Context) error { return p(ctx) }

type checker func(context.Context) error

func (c checker) HealthCheck(ctx context.Context) error { return c(ctx) }

type staticCollections map[string]bool

func (s staticCollections) Status() map[string]bool { return s }

type fixedSessions int

func (f fixedSessions) Len() int { return int(f) }

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		deps     Deps
		status   Status
		database CheckResult // "" means absent
		embed    CheckResult
	}{
		{
			name:     "all healthy",
			deps:     Deps{DB: pinger(ok), Embedding: checker(ok), Collections: staticCollections{"cv": true, "github": true}},
			status:   Healthy,
			database: CheckOK,
			embed:    CheckOK,
		},
		{
			name:     "database down",
			deps:     Deps{DB: pinger(failing("conn refused")), Embedding: checker(ok)},
			status:   Degraded,
			database: CheckError,
			embed:    CheckOK,
		},
		{
			name:   "embedding down",
			deps:   Deps{Embedding: checker(failing("timeout"))},
			status: Degraded,
			embed:  CheckError,
		},
		{
			name:   "no database configured",
			deps:   Deps{Embedding: checker(ok)},
			status: Healthy,
			embed:  CheckOK,
		},
		{
			name:   "collection not loaded",
			deps:   Deps{Collections: staticCollections{"cv": true, "github": false}},
			status: Degraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.deps).Check(context.Background())
			if r.Status != tt.status {
				t.Errorf("status = %q, want %q", r.Status, tt.status)
			}
			if got := r.Checks["database"]; got != tt.database {
				t.Errorf("database = %q, want %q", got, tt.database)
			}
			if got := r.Checks["embedding"]; got != tt.embed {
				t.Errorf("embedding = %q, want %q", got, tt.embed)
			}
		})
	}
}

func TestCheck_ReportsSessionsAndPrompt(t *testing.T) {
	r := New(Deps{
		Collections:        staticCollections{"cv": true},
		Sessions:           fixedSessions(3),
		SystemPromptLoaded: true,
	}).Check(context.Background())

	if r.ActiveSessions != 3 || !r.SystemPromptLoaded || !r.Collections["cv"] {
		t.Errorf("report = %+v", r)
	}
}

func TestCheck_Timeout(t *testing.T) {
	slow := checker(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	svc := New(Deps{Embedding: slow, Timeout: 20 * time.Millisecond})

	done := make(chan Report, 1)
	go func() { done <- svc.Check(context.Background()) }()

	select {
	case r := <-done:
		if r.Checks["embedding"] != CheckError {
			t.Errorf("embedding = %q, want %q", r.Checks["embedding"], CheckError)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("check did not honour timeout")
	}
}

func TestCheck_EmptyMapsNotNil(t *testing.T) {
	r := New(Deps{}).Check(context.Background())
	if r.Collections == nil || r.Checks == nil {
		t.Errorf("nil maps in report: %+v", r)
	}
}
