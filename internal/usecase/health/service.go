package health

import (
	"context"
	"time"

	"github.com/kailas-cloud/askfolio/internal/db"
	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates a failed check or a collection that did not load.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status             Status                 `json:"status"`
	Collections        map[string]bool        `json:"collections"`
	SystemPromptLoaded bool                   `json:"system_prompt_loaded"`
	ActiveSessions     int                    `json:"active_sessions"`
	Checks             map[string]CheckResult `json:"checks"`
}

// CollectionStatus reports which collections loaded at startup.
type CollectionStatus interface {
	Status() map[string]bool
}

// SessionCounter reports the number of live chat sessions.
type SessionCounter interface {
	Len() int
}

// Deps are the components a Service inspects. DB and Embedding can be nil.
type Deps struct {
	DB                 db.Pinger
	Embedding          domain.HealthChecker
	Collections        CollectionStatus
	Sessions           SessionCounter
	SystemPromptLoaded bool
	Timeout            time.Duration // per check; zero means none
}

// Service coordinates health checks.
type Service struct {
	deps Deps
}

// New creates a Service.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.deps.DB != nil {
		checks["database"] = s.run(ctx, s.deps.DB.Ping)
	}
	if s.deps.Embedding != nil {
		checks["embedding"] = s.run(ctx, s.deps.Embedding.HealthCheck)
	}

	collections := map[string]bool{}
	if s.deps.Collections != nil {
		collections = s.deps.Collections.Status()
	}
	sessions := 0
	if s.deps.Sessions != nil {
		sessions = s.deps.Sessions.Len()
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	for _, loaded := range collections {
		if !loaded {
			status = Degraded
			break
		}
	}

	return Report{
		Status:             status,
		Collections:        collections,
		SystemPromptLoaded: s.deps.SystemPromptLoaded,
		ActiveSessions:     sessions,
		Checks:             checks,
	}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) CheckResult {
	if s.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.Timeout)
		defer cancel()
	}
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
