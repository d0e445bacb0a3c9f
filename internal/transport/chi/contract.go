package chi

import (
	"context"

	"github.com/kailas-cloud/askfolio/internal/domain/stream"
	"github.com/kailas-cloud/askfolio/internal/session"
	chatuc "github.com/kailas-cloud/askfolio/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/askfolio/internal/usecase/health"
)

// ChatService answers chat turns.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) (chatuc.Reply, error)
	ChatStream(ctx context.Context, sessionID, message string, w *stream.Writer) error
}

// SessionStore is the session surface exposed over HTTP.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (string, error)
	Get(ctx context.Context, id string) (session.Info, error)
	List(ctx context.Context) ([]session.Info, error)
	Clear(ctx context.Context, id string) error
}

// HealthChecker produces the health report.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
