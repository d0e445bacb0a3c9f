// Package chi is the HTTP transport: chat, streaming chat, sessions, health
// and metrics routes on a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/domain/stream"
	"github.com/kailas-cloud/askfolio/internal/logger"
	"github.com/kailas-cloud/askfolio/internal/session"
	gen "github.com/kailas-cloud/askfolio/internal/transport/generated"
	chatuc "github.com/kailas-cloud/askfolio/internal/usecase/chat"
)

const maxBodyBytes = 64 << 10

// Server implements generated.ServerInterface for the oapi-codegen chi router.
type Server struct {
	gen.Unimplemented
	chat     ChatService
	sessions SessionStore
	health   HealthChecker
	logger   *zap.Logger
}

var _ gen.ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(chat ChatService, sessions SessionStore, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{chat: chat, sessions: sessions, health: health, logger: logger}
}

// Routes mounts the generated API and /metrics on r.
func (s *Server) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, gen.ErrorResponseCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, gen.ErrorResponseCodeBadRequest, "method not allowed")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	gen.HandlerWithOptions(s, gen.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: s.paramError,
	})
}

// paramError answers requests whose path parameters fail to bind.
func (s *Server) paramError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Debug("Invalid request parameter", zap.Error(err))
	writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, err.Error())
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, gen.RootResponse{Message: "askfolio API", Health: "/health"})
}

// Chat handles POST /chat. A failed turn still reports the session it ran in.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChat(w, r)
	if !ok {
		return
	}

	reply, err := s.chat.Chat(r.Context(), deref(req.SessionId), req.Message)
	if err != nil {
		s.respondError(w, err, reply.SessionID)
		return
	}
	writeJSON(w, http.StatusOK, gen.ChatResponse{Response: reply.Response, SessionId: reply.SessionID})
}

// ChatStream handles POST /chat/stream. Failures before the first event are
// plain JSON errors; after it they arrive as an error event.
func (s *Server) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChat(w, r)
	if !ok {
		return
	}
	if err := chatuc.ValidateMessage(req.Message); err != nil {
		s.handleDomainError(w, err)
		return
	}

	enc := newSSEEncoder(w)
	err := s.chat.ChatStream(r.Context(), deref(req.SessionId), req.Message, stream.NewWriter(enc))
	if err == nil {
		return
	}
	if !enc.Started() {
		s.handleDomainError(w, err)
		return
	}
	logger.FromContext(r.Context()).Warn("Chat stream ended with error", zap.Error(err))
}

// HealthCheck handles GET /health. Degraded is still a 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	rep := s.health.Check(r.Context())
	checks := make(map[string]gen.CheckResult, len(rep.Checks))
	for name, res := range rep.Checks {
		checks[name] = gen.CheckResult(res)
	}
	writeJSON(w, http.StatusOK, gen.HealthResponse{
		Status:             gen.HealthStatus(rep.Status),
		Collections:        rep.Collections,
		SystemPromptLoaded: rep.SystemPromptLoaded,
		ActiveSessions:     rep.ActiveSessions,
		Checks:             checks,
	})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.GetOrCreate(r.Context(), "")
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+id)
	writeJSON(w, http.StatusCreated, gen.SessionCreated{SessionId: id})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sessions.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]gen.SessionInfo, len(infos))
	for i, info := range infos {
		items[i] = toSessionInfo(info)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, id gen.SessionId) {
	info, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionInfo(info))
}

// ClearSession handles DELETE /sessions/{id}: the history is emptied, the id stays valid.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request, id gen.SessionId) {
	if err := s.sessions.Clear(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gen.MessageResponse{Message: "Session cleared"})
}

func toSessionInfo(info session.Info) gen.SessionInfo {
	return gen.SessionInfo{SessionId: info.ID, CreatedAt: info.CreatedAt, MessageCount: info.MessageCount}
}

func decodeChat(w http.ResponseWriter, r *http.Request) (gen.ChatJSONRequestBody, bool) {
	var req gen.ChatJSONRequestBody
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, gen.ErrorResponseCodeBadRequest, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
