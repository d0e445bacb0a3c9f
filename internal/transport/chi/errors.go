package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/domain"
	gen "github.com/kailas-cloud/askfolio/internal/transport/generated"
)

// errorHandler maps a domain error to a status and body. ok is false when
// err is not its kind.
type errorHandler func(err error) (status int, resp gen.ErrorResponse, ok bool)

var errorHandlers = []errorHandler{
	detailHandler(domain.ErrInvalidRequest, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest),
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, gen.ErrorResponseCodeNotFound),
	sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable, gen.ErrorResponseCodeUpstreamUnavailable),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code gen.ErrorResponseCode, message string) {
	writeJSON(w, status, gen.ErrorResponse{Code: code, Message: message})
}

// sentinelHandler answers with the sentinel's own text, hiding the wrapped detail.
func sentinelHandler(sentinel error, status int, code gen.ErrorResponseCode) errorHandler {
	return func(err error) (int, gen.ErrorResponse, bool) {
		if !errors.Is(err, sentinel) {
			return 0, gen.ErrorResponse{}, false
		}
		return status, gen.ErrorResponse{Code: code, Message: sentinel.Error()}, true
	}
}

// detailHandler answers with the full error text; used for caller mistakes.
func detailHandler(sentinel error, status int, code gen.ErrorResponseCode) errorHandler {
	return func(err error) (int, gen.ErrorResponse, bool) {
		if !errors.Is(err, sentinel) {
			return 0, gen.ErrorResponse{}, false
		}
		return status, gen.ErrorResponse{Code: code, Message: err.Error()}, true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.respondError(w, err, "")
}

// respondError writes the mapped error. A non-empty sessionID is echoed in
// the body so the caller can retry in that session.
func (s *Server) respondError(w http.ResponseWriter, err error, sessionID string) {
	s.logger.Warn("domain error", zap.Error(err))

	status := http.StatusInternalServerError
	resp := gen.ErrorResponse{Code: gen.ErrorResponseCodeInternalError, Message: "internal error"}
	matched := false
	for _, h := range errorHandlers {
		if st, r, ok := h(err); ok {
			status, resp, matched = st, r, true
			break
		}
	}
	if !matched {
		s.logger.Error("internal error", zap.Error(err))
	}
	if sessionID != "" {
		resp.SessionId = &sessionID
	}
	writeJSON(w, status, resp)
}
