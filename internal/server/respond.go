package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err)
	}
}

// statusOf maps an error onto its HTTP status and default message key.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest, config.TKeyErrInvalidBody
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, config.TKeyErrUnauthenticated
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, config.TKeyErrForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, config.TKeyErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, config.TKeyErrConflict
	default:
		return http.StatusInternalServerError, config.TKeyErrInternal
	}
}

// writeError renders err as a localized {"message": ...} body. Internal
// errors are logged and never shown to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, key := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(config.MsgRequestFailed,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyRequestID, middleware.GetReqID(r.Context()),
			config.LogKeyMethod, r.Method,
			config.LogKeyURL, r.URL.Path,
			config.LogKeyError, err)
	} else if k, ok := domain.MessageKey(err); ok {
		key = k
	}
	writeJSON(w, status, errorResponse{Message: s.tr.Msg(s.lang(r), key)})
}

// lang picks the response language: ?lang= first, then Accept-Language.
func (s *Server) lang(r *http.Request) string {
	if l := r.URL.Query().Get(config.QueryLang); l != "" {
		return s.tr.Match(l)
	}
	return s.tr.Match(r.Header.Get(config.HeaderAcceptLanguage))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidBody)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidID)
	}
	return id, nil
}

// actor returns the authenticated user. Routes using it sit behind
// auth.RequireUser.
func actor(r *http.Request) domain.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// observe logs and counts every request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, status, elapsed)

		slog.Debug(config.MsgRequest,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyRequestID, middleware.GetReqID(r.Context()),
			config.LogKeyMethod, r.Method,
			config.LogKeyRoute, route,
			config.LogKeyStatus, status,
			config.LogKeyDuration, elapsed.Milliseconds())
	})
}
