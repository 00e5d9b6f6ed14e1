package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, sess, err := s.svc.Register(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, sess, s.cookieSecure)
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if s.limiter != nil && !s.limiter.Allow(ip) {
		s.metrics.LoginsThrottled.Inc()
		slog.Warn(config.MsgLoginThrottled,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyIP, ip)
		retry := int(s.limiter.RetryAfter(ip).Seconds()) + 1
		w.Header().Set(config.HeaderRetryAfter, strconv.Itoa(retry))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Message: s.tr.Msg(s.lang(r), config.TKeyErrTooManyRequests),
		})
		return
	}

	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, sess, err := s.svc.Login(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, sess, s.cookieSecure)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.SessionIDFrom(r.Context()); ok {
		if err := s.svc.Logout(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	auth.ClearSessionCookie(w, s.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, actor(r))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.svc.UpdateUserRole(r.Context(), actor(r), id, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
