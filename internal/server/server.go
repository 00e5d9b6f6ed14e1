// Package server exposes the service over HTTP: a JSON API under /api, the
// iCalendar feed, health and Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/i18n"
	"github.com/tartampluch/rappel-anniv/internal/metrics"
	"github.com/tartampluch/rappel-anniv/internal/service"
)

// Options wires the server to its collaborators.
type Options struct {
	Addr         string
	Service      *service.Service
	Auth         *auth.Authenticator
	Translator   *i18n.Translator
	Metrics      *metrics.Metrics
	Limiter      *auth.LoginLimiter
	CookieSecure bool
}

// Server routes HTTP requests to the service.
type Server struct {
	addr         string
	svc          *service.Service
	auth         *auth.Authenticator
	tr           *i18n.Translator
	metrics      *metrics.Metrics
	limiter      *auth.LoginLimiter
	cookieSecure bool
	handler      http.Handler
}

func New(o Options) *Server {
	s := &Server{
		addr:         o.Addr,
		svc:          o.Service,
		auth:         o.Auth,
		tr:           o.Translator,
		metrics:      o.Metrics,
		limiter:      o.Limiter,
		cookieSecure: o.CookieSecure,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get(config.RouteHealth, s.handleHealth)
	r.Handle(config.RouteMetrics, s.metrics.Handler())

	r.Route(config.RouteAPI, func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Post(config.RouteRegister, s.handleRegister)
		r.Post(config.RouteLogin, s.handleLogin)
		r.Post(config.RouteLogout, s.handleLogout)

		// Calendar clients authenticate with Basic credentials.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBasicChallenge(s.writeError))
			r.Get(config.RouteCalendar, s.handleCalendar)
			r.Head(config.RouteCalendar, s.handleCalendar)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(s.writeError))

			r.Get(config.RouteMe, s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(s.writeError))
				r.Get(config.RouteUsers, s.handleListUsers)
				r.Patch(config.RouteUserRole, s.handleUpdateRole)
			})

			r.Post(config.RouteGroups, s.handleCreateGroup)
			r.Get(config.RouteGroups, s.handleListGroups)
			r.Get(config.RouteGroup, s.handleGetGroup)
			r.Patch(config.RouteGroup, s.handleUpdateGroup)
			r.Delete(config.RouteGroup, s.handleDeleteGroup)
			r.Post(config.RouteMembers, s.handleAddMember)
			r.Get(config.RouteMembers, s.handleListMembers)
			r.Delete(config.RouteMember, s.handleRemoveMember)
			r.Post(config.RouteImport, s.handleImport)

			r.Post(config.RouteBirthdays, s.handleCreateBirthday)
			r.Get(config.RouteBirthdays, s.handleListBirthdays)
			r.Get(config.RouteBirthday, s.handleGetBirthday)
			r.Patch(config.RouteBirthday, s.handleUpdateBirthday)
			r.Delete(config.RouteBirthday, s.handleDeleteBirthday)

			r.Get(config.RouteStats, s.handleStats)
		})
	})
	return r
}

// Start listens on the configured address and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.addr == "" {
		return errors.New(config.ErrAddrRequired)
	}

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyAddr, s.addr,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		slog.Error(config.MsgRequestFailed,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
