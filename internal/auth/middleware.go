package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
)

type ctxKey int

const (
	ctxUser ctxKey = iota
	ctxSession
)

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxUser).(domain.User)
	return u, ok
}

// SessionIDFrom returns the identifier of the session that authenticated
// the request. Basic-authenticated requests have none.
func SessionIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxSession).(string)
	return id, ok && id != ""
}

// UserSource looks up the accounts behind sessions and Basic credentials.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator resolves the session cookie, or HTTP Basic credentials for
// calendar clients that cannot hold cookies, into the request's user.
type Authenticator struct {
	Sessions SessionStore
	Users    UserSource
}

// Middleware attaches the user to the request context when credentials are
// valid. It never rejects a request; see RequireUser.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if u, sid, ok := a.fromCookie(r); ok {
			ctx = context.WithValue(WithUser(ctx, u), ctxSession, sid)
		} else if u, ok := a.fromBasic(r); ok {
			ctx = WithUser(ctx, u)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) fromCookie(r *http.Request) (domain.User, string, bool) {
	cookie, err := r.Cookie(config.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return domain.User{}, "", false
	}
	sess, err := a.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthorized) {
			slog.Error(config.ErrSessionStore,
				config.LogKeyComponent, config.CompAuth,
				config.LogKeyError, err)
		}
		return domain.User{}, "", false
	}
	u, err := a.Users.GetUser(r.Context(), sess.UserID)
	if err != nil {
		return domain.User{}, "", false
	}
	return u, sess.ID, true
}

func (a *Authenticator) fromBasic(r *http.Request) (domain.User, bool) {
	email, password, ok := r.BasicAuth()
	if !ok {
		return domain.User{}, false
	}
	creds := domain.Credentials{Email: email, Password: password}.Normalize()
	u, err := a.Users.GetUserByEmail(r.Context(), creds.Email)
	if err != nil {
		return domain.User{}, false
	}
	if err := VerifyPassword(creds.Password, u.PasswordHash); err != nil {
		return domain.User{}, false
	}
	return u, true
}

// RequireUser rejects anonymous requests with domain.ErrUnauthorized.
// Requests that carried Basic credentials get a WWW-Authenticate challenge.
func RequireUser(onErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFrom(r.Context()); !ok {
				if _, _, basic := r.BasicAuth(); basic {
					w.Header().Set(config.HeaderWWWAuthenticate, config.BasicAuthRealm)
				}
				onErr(w, r, domain.Errorf(domain.ErrUnauthorized, config.TKeyErrUnauthenticated))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBasicChallenge behaves like RequireUser but always offers Basic
// authentication, so calendar clients prompt for credentials.
func RequireBasicChallenge(onErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFrom(r.Context()); !ok {
				w.Header().Set(config.HeaderWWWAuthenticate, config.BasicAuthRealm)
				onErr(w, r, domain.Errorf(domain.ErrUnauthorized, config.TKeyErrUnauthenticated))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects non-administrators with domain.ErrForbidden. It
// expects RequireUser to run first.
func RequireAdmin(onErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFrom(r.Context())
			if !ok {
				onErr(w, r, domain.Errorf(domain.ErrUnauthorized, config.TKeyErrUnauthenticated))
				return
			}
			if !u.IsAdmin() {
				onErr(w, r, domain.Errorf(domain.ErrForbidden, config.TKeyErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie hands the session identifier to the browser.
func SetSessionCookie(w http.ResponseWriter, sess Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
