package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/i18n"
	"github.com/tartampluch/rappel-anniv/internal/metrics"
	"github.com/tartampluch/rappel-anniv/internal/server"
	"github.com/tartampluch/rappel-anniv/internal/service"
	"github.com/tartampluch/rappel-anniv/internal/storage"
)

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.CurrentTime
}

type env struct {
	t       *testing.T
	handler http.Handler
	svc     *service.Service
	store   *storage.MemoryStore
}

func newEnv(t *testing.T, addr string) (*env, *server.Server) {
	t.Helper()
	clock := &MockClock{CurrentTime: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	tr, err := i18n.New(config.DefaultLanguage)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	sessions := auth.NewMemorySessionStore(clock, time.Hour)
	m := metrics.New()
	svc := service.New(service.Deps{
		Store:      store,
		Sessions:   sessions,
		Translator: tr,
		Clock:      clock,
		Metrics:    m,
	})
	srv := server.New(server.Options{
		Addr:       addr,
		Service:    svc,
		Auth:       &auth.Authenticator{Sessions: sessions, Users: store},
		Translator: tr,
		Metrics:    m,
		Limiter:    auth.NewLoginLimiter(clock, 6, 3),
	})
	return &env{t: t, handler: srv.Handler(), svc: svc, store: store}, srv
}

// do sends a request; body may be nil, a string or a value encoded as JSON.
func (e *env) do(method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, rd)
	if _, ok := body.(string); !ok && body != nil {
		req.Header.Set(config.HeaderContentType, config.MimeJSON)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(k, v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func withBasic(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == config.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func (e *env) register(email string) *http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/register", domain.Credentials{Email: email, Password: "password"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return sessionCookie(e.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["message"]
}

func TestHealth(t *testing.T) {
	e, _ := newEnv(t, "")
	rec := e.do(http.MethodGet, config.RouteHealth, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestAccountFlow(t *testing.T) {
	e, _ := newEnv(t, "")

	rec := e.do(http.MethodPost, "/api/register", domain.Credentials{Email: "Alice@Example.com", Password: "password"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	user := decode[map[string]any](t, rec)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "MEMBER", user["role"])
	assert.NotContains(t, rec.Body.String(), "password", "hashes are never serialized")

	rec = e.do(http.MethodPost, "/api/register", domain.Credentials{Email: "alice@example.com", Password: "password"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", message(t, rec))

	rec = e.do(http.MethodGet, "/api/user", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[map[string]any](t, rec)["username"])

	rec = e.do(http.MethodPost, "/api/logout", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(http.MethodGet, "/api/user", nil, withCookie(cookie), withHeader(config.HeaderAcceptLanguage, "fr-FR,fr;q=0.9"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEqual(t, "Authentication required", message(t, rec), "message is localized")
	assert.Empty(t, rec.Header().Get(config.HeaderWWWAuthenticate))

	rec = e.do(http.MethodPost, "/api/login", domain.Credentials{Email: "alice@example.com", Password: "password"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(http.MethodGet, "/api/user", nil, withCookie(sessionCookie(t, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/api/register", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_Throttled(t *testing.T) {
	e, _ := newEnv(t, "")
	e.register("alice@example.com")

	bad := domain.Credentials{Email: "alice@example.com", Password: "nope!!"}
	for i := 0; i < 3; i++ {
		rec := e.do(http.MethodPost, "/api/login", bad)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", message(t, rec))
	}
	rec := e.do(http.MethodPost, "/api/login", bad)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(config.HeaderRetryAfter))
}

func TestAdminRoutes(t *testing.T) {
	e, _ := newEnv(t, "")
	member := e.register("member@example.com")

	_, err := e.svc.EnsureAdmin(context.Background(), domain.Credentials{Email: "root@example.com", Password: "rootpass"})
	require.NoError(t, err)
	rec := e.do(http.MethodPost, "/api/login", domain.Credentials{Email: "root@example.com", Password: "rootpass"})
	require.Equal(t, http.StatusOK, rec.Code)
	admin := sessionCookie(t, rec)

	rec = e.do(http.MethodGet, "/api/users", nil, withCookie(member))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodGet, "/api/users", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]map[string]any](t, rec)
	require.Len(t, users, 2)
	memberID := int64(users[0]["id"].(float64))

	rec = e.do(http.MethodPatch, "/api/users/"+itoa(memberID)+"/role", map[string]string{"role": "GROUP_LEADER"}, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GROUP_LEADER", decode[map[string]any](t, rec)["role"])

	rec = e.do(http.MethodPatch, "/api/users/"+itoa(memberID)+"/role", map[string]string{"role": "KING"}, withCookie(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid role", message(t, rec))

	rec = e.do(http.MethodPatch, "/api/users/abc/role", map[string]string{"role": "MEMBER"}, withCookie(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestGroupsAndBirthdays(t *testing.T) {
	e, _ := newEnv(t, "")
	alice := e.register("alice@example.com")
	bob := e.register("bob@example.com")

	rec := e.do(http.MethodPost, "/api/groups", domain.GroupInput{Name: "Family"}, withCookie(alice))
	require.Equal(t, http.StatusCreated, rec.Code)
	groupID := int64(decode[map[string]any](t, rec)["id"].(float64))
	group := "/api/groups/" + itoa(groupID)

	rec = e.do(http.MethodGet, group, nil, withCookie(bob))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You are not a member of this group", message(t, rec))

	rec = e.do(http.MethodPost, group+"/members", domain.MemberInput{Email: "bob@example.com"}, withCookie(alice))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(http.MethodGet, group+"/members", nil, withCookie(bob))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	for _, b := range []map[string]any{
		{"name": "Ann", "birthDate": "1990-03-15", "groupId": groupID},
		{"name": "Leo", "birthDate": "--04-09", "groupId": groupID, "notes": "no year"},
		{"name": "Jan", "birthDate": "1975-01-01", "groupId": groupID},
	} {
		rec = e.do(http.MethodPost, "/api/birthdays", b, withCookie(bob))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = e.do(http.MethodPost, "/api/birthdays", map[string]any{"name": "Bad", "birthDate": "1990-02-30", "groupId": groupID}, withCookie(bob))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid birth date", message(t, rec))

	t.Run("Upcoming", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/api/birthdays?upcoming=abc", nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]map[string]any](t, rec)
		require.Len(t, list, 2, "non-numeric window falls back to 30 days")
		assert.Equal(t, "Ann", list[0]["name"])
		assert.Equal(t, 5.0, list[0]["daysUntil"])
		assert.Equal(t, "2024-03-15", list[0]["nextOccurrence"])
		assert.Equal(t, 34.0, list[0]["ageNext"])
		assert.Equal(t, "in 5 days", list[0]["label"])
		assert.Equal(t, "Leo", list[1]["name"])
		assert.Equal(t, "--04-09", list[1]["birthDate"])
		assert.NotContains(t, list[1], "ageNext")

		rec = e.do(http.MethodGet, "/api/birthdays?upcoming=5&lang=fr", nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		list = decode[[]map[string]any](t, rec)
		require.Len(t, list, 1)
		assert.Equal(t, "dans 5 jours", list[0]["label"])

		rec = e.do(http.MethodGet, "/api/birthdays?upcoming=-1", nil, withCookie(bob))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = e.do(http.MethodGet, "/api/birthdays?upcoming=0", nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String(), "A zero-day window only holds today")
	})

	t.Run("List And Search", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/api/birthdays?groupId="+itoa(groupID), nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]map[string]any](t, rec), 3)

		rec = e.do(http.MethodGet, "/api/birthdays?search=LE", nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]map[string]any](t, rec)
		require.Len(t, list, 1)
		assert.Equal(t, "Leo", list[0]["name"])

		rec = e.do(http.MethodGet, "/api/birthdays?groupId=x", nil, withCookie(bob))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Edit Rules", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/api/birthdays?search=jan", nil, withCookie(alice))
		id := int64(decode[[]map[string]any](t, rec)[0]["id"].(float64))
		path := "/api/birthdays/" + itoa(id)

		rec = e.do(http.MethodPatch, path, map[string]any{"notes": "x"}, withCookie(bob))
		assert.Equal(t, http.StatusForbidden, rec.Code, "only leaders edit")

		rec = e.do(http.MethodPatch, path, map[string]any{"birthDate": "--01-02"}, withCookie(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[map[string]any](t, rec)
		assert.Equal(t, "--01-02", got["birthDate"])
		assert.Equal(t, false, got["yearKnown"])

		rec = e.do(http.MethodDelete, path, nil, withCookie(alice))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = e.do(http.MethodGet, path, nil, withCookie(alice))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Birthday not found", message(t, rec))
	})

	t.Run("Stats", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/api/stats", nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.Stats{TotalBirthdays: 2, TotalGroups: 1, UpcomingBirthdays: 2}, decode[domain.Stats](t, rec))
	})

	t.Run("Members Removal", func(t *testing.T) {
		rec := e.do(http.MethodDelete, group+"/members/abc", nil, withCookie(bob))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		users, err := e.store.ListUsers(context.Background())
		require.NoError(t, err)
		rec = e.do(http.MethodDelete, group+"/members/"+itoa(users[1].ID), nil, withCookie(bob))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = e.do(http.MethodGet, "/api/birthdays", nil, withCookie(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("Group Update And Delete", func(t *testing.T) {
		rec := e.do(http.MethodPatch, group, map[string]any{"description": "close family"}, withCookie(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "close family", decode[map[string]any](t, rec)["description"])

		rec = e.do(http.MethodDelete, group, nil, withCookie(alice))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = e.do(http.MethodGet, "/api/groups", nil, withCookie(alice))
		assert.Equal(t, "[]\n", rec.Body.String())
	})
}

func TestImport(t *testing.T) {
	e, _ := newEnv(t, "")
	alice := e.register("alice@example.com")
	rec := e.do(http.MethodPost, "/api/groups", domain.GroupInput{Name: "Contacts"}, withCookie(alice))
	groupID := int64(decode[map[string]any](t, rec)["id"].(float64))

	cards := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Ann\r\nBDAY:19900315\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Nobody\r\nEND:VCARD\r\n"
	rec = e.do(http.MethodPost, "/api/groups/"+itoa(groupID)+"/import", cards,
		withCookie(alice), withHeader(config.HeaderContentType, config.MimeVCard))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.ImportResult{Processed: 2, Created: 1, Skipped: 1}, decode[service.ImportResult](t, rec))

	rec = e.do(http.MethodPost, "/api/groups/"+itoa(groupID)+"/import", map[string]string{"url": "ftp://example.com/book.vcf"}, withCookie(alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unable to read the address book", message(t, rec))
}

func TestCalendar(t *testing.T) {
	e, _ := newEnv(t, "")
	alice := e.register("alice@example.com")
	rec := e.do(http.MethodPost, "/api/groups", domain.GroupInput{Name: "Family"}, withCookie(alice))
	groupID := int64(decode[map[string]any](t, rec)["id"].(float64))
	rec = e.do(http.MethodPost, "/api/birthdays", map[string]any{"name": "Ann", "birthDate": "1990-03-15", "groupId": groupID}, withCookie(alice))
	require.Equal(t, http.StatusCreated, rec.Code)

	const path = "/api/calendar.ics?remind=1&unit=d&dir=before"

	t.Run("Challenge Without Credentials", func(t *testing.T) {
		rec := e.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, config.BasicAuthRealm, rec.Header().Get(config.HeaderWWWAuthenticate))
	})

	t.Run("Basic Auth And ETag", func(t *testing.T) {
		rec := e.do(http.MethodGet, path, nil, withBasic("alice@example.com", "password"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, config.MimeTextCalendar, rec.Header().Get(config.HeaderContentType))
		assert.Equal(t, config.MimeNoSniff, rec.Header().Get(config.HeaderXContentType))
		assert.Contains(t, rec.Body.String(), "SUMMARY:Birthday: Ann (34)")
		assert.Contains(t, rec.Body.String(), "TRIGGER:-P1D")

		etag := rec.Header().Get(config.HeaderETag)
		require.NotEmpty(t, etag)

		rec = e.do(http.MethodGet, path, nil, withBasic("alice@example.com", "password"), withHeader(config.HeaderIfNoneMatch, etag))
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String(), "Body must be empty on 304 Not Modified")
	})

	t.Run("Cookie And HEAD", func(t *testing.T) {
		rec := e.do(http.MethodHead, "/api/calendar.ics", nil, withCookie(alice))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(config.HeaderETag))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("Localized", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/api/calendar.ics?lang=fr", nil, withCookie(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "X-WR-CALNAME:Anniversaires")
	})

	t.Run("Bad Reminder", func(t *testing.T) {
		for _, q := range []string{"remind=x", "remind=1&unit=w", "remind=1&dir=sideways", "remind=-1"} {
			rec := e.do(http.MethodGet, "/api/calendar.ics?"+q, nil, withCookie(alice))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newEnv(t, "")
	e.do(http.MethodGet, config.RouteHealth, nil)
	e.do(http.MethodGet, "/api/birthdays/12", nil)

	rec := e.do(http.MethodGet, config.RouteMetrics, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `rappel_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, `route="/api/birthdays/{id}",status="401"`)
}

// TestServer_Lifecycle spins up the actual TCP listener to verify network binding
// and graceful shutdown logic.
func TestServer_Lifecycle(t *testing.T) {
	const addr = "127.0.0.1:18099"
	_, srv := newEnv(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	url := "http://" + addr + config.RouteHealth
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond, "Server failed to bind/listen in time")

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err, "Server should shutdown gracefully without error")
	case <-time.After(5 * time.Second):
		t.Fatal("Server shutdown timed out")
	}
}

func TestServer_StartRequiresAddr(t *testing.T) {
	_, srv := newEnv(t, "")
	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrAddrRequired)
}
