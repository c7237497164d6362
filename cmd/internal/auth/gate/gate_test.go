package gate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"console/cmd/internal/auth/credential"
	"console/cmd/internal/auth/lifecycle"
	"console/cmd/internal/auth/session"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	gate    *Gate
	machine *session.Machine
	clock   *testClock
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	dir := t.TempDir()

	access, err := credential.NewFileStore(dir, credential.KindAccess, credential.WithClock(clock.Now), credential.WithLogger(quietLog))
	require.NoError(t, err)
	refresh, err := credential.NewFileStore(dir, credential.KindRefresh, credential.WithClock(clock.Now), credential.WithLogger(quietLog))
	require.NoError(t, err)
	mgr, err := lifecycle.NewManager(access, refresh, lifecycle.Config{}, lifecycle.WithClock(clock.Now), lifecycle.WithLogger(quietLog))
	require.NoError(t, err)

	scfg := session.DefaultConfig()
	scfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	codec, err := session.NewCodec(scfg)
	require.NoError(t, err)

	machine := session.NewMachine(mgr, session.WithClock(clock.Now), session.WithLogger(quietLog))
	g := New(cfg, machine, codec, WithClock(clock.Now), WithLogger(quietLog))
	return &fixture{gate: g, machine: machine, clock: clock}
}

// signIn returns a session cookie for a freshly signed-in user.
func (f *fixture) signIn(t *testing.T) *http.Cookie {
	t.Helper()

	res := f.machine.Evaluate(context.Background(), session.Input{SignIn: &session.SignIn{
		Identity: session.Identity{ID: "u1", Name: "A", Email: "a@x.com"},
	}})
	require.Equal(t, session.Valid, res.State)

	rec := httptest.NewRecorder()
	require.NoError(t, f.gate.Issue(rec, res.Record))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

type captured struct {
	called bool
	view   session.View
	ok     bool
}

func (c *captured) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.view, c.ok = ViewFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/", "/", true},
		{"/", "/other", false},
		{"/part_two/:path*", "/part_two", true},
		{"/part_two/:path*", "/part_two/", true},
		{"/part_two/:path*", "/part_two/auth/login", true},
		{"/part_two/:path*", "/part_twoX", false},
		{"/dashboard/:path*", "/dashboard/users/1", true},
		{"/dashboard/:path*", "/api/dashboard", false},
	}
	for _, tc := range tests {
		if got := matchPath(tc.pattern, tc.path); got != tc.want {
			t.Fatalf("matchPath(%q, %q)=%v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestMiddlewareAnonymousPassesThrough(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	var c captured

	rec := serve(f.gate.Middleware(c.handler()), "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, c.called)
	assert.False(t, c.ok)
}

func TestMiddlewareExposesView(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cookie := f.signIn(t)
	var c captured

	rec := serve(f.gate.Middleware(c.handler()), "/part_two/dashboard", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, c.ok)
	assert.Equal(t, "u1", c.view.User.ID)
	assert.NotEmpty(t, c.view.AccessToken)
	assert.Empty(t, rec.Result().Cookies(), "valid session must not be re-issued")
}

func TestMiddlewareRedirectsSignedInLogin(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cookie := f.signIn(t)
	var c captured

	rec := serve(f.gate.Middleware(c.handler()), DefaultLoginPath, cookie)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, DefaultLandingPath, rec.Header().Get("Location"))
	assert.False(t, c.called)

	// Anonymous callers reach the login page.
	rec = serve(f.gate.Middleware(c.handler()), DefaultLoginPath, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRefreshesAndReissues(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cookie := f.signIn(t)
	f.clock.Advance(time.Minute)
	var c captured

	rec := serve(f.gate.Middleware(c.handler()), "/", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, c.ok)
	assert.Empty(t, c.view.Error)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.NotEqual(t, cookie.Value, cookies[0].Value)

	res, ok := ResultFromContext(WithResult(context.Background(), session.Result{State: session.Refreshed}))
	require.True(t, ok)
	assert.Equal(t, session.Refreshed, res.State)
}

func TestMiddlewareClearsInvalidCookie(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	var c captured

	rec := serve(f.gate.Middleware(c.handler()), "/", &http.Cookie{Name: DefaultCookieName, Value: "v4.public.garbage"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, c.ok)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
}

func TestMiddlewareSkipsUnmatchedPaths(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cookie := f.signIn(t)
	var c captured

	rec := serve(f.gate.Middleware(c.handler()), "/api/other", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, c.called)
	assert.False(t, c.ok)
}

func TestMiddlewareEnforceAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnforceAuth = true
	cfg.PublicPaths = []string{"/"}
	f := newFixture(t, cfg)
	var c captured
	h := f.gate.Middleware(c.handler())

	rec := serve(h, "/dashboard/users?page=2", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, DefaultLoginPath+"?callbackUrl=%2Fdashboard%2Fusers%3Fpage%3D2", rec.Header().Get("Location"))

	rec = serve(h, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, DefaultLoginPath, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, "/dashboard", f.signIn(t))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPeekDoesNotEvaluate(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cookie := f.signIn(t)
	f.clock.Advance(time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	rec, ok := f.gate.Peek(req)
	require.True(t, ok)
	assert.Equal(t, "u1", rec.OwnerID)
	// The access token has expired; Peek still returns the stale record as is.
	assert.Less(t, rec.AccessTokenExpires, f.clock.Now().UnixMilli())

	_, ok = f.gate.Peek(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "v4.public.garbage"})
	_, ok = f.gate.Peek(bad)
	assert.False(t, ok)
}

func TestIssueWithCSRFSetsReadableCookie(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	res := f.machine.Evaluate(context.Background(), session.Input{SignIn: &session.SignIn{
		Identity: session.Identity{ID: "u1"},
	}})
	require.Equal(t, session.Valid, res.State)
	res.Record.CSRF = "tok"

	w := httptest.NewRecorder()
	require.NoError(t, f.gate.Issue(w, res.Record))

	byName := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		byName[c.Name] = c
	}
	require.Contains(t, byName, DefaultCookieName)
	require.Contains(t, byName, DefaultCSRFCookieName)
	assert.True(t, byName[DefaultCookieName].HttpOnly)
	assert.False(t, byName[DefaultCSRFCookieName].HttpOnly)
	assert.Equal(t, "tok", byName[DefaultCSRFCookieName].Value)
	assert.Equal(t, byName[DefaultCookieName].Expires, byName[DefaultCSRFCookieName].Expires)
}

func TestCSRFValid(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	res := f.machine.Evaluate(context.Background(), session.Input{SignIn: &session.SignIn{
		Identity: session.Identity{ID: "u1"},
	}})
	require.Equal(t, session.Valid, res.State)
	res.Record.CSRF = "tok"
	w := httptest.NewRecorder()
	require.NoError(t, f.gate.Issue(w, res.Record))
	cookies := w.Result().Cookies()

	build := func(header string, csrfCookie string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		for _, c := range cookies {
			if c.Name == DefaultCSRFCookieName {
				req.AddCookie(&http.Cookie{Name: c.Name, Value: csrfCookie})
				continue
			}
			req.AddCookie(c)
		}
		if header != "" {
			req.Header.Set(DefaultCSRFHeaderName, header)
		}
		return req
	}

	assert.True(t, f.gate.CSRFValid(build("tok", "tok")))
	assert.False(t, f.gate.CSRFValid(build("", "tok")), "missing header")
	assert.False(t, f.gate.CSRFValid(build("evil", "evil")), "cookie and header agree but differ from session")
	assert.False(t, f.gate.CSRFValid(build("tok", "other")), "cookie mismatch")

	// A session issued without a token never validates.
	plain := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	plain.AddCookie(f.signIn(t))
	plain.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "x"})
	plain.Header.Set(DefaultCSRFHeaderName, "x")
	assert.False(t, f.gate.CSRFValid(plain))
}

func TestLoadConfigFromEnv_CookieGuardrails(t *testing.T) {
	t.Setenv("CONSOLE_SESSION_COOKIE_SAMESITE", "none")
	t.Setenv("CONSOLE_SESSION_COOKIE_SECURE", "false")
	t.Setenv("CONSOLE_GATE_MATCHERS", " /a/:path* , /b ")
	t.Setenv("CONSOLE_GATE_ENFORCE_AUTH", "true")

	cfg := LoadConfigFromEnv()

	if cfg.Cookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None, got %v", cfg.Cookie.SameSite)
	}
	if !cfg.Cookie.Secure {
		t.Fatalf("SameSite=None requires Secure=true")
	}
	if len(cfg.Matchers) != 2 || cfg.Matchers[0] != "/a/:path*" || cfg.Matchers[1] != "/b" {
		t.Fatalf("matchers mismatch: %v", cfg.Matchers)
	}
	if !cfg.EnforceAuth {
		t.Fatalf("expected EnforceAuth")
	}
}

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in   string
		want http.SameSite
	}{
		{in: "strict", want: http.SameSiteStrictMode},
		{in: "lax", want: http.SameSiteLaxMode},
		{in: "none", want: http.SameSiteNoneMode},
		{in: "default", want: http.SameSiteDefaultMode},
		{in: "unknown", want: http.SameSiteLaxMode},
	}

	for _, tc := range tests {
		got := parseSameSite(tc.in)
		if got != tc.want {
			t.Fatalf("parseSameSite(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
