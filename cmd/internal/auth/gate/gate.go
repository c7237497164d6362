package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"console/cmd/internal/auth/session"
	"console/cmd/internal/metrics"
)

// Evaluator is the part of session.Machine the gate drives.
type Evaluator interface {
	Evaluate(ctx context.Context, in session.Input) session.Result
}

// Gate resolves the caller's session from its cookie.
type Gate struct {
	cfg     Config
	machine Evaluator
	codec   session.Codec

	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMetrics counts redirects.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New returns a Gate. Empty config fields fall back to DefaultConfig.
func New(cfg Config, machine Evaluator, codec session.Codec, opts ...Option) *Gate {
	def := DefaultConfig()
	if len(cfg.Matchers) == 0 {
		cfg.Matchers = def.Matchers
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = def.LoginPath
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = def.LandingPath
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = def.Cookie.Name
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = def.Cookie.Path
	}
	if cfg.Cookie.CSRFName == "" {
		cfg.Cookie.CSRFName = def.Cookie.CSRFName
	}
	if cfg.Cookie.CSRFHeader == "" {
		cfg.Cookie.CSRFHeader = def.Cookie.CSRFHeader
	}

	g := &Gate{
		cfg:     cfg,
		machine: machine,
		codec:   codec,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Config returns the effective configuration.
func (g *Gate) Config() Config { return g.cfg }

// Matches reports whether the gate runs for path.
func (g *Gate) Matches(path string) bool {
	return matchAny(g.cfg.Matchers, path)
}

// Resolve opens the session cookie of r, evaluates it and re-issues the cookie
// when the machine changed the record. An unreadable cookie is cleared.
func (g *Gate) Resolve(w http.ResponseWriter, r *http.Request) session.Result {
	var in session.Input
	if raw, ok := g.sessionFromCookie(r); ok {
		rec, err := g.codec.Decode(raw, g.now())
		if err != nil {
			g.log.Debug("gate.cookie.invalid", "path", r.URL.Path, "err", err)
			g.Clear(w)
		} else {
			in.Token = &rec
		}
	}

	res := g.machine.Evaluate(r.Context(), in)
	if res.Changed && res.Record != nil {
		if err := g.Issue(w, res.Record); err != nil {
			g.log.Error("gate.cookie.encode.fail", "path", r.URL.Path, "err", err)
		}
	}
	return res
}

// Peek opens the session cookie of r without evaluating it. Nothing is
// refreshed and no cookie is written.
func (g *Gate) Peek(r *http.Request) (session.Record, bool) {
	raw, ok := g.sessionFromCookie(r)
	if !ok {
		return session.Record{}, false
	}
	rec, err := g.codec.Decode(raw, g.now())
	if err != nil {
		return session.Record{}, false
	}
	return rec, true
}

// Issue seals rec into the session cookie. A record carrying a CSRF token
// also (re)sets the CSRF cookie with the same expiry.
func (g *Gate) Issue(w http.ResponseWriter, rec *session.Record) error {
	now := g.now()
	value, err := g.codec.Encode(*rec, now)
	if err != nil {
		return err
	}

	var exp time.Time
	if rec.RefreshTokenExpires > now.UnixMilli() {
		exp = time.UnixMilli(rec.RefreshTokenExpires).UTC()
	}
	g.setSessionCookie(w, value, exp)
	if rec.CSRF != "" {
		g.setCSRFCookie(w, rec.CSRF, exp)
	}
	return nil
}

// Clear removes the session and CSRF cookies.
func (g *Gate) Clear(w http.ResponseWriter) {
	g.expireSessionCookie(w)
	g.expireCSRFCookie(w)
}

// CSRFValid reports whether r echoes the CSRF token of its session in the
// configured header. The header must match both the CSRF cookie and the
// token sealed into the session cookie.
func (g *Gate) CSRFValid(r *http.Request) bool {
	rec, ok := g.Peek(r)
	if !ok || rec.CSRF == "" {
		return false
	}
	c, err := r.Cookie(g.cfg.Cookie.CSRFName)
	if err != nil {
		return false
	}
	cv := strings.TrimSpace(c.Value)
	hv := strings.TrimSpace(r.Header.Get(g.cfg.Cookie.CSRFHeader))
	if cv == "" || hv == "" {
		return false
	}
	return secureStringEqual(cv, hv) && secureStringEqual(hv, rec.CSRF)
}

// Middleware runs the gate for matching paths and passes every request on
// unless it redirects.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !g.Matches(path) {
			next.ServeHTTP(w, r)
			return
		}

		res := g.Resolve(w, r)
		healthy := res.Record != nil && res.State.Healthy()

		if healthy && path == g.cfg.LoginPath {
			g.metrics.Redirect("signed_in")
			http.Redirect(w, r, g.cfg.LandingPath, http.StatusTemporaryRedirect)
			return
		}

		if g.cfg.EnforceAuth && !healthy && !g.isPublic(path) {
			g.metrics.Redirect("unauthenticated")
			http.Redirect(w, r, g.loginURL(r), http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), res)))
	})
}

func (g *Gate) isPublic(path string) bool {
	return path == g.cfg.LoginPath || matchAny(g.cfg.PublicPaths, path)
}

func (g *Gate) loginURL(r *http.Request) string {
	q := url.Values{}
	q.Set("callbackUrl", r.URL.RequestURI())
	return g.cfg.LoginPath + "?" + q.Encode()
}
