package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"console/cmd/internal/auth/session"
)

// SignInner runs credential sign-in through the session machine.
type SignInner interface {
	SignIn(ctx context.Context, a session.Attempt) session.Result
}

// Sessions is the part of gate.Gate the handlers use.
type Sessions interface {
	Resolve(w http.ResponseWriter, r *http.Request) session.Result
	Peek(r *http.Request) (session.Record, bool)
	Issue(w http.ResponseWriter, rec *session.Record) error
	Clear(w http.ResponseWriter)
	CSRFValid(r *http.Request) bool
}

// Handler wires the auth HTTP endpoints to the session machine and gate.
type Handler struct {
	log *slog.Logger
	cfg Config
	now func() time.Time

	signIn   SignInner
	sessions Sessions

	ipFailures   *failureLog
	userFailures *failureLog
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, signIn SignInner, sessions Sessions, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:          log,
		cfg:          cfg,
		now:          time.Now,
		signIn:       signIn,
		sessions:     sessions,
		ipFailures:   newFailureLog(cfg.LoginIPWindow),
		userFailures: newFailureLog(cfg.LoginUserWindow),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/session", h.handleSession)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.originAllowed(r) {
		h.log.Info("auth.login.origin.denied", "origin", r.Header.Get("Origin"), "host", r.Host)
		writeError(w, http.StatusForbidden, "origin_denied", "origin not allowed")
		return
	}

	var req loginRequest
	if err := readJSONBody(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// IP-based throttling before credential checks.
	if blocked, retryAfter := h.checkLoginIPThrottle(ip, now); blocked {
		h.auditLoginRateLimited(ctx, ip, ua, email, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := h.checkLoginUserThrottle(email, now); blocked {
		h.auditLoginRateLimited(ctx, ip, ua, email, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	res := h.signIn.SignIn(ctx, session.Attempt{Email: email, Password: req.Password})
	switch {
	case res.State == session.NoSession || res.Record == nil:
		h.ipFailures.record(ip, now)
		h.userFailures.record(email, now)
		h.auditLoginFailed(ctx, ip, ua, email, "invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	case res.State == session.Errored:
		h.log.Error("auth.login.issue.fail", "identifier", email)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	}

	csrf, err := newCSRFToken()
	if err != nil {
		h.log.Error("auth.login.csrf.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	rec := res.Record.Clone()
	rec.CSRF = csrf
	if err := h.sessions.Issue(w, rec); err != nil {
		h.log.Error("auth.login.cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLoginSuccess(ctx, rec.OwnerID, ip, ua, email)

	view, _ := session.Project(rec)
	out := toSessionResponse(view)
	out.CSRFToken = csrf
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	res := h.sessions.Resolve(w, r)
	view, ok := res.View()
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_session", "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.originAllowed(r) {
		writeError(w, http.StatusForbidden, "origin_denied", "origin not allowed")
		return
	}

	// The cookie is only decoded here, never evaluated or refreshed.
	var userID string
	if rec, ok := h.sessions.Peek(r); ok {
		if !h.sessions.CSRFValid(r) {
			writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
			return
		}
		userID = rec.OwnerID
		if userID == "" && rec.User != nil {
			userID = rec.User.ID
		}
	}
	h.sessions.Clear(w)
	h.auditLogout(r.Context(), userID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip.String()
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
