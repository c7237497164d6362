package gate

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultLoginPath   = "/part_two/auth/login"
	DefaultLandingPath = "/part_two/dashboard"
	DefaultCookieName  = "console_session"

	DefaultCSRFCookieName = "console_csrf"
	DefaultCSRFHeaderName = "X-CSRF-Token"
)

// DefaultMatchers are the path patterns the gate runs on. ":path*" matches the
// prefix itself and everything below it.
var DefaultMatchers = []string{"/", "/part_two/:path*", "/dashboard/:path*"}

// CookieConfig controls the session cookie and its CSRF companion. The CSRF
// cookie shares path, domain and flags but is readable by scripts.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite

	CSRFName   string
	CSRFHeader string
}

// Config controls gate routing and cookie behaviour.
type Config struct {
	Matchers    []string
	LoginPath   string
	LandingPath string

	// PublicPaths stay reachable without a session when EnforceAuth is on.
	// The login path is always public.
	PublicPaths []string
	EnforceAuth bool

	Cookie CookieConfig
}

// DefaultConfig returns the routing of the admin console.
func DefaultConfig() Config {
	return Config{
		Matchers:    append([]string(nil), DefaultMatchers...),
		LoginPath:   DefaultLoginPath,
		LandingPath: DefaultLandingPath,
		Cookie: CookieConfig{
			Name:       DefaultCookieName,
			Path:       "/",
			Secure:     true,
			SameSite:   http.SameSiteLaxMode,
			CSRFName:   DefaultCSRFCookieName,
			CSRFHeader: DefaultCSRFHeaderName,
		},
	}
}

// LoadConfigFromEnv loads gate config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := envList("CONSOLE_GATE_MATCHERS"); len(v) > 0 {
		cfg.Matchers = v
	}
	cfg.PublicPaths = envList("CONSOLE_GATE_PUBLIC_PATHS")
	cfg.LoginPath = envString("CONSOLE_GATE_LOGIN_PATH", cfg.LoginPath)
	cfg.LandingPath = envString("CONSOLE_GATE_LANDING_PATH", cfg.LandingPath)
	cfg.EnforceAuth = envBool("CONSOLE_GATE_ENFORCE_AUTH", false)

	cfg.Cookie.Name = envString("CONSOLE_SESSION_COOKIE_NAME", cfg.Cookie.Name)
	cfg.Cookie.Path = envString("CONSOLE_SESSION_COOKIE_PATH", cfg.Cookie.Path)
	cfg.Cookie.Domain = envString("CONSOLE_SESSION_COOKIE_DOMAIN", "")
	cfg.Cookie.Secure = envBool("CONSOLE_SESSION_COOKIE_SECURE", cfg.Cookie.Secure)
	cfg.Cookie.SameSite = parseSameSite(envString("CONSOLE_SESSION_COOKIE_SAMESITE", "lax"))
	cfg.Cookie.CSRFName = envString("CONSOLE_CSRF_COOKIE_NAME", cfg.Cookie.CSRFName)
	cfg.Cookie.CSRFHeader = envString("CONSOLE_CSRF_HEADER_NAME", cfg.Cookie.CSRFHeader)

	// Browsers drop SameSite=None cookies without Secure.
	if cfg.Cookie.SameSite == http.SameSiteNoneMode {
		cfg.Cookie.Secure = true
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
