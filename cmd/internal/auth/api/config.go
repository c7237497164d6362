package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// AllowedOrigins may call the cookie-issuing endpoints besides the
	// request's own host. Entries are full origins ("https://admin.example").
	AllowedOrigins []string

	LoginIPMax    int
	LoginIPWindow time.Duration

	// LoginUserWindow bounds which failures per email count towards lockout.
	LoginUserWindow time.Duration

	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:             envBool("CONSOLE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:           envInt64("CONSOLE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		AllowedOrigins:         envList("CONSOLE_AUTH_ALLOWED_ORIGINS"),
		LoginIPMax:             envInt("CONSOLE_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow:          envDuration("CONSOLE_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		LoginUserWindow:        envDuration("CONSOLE_AUTH_LOGIN_USER_WINDOW", 2*time.Hour),
		LockoutShortThreshold:  envInt("CONSOLE_AUTH_LOGIN_LOCKOUT_SHORT_THRESHOLD", 5),
		LockoutShortDuration:   envDuration("CONSOLE_AUTH_LOGIN_LOCKOUT_SHORT_DURATION", 5*time.Minute),
		LockoutLongThreshold:   envInt("CONSOLE_AUTH_LOGIN_LOCKOUT_LONG_THRESHOLD", 10),
		LockoutLongDuration:    envDuration("CONSOLE_AUTH_LOGIN_LOCKOUT_LONG_DURATION", 30*time.Minute),
		LockoutSevereThreshold: envInt("CONSOLE_AUTH_LOGIN_LOCKOUT_SEVERE_THRESHOLD", 20),
		LockoutSevereDuration:  envDuration("CONSOLE_AUTH_LOGIN_LOCKOUT_SEVERE_DURATION", 2*time.Hour),
	}
	return cfg.withDefaults()
}

// DefaultConfig returns the defaults LoadConfigFromEnv falls back to.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.LoginIPMax <= 0 {
		c.LoginIPMax = 20
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = 5 * time.Minute
	}
	if c.LoginUserWindow <= 0 {
		c.LoginUserWindow = 2 * time.Hour
	}
	if c.LockoutShortThreshold <= 0 {
		c.LockoutShortThreshold = 5
	}
	if c.LockoutShortDuration <= 0 {
		c.LockoutShortDuration = 5 * time.Minute
	}
	if c.LockoutLongThreshold <= 0 {
		c.LockoutLongThreshold = 10
	}
	if c.LockoutLongDuration <= 0 {
		c.LockoutLongDuration = 30 * time.Minute
	}
	if c.LockoutSevereThreshold <= 0 {
		c.LockoutSevereThreshold = 20
	}
	if c.LockoutSevereDuration <= 0 {
		c.LockoutSevereDuration = 2 * time.Hour
	}
	return c
}

func (c Config) lockoutTiers() []lockoutTier {
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
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

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
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
