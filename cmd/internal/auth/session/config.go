package session

import (
	"os"
	"strings"
	"time"

	"console/cmd/internal/auth/lifecycle"
)

const (
	CodecPaseto = "paseto"
	CodecJWT    = "jwt"

	minJWTSecretBytes = 32
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the credential TTLs handed to the lifecycle manager, store
// timeouts and compaction, clock skew tolerance, and the container codec
// with its keys.
type Config struct {
	// Issuer is the "iss" claim of session containers.
	Issuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ClockSkew defines the allowed time skew during container validation.
	ClockSkew time.Duration

	// CompactGrace is how long expired credentials survive before stores drop them.
	CompactGrace time.Duration

	// StoreTimeout bounds the store work of one evaluation. Zero disables it.
	StoreTimeout time.Duration

	// Codec selects the container format: "paseto" or "jwt".
	Codec string

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key
	// used to sign PASETO v4.public containers.
	PasetoV4SecretKeyHex string

	// JWTSecret is the HS256 key, at least 32 bytes.
	JWTSecret string
}

// DefaultConfig returns defaults suitable for development. Keys are left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:          "console",
		AccessTokenTTL:  lifecycle.DefaultAccessTTL,
		RefreshTokenTTL: lifecycle.DefaultRefreshTTL,
		ClockSkew:       30 * time.Second,
		CompactGrace:    24 * time.Hour,
		StoreTimeout:    5 * time.Second,
		Codec:           CodecPaseto,
	}
}

// Lifecycle returns the TTLs in the lifecycle manager's shape.
func (c Config) Lifecycle() lifecycle.Config {
	return lifecycle.Config{AccessTTL: c.AccessTokenTTL, RefreshTTL: c.RefreshTokenTTL}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - CONSOLE_PASETO_V4_SECRET_KEY_HEX (codec "paseto")
//   - CONSOLE_JWT_SECRET (codec "jwt")
//
// Optional (durations must be valid Go duration strings):
//   - CONSOLE_AUTH_ISSUER
//   - CONSOLE_AUTH_ACCESS_TTL
//   - CONSOLE_AUTH_REFRESH_TTL
//   - CONSOLE_AUTH_CLOCK_SKEW
//   - CONSOLE_AUTH_COMPACT_GRACE
//   - CONSOLE_AUTH_STORE_TIMEOUT
//   - CONSOLE_SESSION_CODEC
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("CONSOLE_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	durations := []struct {
		key       string
		dst       *time.Duration
		allowZero bool
	}{
		{"CONSOLE_AUTH_ACCESS_TTL", &cfg.AccessTokenTTL, false},
		{"CONSOLE_AUTH_REFRESH_TTL", &cfg.RefreshTokenTTL, false},
		{"CONSOLE_AUTH_CLOCK_SKEW", &cfg.ClockSkew, true},
		{"CONSOLE_AUTH_COMPACT_GRACE", &cfg.CompactGrace, true},
		{"CONSOLE_AUTH_STORE_TIMEOUT", &cfg.StoreTimeout, true},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowZero) {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := os.Getenv("CONSOLE_SESSION_CODEC"); v != "" {
		cfg.Codec = strings.ToLower(strings.TrimSpace(v))
	}

	cfg.PasetoV4SecretKeyHex = os.Getenv("CONSOLE_PASETO_V4_SECRET_KEY_HEX")
	cfg.JWTSecret = os.Getenv("CONSOLE_JWT_SECRET")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants between fields.
func (c Config) Validate() error {
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return ErrConfig
	}
	// An access token must not outlive the refresh token that renews it.
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return ErrConfig
	}
	switch c.Codec {
	case CodecPaseto:
		if c.PasetoV4SecretKeyHex == "" {
			return ErrConfig
		}
	case CodecJWT:
		if len(c.JWTSecret) < minJWTSecretBytes {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	return nil
}
