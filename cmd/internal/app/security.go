package app

import (
	"errors"

	"console/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy. It fails fast
// instead of falling back to unkeyed log fingerprints.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// The key is used as raw bytes, so the minimum is measured in bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: CONSOLE_REQUIRE_TOKEN_HMAC=true but " + token.HMACEnvKey + " is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: CONSOLE_REQUIRE_TOKEN_HMAC=true but " + token.HMACEnvKey + " is too short (min 32 bytes)")
		default:
			return err
		}
	}
	return nil
}
