package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"console/cmd/security/password"
)

// baselineMinLength is the floor applied on top of the env policy; env may
// only tighten it.
const baselineMinLength = 8

// Passwords hashes and verifies directory passwords with security/password
// as the single source of Argon2id parameters and policy.
type Passwords struct {
	cfg   password.Config
	dummy string
}

// NewPasswords applies the directory baseline to cfg and precomputes a dummy
// hash so lookups for unknown emails cost the same as real ones.
func NewPasswords(cfg password.Config) (Passwords, error) {
	if cfg.Policy.MinLength < baselineMinLength {
		cfg.Policy.MinLength = baselineMinLength
	}
	if cfg.Policy.MaxLength < cfg.Policy.MinLength {
		return Passwords{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}

	seed := make([]byte, 24)
	if _, err := rand.Read(seed); err != nil {
		return Passwords{}, fmt.Errorf("dummy seed: %w", err)
	}
	unrestricted := cfg
	unrestricted.Policy = password.Policy{MinLength: 0, MaxLength: 1024}
	dummy, err := unrestricted.Hash(hex.EncodeToString(seed))
	if err != nil {
		return Passwords{}, fmt.Errorf("dummy hash: %w", err)
	}

	return Passwords{cfg: cfg, dummy: dummy}, nil
}

// PasswordsFromEnv is NewPasswords over password.FromEnv.
func PasswordsFromEnv() (Passwords, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return Passwords{}, err
	}
	return NewPasswords(cfg)
}

// Hash returns a PHC-style Argon2id hash after enforcing the policy.
func (p Passwords) Hash(plain string) (string, error) {
	enc, err := p.cfg.Hash(plain)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong),
			errors.Is(err, password.ErrWeakPassword):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: err.Error()}
		default:
			return "", err
		}
	}
	return enc, nil
}

// Verify checks plain against encoded. A malformed hash is reported as
// ErrInvalidInput; a mismatch is (false, nil).
func (p Passwords) Verify(encoded, plain string) (bool, error) {
	ok, err := p.cfg.Verify(encoded, plain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return false, OpError{Op: "identity.VerifyPassword", Kind: ErrInvalidInput, Msg: "invalid argon2id hash format"}
		}
		return false, err
	}
	return ok, nil
}

// burn spends one verification against the dummy hash.
func (p Passwords) burn(plain string) {
	_, _ = p.cfg.Verify(p.dummy, plain)
}
