package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Env names read by FromEnv.
const (
	EnvMinLen         = "CONSOLE_PASSWORD_MIN_LEN"
	EnvMaxLen         = "CONSOLE_PASSWORD_MAX_LEN"
	EnvRejectVeryWeak = "CONSOLE_PASSWORD_REJECT_VERY_WEAK"
	EnvMemoryKiB      = "CONSOLE_ARGON2_MEMORY_KIB"
	EnvIterations     = "CONSOLE_ARGON2_ITERATIONS"
	EnvParallelism    = "CONSOLE_ARGON2_PARALLELISM"
	EnvSaltLen        = "CONSOLE_ARGON2_SALT_LEN"
	EnvKeyLen         = "CONSOLE_ARGON2_KEY_LEN"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak turns on a minimal trivial-pattern check.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline: 64 MiB, 3 passes, parallelism clamped
// to [1..4] by CPU count.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv overlays the CONSOLE_PASSWORD_* and CONSOLE_ARGON2_* variables on
// DefaultConfig. Out-of-range values are errors, not clamps.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := envInt(EnvMinLen, 1, 1024, &cfg.Policy.MinLength); err != nil {
		return Config{}, err
	}
	if err := envInt(EnvMaxLen, 1, 4096, &cfg.Policy.MaxLength); err != nil {
		return Config{}, err
	}
	if v, ok := os.LookupEnv(EnvRejectVeryWeak); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvRejectVeryWeak, err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if err := envU32(EnvMemoryKiB, 8*1024, 1024*1024, &cfg.Params.MemoryKiB); err != nil {
		return Config{}, err
	}
	if err := envU32(EnvIterations, 1, 20, &cfg.Params.Iterations); err != nil {
		return Config{}, err
	}
	par := uint32(cfg.Params.Parallelism)
	if err := envU32(EnvParallelism, 1, 64, &par); err != nil {
		return Config{}, err
	}
	p, err := u32ToU8(par)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvParallelism, err)
	}
	cfg.Params.Parallelism = p

	if err := envU32(EnvSaltLen, 8, 64, &cfg.Params.SaltLength); err != nil {
		return Config{}, err
	}
	if err := envU32(EnvKeyLen, 16, 64, &cfg.Params.KeyLength); err != nil {
		return Config{}, err
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func envInt(name string, minVal, maxVal int, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	n, err := atoiPositiveInt(v, minVal, maxVal)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func envU32(name string, minVal, maxVal uint32, dst *uint32) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	u, err := atou32(v, minVal, maxVal)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = u
	return nil
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
