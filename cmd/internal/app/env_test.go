package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CONSOLE_TEST_STR", "  value ")
	t.Setenv("CONSOLE_TEST_BOOL", "nope")
	t.Setenv("CONSOLE_TEST_INT", "-3")
	t.Setenv("CONSOLE_TEST_DUR", "0")
	t.Setenv("CONSOLE_TEST_LIST", " a, ,b ,")

	if got := EnvString("CONSOLE_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvBool("CONSOLE_TEST_BOOL", true); !got {
		t.Fatalf("EnvBool should fall back on garbage")
	}
	if got := EnvInt("CONSOLE_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt=%d", got)
	}
	if got := EnvDuration("CONSOLE_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration=%v", got)
	}
	if got := EnvDurationAllowZero("CONSOLE_TEST_DUR", time.Minute); got != 0 {
		t.Fatalf("EnvDurationAllowZero=%v", got)
	}
	if got := EnvList("CONSOLE_TEST_LIST"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("EnvList=%v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CONSOLE_DOTENV_NEW=from-file\nCONSOLE_DOTENV_SET=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("CONSOLE_DOTENV_SET", "from-env")
	t.Setenv("CONSOLE_DOTENV_NEW", "")
	_ = os.Unsetenv("CONSOLE_DOTENV_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CONSOLE_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("CONSOLE_DOTENV_SET"); got != "from-env" {
		t.Fatalf("existing env must win, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONSOLE_TOKEN_STORE", "")
	t.Setenv("CONSOLE_AUTH_COMPACT_INTERVAL", "0")

	cfg := LoadConfig()
	if cfg.TokenStore != StoreFile || cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CompactInterval != 0 {
		t.Fatalf("expected compaction sweep disabled, got %v", cfg.CompactInterval)
	}
}
