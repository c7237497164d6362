package app

import "time"

// Token store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config contains the process-level runtime configuration. Auth, session,
// gate and password settings are loaded by their own packages.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// TokenStore selects the credential backend: file, postgres or redis.
	TokenStore   string
	TokenDataDir string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	// DBMigrate runs the embedded goose migrations at startup.
	DBMigrate bool

	RedisURL    string
	RedisPrefix string

	UsersFile string

	// CompactInterval is the period of the background credential sweep.
	// Zero disables it; stores still compact on write.
	CompactInterval time.Duration

	// If true, CONSOLE_TOKEN_HMAC_KEY must be set (>= 32 bytes) so log
	// fingerprints are keyed.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("CONSOLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("CONSOLE_LOG_LEVEL", "info"),
		LogFormat: EnvString("CONSOLE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("CONSOLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CONSOLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CONSOLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CONSOLE_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("CONSOLE_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("CONSOLE_HTTP_MAX_HEADER_BYTES", 1<<20),

		TokenStore:   EnvString("CONSOLE_TOKEN_STORE", StoreFile),
		TokenDataDir: EnvString("CONSOLE_TOKEN_DATA_DIR", "data"),

		DatabaseURL: EnvString("CONSOLE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CONSOLE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CONSOLE_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("CONSOLE_DB_MIGRATE", true),

		RedisURL:    EnvString("CONSOLE_REDIS_URL", ""),
		RedisPrefix: EnvString("CONSOLE_REDIS_PREFIX", "console"),

		UsersFile: EnvString("CONSOLE_USERS_FILE", "data/users.json"),

		CompactInterval: EnvDurationAllowZero("CONSOLE_AUTH_COMPACT_INTERVAL", 10*time.Minute),

		RequireTokenHMAC: EnvBool("CONSOLE_REQUIRE_TOKEN_HMAC", false),
	}
}
