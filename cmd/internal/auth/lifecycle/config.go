package lifecycle

import "time"

const (
	DefaultAccessTTL  = 30 * time.Second
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config carries the per-kind TTLs.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	return c
}
