package credential

import (
	"log/slog"
	"time"

	"console/cmd/internal/metrics"
)

const (
	defaultCompactGrace = 24 * time.Hour
	defaultMaxRetries   = 5
)

type options struct {
	log          *slog.Logger
	now          func() time.Time
	metrics      *metrics.Metrics
	compactGrace time.Duration
	maxRetries   int
}

// Option configures a store backend.
type Option func(*options)

// WithLogger sets the logger used for recoverable conditions.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics attaches store latency and conflict metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCompactGrace sets how long an expired record survives before compaction
// drops it. A non-positive grace disables compaction on write; Compact then
// drops everything already expired.
func WithCompactGrace(d time.Duration) Option {
	return func(o *options) { o.compactGrace = d }
}

// WithMaxRetries bounds optimistic concurrency retries.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		log:          slog.Default(),
		now:          time.Now,
		compactGrace: defaultCompactGrace,
		maxRetries:   defaultMaxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) compactOnWrite() bool { return o.compactGrace > 0 }

// cutoff is the instant before which expired records are dropped.
func (o options) cutoff() time.Time {
	grace := o.compactGrace
	if grace < 0 {
		grace = 0
	}
	return o.now().Add(-grace)
}
