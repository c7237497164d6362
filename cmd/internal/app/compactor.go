package app

import (
	"context"
	"log/slog"
	"time"

	"console/cmd/internal/auth/credential"
)

// runCompactor sweeps expired credentials every interval until ctx is done.
func runCompactor(ctx context.Context, log *slog.Logger, interval time.Duration, stores map[credential.Kind]credential.Store) {
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			compactOnce(ctx, log, stores)
		}
	}
}

// compactOnce runs one sweep and returns the number of removed credentials.
func compactOnce(ctx context.Context, log *slog.Logger, stores map[credential.Kind]credential.Store) int {
	total := 0
	for kind, st := range stores {
		n, err := st.Compact(ctx)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "credential.compact.fail",
				slog.String("kind", string(kind)),
				slog.Any("err", err),
			)
			continue
		}
		if n > 0 {
			log.LogAttrs(ctx, slog.LevelInfo, "credential.compact",
				slog.String("kind", string(kind)),
				slog.Int("removed", n),
			)
		}
		total += n
	}
	return total
}
