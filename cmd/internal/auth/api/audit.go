package api

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

func (h *Handler) auditLoginFailed(ctx context.Context, ip, ua, identifier, reason string) {
	h.audit(ctx, "auth.login.failed", "", ip, ua,
		slog.String("identifier", identifier),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, ip, ua, identifier string) {
	h.audit(ctx, "auth.login.success", userID, ip, ua, slog.String("identifier", identifier))
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip, ua, identifier string, retryAfter time.Duration) {
	h.audit(ctx, "auth.login.rate_limited", "", ip, ua,
		slog.String("identifier", identifier),
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) auditLogout(ctx context.Context, userID, ip, ua string) {
	h.audit(ctx, "auth.logout", userID, ip, ua)
}

// audit writes one structured audit event to the handler's logger.
func (h *Handler) audit(ctx context.Context, action, userID, ip, ua string, extra ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	attrs := make([]slog.Attr, 0, 5+len(extra))
	attrs = append(attrs, slog.String("action", action))
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	if ip != "" {
		attrs = append(attrs, slog.String("ip", ip))
	}
	if ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	attrs = append(attrs, extra...)

	h.log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
