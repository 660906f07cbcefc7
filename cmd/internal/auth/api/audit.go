package api

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Audit events go to the structured log under the "audit" group.

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, identifier, reason string) {
	h.audit(ctx, "auth.login.failed", ip, ua,
		slog.String("identifier", identifier),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, accountID int64, ip net.IP, ua string) {
	h.audit(ctx, "auth.login.success", ip, ua, slog.Int64("account_id", accountID))
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua, identifier string, retryAfter time.Duration) {
	h.audit(ctx, "auth.login.rate_limited", ip, ua,
		slog.String("identifier", identifier),
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) auditRegistered(ctx context.Context, accountID int64, ip net.IP, ua string) {
	h.audit(ctx, "auth.register.success", ip, ua, slog.Int64("account_id", accountID))
}

func (h *Handler) auditAccountDeleted(ctx context.Context, accountID int64, ip net.IP, ua string) {
	h.audit(ctx, "account.deleted", ip, ua, slog.Int64("account_id", accountID))
}

func (h *Handler) audit(ctx context.Context, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	all := make([]any, 0, len(attrs)+2)
	if ip != nil {
		all = append(all, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		all = append(all, slog.String("user_agent", ua))
	}
	for _, a := range attrs {
		all = append(all, a)
	}
	h.log.LogAttrs(ctx, slog.LevelInfo, action, slog.Group("audit", all...))
}
