package errutil

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
)

// Handle logs err and reports it to Sentry. Reporting is a no-op unless
// sentry.Init was called with a DSN.
func Handle(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	attrs := []any{slog.Any("error", err)}
	if evID := hub.CaptureException(err); evID != nil {
		attrs = append(attrs, slog.String("sentry.event_id", string(*evID)))
	}

	ctxlog.From(ctx).Error(msg, attrs...)
}
