// Package notify provides the best-effort notification and audit sinks. The
// engine treats both as fire-and-forget: a delivery failure is logged and
// never rolls back a scoring decision.
package notify

import (
	"context"
	"log/slog"

	"github.com/talenthq/arena/internal/store"
)

// Log is the default Notifier and Audit sink: it writes structured records
// to slog. Real delivery (email/SMS/push) hangs off the same interfaces
// outside this core.
type Log struct{}

func NewLog() Log { return Log{} }

func (Log) Notify(ctx context.Context, n store.Notification) error {
	slog.InfoContext(ctx, "notify: dispatch",
		"recipient", n.RecipientID,
		"title", n.Title,
		"message", n.Message,
	)
	return nil
}

func (Log) Record(ctx context.Context, action, actorID, detail string) error {
	slog.InfoContext(ctx, "audit: record",
		"action", action,
		"actor", actorID,
		"detail", detail,
	)
	return nil
}
