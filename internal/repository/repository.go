package repository

import (
	"context"
	"iter"

	"github.com/mr1hm/go-alert-workflow/internal/activity"
	"github.com/mr1hm/go-alert-workflow/internal/models"
)

// Store is the persistence boundary of the engine. A committed write is
// durable before the call returns.
type Store interface {
	// CommitAlert persists the alert state together with the audit entry
	// describing the transition, atomically. Either both are durable or
	// neither is.
	CommitAlert(ctx context.Context, alert *models.Alert, entry *models.ActivityLogEntry) error

	// RecordActivity persists a standalone audit entry (system-wide entries
	// with no alert attached).
	RecordActivity(ctx context.Context, entry *models.ActivityLogEntry) error

	// LoadAlerts returns every stored alert, for registry hydration at
	// startup.
	LoadAlerts(ctx context.Context) ([]models.Alert, error)

	// QueryActivity returns the audit entries matching f in chronological
	// order, ties broken by insertion order.
	QueryActivity(ctx context.Context, f activity.Filter) (iter.Seq[models.ActivityLogEntry], error)

	Close() error
}
