package models

import "time"

// ActivityAction names a workflow transition recorded in the audit trail.
type ActivityAction string

const (
	ActionCreated    ActivityAction = "created"
	ActionIssued     ActivityAction = "issued"
	ActionCancelled  ActivityAction = "cancelled"
	ActionResponded  ActivityAction = "responded"
	ActionRecomputed ActivityAction = "recomputed"

	// ActionStarted is a system-wide entry (no alert attached) recorded when
	// the engine hydrates its registry.
	ActionStarted ActivityAction = "started"
)

// ActivityLogEntry is one immutable audit record. AlertID is empty for
// system-wide entries. Entries are never edited or deleted.
type ActivityLogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Role      Role           `json:"role"`
	AlertID   string         `json:"alert_id,omitempty"`
	Action    ActivityAction `json:"action"`
	Details   string         `json:"details,omitempty"`
}
