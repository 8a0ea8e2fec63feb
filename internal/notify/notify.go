// Package notify is the outbound notification port of the workflow engine.
// Delivery is fire-and-forget: the registry hands over an alert snapshot and
// moves on; transport concerns (push/SMS/email) live behind subscribers.
package notify

import "github.com/mr1hm/go-alert-workflow/internal/models"

// EventKind names the lifecycle change a notification reports.
type EventKind string

const (
	EventIssued    EventKind = "issued"
	EventCancelled EventKind = "cancelled"
)

// Event carries a deep-copied alert snapshot; subscribers may hold it freely.
type Event struct {
	Kind  EventKind
	Alert *models.Alert
}

// Notifier is what the registry calls on state change, once per alert
// transition.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event Event)

func (f NotifierFunc) Notify(event Event) {
	f(event)
}
