// Package activity is the append-only audit trail of the workflow engine.
package activity

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/mr1hm/go-alert-workflow/internal/models"
)

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	AlertID string
	Role    models.Role
	Since   *time.Time
}

// Matches reports whether entry satisfies every set field of the filter.
func (f Filter) Matches(entry *models.ActivityLogEntry) bool {
	if f.AlertID != "" && entry.AlertID != f.AlertID {
		return false
	}
	if f.Role != "" && entry.Role != f.Role {
		return false
	}
	if f.Since != nil && entry.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}

// Log is an append-only sequence of audit entries, ordered by timestamp with
// ties broken by insertion order. Entries are never mutated or removed.
type Log struct {
	mu      sync.RWMutex
	entries []models.ActivityLogEntry
}

func NewLog() *Log {
	return &Log{}
}

// Record appends one entry. Arrival order need not match timestamp order;
// Query sorts, keeping insertion order for equal timestamps.
func (l *Log) Record(entry models.ActivityLogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Query returns a lazy, restartable sequence of the entries matching f, in
// chronological order. The sequence iterates over a snapshot taken at call
// time; entries appended later are not included.
func (l *Log) Query(f Filter) iter.Seq[models.ActivityLogEntry] {
	l.mu.RLock()
	snapshot := make([]models.ActivityLogEntry, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Timestamp.Before(snapshot[j].Timestamp)
	})

	return func(yield func(models.ActivityLogEntry) bool) {
		for i := range snapshot {
			if !f.Matches(&snapshot[i]) {
				continue
			}
			if !yield(snapshot[i]) {
				return
			}
		}
	}
}
