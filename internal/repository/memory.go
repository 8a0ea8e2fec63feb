package repository

import (
	"context"
	"iter"
	"sync"

	"github.com/mr1hm/go-alert-workflow/internal/activity"
	"github.com/mr1hm/go-alert-workflow/internal/models"
)

// MemoryStore keeps alerts and the audit trail in process memory. Suitable
// for tests and ephemeral deployments; write durability is trivially the
// in-memory append itself.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
	log    *activity.Log
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]*models.Alert),
		log:    activity.NewLog(),
	}
}

func (s *MemoryStore) CommitAlert(ctx context.Context, alert *models.Alert, entry *models.ActivityLogEntry) error {
	s.mu.Lock()
	s.alerts[alert.ID] = alert.Clone()
	s.mu.Unlock()
	s.log.Record(*entry)
	return nil
}

func (s *MemoryStore) RecordActivity(ctx context.Context, entry *models.ActivityLogEntry) error {
	s.log.Record(*entry)
	return nil
}

func (s *MemoryStore) LoadAlerts(ctx context.Context) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		alerts = append(alerts, *a.Clone())
	}
	return alerts, nil
}

func (s *MemoryStore) QueryActivity(ctx context.Context, f activity.Filter) (iter.Seq[models.ActivityLogEntry], error) {
	return s.log.Query(f), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
