// Package registry owns the canonical alert collection and enforces the
// alert lifecycle: draft → issued, with cancellation possible from either
// state. Every successful transition is committed to the store together with
// its audit entry before the in-memory state changes, and notifications go
// out only after the per-alert lock is released.
package registry

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-alert-workflow/internal/activity"
	"github.com/mr1hm/go-alert-workflow/internal/models"
	"github.com/mr1hm/go-alert-workflow/internal/notify"
	"github.com/mr1hm/go-alert-workflow/internal/repository"
	"github.com/mr1hm/go-alert-workflow/internal/workflow"
)

// CreateInput is the caller-supplied draft of a new alert.
type CreateInput struct {
	HazardType            models.HazardType
	Zones                 []models.Zone
	ValidFrom             time.Time
	ValidTo               time.Time
	Descriptions          models.Descriptions
	SectorRecommendations map[models.Role]string
}

// ListFilter selects alerts. Zero fields match everything.
type ListFilter struct {
	Status models.AlertStatus
	Level  models.Severity
}

// entry pairs the mutation lock of one alert with its published snapshot.
// Snapshots are immutable once stored; mutations build a fresh clone, commit
// it, then swap the pointer, so readers never see a half-written alert.
type entry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[models.Alert]
}

// Registry is the aggregate owner of all alerts and their audit trail.
type Registry struct {
	store    repository.Store
	notifier notify.Notifier
	now      func() time.Time

	mu     sync.RWMutex
	alerts map[string]*entry
}

func NewRegistry(store repository.Store, notifier notify.Notifier) *Registry {
	return &Registry{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		alerts:   make(map[string]*entry),
	}
}

// Load hydrates the registry from the store. Called once at startup, before
// the registry is shared.
func (r *Registry) Load(ctx context.Context) error {
	alerts, err := r.store.LoadAlerts(ctx)
	if err != nil {
		return &workflow.StorageError{Op: "load", Err: err}
	}

	r.mu.Lock()
	for i := range alerts {
		e := &entry{}
		e.snapshot.Store(alerts[i].Clone())
		r.alerts[alerts[i].ID] = e
	}
	r.mu.Unlock()

	started := newLogEntry(r.now(), "", "", models.ActionStarted,
		fmt.Sprintf("registry hydrated with %d alert(s)", len(alerts)))
	if err := r.store.RecordActivity(ctx, started); err != nil {
		return &workflow.StorageError{Op: "record startup", Err: err}
	}

	slog.Info("registry hydrated", "alerts", len(alerts))
	return nil
}

// Create validates the draft and registers it. Ids are assigned here and
// never reused. Only the issuer role may create alerts.
func (r *Registry) Create(ctx context.Context, input CreateInput, actor models.Role) (*models.Alert, error) {
	if !actor.Valid() {
		return nil, workflow.Validationf("unknown role %q", string(actor))
	}
	if actor != models.RoleIssuer {
		return nil, workflow.Violationf("role %s cannot create alerts", actor)
	}
	if !input.HazardType.Valid() {
		return nil, workflow.Validationf("unknown hazard type %q", string(input.HazardType))
	}
	if len(input.Zones) == 0 {
		return nil, workflow.Validationf("alert must cover at least one zone")
	}
	for _, z := range input.Zones {
		if z.Name == "" {
			return nil, workflow.Validationf("zone name must not be empty")
		}
		if !z.Severity.Valid() {
			return nil, workflow.Validationf("unknown severity %q for zone %s", string(z.Severity), z.Name)
		}
	}
	if input.ValidTo.Before(input.ValidFrom) {
		return nil, workflow.Validationf("valid_from must not be after valid_to")
	}
	for role := range input.SectorRecommendations {
		if !role.Valid() {
			return nil, workflow.Validationf("unknown role %q in recommendations", string(role))
		}
	}

	agg, err := models.AggregateZones(input.Zones)
	if err != nil {
		return nil, workflow.Validationf("aggregate zones: %v", err)
	}

	// Copy zones and recommendations so the caller's retained references
	// can never reach the published snapshot.
	var recommendations map[models.Role]string
	if input.SectorRecommendations != nil {
		recommendations = make(map[models.Role]string, len(input.SectorRecommendations))
		for role, text := range input.SectorRecommendations {
			recommendations[role] = text
		}
	}

	now := r.now()
	alert := &models.Alert{
		ID:                    uuid.NewString(),
		HazardType:            input.HazardType,
		Zones:                 append([]models.Zone(nil), input.Zones...),
		EffectiveLevel:        agg.Level,
		IsMulti:               agg.IsMulti,
		Status:                models.AlertStatusDraft,
		ValidFrom:             input.ValidFrom,
		ValidTo:               input.ValidTo,
		Descriptions:          input.Descriptions,
		SectorRecommendations: recommendations,
		CreatedBy:             actor,
		CreatedAt:             now,
	}

	logEntry := newLogEntry(now, alert.ID, actor, models.ActionCreated,
		fmt.Sprintf("%s alert drafted for %d zone(s), level %s", alert.HazardType, len(alert.Zones), alert.EffectiveLevel))
	if err := r.store.CommitAlert(ctx, alert, logEntry); err != nil {
		return nil, &workflow.StorageError{Op: "commit create", Err: err}
	}

	e := &entry{}
	e.snapshot.Store(alert)

	r.mu.Lock()
	r.alerts[alert.ID] = e
	r.mu.Unlock()

	return alert.Clone(), nil
}

// Issue moves a draft to issued: the effective level is frozen from the
// zones, one pending response is created per responder role, and the
// notification port is invoked once with the full snapshot.
func (r *Registry) Issue(ctx context.Context, id string, actor models.Role) (*models.Alert, error) {
	if actor != models.RoleIssuer {
		return nil, workflow.Violationf("role %s cannot issue alerts", actor)
	}

	alert, err := r.mutate(ctx, id, actor, models.ActionIssued, func(work *models.Alert, now time.Time) (string, error) {
		if work.Status != models.AlertStatusDraft {
			return "", workflow.Violationf("alert %s is %s, only drafts can be issued", id, work.Status)
		}

		agg, err := models.AggregateZones(work.Zones)
		if err != nil {
			return "", workflow.Validationf("aggregate zones: %v", err)
		}
		work.EffectiveLevel = agg.Level
		work.IsMulti = agg.IsMulti
		work.Status = models.AlertStatusIssued
		issueTime := now
		work.IssueTime = &issueTime
		work.SectorResponses = workflow.NewResponses(now)

		return fmt.Sprintf("issued at level %s to %d sector(s)", work.EffectiveLevel, len(work.SectorResponses)), nil
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Notify(notify.Event{Kind: notify.EventIssued, Alert: alert.Clone()})
	return alert, nil
}

// Cancel retires a draft or issued alert. All sector responses freeze in
// their current state.
func (r *Registry) Cancel(ctx context.Context, id string, actor models.Role) (*models.Alert, error) {
	if actor != models.RoleIssuer {
		return nil, workflow.Violationf("role %s cannot cancel alerts", actor)
	}

	alert, err := r.mutate(ctx, id, actor, models.ActionCancelled, func(work *models.Alert, now time.Time) (string, error) {
		if work.Status == models.AlertStatusCancelled {
			return "", workflow.Violationf("alert %s is already cancelled", id)
		}
		work.Status = models.AlertStatusCancelled
		return "cancelled, sector responses frozen", nil
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Notify(notify.Event{Kind: notify.EventCancelled, Alert: alert.Clone()})
	return alert, nil
}

// Respond advances one sector's response on an issued alert. The actor must
// hold the responding role.
func (r *Registry) Respond(ctx context.Context, id string, role models.Role, newStatus models.ResponseStatus, notes string, actor models.Role) (*models.SectorResponse, error) {
	if !role.Valid() {
		return nil, workflow.Validationf("unknown role %q", string(role))
	}
	if !actor.Valid() {
		return nil, workflow.Validationf("unknown actor role %q", string(actor))
	}

	var response *models.SectorResponse
	_, err := r.mutate(ctx, id, actor, models.ActionResponded, func(work *models.Alert, now time.Time) (string, error) {
		if work.Status != models.AlertStatusIssued {
			return "", workflow.Violationf("alert %s is %s, responses are only accepted while issued", id, work.Status)
		}

		resp := work.Response(role)
		if resp == nil {
			return "", workflow.Violationf("no sector response tracked for role %s", role)
		}

		from := resp.Status
		if err := workflow.AdvanceResponse(resp, actor, newStatus, notes, now); err != nil {
			return "", err
		}
		response = resp

		return fmt.Sprintf("%s moved from %s to %s", role, from, newStatus), nil
	})
	if err != nil {
		return nil, err
	}

	resp := *response
	return &resp, nil
}

// Recompute re-derives the effective level from the current zones. Only
// drafts may be recomputed: the level of an issued alert is frozen so the
// audit trail stays meaningful.
func (r *Registry) Recompute(ctx context.Context, id string, actor models.Role) (*models.Alert, error) {
	if actor != models.RoleIssuer {
		return nil, workflow.Violationf("role %s cannot recompute alerts", actor)
	}

	return r.mutate(ctx, id, actor, models.ActionRecomputed, func(work *models.Alert, now time.Time) (string, error) {
		if work.Status != models.AlertStatusDraft {
			return "", workflow.Violationf("alert %s is %s, levels are frozen after issue", id, work.Status)
		}

		agg, err := models.AggregateZones(work.Zones)
		if err != nil {
			return "", workflow.Validationf("aggregate zones: %v", err)
		}
		work.EffectiveLevel = agg.Level
		work.IsMulti = agg.IsMulti

		return fmt.Sprintf("level recomputed to %s", work.EffectiveLevel), nil
	})
}

// mutate runs one atomic transition on the alert: per-alert lock, apply on a
// clone, commit clone plus audit entry, publish the clone. A failed commit
// leaves the published state untouched. No notification happens in here.
func (r *Registry) mutate(ctx context.Context, id string, actor models.Role, action models.ActivityAction, apply func(work *models.Alert, now time.Time) (string, error)) (*models.Alert, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := r.now()
	work := e.snapshot.Load().Clone()

	details, err := apply(work, now)
	if err != nil {
		return nil, err
	}

	logEntry := newLogEntry(now, id, actor, action, details)
	if err := r.store.CommitAlert(ctx, work, logEntry); err != nil {
		return nil, &workflow.StorageError{Op: "commit " + string(action), Err: err}
	}

	e.snapshot.Store(work)
	return work.Clone(), nil
}

// Get returns a snapshot of one alert.
func (r *Registry) Get(id string) (*models.Alert, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot.Load().Clone(), nil
}

// List returns snapshots of the alerts matching the filter, newest first.
func (r *Registry) List(filter ListFilter) []*models.Alert {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.alerts))
	for _, e := range r.alerts {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var alerts []*models.Alert
	for _, e := range entries {
		a := e.snapshot.Load()
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Level != "" && a.EffectiveLevel != filter.Level {
			continue
		}
		alerts = append(alerts, a.Clone())
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts
}

// QueryActivity returns the audit entries matching f, chronologically.
func (r *Registry) QueryActivity(ctx context.Context, f activity.Filter) (iter.Seq[models.ActivityLogEntry], error) {
	seq, err := r.store.QueryActivity(ctx, f)
	if err != nil {
		return nil, &workflow.StorageError{Op: "query activity", Err: err}
	}
	return seq, nil
}

func (r *Registry) entry(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.alerts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &workflow.NotFoundError{ID: id}
	}
	return e, nil
}

func newLogEntry(now time.Time, alertID string, actor models.Role, action models.ActivityAction, details string) *models.ActivityLogEntry {
	return &models.ActivityLogEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Role:      actor,
		AlertID:   alertID,
		Action:    action,
		Details:   details,
	}
}
