package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mr1hm/go-alert-workflow/internal/activity"
	"github.com/mr1hm/go-alert-workflow/internal/models"
	"github.com/mr1hm/go-alert-workflow/internal/notify"
	"github.com/mr1hm/go-alert-workflow/internal/repository"
	"github.com/mr1hm/go-alert-workflow/internal/workflow"
)

// recordingNotifier captures events synchronously for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(event notify.Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// failingStore wraps a store and fails commits on demand.
type failingStore struct {
	repository.Store
	failCommits bool
}

func (s *failingStore) CommitAlert(ctx context.Context, alert *models.Alert, entry *models.ActivityLogEntry) error {
	if s.failCommits {
		return fmt.Errorf("disk full")
	}
	return s.Store.CommitAlert(ctx, alert, entry)
}

func newTestRegistry(t *testing.T) (*Registry, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	return NewRegistry(repository.NewMemoryStore(), notifier), notifier
}

func validInput() CreateInput {
	now := time.Now()
	return CreateInput{
		HazardType: models.HazardFlood,
		Zones: []models.Zone{
			{Name: "north", Severity: models.SeverityYellow},
			{Name: "coast", Severity: models.SeverityRed},
		},
		ValidFrom: now,
		ValidTo:   now.Add(24 * time.Hour),
		Descriptions: models.Descriptions{
			PublicEN: "River levels rising",
		},
	}
}

func mustCreate(t *testing.T, r *Registry) *models.Alert {
	t.Helper()
	alert, err := r.Create(context.Background(), validInput(), models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return alert
}

func mustIssue(t *testing.T, r *Registry, id string) *models.Alert {
	t.Helper()
	alert, err := r.Issue(context.Background(), id, models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return alert
}

func TestCreate_Validation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"no zones", func(in *CreateInput) { in.Zones = nil }},
		{"unknown hazard", func(in *CreateInput) { in.HazardType = "meteor" }},
		{"unknown zone severity", func(in *CreateInput) { in.Zones[0].Severity = "purple" }},
		{"empty zone name", func(in *CreateInput) { in.Zones[0].Name = "" }},
		{"inverted validity window", func(in *CreateInput) { in.ValidTo = in.ValidFrom.Add(-time.Hour) }},
		{"unknown recommendation role", func(in *CreateInput) {
			in.SectorRecommendations = map[models.Role]string{"plumbing": "check pipes"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			_, err := r.Create(ctx, input, models.RoleMeteorology)
			var validation *workflow.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreate_OnlyIssuerRole(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Create(context.Background(), validInput(), models.RoleCivilDefense)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for non-issuer create, got %v", err)
	}
}

func TestCreate_DraftState(t *testing.T) {
	r, notifier := newTestRegistry(t)
	alert := mustCreate(t, r)

	if alert.Status != models.AlertStatusDraft {
		t.Errorf("expected draft, got %s", alert.Status)
	}
	if alert.ID == "" {
		t.Error("expected registry-assigned id")
	}
	if alert.EffectiveLevel != models.SeverityRed || !alert.IsMulti {
		t.Errorf("expected derived level red/multi, got %s/%v", alert.EffectiveLevel, alert.IsMulti)
	}
	if len(alert.SectorResponses) != 0 {
		t.Errorf("draft must have no sector responses, got %d", len(alert.SectorResponses))
	}
	if notifier.count() != 0 {
		t.Errorf("creation must not notify, got %d events", notifier.count())
	}
}

func TestCreate_DoesNotAliasCallerInput(t *testing.T) {
	r, _ := newTestRegistry(t)

	input := validInput()
	input.SectorRecommendations = map[models.Role]string{
		models.RoleCivilDefense: "prepare pumps",
	}

	alert, err := r.Create(context.Background(), input, models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Mutations through the caller's retained references must not reach
	// canonical state.
	input.SectorRecommendations[models.RoleCivilDefense] = "tampered"
	input.SectorRecommendations[models.RoleSecurity] = "injected"
	input.Zones[0].Severity = models.SeverityRed

	got, err := r.Get(alert.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SectorRecommendations[models.RoleCivilDefense] != "prepare pumps" {
		t.Errorf("canonical recommendations mutated through caller's map: %q",
			got.SectorRecommendations[models.RoleCivilDefense])
	}
	if _, ok := got.SectorRecommendations[models.RoleSecurity]; ok {
		t.Error("entry injected into canonical state through caller's map")
	}
	if got.Zones[0].Severity != models.SeverityYellow {
		t.Errorf("canonical zones mutated through caller's slice: %s", got.Zones[0].Severity)
	}
}

func TestIssue_CreatesPendingResponses(t *testing.T) {
	r, notifier := newTestRegistry(t)
	draft := mustCreate(t, r)

	issued := mustIssue(t, r, draft.ID)

	if issued.Status != models.AlertStatusIssued {
		t.Fatalf("expected issued, got %s", issued.Status)
	}
	if issued.IssueTime == nil {
		t.Error("expected issue time to be set")
	}
	if len(issued.SectorResponses) != 5 {
		t.Fatalf("expected 5 sector responses, got %d", len(issued.SectorResponses))
	}
	for role, resp := range issued.SectorResponses {
		if resp.Status != models.ResponsePending {
			t.Errorf("expected %s pending, got %s", role, resp.Status)
		}
	}
	if notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification per issue, got %d", notifier.count())
	}
}

func TestIssue_OnlyFromDraft(t *testing.T) {
	r, _ := newTestRegistry(t)
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	_, err := r.Issue(context.Background(), alert.ID, models.RoleMeteorology)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for double issue, got %v", err)
	}
}

func TestIssue_RoundTripMatchesAggregate(t *testing.T) {
	r, _ := newTestRegistry(t)
	input := validInput()

	draft, err := r.Create(context.Background(), input, models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	mustIssue(t, r, draft.ID)

	got, err := r.Get(draft.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	agg, err := models.AggregateZones(input.Zones)
	if err != nil {
		t.Fatalf("AggregateZones failed: %v", err)
	}
	if got.EffectiveLevel != agg.Level || got.IsMulti != agg.IsMulti {
		t.Errorf("round-trip mismatch: got %s/%v, want %s/%v",
			got.EffectiveLevel, got.IsMulti, agg.Level, agg.IsMulti)
	}
}

func TestRespond_FullChainLogsEachStep(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	steps := []models.ResponseStatus{
		models.ResponseAcknowledged,
		models.ResponseInProgress,
		models.ResponseCompleted,
	}
	for _, to := range steps {
		resp, err := r.Respond(ctx, alert.ID, models.RoleCivilDefense, to, "", models.RoleCivilDefense)
		if err != nil {
			t.Fatalf("respond %s failed: %v", to, err)
		}
		if resp.Status != to {
			t.Errorf("expected %s, got %s", to, resp.Status)
		}
	}

	// create + issue + 3 responds
	entries := collectActivity(t, r, activity.Filter{AlertID: alert.ID})
	if len(entries) != 5 {
		t.Errorf("expected 5 audit entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Errorf("audit entries out of order at %d", i)
		}
	}
}

func TestRespond_NoSkipAndNoAuditOnFailure(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	before := len(collectActivity(t, r, activity.Filter{AlertID: alert.ID}))

	_, err := r.Respond(ctx, alert.ID, models.RoleAgriculture, models.ResponseCompleted, "", models.RoleAgriculture)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for pending->completed, got %v", err)
	}

	after := len(collectActivity(t, r, activity.Filter{AlertID: alert.ID}))
	if after != before {
		t.Errorf("rejected transition must not add audit entries: %d -> %d", before, after)
	}

	got, _ := r.Get(alert.ID)
	if got.Response(models.RoleAgriculture).Status != models.ResponsePending {
		t.Error("rejected transition must not mutate the response")
	}
}

func TestRespond_WrongActor(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	_, err := r.Respond(ctx, alert.ID, models.RoleCivilDefense, models.ResponseAcknowledged, "", models.RoleSecurity)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for wrong actor, got %v", err)
	}
}

func TestRespond_IssuerHasNoResponse(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	_, err := r.Respond(ctx, alert.ID, models.RoleMeteorology, models.ResponseAcknowledged, "", models.RoleMeteorology)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for issuer respond, got %v", err)
	}
}

func TestRespond_RequiresIssuedAlert(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r) // still a draft

	_, err := r.Respond(ctx, alert.ID, models.RoleCivilDefense, models.ResponseAcknowledged, "", models.RoleCivilDefense)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for respond on draft, got %v", err)
	}
}

func TestCancel_FreezesResponses(t *testing.T) {
	r, notifier := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	if _, err := r.Respond(ctx, alert.ID, models.RoleCivilDefense, models.ResponseAcknowledged, "", models.RoleCivilDefense); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	cancelled, err := r.Cancel(ctx, alert.ID, models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != models.AlertStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// Frozen regardless of each response's current state
	_, err = r.Respond(ctx, alert.ID, models.RoleCivilDefense, models.ResponseInProgress, "", models.RoleCivilDefense)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError after cancel, got %v", err)
	}

	// issue + cancel
	if notifier.count() != 2 {
		t.Errorf("expected 2 notifications, got %d", notifier.count())
	}
}

func TestCancel_FromDraft(t *testing.T) {
	r, _ := newTestRegistry(t)
	alert := mustCreate(t, r)

	cancelled, err := r.Cancel(context.Background(), alert.ID, models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Cancel from draft failed: %v", err)
	}
	if cancelled.Status != models.AlertStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	_, err = r.Cancel(context.Background(), alert.ID, models.RoleMeteorology)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for double cancel, got %v", err)
	}
}

func TestRecompute_DraftOnly(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	draft := mustCreate(t, r)

	if _, err := r.Recompute(ctx, draft.ID, models.RoleMeteorology); err != nil {
		t.Fatalf("Recompute on draft failed: %v", err)
	}

	mustIssue(t, r, draft.ID)
	_, err := r.Recompute(ctx, draft.ID, models.RoleMeteorology)
	var violation *workflow.ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ViolationError for recompute after issue, got %v", err)
	}
}

func TestGet_UnknownID(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Get("no-such-alert")
	var notFound *workflow.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	a1 := mustCreate(t, r)
	mustIssue(t, r, a1.ID)

	input := validInput()
	input.Zones = []models.Zone{{Name: "south", Severity: models.SeverityYellow}}
	a2, err := r.Create(ctx, input, models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := r.List(ListFilter{}); len(got) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(got))
	}
	if got := r.List(ListFilter{Status: models.AlertStatusIssued}); len(got) != 1 || got[0].ID != a1.ID {
		t.Errorf("issued filter mismatch: %d alerts", len(got))
	}
	if got := r.List(ListFilter{Level: models.SeverityYellow}); len(got) != 1 || got[0].ID != a2.ID {
		t.Errorf("level filter mismatch: %d alerts", len(got))
	}
}

func TestStorageFailure_LeavesStateUntouched(t *testing.T) {
	notifier := &recordingNotifier{}
	store := &failingStore{Store: repository.NewMemoryStore()}
	r := NewRegistry(store, notifier)

	alert := mustCreate(t, r)

	store.failCommits = true
	_, err := r.Issue(context.Background(), alert.ID, models.RoleMeteorology)

	var storageErr *workflow.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	got, getErr := r.Get(alert.ID)
	if getErr != nil {
		t.Fatalf("Get failed: %v", getErr)
	}
	if got.Status != models.AlertStatusDraft {
		t.Errorf("failed commit must not change state, got %s", got.Status)
	}
	if notifier.count() != 0 {
		t.Errorf("failed commit must not notify, got %d events", notifier.count())
	}

	// Recovers once the store does
	store.failCommits = false
	mustIssue(t, r, alert.ID)
}

func TestConcurrentRespond_ExactlyOneWinner(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	alert := mustCreate(t, r)
	mustIssue(t, r, alert.ID)

	const racers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, violations int

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Respond(ctx, alert.ID, models.RoleSecurity, models.ResponseAcknowledged, "", models.RoleSecurity)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			default:
				var violation *workflow.ViolationError
				if errors.As(err, &violation) {
					violations++
				} else {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}
	if violations != racers-1 {
		t.Errorf("expected %d violations, got %d", racers-1, violations)
	}

	// Exactly one audit entry for the race: create + issue + 1 respond
	entries := collectActivity(t, r, activity.Filter{AlertID: alert.ID})
	if len(entries) != 3 {
		t.Errorf("expected 3 audit entries, got %d", len(entries))
	}
}

func TestConcurrentMutations_AcrossAlerts(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	const alerts = 10
	ids := make([]string, alerts)
	for i := range ids {
		a := mustCreate(t, r)
		mustIssue(t, r, a.ID)
		ids[i] = a.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for _, to := range []models.ResponseStatus{
				models.ResponseAcknowledged,
				models.ResponseInProgress,
				models.ResponseCompleted,
			} {
				if _, err := r.Respond(ctx, id, models.RoleEnvironment, to, "", models.RoleEnvironment); err != nil {
					t.Errorf("respond on %s failed: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Response(models.RoleEnvironment).Status != models.ResponseCompleted {
			t.Errorf("alert %s environment response not completed", id)
		}
	}
}

func TestLoad_Hydrates(t *testing.T) {
	store := repository.NewMemoryStore()
	notifier := &recordingNotifier{}

	first := NewRegistry(store, notifier)
	alert, err := first.Create(context.Background(), validInput(), models.RoleMeteorology)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := first.Issue(context.Background(), alert.ID, models.RoleMeteorology); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	second := NewRegistry(store, notifier)
	if err := second.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, err := second.Get(alert.ID)
	if err != nil {
		t.Fatalf("Get after hydration failed: %v", err)
	}
	if got.Status != models.AlertStatusIssued {
		t.Errorf("expected issued after hydration, got %s", got.Status)
	}
	if len(got.SectorResponses) != 5 {
		t.Errorf("expected 5 responses after hydration, got %d", len(got.SectorResponses))
	}

	// Hydration leaves a system-wide audit entry with no alert attached
	var started []models.ActivityLogEntry
	for _, e := range collectActivity(t, second, activity.Filter{}) {
		if e.Action == models.ActionStarted {
			started = append(started, e)
		}
	}
	if len(started) != 1 {
		t.Fatalf("expected 1 startup entry, got %d", len(started))
	}
	if started[0].AlertID != "" {
		t.Errorf("startup entry must be system-wide, got alert %q", started[0].AlertID)
	}
}

func collectActivity(t *testing.T, r *Registry, f activity.Filter) []models.ActivityLogEntry {
	t.Helper()
	seq, err := r.QueryActivity(context.Background(), f)
	if err != nil {
		t.Fatalf("QueryActivity failed: %v", err)
	}
	var entries []models.ActivityLogEntry
	for e := range seq {
		entries = append(entries, e)
	}
	return entries
}
