// Package workflow holds the sector-response state machine and the typed
// errors shared by the alert lifecycle.
package workflow

import (
	"time"

	"github.com/mr1hm/go-alert-workflow/internal/models"
)

// transitions is the full set of permitted response moves. A sector must
// acknowledge before working and cannot leave completed; in particular
// pending→completed is not allowed.
var transitions = map[models.ResponseStatus]models.ResponseStatus{
	models.ResponsePending:      models.ResponseAcknowledged,
	models.ResponseAcknowledged: models.ResponseInProgress,
	models.ResponseInProgress:   models.ResponseCompleted,
}

// CanTransition reports whether a sector response may move from one status
// to another.
func CanTransition(from, to models.ResponseStatus) bool {
	return transitions[from] == to
}

// AdvanceResponse validates and applies one transition on resp. The actor
// must hold the response's role and the move must follow the
// pending→acknowledged→in_progress→completed chain. On success resp is
// updated in place with the new status, the transition time, and any notes.
func AdvanceResponse(resp *models.SectorResponse, actor models.Role, to models.ResponseStatus, notes string, now time.Time) error {
	if !to.Valid() {
		return Validationf("unknown response status %q", string(to))
	}
	if actor != resp.Role {
		return Violationf("role %s cannot update the %s response", actor, resp.Role)
	}
	if resp.Status == models.ResponseCompleted {
		return Violationf("%s response is already completed", resp.Role)
	}
	if !CanTransition(resp.Status, to) {
		return Violationf("%s response cannot move from %s to %s", resp.Role, resp.Status, to)
	}

	resp.Status = to
	resp.UpdatedAt = now
	if notes != "" {
		resp.Notes = notes
	}
	return nil
}

// NewResponses builds the initial pending response set for an issued alert,
// one per responder role. The issuer role never gets a response.
func NewResponses(now time.Time) map[models.Role]*models.SectorResponse {
	responses := make(map[models.Role]*models.SectorResponse)
	for _, role := range models.ResponderRoles() {
		responses[role] = &models.SectorResponse{
			Role:      role,
			Status:    models.ResponsePending,
			UpdatedAt: now,
		}
	}
	return responses
}
