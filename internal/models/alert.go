package models

import (
	"strings"
	"time"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusDraft     AlertStatus = "draft"
	AlertStatusIssued    AlertStatus = "issued"
	AlertStatusCancelled AlertStatus = "cancelled"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusDraft, AlertStatusIssued, AlertStatusCancelled:
		return true
	default:
		return false
	}
}

func ParseAlertStatus(s string) AlertStatus {
	switch strings.ToLower(s) {
	case "draft":
		return AlertStatusDraft
	case "issued":
		return AlertStatusIssued
	case "cancelled":
		return AlertStatusCancelled
	default:
		return ""
	}
}

// ResponseStatus is the acknowledgment state of one sector's response.
type ResponseStatus string

const (
	ResponsePending      ResponseStatus = "pending"
	ResponseAcknowledged ResponseStatus = "acknowledged"
	ResponseInProgress   ResponseStatus = "in_progress"
	ResponseCompleted    ResponseStatus = "completed"
)

func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponsePending, ResponseAcknowledged, ResponseInProgress, ResponseCompleted:
		return true
	default:
		return false
	}
}

// ParseResponseStatus maps a wire spelling to the canonical status, accepting
// the in-progress/inProgress variants some clients send. Returns "" for
// unknown input.
func ParseResponseStatus(s string) ResponseStatus {
	switch strings.ToLower(s) {
	case "pending":
		return ResponsePending
	case "acknowledged":
		return ResponseAcknowledged
	case "in_progress", "in-progress", "inprogress":
		return ResponseInProgress
	case "completed":
		return ResponseCompleted
	default:
		return ""
	}
}

// Zone is a named geographic area with its own severity. Zones are immutable
// once attached to an alert version.
type Zone struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
}

// Descriptions carries the bilingual alert texts. The engine treats all four
// fields as opaque strings.
type Descriptions struct {
	TechnicalEN    string `json:"technical_en"`
	TechnicalLocal string `json:"technical_local"`
	PublicEN       string `json:"public_en"`
	PublicLocal    string `json:"public_local"`
}

// SectorResponse tracks one responder role's progress on an issued alert. It
// lives inside its parent Alert and has no identity of its own.
type SectorResponse struct {
	Role      Role           `json:"role"`
	Status    ResponseStatus `json:"status"`
	Notes     string         `json:"notes,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Alert is the aggregate root of the workflow. EffectiveLevel and IsMulti are
// derived from Zones and are never set directly.
type Alert struct {
	ID                    string                   `json:"id"`
	HazardType            HazardType               `json:"hazard_type"`
	Zones                 []Zone                   `json:"zones"`
	EffectiveLevel        Severity                 `json:"effective_level"`
	IsMulti               bool                     `json:"is_multi"`
	Status                AlertStatus              `json:"status"`
	IssueTime             *time.Time               `json:"issue_time,omitempty"`
	ValidFrom             time.Time                `json:"valid_from"`
	ValidTo               time.Time                `json:"valid_to"`
	Descriptions          Descriptions             `json:"descriptions"`
	SectorRecommendations map[Role]string          `json:"sector_recommendations,omitempty"`
	SectorResponses       map[Role]*SectorResponse `json:"sector_responses,omitempty"`
	CreatedBy             Role                     `json:"created_by"`
	CreatedAt             time.Time                `json:"created_at"`
}

// Response returns the sector response for role, or nil if none exists.
func (a *Alert) Response(role Role) *SectorResponse {
	if a.SectorResponses == nil {
		return nil
	}
	return a.SectorResponses[role]
}

// Clone returns a deep copy so callers never share mutable state with the
// registry's canonical alert.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a

	if a.IssueTime != nil {
		t := *a.IssueTime
		cloned.IssueTime = &t
	}

	cloned.Zones = make([]Zone, len(a.Zones))
	copy(cloned.Zones, a.Zones)

	if a.SectorRecommendations != nil {
		cloned.SectorRecommendations = make(map[Role]string, len(a.SectorRecommendations))
		for r, text := range a.SectorRecommendations {
			cloned.SectorRecommendations[r] = text
		}
	}

	if a.SectorResponses != nil {
		cloned.SectorResponses = make(map[Role]*SectorResponse, len(a.SectorResponses))
		for r, resp := range a.SectorResponses {
			c := *resp
			cloned.SectorResponses[r] = &c
		}
	}

	return &cloned
}
