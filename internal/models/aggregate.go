package models

import "errors"

// ErrNoZones is returned when aggregation is attempted over an empty zone set.
var ErrNoZones = errors.New("alert has no zones")

// ZoneAggregate is the severity derived for an alert from its zones.
type ZoneAggregate struct {
	Level   Severity `json:"level"`
	IsMulti bool     `json:"is_multi"`
}

// AggregateZones derives the effective severity of a zone set: the maximum
// severity present, and whether more than one distinct severity occurs. A
// single zone is never multi. Pure and deterministic, O(len(zones)).
func AggregateZones(zones []Zone) (ZoneAggregate, error) {
	if len(zones) == 0 {
		return ZoneAggregate{}, ErrNoZones
	}

	agg := ZoneAggregate{Level: zones[0].Severity}
	for _, z := range zones[1:] {
		if z.Severity.MoreSevere(agg.Level) {
			agg.Level = z.Severity
		}
		if z.Severity != zones[0].Severity {
			agg.IsMulti = true
		}
	}
	return agg, nil
}
