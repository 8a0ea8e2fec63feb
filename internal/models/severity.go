package models

import "strings"

// Severity is the warning level assigned to a zone or derived for an alert.
// Severities are totally ordered: yellow < orange < red.
type Severity string

const (
	SeverityYellow Severity = "yellow"
	SeverityOrange Severity = "orange"
	SeverityRed    Severity = "red"
)

// Rank returns the position of s in the severity ordering, higher is more
// severe. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityYellow:
		return 1
	case SeverityOrange:
		return 2
	case SeverityRed:
		return 3
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return s.Rank() > other.Rank()
}

// ParseSeverity maps a wire/display spelling to the canonical severity.
// Returns "" for unknown input.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "yellow":
		return SeverityYellow
	case "orange":
		return SeverityOrange
	case "red":
		return SeverityRed
	default:
		return ""
	}
}
