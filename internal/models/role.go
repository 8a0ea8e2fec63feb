package models

import "strings"

// Role identifies a responding sector. Meteorology is the issuer role; the
// remaining roles are responders and each gets a SectorResponse when an alert
// is issued.
type Role string

const (
	RoleMeteorology    Role = "meteorology"
	RoleCivilDefense   Role = "civil_defense"
	RoleAgriculture    Role = "agriculture"
	RoleWaterAuthority Role = "water_authority"
	RoleEnvironment    Role = "environment"
	RoleSecurity       Role = "security"
)

// RoleIssuer is the only role permitted to create and issue alerts.
const RoleIssuer = RoleMeteorology

func (r Role) Valid() bool {
	switch r {
	case RoleMeteorology, RoleCivilDefense, RoleAgriculture,
		RoleWaterAuthority, RoleEnvironment, RoleSecurity:
		return true
	default:
		return false
	}
}

func (r Role) IsResponder() bool {
	return r.Valid() && r != RoleIssuer
}

// ResponderRoles returns the closed set of roles that must acknowledge an
// issued alert, in a fixed order.
func ResponderRoles() []Role {
	return []Role{
		RoleCivilDefense,
		RoleAgriculture,
		RoleWaterAuthority,
		RoleEnvironment,
		RoleSecurity,
	}
}

// ParseRole maps a wire spelling to the canonical role, accepting the
// camelCase variants. Returns "" for unknown input.
func ParseRole(s string) Role {
	switch strings.ToLower(s) {
	case "meteorology":
		return RoleMeteorology
	case "civil_defense", "civildefense":
		return RoleCivilDefense
	case "agriculture":
		return RoleAgriculture
	case "water_authority", "waterauthority", "water":
		return RoleWaterAuthority
	case "environment":
		return RoleEnvironment
	case "security":
		return RoleSecurity
	default:
		return ""
	}
}
