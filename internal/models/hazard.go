package models

import "strings"

// HazardType classifies the hazard an alert warns about. Informational only;
// it does not affect the workflow.
type HazardType string

const (
	HazardFlood      HazardType = "flood"
	HazardHeatwave   HazardType = "heatwave"
	HazardStorm      HazardType = "storm"
	HazardDrought    HazardType = "drought"
	HazardEarthquake HazardType = "earthquake"
	HazardHeavyRain  HazardType = "heavy_rain"
	HazardColdWave   HazardType = "cold_wave"
	HazardWind       HazardType = "wind"
	HazardOther      HazardType = "other"
)

func (h HazardType) Valid() bool {
	switch h {
	case HazardFlood, HazardHeatwave, HazardStorm, HazardDrought,
		HazardEarthquake, HazardHeavyRain, HazardColdWave, HazardWind, HazardOther:
		return true
	default:
		return false
	}
}

// ParseHazardType maps a wire spelling to the canonical hazard type,
// accepting the camelCase variants some feeds use. Returns "" for unknown
// input.
func ParseHazardType(s string) HazardType {
	switch strings.ToLower(s) {
	case "flood":
		return HazardFlood
	case "heatwave":
		return HazardHeatwave
	case "storm":
		return HazardStorm
	case "drought":
		return HazardDrought
	case "earthquake":
		return HazardEarthquake
	case "heavy_rain", "heavyrain":
		return HazardHeavyRain
	case "cold_wave", "coldwave":
		return HazardColdWave
	case "wind":
		return HazardWind
	case "other":
		return HazardOther
	default:
		return ""
	}
}
