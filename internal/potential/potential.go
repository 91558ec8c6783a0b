// Package potential derives the wind potential index of an observation from
// wind speed, site altitude and a latitude-band terrain roughness.
package potential

import (
	"math"

	"capfactor/internal/types"
)

// Classification thresholds on the potential index.
const (
	HighThreshold   = 5000.0
	MediumThreshold = 2500.0
)

const (
	minRoughness      = 0.1
	minAltitudeFactor = 1.01
)

// Roughness approximates terrain roughness from latitude alone: 0.2 near the
// equator (|lat| < 5), 0.5 north of 10°, 0.3 elsewhere.
func Roughness(lat float64) float64 {
	switch {
	case math.Abs(lat) < 5:
		return 0.2
	case lat > 10:
		return 0.5
	default:
		return 0.3
	}
}

// Index computes (v³ / max(roughness, 0.1)) · ln(max(1 + altitude/10, 1.01)).
// It reports false when wind speed or altitude is missing.
func Index(windSpeed, altitude *float64, roughness float64) (float64, bool) {
	if windSpeed == nil || altitude == nil {
		return 0, false
	}
	v := *windSpeed
	altitudeFactor := math.Log(math.Max(1+*altitude/10, minAltitudeFactor))
	return (v * v * v / math.Max(roughness, minRoughness)) * altitudeFactor, true
}

// Classify bands an index into High, Medium or Low.
func Classify(index float64) types.PotentialClass {
	switch {
	case index >= HighThreshold:
		return types.PotentialHigh
	case index >= MediumThreshold:
		return types.PotentialMedium
	default:
		return types.PotentialLow
	}
}

// Calculate returns the roughness, index and class for a site. When the index
// is undefined only Roughness is set.
func Calculate(lat float64, windSpeed, altitude *float64) types.WindPotential {
	p := types.WindPotential{Roughness: Roughness(lat)}
	index, ok := Index(windSpeed, altitude, p.Roughness)
	if !ok {
		return p
	}
	p.Index = &index
	p.Class = Classify(index)
	return p
}

// Round2 rounds half away from zero to two decimals, the precision of the
// wind columns in the dataset artifacts.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
