package dataset

import (
	"math"
	"time"

	"capfactor/internal/types"
)

// FeatureColumns returns the model inputs for a plant type, in order.
func FeatureColumns(plantType types.PlantType) []string {
	temporal := []string{types.ColYear, types.ColMonth, types.ColDay, types.ColHour, types.ColWeekday}
	switch plantType {
	case types.PlantSolar:
		return append([]string{
			types.ColTemperature, types.ColCloudCover, types.ColIrradiance, types.ColAltitude,
		}, temporal...)
	default:
		return append([]string{
			types.ColWindSpeed, types.ColWindGusts, types.ColWindDirection, types.ColAltitude,
			types.ColRoughness, types.ColPotentialIndex,
		}, temporal...)
	}
}

// FromEnriched lays records out as a frame. withPlantColumns adds the
// capacity factor and generation columns, which only plant records carry.
func FromEnriched(records []types.EnrichedRecord, plantType types.PlantType, withPlantColumns bool) *Frame {
	n := len(records)
	f := NewFrame(n)

	text := func(name string, get func(r types.EnrichedRecord) string) {
		col := make([]string, n)
		for i, r := range records {
			col[i] = get(r)
		}
		_ = f.SetText(name, col)
	}
	num := func(name string, get func(r types.EnrichedRecord) float64) {
		col := make([]float64, n)
		for i, r := range records {
			col[i] = get(r)
		}
		_ = f.SetFloat(name, col)
	}

	text(types.ColState, func(r types.EnrichedRecord) string { return r.State })
	text(types.ColName, func(r types.EnrichedRecord) string { return r.Name })
	text(types.ColInstant, func(r types.EnrichedRecord) string { return r.Instant.UTC().Format(types.InstantLayout) })
	num(types.ColLatitude, func(r types.EnrichedRecord) float64 { return r.Coordinate.Lat })
	num(types.ColLongitude, func(r types.EnrichedRecord) float64 { return r.Coordinate.Lon })

	if plantType == types.PlantSolar {
		num(types.ColTemperature, func(r types.EnrichedRecord) float64 { return r.Observation.TemperatureC })
		num(types.ColCloudCover, func(r types.EnrichedRecord) float64 { return r.Observation.CloudCoverPct })
		num(types.ColIrradiance, func(r types.EnrichedRecord) float64 { return r.Observation.IrradianceWm2 })
		num(types.ColAltitude, func(r types.EnrichedRecord) float64 { return orNaN(r.Observation.Altitude) })
	} else {
		num(types.ColWindSpeed, func(r types.EnrichedRecord) float64 { return r.Observation.WindSpeed10m })
		num(types.ColWindGusts, func(r types.EnrichedRecord) float64 { return r.Observation.WindGusts10m })
		num(types.ColWindDirection, func(r types.EnrichedRecord) float64 { return r.Observation.WindDirection10m })
		num(types.ColAltitude, func(r types.EnrichedRecord) float64 { return orNaN(r.Observation.Altitude) })
		num(types.ColRoughness, func(r types.EnrichedRecord) float64 {
			if r.Potential == nil {
				return math.NaN()
			}
			return r.Potential.Roughness
		})
		num(types.ColPotentialIndex, func(r types.EnrichedRecord) float64 {
			if r.Potential == nil {
				return math.NaN()
			}
			return orNaN(r.Potential.Index)
		})
		text(types.ColPotentialClass, func(r types.EnrichedRecord) string {
			if r.Potential == nil {
				return ""
			}
			return string(r.Potential.Class)
		})
	}

	if withPlantColumns {
		num(types.ColCapacityFactor, func(r types.EnrichedRecord) float64 { return orNaN(r.CapacityFactor) })
		num(types.ColScheduledGeneration, func(r types.EnrichedRecord) float64 { return orNaN(r.ScheduledGeneration) })
		num(types.ColVerifiedGeneration, func(r types.EnrichedRecord) float64 { return orNaN(r.VerifiedGeneration) })
		num(types.ColInstalledCapacity, func(r types.EnrichedRecord) float64 { return orNaN(r.InstalledCapacity) })
	}
	return f
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// instantLayouts are accepted when parsing the instant column.
var instantLayouts = []string{types.InstantLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseInstant parses an instant cell as UTC.
func ParseInstant(s string) (time.Time, error) {
	var err error
	for _, layout := range instantLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
