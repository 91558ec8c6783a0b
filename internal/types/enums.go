package types

import (
	"fmt"
	"strings"
)

// PlantType identifies the generation technology of a plant and selects the
// weather profile, derived fields and feature columns used for it.
type PlantType string

const (
	PlantWind  PlantType = "wind"
	PlantSolar PlantType = "solar"
)

// SourceFilter returns the value of the source table's plant-type column for
// this plant type.
func (p PlantType) SourceFilter() string {
	switch p {
	case PlantWind:
		return "Eólica"
	case PlantSolar:
		return "Solar"
	default:
		return ""
	}
}

// ParsePlantType converts a user-supplied string into a PlantType.
func ParsePlantType(s string) (PlantType, error) {
	switch p := PlantType(strings.ToLower(strings.TrimSpace(s))); p {
	case PlantWind, PlantSolar:
		return p, nil
	default:
		return "", NewAppError(ErrCodeConfigInvalidPlantType, fmt.Sprintf("unknown plant type %q (allowed: wind, solar)", s), nil)
	}
}

// PotentialClass is the band of a wind potential index.
type PotentialClass string

const (
	PotentialHigh   PotentialClass = "High"
	PotentialMedium PotentialClass = "Medium"
	PotentialLow    PotentialClass = "Low"
)

// ModelKind is the closed set of regression model families.
type ModelKind string

const (
	ModelLinearRegression ModelKind = "linear_regression"
	ModelRandomForest     ModelKind = "random_forest"
	ModelXGBoost          ModelKind = "xgboost"
	ModelMLP              ModelKind = "mlp"
)

// AllModelKinds lists every supported model family in a stable order.
func AllModelKinds() []ModelKind {
	return []ModelKind{ModelLinearRegression, ModelRandomForest, ModelXGBoost, ModelMLP}
}

// ParseModelKind converts a user-supplied string into a ModelKind.
func ParseModelKind(s string) (ModelKind, error) {
	k := ModelKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllModelKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", NewAppError(ErrCodeConfigInvalidModel, fmt.Sprintf("unknown model %q", s), nil)
}
