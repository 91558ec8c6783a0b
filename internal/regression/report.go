package regression

import (
	"cmp"
	"slices"

	"capfactor/internal/dataset"
	"capfactor/internal/types"
)

// Report is everything a run produces apart from the forecast rows
// themselves.
type Report struct {
	PlantType types.PlantType         `json:"plant_type"`
	Model     types.ModelKind         `json:"model"`
	Target    string                  `json:"target"`
	Features  []string                `json:"features"`
	Metrics   types.EvaluationMetrics `json:"metrics"`

	CrossValidation *CrossValidation `json:"cross_validation,omitempty"`
	Curves          *EvalHistory     `json:"curves,omitempty"`
	Scatter         Scatter          `json:"scatter"`
	Monthly         []MonthlyTotal   `json:"monthly,omitempty"`

	FilledTrainingCells   int `json:"filled_training_cells"`
	FilledPredictionCells int `json:"filled_prediction_cells"`
	ClippedPredictions    int `json:"clipped_predictions"`

	Forecast *dataset.Frame `json:"-"`
}

// Scatter pairs holdout targets with their clipped predictions.
type Scatter struct {
	Actual    []float64 `json:"actual"`
	Predicted []float64 `json:"predicted"`
}

// Report assembles the results of an applied run.
func (e *Engine) Report() (*Report, error) {
	if e.stage != StageApplied {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeStateInvalidTransition,
			"report requires an applied model", nil,
			map[string]any{"stage": e.stage.String(), "required": StageApplied.String()})
	}
	r := &Report{
		PlantType:             e.cfg.PlantType,
		Model:                 e.cfg.Kind,
		Target:                e.cfg.Target,
		Features:              e.Features(),
		Metrics:               e.metrics,
		CrossValidation:       e.cv,
		Scatter:               Scatter{Actual: e.actual, Predicted: e.predicted},
		FilledTrainingCells:   e.filledTraining,
		FilledPredictionCells: e.filledPrediction,
		ClippedPredictions:    e.clipped,
		Forecast:              e.prediction,
	}
	switch m := e.model.(type) {
	case Monitored:
		h := m.History()
		r.Curves = &h
	case LossTracked:
		r.Curves = &EvalHistory{Loss: m.LossCurve()}
	}
	monthly, err := MonthlyTotals(e.prediction, e.cfg.Target)
	if err != nil {
		return nil, err
	}
	r.Monthly = monthly
	return r, nil
}

// MonthlyTotal is the sum of a column for one name in one calendar month.
type MonthlyTotal struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// MonthlyTotals sums value per year, month and plant or area name. The frame
// needs the temporal columns; results are ordered by year, month and name.
func MonthlyTotals(f *dataset.Frame, value string) ([]MonthlyTotal, error) {
	if err := f.Require("monthly", types.ColYear, types.ColMonth, value); err != nil {
		return nil, err
	}
	names := f.Text(types.ColName)
	years, months, values := f.Float(types.ColYear), f.Float(types.ColMonth), f.Float(value)

	type key struct {
		year, month int
		name        string
	}
	sums := make(map[key]float64)
	for i := range f.Len() {
		k := key{year: int(years[i]), month: int(months[i])}
		if names != nil {
			k.name = names[i]
		}
		sums[k] += values[i]
	}

	out := make([]MonthlyTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, MonthlyTotal{Year: k.year, Month: k.month, Name: k.name, Total: total})
	}
	slices.SortFunc(out, func(a, b MonthlyTotal) int {
		return cmp.Or(
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Month, b.Month),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return out, nil
}
