package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTrainingRequestValidate(t *testing.T) {
	valid := TrainingRequest{
		RunID:              "run-1",
		PlantType:          PlantWind,
		Model:              ModelXGBoost,
		TrainingArtifact:   "training_wind.csv",
		PredictionArtifact: "prediction_wind.csv",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *TrainingRequest)
		code   ErrorCode
	}{
		{"bad plant", func(r *TrainingRequest) { r.PlantType = "hydro" }, ErrCodeConfigInvalidPlantType},
		{"bad model", func(r *TrainingRequest) { r.Model = "svm" }, ErrCodeConfigInvalidModel},
		{"no artifact", func(r *TrainingRequest) { r.PredictionArtifact = "" }, ErrCodeValidationMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			var appErr *AppError
			if err := r.Validate(); !errors.As(err, &appErr) || appErr.Code != tt.code {
				t.Fatalf("Validate() = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestTrainingRequestJSON(t *testing.T) {
	r := TrainingRequest{
		RunID:       "run-1",
		PlantType:   PlantSolar,
		Model:       ModelMLP,
		RequestedAt: time.Date(2025, 9, 23, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"run_id", "plant_type", "model", "training_artifact", "prediction_artifact", "requested_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if fields["plant_type"] != "solar" || fields["model"] != "mlp" {
		t.Errorf("enum encoding = %v / %v", fields["plant_type"], fields["model"])
	}
}
