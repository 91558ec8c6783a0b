package types

import "time"

// TrainingRequest asks the trainer to fit one model family on the artifacts
// an enrichment run produced.
type TrainingRequest struct {
	RunID              string    `json:"run_id"`
	PlantType          PlantType `json:"plant_type"`
	Model              ModelKind `json:"model"`
	TrainingArtifact   string    `json:"training_artifact"`
	PredictionArtifact string    `json:"prediction_artifact"`
	RequestedAt        time.Time `json:"requested_at"`
}

// Validate checks the enum fields and that both artifacts are named.
func (r TrainingRequest) Validate() error {
	if _, err := ParsePlantType(string(r.PlantType)); err != nil {
		return err
	}
	if _, err := ParseModelKind(string(r.Model)); err != nil {
		return err
	}
	if r.TrainingArtifact == "" || r.PredictionArtifact == "" {
		return NewAppError(ErrCodeValidationMissingField, "training request must name both artifacts", nil)
	}
	return nil
}
