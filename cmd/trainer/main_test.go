package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"capfactor/internal/regression"
	"capfactor/internal/types"
)

type mockTrainer struct {
	calls []types.TrainingRequest
	fail  map[types.ModelKind]error
}

func (m *mockTrainer) Train(_ context.Context, req types.TrainingRequest) (*regression.Report, error) {
	m.calls = append(m.calls, req)
	if err := m.fail[req.Model]; err != nil {
		return nil, err
	}
	return &regression.Report{PlantType: req.PlantType, Model: req.Model}, nil
}

func newHandler(m *mockTrainer) *Handler {
	return &Handler{trainer: m, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func message(t *testing.T, id string, model types.ModelKind) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(types.TrainingRequest{
		RunID:              "run-1",
		PlantType:          types.PlantWind,
		Model:              model,
		TrainingArtifact:   "training_wind.csv",
		PredictionArtifact: "prediction_wind.csv",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestHandle_AllSucceed(t *testing.T) {
	m := &mockTrainer{}
	h := newHandler(m)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		message(t, "m1", types.ModelXGBoost),
		message(t, "m2", types.ModelMLP),
	}})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("expected no failures, got %v", resp.BatchItemFailures)
	}
	if len(m.calls) != 2 {
		t.Fatalf("expected 2 training calls, got %d", len(m.calls))
	}
	if m.calls[1].Model != types.ModelMLP {
		t.Errorf("expected second call for mlp, got %s", m.calls[1].Model)
	}
}

func TestHandle_PartialFailure(t *testing.T) {
	m := &mockTrainer{fail: map[types.ModelKind]error{
		types.ModelRandomForest: types.NewAppError(types.ErrCodeInternalArtifact, "failed to read artifact", errors.New("timeout")),
	}}
	h := newHandler(m)

	resp, _ := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		message(t, "m1", types.ModelLinearRegression),
		message(t, "m2", types.ModelRandomForest),
	}})
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(resp.BatchItemFailures))
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Errorf("expected m2 to be retried, got %s", resp.BatchItemFailures[0].ItemIdentifier)
	}
}

func TestHandle_MalformedMessageIsAcknowledged(t *testing.T) {
	m := &mockTrainer{}
	h := newHandler(m)

	resp, _ := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad-json", Body: "{not json"},
		{MessageId: "bad-model", Body: `{"plant_type":"wind","model":"svm","training_artifact":"a","prediction_artifact":"b"}`},
	}})
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("malformed messages must not be retried, got %v", resp.BatchItemFailures)
	}
	if len(m.calls) != 0 {
		t.Errorf("trainer must not be called, got %d calls", len(m.calls))
	}
}

func TestHandle_PermanentFailureIsAcknowledged(t *testing.T) {
	mismatch := types.NewAppErrorWithDetails(types.ErrCodeConfigFeatureMismatch,
		"training frame is missing required columns", nil,
		map[string]any{"missing": []string{"roughness"}})
	m := &mockTrainer{fail: map[types.ModelKind]error{
		types.ModelXGBoost:          fmt.Errorf("engine: %w", mismatch),
		types.ModelMLP:              types.NewAppError(types.ErrCodeValidationInsufficientData, "need at least 2 rows", nil),
		types.ModelLinearRegression: errors.New("connection reset by peer"),
	}}
	h := newHandler(m)

	resp, _ := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		message(t, "m1", types.ModelXGBoost),
		message(t, "m2", types.ModelMLP),
		message(t, "m3", types.ModelLinearRegression),
	}})
	if len(m.calls) != 3 {
		t.Fatalf("expected 3 training calls, got %d", len(m.calls))
	}
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected only the transient failure to be retried, got %v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "m3" {
		t.Errorf("expected m3 to be retried, got %s", resp.BatchItemFailures[0].ItemIdentifier)
	}
}
