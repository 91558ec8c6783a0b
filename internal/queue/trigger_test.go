package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"capfactor/internal/types"
)

// --- Mock SQS Client ---

// mockSQSSender captures SendMessage calls for test assertions.
type mockSQSSender struct {
	calls []*sqs.SendMessageInput
	// failAt makes the n-th call (1-based) fail; 0 never fails.
	failAt int
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.failAt == len(m.calls) {
		return nil, errors.New("sqs unavailable")
	}
	return &sqs.SendMessageOutput{}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// --- Test Helpers ---

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/capfactor-training"

var testNow = time.Date(2025, 9, 26, 3, 0, 0, 0, time.UTC)

func newTestTrigger(mock *mockSQSSender) *TrainingTrigger {
	tr := NewTrainingTrigger(mock, testQueueURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.clock = fixedClock{testNow}
	return tr
}

// --- Tests ---

func TestRequestTraining_OneMessagePerModel(t *testing.T) {
	mock := &mockSQSSender{}
	trigger := newTestTrigger(mock)
	ctx := types.WithRunID(context.Background(), "run-42")

	sent, err := trigger.RequestTraining(ctx, types.PlantWind, []types.ModelKind{types.ModelXGBoost, types.ModelMLP})
	if err != nil {
		t.Fatalf("RequestTraining returned unexpected error: %v", err)
	}
	if len(sent) != 2 || len(mock.calls) != 2 {
		t.Fatalf("expected 2 requests, got %d sent / %d calls", len(sent), len(mock.calls))
	}

	for i, call := range mock.calls {
		if *call.QueueUrl != testQueueURL {
			t.Errorf("call %d queue URL = %q", i, *call.QueueUrl)
		}
		var req types.TrainingRequest
		if err := json.Unmarshal([]byte(*call.MessageBody), &req); err != nil {
			t.Fatalf("call %d body is not a TrainingRequest: %v", i, err)
		}
		if req.RunID != "run-42" {
			t.Errorf("call %d run_id = %q, want run-42", i, req.RunID)
		}
		if req.TrainingArtifact != "training_wind.csv" || req.PredictionArtifact != "prediction_wind.csv" {
			t.Errorf("call %d artifacts = %q, %q", i, req.TrainingArtifact, req.PredictionArtifact)
		}
		if !req.RequestedAt.Equal(testNow) {
			t.Errorf("call %d requested_at = %v", i, req.RequestedAt)
		}
		if got := *call.MessageAttributes["model"].StringValue; got != string(req.Model) {
			t.Errorf("call %d model attribute = %q, body model = %q", i, got, req.Model)
		}
	}
	if sent[1].Model != types.ModelMLP {
		t.Errorf("second request model = %q, want mlp", sent[1].Model)
	}
}

func TestRequestTraining_GeneratesRunID(t *testing.T) {
	mock := &mockSQSSender{}
	sent, err := newTestTrigger(mock).RequestTraining(context.Background(), types.PlantSolar, []types.ModelKind{types.ModelRandomForest})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent[0].RunID) != 36 {
		t.Errorf("run_id = %q, want a UUID", sent[0].RunID)
	}
}

func TestRequestTraining_StopsAtFirstFailure(t *testing.T) {
	mock := &mockSQSSender{failAt: 1}
	sent, err := newTestTrigger(mock).RequestTraining(context.Background(), types.PlantWind,
		[]types.ModelKind{types.ModelXGBoost, types.ModelMLP})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), testQueueURL) {
		t.Errorf("error should name the queue: %v", err)
	}
	if len(sent) != 0 || len(mock.calls) != 1 {
		t.Errorf("sent %d, calls %d; want 0 and 1", len(sent), len(mock.calls))
	}
}

func TestSend_RejectsInvalidRequest(t *testing.T) {
	mock := &mockSQSSender{}
	err := newTestTrigger(mock).Send(context.Background(), types.TrainingRequest{PlantType: types.PlantWind, Model: "svm"})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeConfigInvalidModel {
		t.Fatalf("expected invalid model error, got %v", err)
	}
	if len(mock.calls) != 0 {
		t.Error("invalid requests must not be sent")
	}
}

func TestDecodeRequest(t *testing.T) {
	body := `{"run_id":"r","plant_type":"solar","model":"linear_regression","training_artifact":"training_solar.csv","prediction_artifact":"prediction_solar.csv","requested_at":"2025-09-26T03:00:00Z"}`
	req, err := DecodeRequest(body)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.PlantType != types.PlantSolar || req.Model != types.ModelLinearRegression {
		t.Errorf("decoded %+v", req)
	}

	if _, err := DecodeRequest("{"); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := DecodeRequest(`{"plant_type":"wind","model":"xgboost"}`); err == nil {
		t.Error("expected error for missing artifacts")
	}
}
