package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"capfactor/internal/jobs"
	"capfactor/internal/types"
)

type mockEnricher struct {
	got jobs.EnrichRequest
	err error
}

func (m *mockEnricher) Run(_ context.Context, req jobs.EnrichRequest) (*jobs.EnrichResult, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return &jobs.EnrichResult{RunID: "run-1", Artifacts: []string{"training_wind.csv"}}, nil
}

func newHandler(m *mockEnricher) *Handler {
	return &Handler{enricher: m, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestHandle_DecodesRequest(t *testing.T) {
	m := &mockEnricher{}
	result, err := newHandler(m).Handle(context.Background(), json.RawMessage(`{"plant_type":"wind","mode":"training"}`))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if m.got.PlantType != types.PlantWind || m.got.Mode != jobs.ModeTraining {
		t.Errorf("unexpected request: %+v", m.got)
	}
	if result.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", result.RunID)
	}
}

func TestHandle_InvalidPayload(t *testing.T) {
	m := &mockEnricher{}
	if _, err := newHandler(m).Handle(context.Background(), json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHandle_PropagatesFailure(t *testing.T) {
	m := &mockEnricher{err: errors.New("database unavailable")}
	if _, err := newHandler(m).Handle(context.Background(), json.RawMessage(`{"plant_type":"solar"}`)); err == nil {
		t.Fatal("expected enrichment error")
	}
}
