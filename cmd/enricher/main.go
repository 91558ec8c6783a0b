// Package main is the entrypoint for the Enricher Lambda function.
//
// The Enricher is invoked on a schedule (or manually) with a JSON payload
// naming a plant type and a mode. It streams plant records from the source
// database, joins them with hourly weather, enriches the configured
// municipalities, and writes the training and prediction artifacts. A full
// run finishes by queuing one training request per configured model.
//
// This file handles dependency wiring (Cold Start) and delegates all business
// logic to the internal/jobs package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"capfactor/internal/config"
	"capfactor/internal/jobs"
	"capfactor/internal/logging"
)

// enricher is the part of jobs.Enricher the handler needs.
type enricher interface {
	Run(ctx context.Context, req jobs.EnrichRequest) (*jobs.EnrichResult, error)
}

// Handler adapts Lambda invocations to enrichment jobs.
type Handler struct {
	enricher enricher
	logger   *slog.Logger
}

// Handle decodes the payload and runs one enrichment job.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (*jobs.EnrichResult, error) {
	var req jobs.EnrichRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding enrichment request: %w", err)
	}

	h.logger.InfoContext(ctx, "enrichment requested", "plant_type", string(req.PlantType), "mode", string(req.Mode))
	result, err := h.enricher.Run(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "enrichment failed", "plant_type", string(req.PlantType), "error", err)
		return result, err
	}
	return result, nil
}

func loadConfig() (*config.Config, error) {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	return config.LoadConfig(provider)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg)
	slog.SetDefault(logger)

	logger.Info("Enricher Lambda initializing (cold start)")

	ctx := context.Background()
	deps, err := jobs.NewDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	e, err := deps.Enricher()
	if err != nil {
		logger.Error("Failed to build enricher", "error", err)
		os.Exit(1)
	}
	h := &Handler{enricher: e, logger: logger}

	logger.Info("Enricher Lambda initialized",
		"artifact_bucket", cfg.Artifacts.Bucket,
		"artifact_dir", cfg.Artifacts.Dir,
		"training_queue", cfg.AWS.TrainingQueueURL,
		"models", cfg.Training.Models,
	)

	// Local mode: read the JSON request from stdin instead of starting the
	// Lambda runtime.
	// Usage: echo '{"plant_type":"wind","mode":"all"}' | go run ./cmd/enricher
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		result, err := h.Handle(ctx, json.RawMessage(payload))
		if err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Handler execution completed successfully", "run_id", result.RunID, "artifacts", result.Artifacts)
		return
	}

	lambda.Start(h.Handle)
}
