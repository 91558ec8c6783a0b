// Package main is the entrypoint for the Trainer Lambda function.
//
// The Trainer consumes training requests from the training SQS queue. Each
// message names a plant type, a model family and the two artifacts written by
// the Enricher. The handler fits the model, scores it on the holdout split,
// forecasts the prediction artifact and stores the forecast and evaluation.
//
// Lambda SQS integration uses partial batch responses: a message whose
// training fails transiently is reported in batchItemFailures so SQS retries
// only that message. Malformed messages and permanent training failures are
// logged and acknowledged.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"capfactor/internal/config"
	"capfactor/internal/jobs"
	"capfactor/internal/logging"
	"capfactor/internal/queue"
	"capfactor/internal/regression"
	"capfactor/internal/types"
)

// trainer is the part of jobs.Trainer the handler needs.
type trainer interface {
	Train(ctx context.Context, req types.TrainingRequest) (*regression.Report, error)
}

// Handler holds the dependencies of the trainer Lambda handler.
type Handler struct {
	trainer trainer
	logger  *slog.Logger
}

// Handle processes an SQS event containing one or more training requests.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process training request",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	start := time.Now()

	req, err := queue.DecodeRequest(record.Body)
	if err != nil {
		// Permanent failure, retrying cannot fix the payload.
		h.logger.ErrorContext(ctx, "discarding malformed training request",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	logger := h.logger.With(
		"run_id", req.RunID,
		"plant_type", string(req.PlantType),
		"model", string(req.Model),
	)
	logger.InfoContext(ctx, "processing training request")

	report, err := h.trainer.Train(ctx, req)
	if err != nil {
		if !types.IsRetryable(err) {
			// Permanent failure (bad columns, bad model, too few rows):
			// redelivery would fail the same way, so ACK.
			logger.ErrorContext(ctx, "training request failed permanently", "error", err)
			return nil
		}
		return fmt.Errorf("training %s/%s: %w", req.PlantType, req.Model, err)
	}

	logger.InfoContext(ctx, "training request complete",
		"rmse", report.Metrics.RMSE,
		"r2", report.Metrics.R2,
		"clipped_predictions", report.ClippedPredictions,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
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

	logger.Info("Trainer Lambda initializing (cold start)")

	ctx := context.Background()
	deps, err := jobs.NewDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	t, err := deps.Trainer(ctx)
	if err != nil {
		logger.Error("Failed to build trainer", "error", err)
		os.Exit(1)
	}

	h := &Handler{trainer: t, logger: logger}
	logger.Info("Trainer Lambda initialized", "artifact_bucket", cfg.Artifacts.Bucket)
	lambda.Start(h.Handle)
}
