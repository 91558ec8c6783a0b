// Package queue publishes training requests to the SQS queue the trainer
// consumes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"capfactor/internal/artifacts"
	"capfactor/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// TrainingTrigger enqueues one TrainingRequest per model family after an
// enrichment run has written its artifacts.
type TrainingTrigger struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewTrainingTrigger creates a trigger that sends to queueURL.
func NewTrainingTrigger(client SQSSender, queueURL string, logger *slog.Logger) *TrainingTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingTrigger{
		client:   client,
		queueURL: queueURL,
		clock:    types.RealClock{},
		logger:   logger,
	}
}

// RequestTraining sends a request for every model in models, all sharing
// the run ID from ctx (a new one when ctx carries none). It stops at the
// first failed send.
func (t *TrainingTrigger) RequestTraining(ctx context.Context, plant types.PlantType, models []types.ModelKind) ([]types.TrainingRequest, error) {
	runID := types.GetRunID(ctx)
	if runID == "" {
		runID = uuid.New().String()
	}

	sent := make([]types.TrainingRequest, 0, len(models))
	for _, model := range models {
		req := types.TrainingRequest{
			RunID:              runID,
			PlantType:          plant,
			Model:              model,
			TrainingArtifact:   artifacts.TrainingName(plant),
			PredictionArtifact: artifacts.PredictionName(plant),
			RequestedAt:        t.clock.Now(),
		}
		if err := t.Send(ctx, req); err != nil {
			return sent, err
		}
		sent = append(sent, req)
	}
	return sent, nil
}

// Send validates req, serializes it to JSON and dispatches it.
func (t *TrainingTrigger) Send(ctx context.Context, req types.TrainingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal TrainingRequest: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"plant_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(req.PlantType)),
			},
			"model": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(req.Model)),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send TrainingRequest to %s: %w", t.queueURL, err)
	}

	t.logger.InfoContext(ctx, "training request sent",
		"queue_url", t.queueURL,
		"run_id", req.RunID,
		"plant_type", string(req.PlantType),
		"model", string(req.Model),
	)
	return nil
}

// DecodeRequest parses and validates an SQS message body.
func DecodeRequest(body string) (types.TrainingRequest, error) {
	var req types.TrainingRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return req, types.NewAppError(types.ErrCodeValidationMissingField, "malformed training request", err)
	}
	return req, req.Validate()
}
