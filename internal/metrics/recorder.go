// Package metrics publishes run telemetry to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"capfactor/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder receives the outcome of enrichment and training runs. Failures
// to publish are logged, never returned: telemetry must not fail a run.
type Recorder interface {
	RecordEnrichment(ctx context.Context, plant types.PlantType, stats types.EnrichmentStats)
	RecordEvaluation(ctx context.Context, plant types.PlantType, model types.ModelKind, m types.EvaluationMetrics, trainDuration time.Duration)
}

var (
	_ Recorder = (*CloudWatchRecorder)(nil)
	_ Recorder = NoopRecorder{}
)

// CloudWatchRecorder emits one PutMetricData call per recorded run.
//
// Metrics emitted:
//   - EnrichmentRowsRead, EnrichmentRowsEmitted, WeatherFetches,
//     WeatherFetchFailures: Dims {PlantType}
//   - EnrichmentRowsDropped: Dims {PlantType, Reason}
//   - HoldoutRMSE, HoldoutR2, TrainingDuration and, when present,
//     CrossValidationRMSE: Dims {PlantType, Model}
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder publishes under namespace, or the default
// namespace when it is empty.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (r *CloudWatchRecorder) RecordEnrichment(ctx context.Context, plant types.PlantType, stats types.EnrichmentStats) {
	plantDim := dim(types.DimPlantType, string(plant))
	data := []cwtypes.MetricDatum{
		count(types.MetricRowsRead, stats.RowsRead, plantDim),
		count(types.MetricRowsEmitted, stats.RowsEmitted, plantDim),
		count(types.MetricWeatherFetches, stats.Fetches, plantDim),
		count(types.MetricWeatherFailures, stats.FetchFailures, plantDim),
		count(types.MetricRowsDropped, stats.MissingCoordinate, plantDim, dim(types.DimDropReason, "missing_coordinate")),
		count(types.MetricRowsDropped, stats.JoinMisses, plantDim, dim(types.DimDropReason, "join_miss")),
		count(types.MetricRowsDropped, stats.UnavailableSeries, plantDim, dim(types.DimDropReason, "unavailable_series")),
	}
	r.put(ctx, data, "plant_type", string(plant))
}

func (r *CloudWatchRecorder) RecordEvaluation(ctx context.Context, plant types.PlantType, model types.ModelKind, m types.EvaluationMetrics, trainDuration time.Duration) {
	dims := []cwtypes.Dimension{dim(types.DimPlantType, string(plant)), dim(types.DimModel, string(model))}
	data := []cwtypes.MetricDatum{
		{MetricName: aws.String(types.MetricHoldoutRMSE), Value: aws.Float64(m.RMSE), Unit: cwtypes.StandardUnitNone, Dimensions: dims},
		{MetricName: aws.String(types.MetricHoldoutR2), Value: aws.Float64(m.R2), Unit: cwtypes.StandardUnitNone, Dimensions: dims},
		{
			MetricName: aws.String(types.MetricTrainingDuration),
			Value:      aws.Float64(float64(trainDuration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	}
	if m.CVRMSEMean != nil {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricCrossValRMSE),
			Value:      aws.Float64(*m.CVRMSEMean),
			Unit:       cwtypes.StandardUnitNone,
			Dimensions: dims,
		})
	}
	r.put(ctx, data, "plant_type", string(plant), "model", string(model))
}

func (r *CloudWatchRecorder) put(ctx context.Context, data []cwtypes.MetricDatum, attrs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish metrics",
			append([]any{"error", err.Error(), "datums", len(data)}, attrs...)...)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func count(name string, v int, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(v)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

// NoopRecorder discards everything. It is used when metrics are disabled.
type NoopRecorder struct{}

func (NoopRecorder) RecordEnrichment(context.Context, types.PlantType, types.EnrichmentStats) {}

func (NoopRecorder) RecordEvaluation(context.Context, types.PlantType, types.ModelKind, types.EvaluationMetrics, time.Duration) {
}
