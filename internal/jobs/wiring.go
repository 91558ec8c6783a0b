package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"capfactor/internal/artifacts"
	"capfactor/internal/config"
	"capfactor/internal/db"
	"capfactor/internal/enrichment"
	"capfactor/internal/external"
	"capfactor/internal/geo"
	"capfactor/internal/metrics"
	"capfactor/internal/queue"
	"capfactor/internal/types"
)

// Deps are the process-wide clients built once per cold start.
type Deps struct {
	Pool    *pgxpool.Pool
	Store   artifacts.Store
	Metrics metrics.Recorder
	Trigger *queue.TrainingTrigger // nil when no training queue is configured
	Redis   *redis.Client          // nil when no series cache is configured

	cfg    *config.Config
	logger *slog.Logger
}

// NewDeps connects to the database and builds the AWS-backed clients the
// configuration asks for. AWS configuration is only loaded when a bucket,
// a queue or metrics are enabled.
func NewDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{
		Store:   artifacts.NewLocalStore(cfg.Artifacts.Dir),
		Metrics: metrics.NoopRecorder{},
		cfg:     cfg,
		logger:  logger,
	}

	if cfg.Artifacts.Bucket != "" || cfg.AWS.TrainingQueueURL != "" || cfg.Observability.EnableMetrics {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		if cfg.Artifacts.Bucket != "" {
			client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
				o.UsePathStyle = cfg.AWS.EndpointURL != ""
			})
			d.Store = artifacts.NewS3Store(client, artifacts.S3StoreConfig{
				Bucket: cfg.Artifacts.Bucket,
				Prefix: cfg.Artifacts.Prefix,
				Logger: logger,
			})
		}
		if cfg.AWS.TrainingQueueURL != "" {
			d.Trigger = queue.NewTrainingTrigger(sqs.NewFromConfig(awsCfg), cfg.AWS.TrainingQueueURL, logger)
		}
		if cfg.Observability.EnableMetrics {
			d.Metrics = metrics.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		}
	}

	if cfg.Weather.CacheURL != "" {
		opts, err := redis.ParseURL(cfg.Weather.CacheURL.Unmask())
		if err != nil {
			return nil, fmt.Errorf("parsing WEATHER_CACHE_URL: %w", err)
		}
		d.Redis = redis.NewClient(opts)
	}

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	d.Pool = pool
	return d, nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", cfg.Region, err)
	}
	return awsCfg, nil
}

// Close releases the database pool and the Redis connection.
func (d *Deps) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.logger.Warn("failed to close redis client", "error", err)
		}
	}
}

// Enricher builds the enrichment job from the configuration.
func (d *Deps) Enricher() (*Enricher, error) {
	models, err := ParseModels(d.cfg.Training.Models)
	if err != nil {
		return nil, err
	}
	w := d.cfg.Weather
	weatherBase := external.NewWeatherBaseClient(w.Timeout, w.MaxRetries)
	boundaryBase := external.NewBaseClient(&http.Client{Timeout: w.Timeout}, "boundaries",
		external.DefaultRetryPolicy(), "capfactor/1.0")

	cfg := EnricherConfig{
		OpenSource: func(ctx context.Context, plant types.PlantType) (enrichment.RecordSource, error) {
			cursor, err := db.OpenPlantRecordCursor(ctx, d.Pool, plant)
			if err != nil {
				return nil, err
			}
			return cursor, nil
		},
		Fetchers: func(plant types.PlantType) enrichment.WeatherFetcher {
			profile := WeatherProfile(w, plant)
			client := external.NewOpenMeteoClient(weatherBase, external.WeatherClientConfig{
				BaseURL:  w.BaseURL,
				Timezone: w.Timezone,
				Profile:  profile,
				Logger:   d.logger,
			})
			return d.withSeriesCache(client, profile)
		},
		Areas: geo.NewBoundaryLoader(boundaryBase, geo.LoaderConfig{
			State:        d.cfg.Geography.State,
			NameProperty: d.cfg.Geography.NameProperty,
			Logger:       d.logger,
		}),
		BoundarySource: d.cfg.Geography.BoundarySource,
		Store:          d.Store,
		Metrics:        d.Metrics,
		Models:         models,
		BatchSize:      d.cfg.Database.FetchBatchSize,
		JoinTolerance:  w.JoinTolerance,
		Logger:         d.logger,
	}
	if d.Trigger != nil {
		cfg.Trigger = d.Trigger
	}
	return NewEnricher(cfg), nil
}

// withSeriesCache puts the Redis series cache in front of fetcher when one
// is configured. A cache that cannot be built is skipped.
func (d *Deps) withSeriesCache(fetcher enrichment.WeatherFetcher, profile external.WeatherProfile) enrichment.WeatherFetcher {
	if d.Redis == nil {
		return fetcher
	}
	cache, err := enrichment.NewSeriesCache(fetcher, d.Redis, enrichment.SeriesCacheConfig{
		Namespace: fmt.Sprintf("%s:%s:%s", profile.Name, profile.StartDate, profile.EndDate),
		TTL:       d.cfg.Weather.CacheTTL,
		Logger:    d.logger,
	})
	if err != nil {
		d.logger.Warn("series cache disabled", "error", err)
		return fetcher
	}
	return cache
}

// Trainer builds the training job and makes sure the model_runs table
// exists.
func (d *Deps) Trainer(ctx context.Context) (*Trainer, error) {
	repo := db.NewModelRunRepository(d.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return NewTrainer(TrainerConfig{
		Store:   d.Store,
		Runs:    repo,
		Metrics: d.Metrics,
		Logger:  d.logger,
	}), nil
}

// WeatherProfile returns the archive query for a plant type.
func WeatherProfile(w config.WeatherConfig, plant types.PlantType) external.WeatherProfile {
	if plant == types.PlantSolar {
		return external.SolarProfile(w.SolarPath, w.SolarStartDate, w.SolarEndDate)
	}
	return external.WindProfile(w.WindPath, w.WindStartDate, w.WindEndDate)
}

// ParseModels converts configured model names into model kinds.
func ParseModels(names []string) ([]types.ModelKind, error) {
	models := make([]types.ModelKind, 0, len(names))
	for _, n := range names {
		k, err := types.ParseModelKind(n)
		if err != nil {
			return nil, err
		}
		models = append(models, k)
	}
	return models, nil
}
