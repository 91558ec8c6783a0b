// Package config defines the runtime configuration of the capacity-factor
// pipeline. Configuration is loaded once when a process starts and is treated
// as read-only afterwards.
//
// Values are resolved in priority order:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or a malformed one fails the load, so processes
// stop before touching the database or the weather provider.
package config

import (
	"time"

	"capfactor/internal/types"
)

// SecretString is an alias for types.SecretString so configuration callers do
// not need to import types for credential fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"capfactor"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Database      DatabaseConfig
	Weather       WeatherConfig
	Geography     GeographyConfig
	Artifacts     ArtifactConfig
	Training      TrainingConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// DatabaseConfig holds the source database connection and cursor tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// FetchBatchSize is the number of rows pulled per FETCH FORWARD.
	FetchBatchSize int           `envconfig:"DB_FETCH_BATCH_SIZE" default:"10000" validate:"min=1"`
	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// WeatherConfig holds the Open-Meteo archive endpoints and fetch policy.
type WeatherConfig struct {
	BaseURL   string `envconfig:"WEATHER_BASE_URL" default:"https://archive-api.open-meteo.com" validate:"required,url"`
	WindPath  string `envconfig:"WEATHER_WIND_PATH" default:"/v1/era5"`
	SolarPath string `envconfig:"WEATHER_SOLAR_PATH" default:"/v1/archive"`

	WindStartDate  string `envconfig:"WEATHER_WIND_START_DATE" default:"2024-01-01" validate:"datetime=2006-01-02"`
	WindEndDate    string `envconfig:"WEATHER_WIND_END_DATE" default:"2025-09-26" validate:"datetime=2006-01-02"`
	SolarStartDate string `envconfig:"WEATHER_SOLAR_START_DATE" default:"2025-01-01" validate:"datetime=2006-01-02"`
	SolarEndDate   string `envconfig:"WEATHER_SOLAR_END_DATE" default:"2025-09-23" validate:"datetime=2006-01-02"`

	// Timezone is sent to the provider. GMT keeps the returned naive
	// timestamps in UTC.
	Timezone   string        `envconfig:"WEATHER_TIMEZONE" default:"GMT"`
	Timeout    time.Duration `envconfig:"WEATHER_TIMEOUT" default:"60s"`
	MaxRetries int           `envconfig:"WEATHER_MAX_RETRIES" default:"3" validate:"min=0,max=10"`

	// JoinTolerance is the maximum distance between a plant instant and a
	// weather hour. Zero means exact match.
	JoinTolerance time.Duration `envconfig:"WEATHER_JOIN_TOLERANCE" default:"0s"`

	// CacheURL points at a Redis server that keeps fetched series between
	// runs. Empty disables the cross-run cache.
	CacheURL SecretString  `envconfig:"WEATHER_CACHE_URL"`
	CacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"720h"`
}

// GeographyConfig locates the municipality boundaries used in geography mode.
type GeographyConfig struct {
	// BoundarySource is a local path or an http(s) URL to a GeoJSON
	// FeatureCollection.
	BoundarySource string `envconfig:"GEO_BOUNDARY_SOURCE" default:"https://raw.githubusercontent.com/tbrugz/geodata-br/master/geojson/geojs-52-mun.json"`
	State          string `envconfig:"GEO_STATE" default:"GO" validate:"len=2"`
	NameProperty   string `envconfig:"GEO_NAME_PROPERTY" default:"name"`
}

// ArtifactConfig selects where datasets, forecasts and evaluation data live.
// When Bucket is set artifacts go to S3, otherwise to Dir.
type ArtifactConfig struct {
	Dir        string `envconfig:"ARTIFACT_DIR" default:"data"`
	ArchiveDir string `envconfig:"ARTIFACT_ARCHIVE_DIR" default:"data/processados"`
	Bucket     string `envconfig:"ARTIFACT_BUCKET"`
	Prefix     string `envconfig:"ARTIFACT_PREFIX" default:"capfactor/"`
}

// TrainingConfig selects the model families trained after enrichment.
type TrainingConfig struct {
	Models []string `envconfig:"TRAINING_MODELS" default:"xgboost" validate:"min=1,dive,oneof=linear_regression random_forest xgboost mlp"`
}

// AWSConfig holds AWS region and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// TrainingQueueURL receives a training request after each enrichment
	// run. Empty disables the trigger.
	TrainingQueueURL string `envconfig:"SQS_TRAINING_QUEUE" validate:"omitempty,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CapacityFactor"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
