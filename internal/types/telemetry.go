package types

// Telemetry metric names for CloudWatch. All components use these constants.
const (
	MetricRowsRead         = "EnrichmentRowsRead"
	MetricRowsEmitted      = "EnrichmentRowsEmitted"
	MetricRowsDropped      = "EnrichmentRowsDropped"
	MetricWeatherFetches   = "WeatherFetches"
	MetricWeatherFailures  = "WeatherFetchFailures"
	MetricHoldoutRMSE      = "HoldoutRMSE"
	MetricHoldoutR2        = "HoldoutR2"
	MetricCrossValRMSE     = "CrossValidationRMSE"
	MetricTrainingDuration = "TrainingDuration"

	DimPlantType  = "PlantType"
	DimModel      = "Model"
	DimDropReason = "Reason"

	MetricNamespace = "CapacityFactor"
)

// Artifact columns shared by the enrichment writer and the regression engine.
const (
	ColState               = "state"
	ColName                = "plant_name"
	ColInstant             = "instant"
	ColLatitude            = "latitude"
	ColLongitude           = "longitude"
	ColWindSpeed           = "wind_speed_10m"
	ColWindGusts           = "wind_gusts_10m"
	ColWindDirection       = "wind_direction_10m"
	ColAltitude            = "altitude_m"
	ColRoughness           = "roughness"
	ColPotentialIndex      = "potential_index"
	ColPotentialClass      = "potential_class"
	ColTemperature         = "temperature_c"
	ColCloudCover          = "cloud_cover_pct"
	ColIrradiance          = "irradiance_wm2"
	ColCapacityFactor      = "capacity_factor"
	ColScheduledGeneration = "scheduled_generation"
	ColVerifiedGeneration  = "verified_generation"
	ColInstalledCapacity   = "installed_capacity"

	ColYear    = "year"
	ColMonth   = "month"
	ColDay     = "day"
	ColHour    = "hour"
	ColWeekday = "weekday"
)

// InstantLayout is the text layout of the instant column in artifacts.
const InstantLayout = "2006-01-02 15:04:05"
