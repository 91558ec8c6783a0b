package types

import (
	"sort"
	"time"
)

// Coordinate is a (latitude, longitude) pair. It is comparable and is used
// directly as a map key, so two coordinates share weather data only when both
// components are exactly equal.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherObservation holds the provider attributes for one coordinate and one
// UTC hour. Wind profiles populate the Wind* fields, solar profiles populate
// TemperatureC, CloudCoverPct and IrradianceWm2.
type WeatherObservation struct {
	Time             time.Time
	Altitude         *float64
	WindSpeed10m     float64
	WindGusts10m     float64
	WindDirection10m float64
	TemperatureC     float64
	CloudCoverPct    float64
	IrradianceWm2    float64
}

// WeatherSeries maps UTC timestamps to observations for one coordinate.
type WeatherSeries struct {
	Coordinate   Coordinate
	Elevation    *float64
	Observations map[time.Time]WeatherObservation
}

// NewWeatherSeries returns an empty series for the coordinate.
func NewWeatherSeries(c Coordinate, elevation *float64) *WeatherSeries {
	return &WeatherSeries{
		Coordinate:   c,
		Elevation:    elevation,
		Observations: make(map[time.Time]WeatherObservation),
	}
}

// Len returns the number of observations.
func (s *WeatherSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Observations)
}

// At returns the observation at exactly t.
func (s *WeatherSeries) At(t time.Time) (WeatherObservation, bool) {
	if s == nil {
		return WeatherObservation{}, false
	}
	obs, ok := s.Observations[t.UTC()]
	return obs, ok
}

// Nearest returns the observation closest to t within tolerance. Ties resolve
// to the earlier timestamp. A zero tolerance degrades to At.
func (s *WeatherSeries) Nearest(t time.Time, tolerance time.Duration) (WeatherObservation, bool) {
	if obs, ok := s.At(t); ok || tolerance <= 0 {
		return obs, ok
	}
	var (
		best     WeatherObservation
		bestDist time.Duration = -1
	)
	for _, ts := range s.Times() {
		d := ts.Sub(t)
		if d < 0 {
			d = -d
		}
		if d > tolerance {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = s.Observations[ts], d
		}
	}
	return best, bestDist >= 0
}

// Times returns the observation timestamps in ascending order.
func (s *WeatherSeries) Times() []time.Time {
	if s == nil {
		return nil
	}
	out := make([]time.Time, 0, len(s.Observations))
	for t := range s.Observations {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// PlantRecord is one row of the capacity-factor source. Nullable columns are
// pointers; the record is never mutated after it is read.
type PlantRecord struct {
	State               string
	PlantName           string
	Instant             time.Time
	Lat                 *float64
	Lon                 *float64
	CapacityFactor      *float64
	ScheduledGeneration *float64
	VerifiedGeneration  *float64
	InstalledCapacity   *float64
}

// Coordinate returns the record's coordinate, or false when either component
// is missing.
func (r PlantRecord) Coordinate() (Coordinate, bool) {
	if r.Lat == nil || r.Lon == nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *r.Lat, Lon: *r.Lon}, true
}

// Area is a named geographic region represented by one coordinate, usually the
// centroid of a municipality boundary.
type Area struct {
	Name       string
	State      string
	Coordinate Coordinate
}

// WindPotential is the derived wind-energy score for one observation.
type WindPotential struct {
	Roughness float64
	Index     *float64
	Class     PotentialClass
}

// EnrichedRecord is a plant (or area) row joined with the weather observation
// at the same timestamp. Plant-only fields are nil in geography mode.
type EnrichedRecord struct {
	State       string
	Name        string
	Instant     time.Time
	Coordinate  Coordinate
	Observation WeatherObservation
	Potential   *WindPotential

	CapacityFactor      *float64
	ScheduledGeneration *float64
	VerifiedGeneration  *float64
	InstalledCapacity   *float64
}

// EnrichmentStats counts what happened to every source row of a run so
// operators can audit coverage.
type EnrichmentStats struct {
	RowsRead          int `json:"rows_read"`
	RowsEmitted       int `json:"rows_emitted"`
	MissingCoordinate int `json:"missing_coordinate"`
	JoinMisses        int `json:"join_misses"`
	UnavailableSeries int `json:"unavailable_series"`
	Fetches           int `json:"fetches"`
	FetchFailures     int `json:"fetch_failures"`
}

// Dropped returns the number of rows read that did not produce a record.
func (s EnrichmentStats) Dropped() int {
	return s.MissingCoordinate + s.JoinMisses + s.UnavailableSeries
}

// EvaluationMetrics holds holdout regression metrics. CV fields are set only
// for model families that run k-fold diagnostics.
type EvaluationMetrics struct {
	MSE           float64  `json:"mse"`
	RMSE          float64  `json:"rmse"`
	MAE           float64  `json:"mae"`
	R2            float64  `json:"r2"`
	CVRMSEMean    *float64 `json:"cv_rmse_mean,omitempty"`
	CVRMSEStd     *float64 `json:"cv_rmse_std,omitempty"`
	BestIteration *int     `json:"best_iteration,omitempty"`
	TrainRows     int      `json:"train_rows"`
	TestRows      int      `json:"test_rows"`
}

// FetchResult is the outcome of one weather fetch. Exactly one of Series and
// Reason is set; an unavailable result is cached like a successful one so the
// coordinate is not fetched again in the same run.
type FetchResult struct {
	Series *WeatherSeries
	Reason error
}

// Available reports whether the fetch produced a series.
func (r FetchResult) Available() bool {
	return r.Series != nil && r.Reason == nil
}

// Unavailable builds a failed FetchResult.
func Unavailable(reason error) FetchResult {
	return FetchResult{Reason: reason}
}
