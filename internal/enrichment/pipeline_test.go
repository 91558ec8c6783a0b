package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capfactor/internal/types"
)

func f(v float64) *float64 { return &v }

func hour(h int) time.Time { return time.Date(2024, 3, 10, h, 0, 0, 0, time.UTC) }

// fakeFetcher serves a fixed series per coordinate and counts calls.
type fakeFetcher struct {
	calls  map[types.Coordinate]int
	series map[types.Coordinate][]int
	down   map[types.Coordinate]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:  make(map[types.Coordinate]int),
		series: make(map[types.Coordinate][]int),
		down:   make(map[types.Coordinate]bool),
	}
}

func (ff *fakeFetcher) Fetch(_ context.Context, c types.Coordinate) types.FetchResult {
	ff.calls[c]++
	if ff.down[c] {
		return types.Unavailable(errors.New("provider down"))
	}
	s := types.NewWeatherSeries(c, f(100))
	hours, ok := ff.series[c]
	if !ok {
		hours = []int{0, 1, 2, 3}
	}
	for _, h := range hours {
		s.Observations[hour(h)] = types.WeatherObservation{
			Time:             hour(h),
			Altitude:         s.Elevation,
			WindSpeed10m:     10.004,
			WindGusts10m:     12.456,
			WindDirection10m: 180,
		}
	}
	return types.FetchResult{Series: s}
}

func (ff *fakeFetcher) totalCalls() int {
	n := 0
	for _, c := range ff.calls {
		n += c
	}
	return n
}

type sliceSource struct {
	records  []types.PlantRecord
	pos      int
	failAt   int
	closed   int
	batchReq []int
}

func (s *sliceSource) Next(_ context.Context, n int) ([]types.PlantRecord, error) {
	s.batchReq = append(s.batchReq, n)
	if s.failAt > 0 && s.pos >= s.failAt {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "connection lost", nil)
	}
	end := min(s.pos+n, len(s.records))
	out := s.records[s.pos:end]
	s.pos = end
	return out, nil
}

func (s *sliceSource) Close(context.Context) error {
	s.closed++
	return nil
}

func plant(name string, lat, lon *float64, h int) types.PlantRecord {
	return types.PlantRecord{
		State:          "RN",
		PlantName:      name,
		Instant:        hour(h),
		Lat:            lat,
		Lon:            lon,
		CapacityFactor: f(0.42),
	}
}

func newWindPipeline(fetcher WeatherFetcher, batch int) *Pipeline {
	return NewPipeline(fetcher, Config{PlantType: types.PlantWind, BatchSize: batch})
}

func TestWeatherCache_FetchesOncePerCoordinate(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewWeatherCache(fetcher)
	c := types.Coordinate{Lat: -5.1, Lon: -36.2}

	first := cache.GetOrFetch(context.Background(), c)
	second := cache.GetOrFetch(context.Background(), c)

	assert.Equal(t, 1, fetcher.calls[c])
	assert.Same(t, first.Series, second.Series)
	assert.Equal(t, 1, cache.Fetches())
	assert.Equal(t, 1, cache.Len())
}

func TestWeatherCache_CachesUnavailable(t *testing.T) {
	fetcher := newFakeFetcher()
	c := types.Coordinate{Lat: 1, Lon: 1}
	fetcher.down[c] = true
	cache := NewWeatherCache(fetcher)

	for i := 0; i < 3; i++ {
		assert.False(t, cache.GetOrFetch(context.Background(), c).Available())
	}
	assert.Equal(t, 1, fetcher.calls[c])
	assert.Equal(t, 1, cache.Failures())
}

func TestWeatherCache_ExactKeying(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewWeatherCache(fetcher)

	cache.GetOrFetch(context.Background(), types.Coordinate{Lat: -5.1, Lon: -36.2})
	cache.GetOrFetch(context.Background(), types.Coordinate{Lat: -5.1000001, Lon: -36.2})

	assert.Equal(t, 2, fetcher.totalCalls(), "nearby coordinates are distinct keys")
}

func TestRunTraining_ThreeRowsTwoCoordinates(t *testing.T) {
	fetcher := newFakeFetcher()
	src := &sliceSource{records: []types.PlantRecord{
		plant("A", f(-5), f(-36), 0),
		plant("A", f(-5), f(-36), 1),
		plant("B", f(-6), f(-37), 0),
	}}

	records, stats, err := newWindPipeline(fetcher, 10).RunTraining(context.Background(), src)
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, 2, fetcher.totalCalls())
	assert.Equal(t, 2, stats.Fetches)
	assert.Equal(t, 3, stats.RowsRead)
	assert.Equal(t, 3, stats.RowsEmitted)
	assert.Equal(t, 1, src.closed)
}

func TestRunTraining_DropsMissingCoordinates(t *testing.T) {
	fetcher := newFakeFetcher()
	src := &sliceSource{records: []types.PlantRecord{
		plant("A", nil, f(-36), 0),
		plant("B", f(-5), nil, 0),
		plant("C", nil, nil, 0),
		plant("D", f(-5), f(-36), 0),
	}}

	records, stats, err := newWindPipeline(fetcher, 2).RunTraining(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "D", records[0].Name)
	assert.Equal(t, 3, stats.MissingCoordinate)
	assert.Equal(t, 1, fetcher.totalCalls())
}

func TestRunTraining_DropsJoinMisses(t *testing.T) {
	fetcher := newFakeFetcher()
	c := types.Coordinate{Lat: -5, Lon: -36}
	fetcher.series[c] = []int{0, 2}
	src := &sliceSource{records: []types.PlantRecord{
		plant("A", f(-5), f(-36), 0),
		plant("A", f(-5), f(-36), 1),
		plant("A", f(-5), f(-36), 2),
	}}

	records, stats, err := newWindPipeline(fetcher, 100).RunTraining(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, hour(0), records[0].Instant)
	assert.Equal(t, hour(2), records[1].Instant)
	assert.Equal(t, 1, stats.JoinMisses)
}

func TestRunTraining_JoinTolerance(t *testing.T) {
	fetcher := newFakeFetcher()
	rec := plant("A", f(-5), f(-36), 1)
	rec.Instant = rec.Instant.Add(20 * time.Minute)
	src := &sliceSource{records: []types.PlantRecord{rec}}

	p := NewPipeline(fetcher, Config{PlantType: types.PlantWind, JoinTolerance: 30 * time.Minute})
	records, _, err := p.RunTraining(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, hour(1), records[0].Observation.Time)
}

func TestRunTraining_UnavailableSeriesSkipsRows(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.down[types.Coordinate{Lat: -5, Lon: -36}] = true
	src := &sliceSource{records: []types.PlantRecord{
		plant("A", f(-5), f(-36), 0),
		plant("A", f(-5), f(-36), 1),
		plant("B", f(-6), f(-37), 1),
	}}

	records, stats, err := newWindPipeline(fetcher, 100).RunTraining(context.Background(), src)
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, 2, stats.UnavailableSeries)
	assert.Equal(t, 1, stats.FetchFailures)
	assert.Equal(t, 2, stats.Dropped())
}

func TestRunTraining_DerivesWindFields(t *testing.T) {
	src := &sliceSource{records: []types.PlantRecord{plant("A", f(0), f(-36), 0)}}

	records, _, err := newWindPipeline(newFakeFetcher(), 100).RunTraining(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	require.NotNil(t, r.Potential)
	assert.Equal(t, 0.2, r.Potential.Roughness)
	require.NotNil(t, r.Potential.Index)
	assert.Equal(t, types.PotentialHigh, r.Potential.Class)
	assert.Equal(t, 10.0, r.Observation.WindSpeed10m)
	assert.Equal(t, 12.46, r.Observation.WindGusts10m)
	assert.Equal(t, 0.42, *r.CapacityFactor)
}

func TestRunTraining_SolarHasNoPotential(t *testing.T) {
	src := &sliceSource{records: []types.PlantRecord{plant("S", f(-16), f(-49), 0)}}

	p := NewPipeline(newFakeFetcher(), Config{PlantType: types.PlantSolar})
	records, _, err := p.RunTraining(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Potential)
}

func TestRunTraining_SourceErrorIsFatalAndCloses(t *testing.T) {
	src := &sliceSource{
		records: []types.PlantRecord{
			plant("A", f(-5), f(-36), 0),
			plant("A", f(-5), f(-36), 1),
			plant("A", f(-5), f(-36), 2),
		},
		failAt: 2,
	}

	records, _, err := newWindPipeline(newFakeFetcher(), 2).RunTraining(context.Background(), src)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	assert.Nil(t, records)
	assert.Equal(t, 1, src.closed)
}

func TestRunTraining_UsesBatchSize(t *testing.T) {
	src := &sliceSource{records: make([]types.PlantRecord, 5)}
	for i := range src.records {
		src.records[i] = plant("A", f(-5), f(-36), 0)
	}

	_, _, err := newWindPipeline(newFakeFetcher(), 2).RunTraining(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2}, src.batchReq)
}

func TestRunTraining_Deterministic(t *testing.T) {
	input := []types.PlantRecord{
		plant("A", f(-5), f(-36), 2),
		plant("B", f(-6), f(-37), 0),
		plant("A", f(-5), f(-36), 1),
		plant("C", nil, f(-37), 1),
	}

	run := func() []types.EnrichedRecord {
		src := &sliceSource{records: append([]types.PlantRecord(nil), input...)}
		records, _, err := newWindPipeline(newFakeFetcher(), 3).RunTraining(context.Background(), src)
		require.NoError(t, err)
		return records
	}

	assert.Equal(t, run(), run())
}

func TestRunAreas_EmitsEveryHourInOrder(t *testing.T) {
	fetcher := newFakeFetcher()
	goiania := types.Area{Name: "Goiânia", State: "GO", Coordinate: types.Coordinate{Lat: -16.68, Lon: -49.25}}
	anapolis := types.Area{Name: "Anápolis", State: "GO", Coordinate: types.Coordinate{Lat: -16.33, Lon: -48.95}}
	fetcher.series[goiania.Coordinate] = []int{3, 1, 2}
	fetcher.down[anapolis.Coordinate] = true

	records, stats := newWindPipeline(fetcher, 0).RunAreas(context.Background(), []types.Area{goiania, anapolis})

	require.Len(t, records, 3)
	for i, want := range []int{1, 2, 3} {
		assert.Equal(t, hour(want), records[i].Instant)
		assert.Equal(t, "Goiânia", records[i].Name)
		assert.Equal(t, "GO", records[i].State)
		assert.Nil(t, records[i].CapacityFactor)
		assert.NotNil(t, records[i].Potential)
	}
	assert.Equal(t, 1, stats.UnavailableSeries)
	assert.Equal(t, 2, stats.Fetches)
}
