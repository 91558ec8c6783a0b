package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"capfactor/internal/types"
)

// openMeteoTimeLayout is the naive hourly timestamp format of the archive API.
const openMeteoTimeLayout = "2006-01-02T15:04"

// WeatherProfile describes one archive query shape: endpoint path, hourly
// fields and date range, plus how a row of field values lands on an
// observation.
type WeatherProfile struct {
	Name      string
	Path      string
	Fields    []string
	StartDate string
	EndDate   string
	assign    func(obs *types.WeatherObservation, values []float64)
}

// WindProfile queries the ERA5 reanalysis archive for 10 m wind.
func WindProfile(path, start, end string) WeatherProfile {
	return WeatherProfile{
		Name:      string(types.PlantWind),
		Path:      path,
		Fields:    []string{"windspeed_10m", "windgusts_10m", "winddirection_10m"},
		StartDate: start,
		EndDate:   end,
		assign: func(obs *types.WeatherObservation, v []float64) {
			obs.WindSpeed10m, obs.WindGusts10m, obs.WindDirection10m = v[0], v[1], v[2]
		},
	}
}

// SolarProfile queries the plain archive for temperature, cloud cover and
// shortwave radiation.
func SolarProfile(path, start, end string) WeatherProfile {
	return WeatherProfile{
		Name:      string(types.PlantSolar),
		Path:      path,
		Fields:    []string{"temperature_2m", "cloudcover", "shortwave_radiation"},
		StartDate: start,
		EndDate:   end,
		assign: func(obs *types.WeatherObservation, v []float64) {
			obs.TemperatureC, obs.CloudCoverPct, obs.IrradianceWm2 = v[0], v[1], v[2]
		},
	}
}

// WeatherClientConfig configures an OpenMeteoClient.
type WeatherClientConfig struct {
	BaseURL  string
	Timezone string
	Profile  WeatherProfile
	Logger   *slog.Logger
}

// OpenMeteoClient fetches hourly weather series from the Open-Meteo archive.
type OpenMeteoClient struct {
	base     *BaseClient
	baseURL  string
	timezone string
	profile  WeatherProfile
	logger   *slog.Logger
}

// NewOpenMeteoClient creates a weather client for one profile.
func NewOpenMeteoClient(base *BaseClient, cfg WeatherClientConfig) *OpenMeteoClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "GMT"
	}
	return &OpenMeteoClient{
		base:     base,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		timezone: tz,
		profile:  cfg.Profile,
		logger:   logger,
	}
}

// NewWeatherBaseClient returns the BaseClient settings used for the archive.
func NewWeatherBaseClient(timeout time.Duration, maxRetries int, opts ...BaseClientOption) *BaseClient {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = maxRetries
	return NewBaseClient(&http.Client{Timeout: timeout}, "open-meteo", policy, "capfactor/1.0", opts...)
}

// Profile returns the client's query profile.
func (c *OpenMeteoClient) Profile() WeatherProfile {
	return c.profile
}

type openMeteoResponse struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Elevation *float64                   `json:"elevation"`
	Hourly    map[string]json.RawMessage `json:"hourly"`
}

// Fetch retrieves the full hourly series for c. Failures never escape as
// errors: they are logged at WARN and returned as an unavailable result.
func (c *OpenMeteoClient) Fetch(ctx context.Context, coord types.Coordinate) types.FetchResult {
	series, err := c.fetch(ctx, coord)
	if err != nil {
		c.logger.WarnContext(ctx, "weather fetch failed",
			"profile", c.profile.Name,
			"lat", coord.Lat,
			"lon", coord.Lon,
			"error", err,
		)
		return types.Unavailable(err)
	}
	c.logger.DebugContext(ctx, "weather series fetched",
		"profile", c.profile.Name,
		"lat", coord.Lat,
		"lon", coord.Lon,
		"hours", series.Len(),
	)
	return types.FetchResult{Series: series}
}

func (c *OpenMeteoClient) requestURL(coord types.Coordinate) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	q.Set("start_date", c.profile.StartDate)
	q.Set("end_date", c.profile.EndDate)
	q.Set("hourly", strings.Join(c.profile.Fields, ","))
	q.Set("timezone", c.timezone)
	return c.baseURL + c.profile.Path + "?" + q.Encode()
}

func (c *OpenMeteoClient) fetch(ctx context.Context, coord types.Coordinate) (*types.WeatherSeries, error) {
	body, err := c.base.GetBytes(ctx, c.requestURL(coord))
	if err != nil {
		return nil, err
	}

	var payload openMeteoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode weather response", err)
	}
	return c.decodeSeries(coord, payload)
}

// decodeSeries turns the parallel hourly arrays into a series. Hours where
// any requested field is null are skipped.
func (c *OpenMeteoClient) decodeSeries(coord types.Coordinate, payload openMeteoResponse) (*types.WeatherSeries, error) {
	var times []string
	if raw, ok := payload.Hourly["time"]; !ok {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "weather response has no hourly time axis", nil)
	} else if err := json.Unmarshal(raw, &times); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode hourly time axis", err)
	}

	columns := make([][]*float64, len(c.profile.Fields))
	for i, field := range c.profile.Fields {
		raw, ok := payload.Hourly[field]
		if !ok {
			return nil, types.NewAppError(types.ErrCodeUpstreamWeather, fmt.Sprintf("weather response is missing %s", field), nil)
		}
		if err := json.Unmarshal(raw, &columns[i]); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamWeather, fmt.Sprintf("failed to decode %s", field), err)
		}
		if len(columns[i]) != len(times) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeather, "hourly arrays have mismatched lengths", nil,
				map[string]any{"field": field, "len": len(columns[i]), "time_len": len(times)})
		}
	}

	series := types.NewWeatherSeries(coord, payload.Elevation)
	values := make([]float64, len(columns))
	for row, ts := range times {
		t, err := time.ParseInLocation(openMeteoTimeLayout, ts, time.UTC)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamWeather, fmt.Sprintf("bad hourly timestamp %q", ts), err)
		}

		complete := true
		for i := range columns {
			if columns[i][row] == nil {
				complete = false
				break
			}
			values[i] = *columns[i][row]
		}
		if !complete {
			continue
		}

		obs := types.WeatherObservation{Time: t, Altitude: payload.Elevation}
		c.profile.assign(&obs, values)
		series.Observations[t] = obs
	}
	return series, nil
}
