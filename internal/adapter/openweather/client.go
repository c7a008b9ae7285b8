// Package openweather implements the weather source and geocoding
// capabilities against the OpenWeather API.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/sony/gobreaker"
)

// Client implements domain.WeatherSource and domain.Geocoder using the
// OpenWeather One Call and Geocoding APIs. All outbound calls share one
// circuit breaker so a provider outage trips fast instead of burning the
// per-run request budget one timeout at a time.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an OpenWeather client.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweather",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: logger,
	}
}

// Geocode resolves a place name to coordinates via /geo/1.0/direct.
// An empty result set means the name has no match; that is reported through
// GeocodeResult.Found, not an error.
func (c *Client) Geocode(ctx context.Context, name, country string) (domain.GeocodeResult, error) {
	params := url.Values{
		"q":     {fmt.Sprintf("%s,,%s", name, country)},
		"limit": {"1"},
	}

	body, err := c.get(ctx, "/geo/1.0/direct", params)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("geocode %q: %w", name, err)
	}

	var matches []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &matches); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("geocode %q: decode response: %w", name, err)
	}

	if len(matches) == 0 {
		return domain.GeocodeResult{}, nil
	}
	return domain.GeocodeResult{
		Latitude:  matches[0].Lat,
		Longitude: matches[0].Lon,
		Found:     true,
	}, nil
}

// daySummaryResponse is the shape of /data/3.0/onecall/day_summary.
type daySummaryResponse struct {
	Date        string `json:"date"`
	Temperature struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temperature"`
	Precipitation struct {
		Total float64 `json:"total"`
	} `json:"precipitation"`
	Wind struct {
		Max struct {
			Speed     float64 `json:"speed"`
			Direction float64 `json:"direction"`
		} `json:"max"`
	} `json:"wind"`
}

// DailyAggregate fetches the day summary for one (coordinate, date).
// Any transport or shape failure is reported as ErrSourceUnavailable.
func (c *Client) DailyAggregate(ctx context.Context, lat, lon float64, date time.Time) (domain.DaySummary, error) {
	params := url.Values{
		"lat":   {formatCoord(lat)},
		"lon":   {formatCoord(lon)},
		"date":  {domain.FormatDate(date)},
		"units": {"metric"},
	}

	body, err := c.get(ctx, "/data/3.0/onecall/day_summary", params)
	if err != nil {
		return domain.DaySummary{}, fmt.Errorf("%w: day summary: %v", domain.ErrSourceUnavailable, err)
	}

	var resp daySummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DaySummary{}, fmt.Errorf("%w: day summary: decode response: %v", domain.ErrSourceUnavailable, err)
	}
	respDate, err := domain.ParseDate(resp.Date)
	if err != nil {
		return domain.DaySummary{}, fmt.Errorf("%w: day summary: unexpected shape: %v", domain.ErrSourceUnavailable, err)
	}

	return domain.DaySummary{
		Date:          respDate,
		MinTemp:       resp.Temperature.Min,
		MaxTemp:       resp.Temperature.Max,
		Rainfall:      resp.Precipitation.Total,
		WindGustDeg:   resp.Wind.Max.Direction,
		WindGustSpeed: resp.Wind.Max.Speed,
	}, nil
}

// timemachineResponse is the shape of /data/3.0/onecall/timemachine.
type timemachineResponse struct {
	Data []struct {
		Temp      float64 `json:"temp"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
		Clouds    float64 `json:"clouds"`
		WindSpeed float64 `json:"wind_speed"`
		WindDeg   float64 `json:"wind_deg"`
	} `json:"data"`
}

// TimestampSnapshot fetches the weather state at a single instant.
// Any transport or shape failure is reported as ErrSourceUnavailable.
func (c *Client) TimestampSnapshot(ctx context.Context, lat, lon float64, at time.Time) (domain.Snapshot, error) {
	params := url.Values{
		"lat":   {formatCoord(lat)},
		"lon":   {formatCoord(lon)},
		"dt":    {strconv.FormatInt(at.Unix(), 10)},
		"units": {"metric"},
	}

	body, err := c.get(ctx, "/data/3.0/onecall/timemachine", params)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot: %v", domain.ErrSourceUnavailable, err)
	}

	var resp timemachineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot: decode response: %v", domain.ErrSourceUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot: empty data array", domain.ErrSourceUnavailable)
	}

	d := resp.Data[0]
	return domain.Snapshot{
		WindDeg:   d.WindDeg,
		WindSpeed: d.WindSpeed,
		Humidity:  d.Humidity,
		Pressure:  d.Pressure,
		Clouds:    d.Clouds,
		Temp:      d.Temp,
	}, nil
}

// CurrentWeather fetches the current conditions as raw JSON for the
// current-weather pipeline; parsing happens in the transform stage so the
// datalake keeps the payload byte-for-byte.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) ([]byte, error) {
	params := url.Values{
		"lat":   {formatCoord(lat)},
		"lon":   {formatCoord(lon)},
		"units": {"metric"},
	}
	body, err := c.get(ctx, "/data/2.5/weather", params)
	if err != nil {
		return nil, fmt.Errorf("%w: current weather: %v", domain.ErrSourceUnavailable, err)
	}
	return body, nil
}

// AirPollution fetches the current air pollution state as raw JSON for the
// air-quality pipeline.
func (c *Client) AirPollution(ctx context.Context, lat, lon float64) ([]byte, error) {
	params := url.Values{
		"lat": {formatCoord(lat)},
		"lon": {formatCoord(lon)},
	}
	body, err := c.get(ctx, "/data/2.5/air_pollution", params)
	if err != nil {
		return nil, fmt.Errorf("%w: air pollution: %v", domain.ErrSourceUnavailable, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("appid", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
