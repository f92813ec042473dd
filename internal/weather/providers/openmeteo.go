package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-vibe-finder/internal/weather"
	"github.com/sony/gobreaker"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openmeteo"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, c weather.Coordinate) (weather.Observation, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(c.Lon, 'f', -1, 64))
		values.Set("current_weather", "true")
		values.Set("windspeed_unit", "kmh")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		CurrentWeather *struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			Time        string  `json:"time"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, err
	}
	if payload.CurrentWeather == nil {
		return weather.Observation{}, fmt.Errorf("openmeteo: response has no current weather")
	}

	// Open-Meteo renders local time without seconds or offset.
	ts, err := time.Parse("2006-01-02T15:04", payload.CurrentWeather.Time)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	return weather.Observation{
		Provider:     p.name,
		Timestamp:    ts,
		TemperatureC: payload.CurrentWeather.Temperature,
		WindSpeedKph: payload.CurrentWeather.WindSpeed,
		Condition:    mapOpenMeteoCondition(payload.CurrentWeather.WeatherCode),
	}, nil
}

// mapOpenMeteoCondition maps WMO weather interpretation codes.
func mapOpenMeteoCondition(code int) weather.Condition {
	switch code {
	case 0:
		return weather.ConditionClear
	case 1:
		return weather.ConditionMostlyClear
	case 2:
		return weather.ConditionPartlyCloudy
	case 3:
		return weather.ConditionCloudy
	case 45, 48:
		return weather.ConditionFoggy
	case 51, 53, 55:
		return weather.ConditionDrizzle
	case 56, 57, 66, 67:
		return weather.ConditionWintryMix
	case 61, 63:
		return weather.ConditionRain
	case 65, 82:
		return weather.ConditionHeavyRain
	case 80, 81:
		return weather.ConditionSunShowers
	case 71, 73:
		return weather.ConditionSnow
	case 75, 86:
		return weather.ConditionHeavySnow
	case 77, 85:
		return weather.ConditionFlurries
	case 95:
		return weather.ConditionThunderstorms
	case 96, 99:
		return weather.ConditionStrongStorms
	default:
		return weather.ConditionUnknown
	}
}
