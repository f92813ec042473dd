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

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = u
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, c weather.Coordinate) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			ID int `json:"id"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	cond := weather.ConditionUnknown
	if len(payload.Weather) > 0 {
		cond = mapOpenWeatherCondition(payload.Weather[0].ID)
	}

	return weather.Observation{
		Provider:     p.name,
		Timestamp:    ts,
		TemperatureC: payload.Main.Temp,
		WindSpeedKph: payload.Wind.Speed * kphPerMS,
		Condition:    cond,
	}, nil
}

// mapOpenWeatherCondition maps OpenWeatherMap condition ids.
func mapOpenWeatherCondition(id int) weather.Condition {
	switch {
	case id == 210:
		return weather.ConditionIsolatedThunderstorms
	case id == 202 || id == 212 || id == 221:
		return weather.ConditionStrongStorms
	case id == 230 || id == 231 || id == 232:
		return weather.ConditionScatteredThunderstorms
	case id >= 200 && id < 300:
		return weather.ConditionThunderstorms
	case id >= 300 && id < 400:
		return weather.ConditionDrizzle
	case id == 500 || id == 501:
		return weather.ConditionRain
	case id >= 502 && id <= 504:
		return weather.ConditionHeavyRain
	case id == 511:
		return weather.ConditionWintryMix
	case id >= 520 && id < 600:
		return weather.ConditionSunShowers
	case id == 600 || id == 620:
		return weather.ConditionFlurries
	case id == 601 || id == 621:
		return weather.ConditionSnow
	case id == 602 || id == 622:
		return weather.ConditionHeavySnow
	case id >= 611 && id <= 616:
		return weather.ConditionWintryMix
	case id == 711 || id == 762:
		return weather.ConditionSmoky
	case id == 741:
		return weather.ConditionFoggy
	case id == 771:
		return weather.ConditionWindy
	case id == 781:
		return weather.ConditionStrongStorms
	case id >= 700 && id < 800:
		return weather.ConditionHaze
	case id == 800:
		return weather.ConditionClear
	case id == 801:
		return weather.ConditionMostlyClear
	case id == 802:
		return weather.ConditionPartlyCloudy
	case id == 803:
		return weather.ConditionMostlyCloudy
	case id == 804:
		return weather.ConditionCloudy
	default:
		return weather.ConditionUnknown
	}
}
