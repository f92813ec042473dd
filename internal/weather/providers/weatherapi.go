package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/weather-vibe-finder/internal/weather"
	"github.com/sony/gobreaker"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, c weather.Coordinate) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "lat,lon".
		values.Set("q", c.Key())

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			LastUpdatedEpoch int64   `json:"last_updated_epoch"`
			TempC            float64 `json:"temp_c"`
			WindKph          float64 `json:"wind_kph"`
			Condition        struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, err
	}

	ts := time.Now().UTC()
	if payload.Current.LastUpdatedEpoch > 0 {
		ts = time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	}

	return weather.Observation{
		Provider:     p.name,
		Timestamp:    ts,
		TemperatureC: payload.Current.TempC,
		WindSpeedKph: payload.Current.WindKph,
		Condition:    mapWeatherAPICondition(payload.Current.Condition.Text),
	}, nil
}

// mapWeatherAPICondition maps WeatherAPI's free-text condition. Order matters:
// the more specific phrases are checked first.
func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return weather.ConditionUnknown
	case containsAny(t, "thundery outbreaks", "patchy light rain with thunder", "patchy light snow with thunder"):
		return weather.ConditionIsolatedThunderstorms
	case containsAny(t, "moderate or heavy rain with thunder", "moderate or heavy snow with thunder"):
		return weather.ConditionStrongStorms
	case containsAny(t, "thunder", "storm"):
		return weather.ConditionThunderstorms
	case containsAny(t, "blizzard"):
		return weather.ConditionBlizzard
	case containsAny(t, "sleet", "ice pellets", "freezing"):
		if containsAny(t, "fog") {
			return weather.ConditionFoggy
		}
		return weather.ConditionWintryMix
	case containsAny(t, "heavy snow", "moderate or heavy snow"):
		return weather.ConditionHeavySnow
	case containsAny(t, "light snow showers"):
		return weather.ConditionSunFlurries
	case containsAny(t, "patchy light snow", "light snow", "patchy snow"):
		return weather.ConditionFlurries
	case containsAny(t, "snow"):
		return weather.ConditionSnow
	case containsAny(t, "torrential", "heavy rain"):
		return weather.ConditionHeavyRain
	case containsAny(t, "shower"):
		return weather.ConditionSunShowers
	case containsAny(t, "drizzle"):
		return weather.ConditionDrizzle
	case containsAny(t, "rain"):
		return weather.ConditionRain
	case containsAny(t, "fog"):
		return weather.ConditionFoggy
	case containsAny(t, "mist", "haze"):
		return weather.ConditionHaze
	case containsAny(t, "smoke"):
		return weather.ConditionSmoky
	case t == "overcast":
		return weather.ConditionCloudy
	case t == "cloudy":
		return weather.ConditionMostlyCloudy
	case containsAny(t, "partly cloudy"):
		return weather.ConditionPartlyCloudy
	case containsAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
