package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

func TestOpenMeteoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("latitude") != "60.3913" || q.Get("longitude") != "5.3221" {
			t.Errorf("unexpected coordinates in query: %s", r.URL.RawQuery)
		}
		if q.Get("current_weather") != "true" {
			t.Errorf("expected current_weather=true, got %q", q.Get("current_weather"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current_weather":{"temperature":11.4,"windspeed":18.2,"weathercode":63,"time":"2025-06-01T12:00"}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client()).WithBaseURL(srv.URL)
	obs, err := p.Fetch(context.Background(), weather.Coordinate{Lat: 60.3913, Lon: 5.3221})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if obs.Condition != weather.ConditionRain {
		t.Fatalf("expected rain, got %s", obs.Condition)
	}
	if obs.TemperatureC != 11.4 || obs.WindSpeedKph != 18.2 {
		t.Fatalf("unexpected reading: %+v", obs)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !obs.Timestamp.Equal(want) {
		t.Fatalf("expected timestamp %v, got %v", want, obs.Timestamp)
	}
	if obs.Provider != "openmeteo" {
		t.Fatalf("expected provider name to be set, got %q", obs.Provider)
	}
}

func TestOpenMeteoMissingCurrentWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client()).WithBaseURL(srv.URL)
	if _, err := p.Fetch(context.Background(), weather.Coordinate{}); err == nil {
		t.Fatal("expected error for response without current weather")
	}
}

func TestRetriesThenFailsOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client()).WithBaseURL(srv.URL)
	p.httpCfg.Backoff.InitialInterval = time.Millisecond
	p.httpCfg.Backoff.MaxInterval = 2 * time.Millisecond

	_, err := p.Fetch(context.Background(), weather.Coordinate{Lat: 1, Lon: 1})
	if !errors.Is(err, errServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	if got := calls.Load(); got != int32(p.httpCfg.Backoff.MaxRetries+1) {
		t.Fatalf("expected %d attempts, got %d", p.httpCfg.Backoff.MaxRetries+1, got)
	}
}

func TestWeatherAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "-33.8688,151.2093" {
			t.Errorf("unexpected q: %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(`{"current":{"last_updated_epoch":1748779200,"temp_c":17.5,"wind_kph":31.0,"condition":{"text":"Moderate or heavy rain with thunder"}}}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "key").WithBaseURL(srv.URL)
	obs, err := p.Fetch(context.Background(), weather.Coordinate{Lat: -33.8688, Lon: 151.2093})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Condition != weather.ConditionStrongStorms || obs.WindSpeedKph != 31 {
		t.Fatalf("unexpected observation: %+v", obs)
	}
	if !obs.Timestamp.Equal(time.Unix(1748779200, 0)) {
		t.Fatalf("unexpected timestamp %v", obs.Timestamp)
	}
}

func TestOpenWeatherConvertsWind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dt":1748779200,"main":{"temp":3.2},"wind":{"speed":10},"weather":[{"id":741}]}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key").WithBaseURL(srv.URL)
	obs, err := p.Fetch(context.Background(), weather.Coordinate{Lat: 37.7749, Lon: -122.4194})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Condition != weather.ConditionFoggy {
		t.Fatalf("expected foggy, got %s", obs.Condition)
	}
	if obs.WindSpeedKph != 36 {
		t.Fatalf("expected 36 kph, got %v", obs.WindSpeedKph)
	}
}

func TestKeyedProvidersRequireKey(t *testing.T) {
	ctx := context.Background()
	if _, err := NewWeatherAPIProvider(http.DefaultClient, "").Fetch(ctx, weather.Coordinate{}); !errors.Is(err, errNoAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if _, err := NewOpenWeatherProvider(http.DefaultClient, "").Fetch(ctx, weather.Coordinate{}); !errors.Is(err, errNoAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestConditionMappings(t *testing.T) {
	meteo := map[int]weather.Condition{
		0: weather.ConditionClear, 2: weather.ConditionPartlyCloudy, 45: weather.ConditionFoggy,
		55: weather.ConditionDrizzle, 65: weather.ConditionHeavyRain, 80: weather.ConditionSunShowers,
		75: weather.ConditionHeavySnow, 77: weather.ConditionFlurries, 95: weather.ConditionThunderstorms,
		99: weather.ConditionStrongStorms, 12: weather.ConditionUnknown,
	}
	for code, want := range meteo {
		if got := mapOpenMeteoCondition(code); got != want {
			t.Errorf("openmeteo %d: expected %s, got %s", code, want, got)
		}
	}

	owm := map[int]weather.Condition{
		210: weather.ConditionIsolatedThunderstorms, 201: weather.ConditionThunderstorms,
		502: weather.ConditionHeavyRain, 521: weather.ConditionSunShowers, 711: weather.ConditionSmoky,
		721: weather.ConditionHaze, 803: weather.ConditionMostlyCloudy, 804: weather.ConditionCloudy,
	}
	for id, want := range owm {
		if got := mapOpenWeatherCondition(id); got != want {
			t.Errorf("openweather %d: expected %s, got %s", id, want, got)
		}
	}

	wapi := map[string]weather.Condition{
		"Sunny":                       weather.ConditionClear,
		"Partly cloudy":               weather.ConditionPartlyCloudy,
		"Overcast":                    weather.ConditionCloudy,
		"Mist":                        weather.ConditionHaze,
		"Freezing fog":                weather.ConditionFoggy,
		"Light rain shower":           weather.ConditionSunShowers,
		"Heavy rain":                  weather.ConditionHeavyRain,
		"Patchy light drizzle":        weather.ConditionDrizzle,
		"Blizzard":                    weather.ConditionBlizzard,
		"Light sleet":                 weather.ConditionWintryMix,
		"Patchy light snow":           weather.ConditionFlurries,
		"Thundery outbreaks possible": weather.ConditionIsolatedThunderstorms,
		"":                            weather.ConditionUnknown,
	}
	for text, want := range wapi {
		if got := mapWeatherAPICondition(text); got != want {
			t.Errorf("weatherapi %q: expected %s, got %s", text, want, got)
		}
	}
}
