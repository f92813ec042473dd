package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-vibe-finder/internal/catalog"
	"github.com/i474232898/weather-vibe-finder/internal/search"
	"github.com/i474232898/weather-vibe-finder/internal/store"
	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

type stubProvider struct {
	obs weather.Observation
	err error
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) Fetch(ctx context.Context, c weather.Coordinate) (weather.Observation, error) {
	return p.obs, p.err
}

// latitudeProvider reports a temperature equal to the requested latitude.
type latitudeProvider struct{}

func (latitudeProvider) Name() string { return "latitude" }

func (latitudeProvider) Fetch(ctx context.Context, c weather.Coordinate) (weather.Observation, error) {
	return weather.Observation{TemperatureC: c.Lat, Condition: weather.ConditionClear, WindSpeedKph: 5}, nil
}

var sunny = weather.Observation{TemperatureC: 25, Condition: weather.ConditionClear, WindSpeedKph: 5}

func newTestApp(p weather.Provider) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	cat := catalog.New(map[weather.Vibe][]weather.Location{
		weather.VibeSunny: {{
			Name:       "Seville",
			Coordinate: weather.Coordinate{Lat: 37.3891, Lon: -5.9845},
			TimeZone:   "Europe/Madrid",
			Country:    "Spain",
			Priority:   9,
		}},
	}, nil, nil)
	cache := store.NewMemoryStore(0)
	svc := weather.NewService(cache, []weather.Provider{p})
	engine := search.NewEngine(cat, svc, search.WithFetchDelay(0))

	RegisterRoutes(app, Dependencies{Catalog: cat, Service: svc, Engine: engine, Cache: cache})
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestSearchEndpoint(t *testing.T) {
	app := newTestApp(stubProvider{obs: sunny})

	status, body := do(t, app, http.MethodPost, "/api/v1/vibes/sunny/search", "")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body["found"] != true {
		t.Fatalf("expected a match, got %v", body)
	}
	result := body["result"].(map[string]any)
	if result["tier"] != "primary" || result["matchScore"].(float64) != 100 {
		t.Fatalf("unexpected result: %v", result)
	}

	// The only location is now used; the next search exhausts and resets.
	_, body = do(t, app, http.MethodPost, "/api/v1/vibes/sunny/search", "")
	if body["found"] != false {
		t.Fatalf("expected no match, got %v", body)
	}

	status, _ = do(t, app, http.MethodPost, "/api/v1/vibes/humid/search", "")
	if status != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, status)
	}
}

func TestLocationsEndpoint(t *testing.T) {
	app := newTestApp(stubProvider{obs: sunny})

	status, body := do(t, app, http.MethodGet, "/api/v1/vibes/sunny/locations?tier=primary", "")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if locs := body["locations"].([]any); len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}

	_, body = do(t, app, http.MethodGet, "/api/v1/vibes/sunny/random", "")
	if body["name"] != "Seville" {
		t.Fatalf("expected Seville, got %v", body)
	}
	status, _ = do(t, app, http.MethodGet, "/api/v1/vibes/snowy/random", "")
	if status != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, status)
	}

	status, body = do(t, app, http.MethodGet, "/api/v1/vibes/sunny/locations?tier=tertiary", "")
	if status != http.StatusBadRequest || body["error"] != true {
		t.Fatalf("expected 400 error body, got %d %v", status, body)
	}
}

func TestClassifyValidation(t *testing.T) {
	app := newTestApp(stubProvider{obs: sunny})

	cases := []string{
		`{"condition":"clear","windSpeedKph":5}`,
		`{"temperatureC":20,"condition":"clear","windSpeedKph":-1}`,
		`{"temperatureC":20,"condition":"sleet-ish","windSpeedKph":5}`,
		`{"vibe":"humid","temperatureC":20,"condition":"clear","windSpeedKph":5}`,
		`not json`,
	}
	for _, body := range cases {
		status, _ := do(t, app, http.MethodPost, "/api/v1/classify", body)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", body, http.StatusBadRequest, status)
		}
	}
}

func TestClassify(t *testing.T) {
	app := newTestApp(stubProvider{obs: sunny})

	_, body := do(t, app, http.MethodPost, "/api/v1/classify", `{"vibe":"rainy","temperatureC":25.9,"condition":"rain","windSpeedKph":10}`)
	if body["match"] != true {
		t.Fatalf("expected 25.9C to match rainy after truncation, got %v", body)
	}

	_, body = do(t, app, http.MethodPost, "/api/v1/classify", `{"temperatureC":0,"condition":"clear","windSpeedKph":0}`)
	if matches := body["matches"].([]any); len(matches) != 0 {
		t.Fatalf("expected no matching vibes, got %v", matches)
	}
}

func TestCurrentWeather(t *testing.T) {
	app := newTestApp(stubProvider{obs: sunny})

	status, body := do(t, app, http.MethodGet, "/api/v1/weather/current?lat=51.5&lon=-0.12", "")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body["cached"] != false {
		t.Fatal("expected first lookup to be live")
	}

	_, body = do(t, app, http.MethodGet, "/api/v1/weather/current?lat=51.5&lon=-0.12", "")
	if body["cached"] != true {
		t.Fatal("expected repeated lookup to be served from cache")
	}

	for _, q := range []string{"", "?lat=91&lon=0", "?lat=abc&lon=0", "?lat=NaN&lon=0"} {
		status, _ := do(t, app, http.MethodGet, "/api/v1/weather/current"+q, "")
		if status != http.StatusBadRequest {
			t.Fatalf("%q: expected status %d, got %d", q, http.StatusBadRequest, status)
		}
	}
}

func TestCurrentWeatherIsPerCoordinate(t *testing.T) {
	app := newTestApp(latitudeProvider{})

	_, body := do(t, app, http.MethodGet, "/api/v1/weather/current?lat=30&lon=0", "")
	if temp := body["observation"].(map[string]any)["temperatureC"].(float64); temp != 30 {
		t.Fatalf("expected 30, got %v", temp)
	}

	_, body = do(t, app, http.MethodGet, "/api/v1/weather/current?lat=-40&lon=0", "")
	if body["cached"] != false {
		t.Fatal("a different coordinate must not be served from the previous reading")
	}
	if temp := body["observation"].(map[string]any)["temperatureC"].(float64); temp != -40 {
		t.Fatalf("expected -40, got %v", temp)
	}
	if vibes := body["vibes"].([]any); len(vibes) != 0 {
		t.Fatalf("expected no vibes at -40C, got %v", vibes)
	}
}

func TestCurrentWeatherProviderFailure(t *testing.T) {
	app := newTestApp(stubProvider{err: errors.New("down")})

	status, _ := do(t, app, http.MethodGet, "/api/v1/weather/current?lat=1&lon=1", "")
	if status != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, status)
	}
}

func TestVibesAndStats(t *testing.T) {
	app := newTestApp(stubProvider{obs: sunny})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vibes", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var vibes []vibeView
	if err := json.NewDecoder(resp.Body).Decode(&vibes); err != nil {
		t.Fatalf("decode vibes: %v", err)
	}
	resp.Body.Close()
	if len(vibes) != len(weather.AllVibes) {
		t.Fatalf("expected %d vibes, got %d", len(weather.AllVibes), len(vibes))
	}

	do(t, app, http.MethodPost, "/api/v1/vibes/sunny/search", "")
	status, body := do(t, app, http.MethodGet, "/api/v1/stats", "")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body["search"].(map[string]any)["searches"].(float64) != 1 {
		t.Fatalf("unexpected stats: %v", body)
	}
	if _, ok := body["prefetch"]; ok {
		t.Fatal("prefetch stats should be omitted when prefetch is disabled")
	}
}
