package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

type AppConfig struct {
	Port string

	// Providers lists provider names in failover order.
	Providers         []string
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	HTTPTimeout       time.Duration

	// CacheTTL is how long an observation stays fresh.
	CacheTTL time.Duration

	PrefetchEnabled      bool
	PrefetchInterval     time.Duration
	PrefetchDelay        time.Duration
	PrefetchStartupDelay time.Duration
	PrefetchPrimary      int
	PrefetchSecondary    int
	PrefetchFallback     int

	// SearchFetchDelay spaces live fetches during a search.
	SearchFetchDelay   time.Duration
	SearchFetchTimeout time.Duration

	// CatalogPath overrides the embedded location dataset when set.
	CatalogPath string

	// Device is the location reported by /weather/current and warmed first.
	Device *weather.Coordinate
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.Providers = splitList(getenvDefault("WEATHER_PROVIDERS", "openmeteo"))
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("WEATHER_PROVIDERS must name at least one provider")
	}
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.PrefetchEnabled = getenvBool("PREFETCH_ENABLED", true)
	if cfg.PrefetchInterval, err = getenvDuration("PREFETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PrefetchDelay, err = getenvDuration("PREFETCH_DELAY", 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PrefetchStartupDelay, err = getenvDuration("PREFETCH_STARTUP_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	cfg.PrefetchPrimary = getenvInt("PREFETCH_PRIMARY_PER_VIBE", 3)
	cfg.PrefetchSecondary = getenvInt("PREFETCH_SECONDARY_PER_VIBE", 2)
	cfg.PrefetchFallback = getenvInt("PREFETCH_FALLBACK_PER_VIBE", 2)

	if cfg.SearchFetchDelay, err = getenvDuration("SEARCH_FETCH_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SearchFetchTimeout, err = getenvDuration("SEARCH_FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.CatalogPath = os.Getenv("CATALOG_PATH")

	if cfg.Device, err = loadDevice(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDevice() (*weather.Coordinate, error) {
	latStr, lonStr := os.Getenv("DEVICE_LAT"), os.Getenv("DEVICE_LON")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, fmt.Errorf("DEVICE_LAT and DEVICE_LON must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid DEVICE_LAT %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("invalid DEVICE_LON %q", lonStr)
	}
	return &weather.Coordinate{Lat: lat, Lon: lon}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
