package weather

import (
	"context"
	"fmt"
)

// CurrentLocationKey is the cache key used for the device's own location.
const CurrentLocationKey = "current_location"

// Provider abstracts a weather data source (e.g. Open-Meteo, WeatherAPI, OpenWeatherMap).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, c Coordinate) (Observation, error)
}

// Cache is the contract the in-memory TTL cache must satisfy.
type Cache interface {
	Get(key string) (Observation, bool)
	Put(key string, obs Observation)
}

// ProviderError records a failed fetch for a single coordinate.
// It is transient: callers searching many candidates log it and move on.
type ProviderError struct {
	Provider   string
	Coordinate Coordinate
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed for %s: %v", e.Provider, e.Coordinate.Key(), e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
