package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var (
	ErrNoProviders        = errors.New("no weather providers configured")
	ErrAllProvidersFailed = errors.New("all weather providers failed")
)

// Service fronts the configured providers with the shared observation cache.
// Providers are tried in order; the first successful reading wins.
type Service struct {
	cache     Cache
	providers []Provider
}

// NewService creates a new Service.
func NewService(cache Cache, providers []Provider) *Service {
	return &Service{
		cache:     cache,
		providers: providers,
	}
}

// Name implements Provider.
func (s *Service) Name() string {
	return "chain"
}

// Fetch asks each provider in turn until one returns an observation.
// Failures are wrapped in a *ProviderError.
func (s *Service) Fetch(ctx context.Context, c Coordinate) (Observation, error) {
	if len(s.providers) == 0 {
		return Observation{}, &ProviderError{Provider: s.Name(), Coordinate: c, Err: ErrNoProviders}
	}

	var errs []error
	for _, p := range s.providers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		obs, err := p.Fetch(ctx, c)
		if err != nil {
			// Log and continue; another provider may still answer.
			log.Printf("provider %s fetch failed for %s: %v", p.Name(), c.Key(), err)
			errs = append(errs, err)
			continue
		}
		if obs.Provider == "" {
			obs.Provider = p.Name()
		}
		obs.Coordinate = c
		return obs, nil
	}

	return Observation{}, &ProviderError{
		Provider:   s.Name(),
		Coordinate: c,
		Err:        fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...)),
	}
}

// Cached returns a fresh cached observation for key, if any.
func (s *Service) Cached(key string) (Observation, bool) {
	if s.cache == nil {
		return Observation{}, false
	}
	return s.cache.Get(key)
}

// Refresh fetches a live observation for c and stores it under key.
func (s *Service) Refresh(ctx context.Context, key string, c Coordinate) (Observation, error) {
	obs, err := s.Fetch(ctx, c)
	if err != nil {
		return Observation{}, err
	}
	if s.cache != nil {
		s.cache.Put(key, obs)
	}
	return obs, nil
}

// Observe returns the cached observation for key or fetches and caches a live one.
// The boolean reports whether the cache answered.
func (s *Service) Observe(ctx context.Context, key string, c Coordinate) (Observation, bool, error) {
	if obs, ok := s.Cached(key); ok {
		return obs, true, nil
	}
	obs, err := s.Refresh(ctx, key, c)
	return obs, false, err
}

// CurrentWeather returns the weather at the caller's own location. The latest
// reading is kept under CurrentLocationKey; it only answers for the coordinate
// it was taken at, any other coordinate is fetched live and replaces it.
func (s *Service) CurrentWeather(ctx context.Context, c Coordinate) (Observation, bool, error) {
	log.Printf("DEBUG: CurrentWeather called for %s", c.Key())
	if obs, ok := s.Cached(CurrentLocationKey); ok && obs.Coordinate == c {
		return obs, true, nil
	}
	obs, err := s.Refresh(ctx, CurrentLocationKey, c)
	return obs, false, err
}
