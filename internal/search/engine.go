package search

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-vibe-finder/internal/catalog"
	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

const (
	// DefaultFetchDelay spaces consecutive live fetches during a search.
	DefaultFetchDelay = 500 * time.Millisecond
	// DefaultFetchTimeout bounds a single live fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// LocationSource lists candidate locations for a vibe.
type LocationSource interface {
	LocationsFor(vibe weather.Vibe, tier catalog.Tier) []weather.Location
}

// ObservationSource answers from the cache or fetches live readings.
// *weather.Service implements it.
type ObservationSource interface {
	Cached(key string) (weather.Observation, bool)
	Refresh(ctx context.Context, key string, c weather.Coordinate) (weather.Observation, error)
}

// Pauser is implemented by background work that must yield to a search.
type Pauser interface {
	Pause()
	Resume()
}

// Stats are cumulative counters since the engine was created.
type Stats struct {
	Searches         int `json:"searches"`
	Matches          int `json:"matches"`
	Exhausted        int `json:"exhausted"`
	Evaluated        int `json:"evaluated"`
	CacheHits        int `json:"cacheHits"`
	LiveFetches      int `json:"liveFetches"`
	ProviderFailures int `json:"providerFailures"`
	UsedLocations    int `json:"usedLocations"`
}

// Engine finds the first catalog location whose current weather strictly
// matches a vibe. Locations already returned or evaluated are remembered and
// skipped until every candidate is exhausted. Searches are serialized.
type Engine struct {
	mu sync.Mutex

	locations    LocationSource
	observations ObservationSource
	pauser       Pauser
	limiter      *rate.Limiter
	fetchTimeout time.Duration

	used  map[string]struct{}
	stats Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithPauser pauses p for the duration of each search.
func WithPauser(p Pauser) Option {
	return func(e *Engine) { e.pauser = p }
}

// WithFetchDelay sets the minimum spacing of live fetches. Zero or less disables throttling.
func WithFetchDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithFetchTimeout bounds each live fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// NewEngine creates a new Engine.
func NewEngine(locations LocationSource, observations ObservationSource, opts ...Option) *Engine {
	e := &Engine{
		locations:    locations,
		observations: observations,
		limiter:      rate.NewLimiter(rate.Every(DefaultFetchDelay), 1),
		fetchTimeout: DefaultFetchTimeout,
		used:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchForFirstMatch walks the primary, secondary and fallback tiers of vibe in
// priority order and returns the first unused location whose weather strictly
// matches. When every candidate has been tried the used set is cleared and
// false is returned. Cancelling ctx stops the search without clearing it.
func (e *Engine) SearchForFirstMatch(ctx context.Context, vibe weather.Vibe) (weather.VibeSearchResult, bool) {
	if e.pauser != nil {
		e.pauser.Pause()
		defer e.pauser.Resume()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.Searches++
	log.Printf("INFO: search: looking for %s (%d locations already used)", vibe, len(e.used))

	for _, tier := range catalog.SearchTiers {
		candidates := e.locations.LocationsFor(vibe, tier)
		catalog.SortByPriority(candidates)

		for _, loc := range candidates {
			if ctx.Err() != nil {
				log.Printf("INFO: search: %s cancelled: %v", vibe, ctx.Err())
				return weather.VibeSearchResult{}, false
			}

			key := loc.Key()
			if _, done := e.used[key]; done {
				continue
			}
			if err := loc.Validate(); err != nil {
				log.Printf("ERROR: search: skipping invalid location %q: %v", loc.Name, err)
				continue
			}

			e.used[key] = struct{}{}
			e.stats.Evaluated++

			obs, err := e.observe(ctx, loc)
			if err != nil {
				if ctx.Err() != nil {
					log.Printf("INFO: search: %s cancelled: %v", vibe, ctx.Err())
					return weather.VibeSearchResult{}, false
				}
				e.stats.ProviderFailures++
				log.Printf("ERROR: search: weather for %s (%s) unavailable: %v", loc.Name, key, err)
				continue
			}

			if !weather.IsStrictMatch(obs, vibe) {
				continue
			}

			e.stats.Matches++
			result := weather.VibeSearchResult{
				ID:          uuid.NewString(),
				Vibe:        vibe,
				Location:    loc,
				Observation: obs,
				MatchScore:  weather.ComputeScore(obs, vibe),
				Tier:        tier.String(),
				LocalTime:   weather.LocalTime(loc, obs.Timestamp),
			}
			log.Printf("INFO: search: %s matched %s (%s tier, score %.1f)", vibe, loc.Name, tier, result.MatchScore)
			return result, true
		}
	}

	log.Printf("INFO: search: no %s location found, resetting %d used locations", vibe, len(e.used))
	e.stats.Exhausted++
	e.used = make(map[string]struct{})
	return weather.VibeSearchResult{}, false
}

// observe returns a cached observation or waits for the limiter and fetches one.
func (e *Engine) observe(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	key := loc.Key()
	if obs, ok := e.observations.Cached(key); ok {
		e.stats.CacheHits++
		return obs, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return weather.Observation{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	e.stats.LiveFetches++
	return e.observations.Refresh(fetchCtx, key, loc.Coordinate)
}

// ResetUsedLocations forgets every location used so far.
func (e *Engine) ResetUsedLocations() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.used = make(map[string]struct{})
}

// UsedCount reports how many distinct locations are currently marked used.
func (e *Engine) UsedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.used)
}

// Stats returns the cumulative search counters and the current used-set size.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.stats
	st.UsedLocations = len(e.used)
	return st
}
