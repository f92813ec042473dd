package store

import (
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

// DefaultTTL is how long a cached observation stays fresh.
const DefaultTTL = 300 * time.Second

// cachedWeather is an observation paired with the time it was stored.
type cachedWeather struct {
	Observation weather.Observation
	FetchedAt   time.Time
}

// Stats summarizes cache usage.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Entries int `json:"entries"`
}

// MemoryStore is a concurrency-safe in-memory TTL cache of weather observations,
// keyed by coordinate key or weather.CurrentLocationKey.
type MemoryStore struct {
	mu sync.RWMutex

	// key: coordinate key, value: last observation
	data map[string]cachedWeather

	ttl time.Duration
	now func() time.Time

	hits   int
	misses int
}

// NewMemoryStore creates a new MemoryStore. If ttl is <= 0, DefaultTTL is used.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		data: make(map[string]cachedWeather),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source; intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// Get returns the cached observation for key. Expired entries are evicted and
// reported as absent.
func (s *MemoryStore) Get(key string) (weather.Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		s.misses++
		return weather.Observation{}, false
	}

	if s.now().Sub(entry.FetchedAt) > s.ttl {
		delete(s.data, key)
		s.misses++
		return weather.Observation{}, false
	}

	s.hits++
	return entry.Observation, true
}

// Put stores obs under key, overwriting any previous entry.
func (s *MemoryStore) Put(key string, obs weather.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = cachedWeather{
		Observation: obs,
		FetchedAt:   s.now(),
	}
}

// Fresh reports whether key holds an unexpired entry without touching the
// hit/miss counters or evicting anything.
func (s *MemoryStore) Fresh(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	return ok && s.now().Sub(entry.FetchedAt) <= s.ttl
}

// Cleanup drops every expired entry and returns how many were removed.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.data {
		if now.Sub(entry.FetchedAt) > s.ttl {
			delete(s.data, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("INFO: store: cleaned up %d expired cache entries", removed)
	}
	return removed
}

// Stats returns hit/miss counters and the current number of entries.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Hits:    s.hits,
		Misses:  s.misses,
		Entries: len(s.data),
	}
}

var _ weather.Cache = (*MemoryStore)(nil)
