package prefetch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-vibe-finder/internal/catalog"
	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

// LocationSource lists candidate locations for a vibe.
type LocationSource interface {
	LocationsFor(vibe weather.Vibe, tier catalog.Tier) []weather.Location
}

// Fetcher fetches a live observation and stores it under key.
type Fetcher interface {
	Refresh(ctx context.Context, key string, c weather.Coordinate) (weather.Observation, error)
}

// Cache is the part of the observation store the warmer needs.
type Cache interface {
	Fresh(key string) bool
	Cleanup() int
}

// Config controls what is warmed and how often.
type Config struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// Delay spaces consecutive fetches. Zero disables throttling.
	Delay        time.Duration
	FetchTimeout time.Duration

	PrimaryPerVibe   int
	SecondaryPerVibe int
	FallbackPerVibe  int

	// Device, if set, is warmed first under weather.CurrentLocationKey.
	Device *weather.Coordinate
}

// DefaultConfig returns the stock prefetch settings.
func DefaultConfig() Config {
	return Config{
		Interval:         15 * time.Minute,
		StartupDelay:     2 * time.Second,
		Delay:            1500 * time.Millisecond,
		FetchTimeout:     10 * time.Second,
		PrimaryPerVibe:   3,
		SecondaryPerVibe: 2,
		FallbackPerVibe:  2,
	}
}

// Item is one planned fetch.
type Item struct {
	Key        string
	Label      string
	Coordinate weather.Coordinate
}

// Stats are cumulative counters since the warmer was created.
type Stats struct {
	Runs      int       `json:"runs"`
	Fetched   int       `json:"fetched"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Cancelled int       `json:"cancelled"`
	Evicted   int       `json:"evicted"`
	Paused    bool      `json:"paused"`
	LastRun   time.Time `json:"lastRun,omitempty"`
}

// Warmer fills the observation cache in the background so that searches for
// the most likely locations are answered without a live fetch.
type Warmer struct {
	cfg       Config
	locations LocationSource
	fetcher   Fetcher
	cache     Cache
	limiter   *rate.Limiter
	scheduler *gocron.Scheduler

	mu     sync.Mutex
	pauses int
	cancel context.CancelFunc
	stats  Stats
}

// New creates a new Warmer.
func New(cfg Config, locations LocationSource, fetcher Fetcher, cache Cache) *Warmer {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	return &Warmer{
		cfg:       cfg,
		locations: locations,
		fetcher:   fetcher,
		cache:     cache,
		limiter:   rate.NewLimiter(limit, 1),
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Plan lists the fetches of one batch: the device location, then the top
// primary and secondary locations of every vibe, then the top fallback ones.
// Coordinates appearing under several vibes are planned once.
func (w *Warmer) Plan() []Item {
	var items []Item
	seen := make(map[string]struct{})
	add := func(key, label string, c weather.Coordinate) {
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		items = append(items, Item{Key: key, Label: label, Coordinate: c})
	}

	if w.cfg.Device != nil {
		add(weather.CurrentLocationKey, "current location", *w.cfg.Device)
	}

	for _, vibe := range weather.AllVibes {
		for _, l := range w.top(vibe, catalog.TierPrimary, w.cfg.PrimaryPerVibe) {
			add(l.Key(), l.Name, l.Coordinate)
		}
		for _, l := range w.top(vibe, catalog.TierSecondary, w.cfg.SecondaryPerVibe) {
			add(l.Key(), l.Name, l.Coordinate)
		}
	}

	for _, vibe := range weather.AllVibes {
		for _, l := range w.top(vibe, catalog.TierFallback, w.cfg.FallbackPerVibe) {
			add(l.Key(), l.Name, l.Coordinate)
		}
	}

	return items
}

func (w *Warmer) top(vibe weather.Vibe, tier catalog.Tier, n int) []weather.Location {
	if n <= 0 {
		return nil
	}
	locs := w.locations.LocationsFor(vibe, tier)
	catalog.SortByPriority(locs)
	if len(locs) > n {
		locs = locs[:n]
	}
	return locs
}

// Run executes one batch. Items still fresh in the cache are skipped and
// fetch failures are logged. Cancellation stops the batch between items.
func (w *Warmer) Run(ctx context.Context) {
	items := w.Plan()
	log.Printf("INFO: prefetch: starting batch of %d locations", len(items))

	var fetched, skipped, failed int
	defer func() {
		w.mu.Lock()
		w.stats.Runs++
		w.stats.Fetched += fetched
		w.stats.Skipped += skipped
		w.stats.Failed += failed
		w.stats.LastRun = time.Now()
		if ctx.Err() != nil {
			w.stats.Cancelled++
		}
		w.mu.Unlock()
	}()

	for _, it := range items {
		if ctx.Err() != nil {
			log.Printf("INFO: prefetch: batch cancelled after %d fetches", fetched)
			return
		}
		if w.cache.Fresh(it.Key) {
			skipped++
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			log.Printf("INFO: prefetch: batch cancelled after %d fetches", fetched)
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
		_, err := w.fetcher.Refresh(fetchCtx, it.Key, it.Coordinate)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("INFO: prefetch: batch cancelled after %d fetches", fetched)
				return
			}
			failed++
			log.Printf("ERROR: prefetch: %s (%s): %v", it.Label, it.Key, err)
			continue
		}
		fetched++
	}

	log.Printf("INFO: prefetch: batch done, fetched=%d skipped=%d failed=%d", fetched, skipped, failed)
}

// runScheduled is the gocron job body.
func (w *Warmer) runScheduled() {
	w.mu.Lock()
	if w.pauses > 0 {
		w.mu.Unlock()
		log.Println("INFO: prefetch: paused; skipping scheduled run")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.cancel = nil
		w.mu.Unlock()
		cancel()
	}()

	if removed := w.cache.Cleanup(); removed > 0 {
		w.mu.Lock()
		w.stats.Evicted += removed
		w.mu.Unlock()
	}
	w.Run(ctx)
}

// Start schedules periodic batches. The first batch runs after the startup delay.
func (w *Warmer) Start() error {
	interval := w.cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}

	_, err := w.scheduler.
		Every(interval).
		StartAt(time.Now().Add(w.cfg.StartupDelay)).
		SingletonMode().
		Do(w.runScheduled)
	if err != nil {
		return err
	}

	w.scheduler.StartAsync()
	log.Printf("INFO: prefetch: scheduled every %s", interval)
	return nil
}

// Pause cancels the in-flight batch, if any, and suppresses scheduled runs
// until the matching Resume. Pauses nest.
func (w *Warmer) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pauses++
	if w.cancel != nil {
		w.cancel()
	}
}

// Resume undoes one Pause.
func (w *Warmer) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pauses > 0 {
		w.pauses--
	}
}

// Stop cancels any running batch and stops the scheduler.
func (w *Warmer) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

// Stats returns the cumulative batch counters and whether the warmer is paused.
func (w *Warmer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.stats
	st.Paused = w.pauses > 0
	return st
}
