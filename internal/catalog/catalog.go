package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

//go:embed data/locations.json
var dataFS embed.FS

// ErrUnknownTier is returned when a tier name cannot be parsed.
var ErrUnknownTier = errors.New("unknown location tier")

// Tier is a confidence bucket of candidate locations for a vibe.
type Tier int

const (
	TierPrimary Tier = iota
	TierSecondary
	TierFallback
	// TierAll is primary and secondary merged and sorted by priority.
	// Fallback locations are only reachable through TierFallback.
	TierAll
)

// SearchTiers is the order in which tiers are traversed during a search.
var SearchTiers = []Tier{TierPrimary, TierSecondary, TierFallback}

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierFallback:
		return "fallback"
	case TierAll:
		return "all"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier resolves a tier name; an empty name means TierAll.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary":
		return TierPrimary, nil
	case "secondary":
		return TierSecondary, nil
	case "fallback":
		return TierFallback, nil
	case "all", "":
		return TierAll, nil
	default:
		return TierAll, fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// tiers holds the three authored lists for one vibe.
type tiers struct {
	Primary   []weather.Location
	Secondary []weather.Location
	Fallback  []weather.Location
}

// Catalog is the immutable, load-once dataset of candidate locations per vibe.
type Catalog struct {
	byVibe map[weather.Vibe]tiers
}

// record mirrors one dataset entry on disk.
type record struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	TimeZone string  `json:"timeZone"`
	Country  string  `json:"country"`
	Priority int     `json:"priority"`
}

type vibeRecords struct {
	Primary   []record `json:"primary"`
	Secondary []record `json:"secondary"`
	Fallback  []record `json:"fallback"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded dataset. It is loaded
// once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		f, err := dataFS.Open("data/locations.json")
		if err != nil {
			defaultErr = fmt.Errorf("open embedded catalog: %w", err)
			return
		}
		defer f.Close()
		defaultCatalog, defaultErr = Load(f)
	})
	return defaultCatalog, defaultErr
}

// Load parses a JSON dataset keyed by vibe name. Entries that fail validation
// are skipped and logged; unknown vibe keys are ignored.
func Load(r io.Reader) (*Catalog, error) {
	var raw map[string]vibeRecords
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{byVibe: make(map[weather.Vibe]tiers, len(raw))}
	skipped := 0
	for name, vr := range raw {
		vibe, err := weather.ParseVibe(name)
		if err != nil {
			log.Printf("INFO: catalog: ignoring unknown vibe %q", name)
			continue
		}

		var n int
		t := tiers{}
		t.Primary, n = toLocations(vibe, TierPrimary, vr.Primary)
		skipped += n
		t.Secondary, n = toLocations(vibe, TierSecondary, vr.Secondary)
		skipped += n
		t.Fallback, n = toLocations(vibe, TierFallback, vr.Fallback)
		skipped += n
		c.byVibe[vibe] = t
	}

	if skipped > 0 {
		log.Printf("INFO: catalog: skipped %d invalid entries", skipped)
	}
	return c, nil
}

// New builds a catalog from in-memory lists. Invalid entries are skipped.
func New(primary, secondary, fallback map[weather.Vibe][]weather.Location) *Catalog {
	c := &Catalog{byVibe: make(map[weather.Vibe]tiers)}
	for _, v := range weather.AllVibes {
		t := tiers{
			Primary:   validOnly(v, TierPrimary, primary[v]),
			Secondary: validOnly(v, TierSecondary, secondary[v]),
			Fallback:  validOnly(v, TierFallback, fallback[v]),
		}
		if len(t.Primary)+len(t.Secondary)+len(t.Fallback) > 0 {
			c.byVibe[v] = t
		}
	}
	return c
}

func toLocations(vibe weather.Vibe, tier Tier, recs []record) ([]weather.Location, int) {
	locs := make([]weather.Location, 0, len(recs))
	for _, r := range recs {
		locs = append(locs, weather.Location{
			Name:       r.Name,
			Coordinate: weather.Coordinate{Lat: r.Lat, Lon: r.Lon},
			TimeZone:   r.TimeZone,
			Country:    r.Country,
			Priority:   r.Priority,
		})
	}
	valid := validOnly(vibe, tier, locs)
	return valid, len(locs) - len(valid)
}

func validOnly(vibe weather.Vibe, tier Tier, locs []weather.Location) []weather.Location {
	out := make([]weather.Location, 0, len(locs))
	for _, l := range locs {
		if err := l.Validate(); err != nil {
			log.Printf("ERROR: catalog: skipping invalid %s/%s entry %q: %v", vibe, tier, l.Name, err)
			continue
		}
		out = append(out, l)
	}
	return out
}

// LocationsFor returns the locations of vibe at tier, deduplicated by
// coordinate key (first occurrence wins). Primary, secondary and fallback
// keep their authored order; TierAll is sorted by descending priority.
// Unknown vibes and tiers yield an empty slice.
func (c *Catalog) LocationsFor(vibe weather.Vibe, tier Tier) []weather.Location {
	t, ok := c.byVibe[vibe]
	if !ok {
		return []weather.Location{}
	}

	switch tier {
	case TierPrimary:
		return dedupe(t.Primary)
	case TierSecondary:
		return dedupe(t.Secondary)
	case TierFallback:
		return dedupe(t.Fallback)
	case TierAll:
		merged := make([]weather.Location, 0, len(t.Primary)+len(t.Secondary))
		merged = append(merged, t.Primary...)
		merged = append(merged, t.Secondary...)
		SortByPriority(merged)
		return dedupe(merged)
	default:
		return []weather.Location{}
	}
}

// Vibes lists the vibes that have at least one location, in display order.
func (c *Catalog) Vibes() []weather.Vibe {
	out := make([]weather.Vibe, 0, len(c.byVibe))
	for _, v := range weather.AllVibes {
		if _, ok := c.byVibe[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Random picks a location for vibe from the primary and secondary tiers.
func (c *Catalog) Random(vibe weather.Vibe) (weather.Location, bool) {
	all := c.LocationsFor(vibe, TierAll)
	if len(all) == 0 {
		return weather.Location{}, false
	}
	return all[rand.Intn(len(all))], true
}

// TierStats counts distinct locations per tier.
type TierStats struct {
	Primary   int `json:"primary"`
	Secondary int `json:"secondary"`
	Fallback  int `json:"fallback"`
}

// Stats returns deduplicated location counts per vibe and tier.
func (c *Catalog) Stats() map[weather.Vibe]TierStats {
	out := make(map[weather.Vibe]TierStats, len(c.byVibe))
	for v := range c.byVibe {
		out[v] = TierStats{
			Primary:   len(c.LocationsFor(v, TierPrimary)),
			Secondary: len(c.LocationsFor(v, TierSecondary)),
			Fallback:  len(c.LocationsFor(v, TierFallback)),
		}
	}
	return out
}

// SortByPriority sorts locations by descending priority, keeping the authored
// order between equal priorities.
func SortByPriority(locs []weather.Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		return locs[i].Priority > locs[j].Priority
	})
}

// dedupe returns a copy of locs without repeated coordinate keys.
func dedupe(locs []weather.Location) []weather.Location {
	seen := make(map[string]struct{}, len(locs))
	out := make([]weather.Location, 0, len(locs))
	for _, l := range locs {
		key := l.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
