package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnknownVibe is returned when a vibe name is not one of the supported vibes.
	ErrUnknownVibe = errors.New("unknown vibe")
	// ErrUnknownCondition is returned when a condition name is outside the vocabulary.
	ErrUnknownCondition = errors.New("unknown weather condition")
)

var validate = validator.New()

// Vibe is a named target weather pattern a user wants to experience.
type Vibe string

const (
	VibeRainy  Vibe = "rainy"
	VibeStormy Vibe = "stormy"
	VibeSnowy  Vibe = "snowy"
	VibeBreezy Vibe = "breezy"
	VibeSunny  Vibe = "sunny"
	VibeMisty  Vibe = "misty"
	VibeFoggy  Vibe = "foggy"
	VibeCloudy Vibe = "cloudy"
)

// AllVibes lists every vibe in display order.
var AllVibes = []Vibe{
	VibeRainy, VibeStormy, VibeSnowy, VibeBreezy,
	VibeSunny, VibeMisty, VibeFoggy, VibeCloudy,
}

type vibeInfo struct {
	displayName string
	description string
	emoji       string
}

var vibeInfos = map[Vibe]vibeInfo{
	VibeRainy:  {"Rainy", "Gentle rain sounds for deep relaxation", "🌧️"},
	VibeStormy: {"Stormy", "Thunder and heavy rain for intense atmosphere", "⛈️"},
	VibeSnowy:  {"Snowy", "Peaceful snowfall in winter wonderland", "❄️"},
	VibeBreezy: {"Breezy", "Light winds and clear skies", "🌬️"},
	VibeSunny:  {"Sunny", "Bright sunshine with birds chirping", "☀️"},
	VibeMisty:  {"Misty", "Soft mist and gentle humidity", "🌫️"},
	VibeFoggy:  {"Foggy", "Dense fog with muffled sounds", "🌁"},
	VibeCloudy: {"Cloudy", "Overcast skies with soft lighting", "☁️"},
}

// ParseVibe resolves a vibe name case-insensitively.
func ParseVibe(s string) (Vibe, error) {
	v := Vibe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := vibeInfos[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVibe, s)
	}
	return v, nil
}

func (v Vibe) DisplayName() string { return vibeInfos[v].displayName }
func (v Vibe) Description() string { return vibeInfos[v].description }
func (v Vibe) Emoji() string       { return vibeInfos[v].emoji }

// Condition is the primary weather condition reported for an observation.
type Condition string

const (
	ConditionUnknown                Condition = "unknown"
	ConditionClear                  Condition = "clear"
	ConditionMostlyClear            Condition = "mostly-clear"
	ConditionPartlyCloudy           Condition = "partly-cloudy"
	ConditionCloudy                 Condition = "cloudy"
	ConditionMostlyCloudy           Condition = "mostly-cloudy"
	ConditionRain                   Condition = "rain"
	ConditionDrizzle                Condition = "drizzle"
	ConditionHeavyRain              Condition = "heavy-rain"
	ConditionSunShowers             Condition = "sun-showers"
	ConditionThunderstorms          Condition = "thunderstorms"
	ConditionStrongStorms           Condition = "strong-storms"
	ConditionIsolatedThunderstorms  Condition = "isolated-thunderstorms"
	ConditionScatteredThunderstorms Condition = "scattered-thunderstorms"
	ConditionSnow                   Condition = "snow"
	ConditionHeavySnow              Condition = "heavy-snow"
	ConditionBlizzard               Condition = "blizzard"
	ConditionFlurries               Condition = "flurries"
	ConditionSunFlurries            Condition = "sun-flurries"
	ConditionWintryMix              Condition = "wintry-mix"
	ConditionBreezy                 Condition = "breezy"
	ConditionWindy                  Condition = "windy"
	ConditionHaze                   Condition = "haze"
	ConditionFoggy                  Condition = "foggy"
	ConditionSmoky                  Condition = "smoky"
)

var knownConditions = map[Condition]bool{
	ConditionClear: true, ConditionMostlyClear: true, ConditionPartlyCloudy: true,
	ConditionCloudy: true, ConditionMostlyCloudy: true, ConditionRain: true,
	ConditionDrizzle: true, ConditionHeavyRain: true, ConditionSunShowers: true,
	ConditionThunderstorms: true, ConditionStrongStorms: true,
	ConditionIsolatedThunderstorms: true, ConditionScatteredThunderstorms: true,
	ConditionSnow: true, ConditionHeavySnow: true, ConditionBlizzard: true,
	ConditionFlurries: true, ConditionSunFlurries: true, ConditionWintryMix: true,
	ConditionBreezy: true, ConditionWindy: true, ConditionHaze: true,
	ConditionFoggy: true, ConditionSmoky: true,
}

// ParseCondition resolves a condition name from the fixed vocabulary.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	if !knownConditions[c] {
		return ConditionUnknown, fmt.Errorf("%w: %q", ErrUnknownCondition, s)
	}
	return c, nil
}

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

// Key returns the canonical "lat,lon" key used for deduplication and caching.
// Two coordinates share a key only when both components are exactly equal.
func (c Coordinate) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Location is a named catalog point that may exhibit a vibe's weather.
type Location struct {
	Name       string     `json:"name" validate:"required"`
	Coordinate Coordinate `json:"coordinate"`
	TimeZone   string     `json:"timeZone" validate:"required"`
	Country    string     `json:"country"`
	// Priority is 1-10, higher means historically more likely to exhibit the vibe.
	Priority int `json:"priority" validate:"min=1,max=10"`
}

// Key returns the coordinate key identifying this location.
func (l Location) Key() string {
	return l.Coordinate.Key()
}

// Validate checks the catalog invariants for a single location.
func (l Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("location name is empty")
	}
	return validate.Struct(l)
}

// Observation is a single current-weather reading for a coordinate.
type Observation struct {
	TemperatureC float64   `json:"temperatureC"`
	Condition    Condition `json:"condition"`
	WindSpeedKph float64   `json:"windSpeedKph"`
	Timestamp    time.Time `json:"timestamp"` // always UTC
	Provider     string    `json:"provider,omitempty"`
	// Coordinate is where the reading was taken; set by Service.Fetch.
	Coordinate Coordinate `json:"coordinate"`
}

// VibeSearchResult is a location whose current weather strictly matches a vibe.
type VibeSearchResult struct {
	ID          string      `json:"id"`
	Vibe        Vibe        `json:"vibe"`
	Location    Location    `json:"location"`
	Observation Observation `json:"observation"`
	MatchScore  float64     `json:"matchScore"`
	Tier        string      `json:"tier"`
	LocalTime   string      `json:"localTime,omitempty"`
}

// LocalTime renders the observation time in the location's time zone.
// It returns an empty string when the zone cannot be loaded.
func LocalTime(loc Location, ts time.Time) string {
	tz, err := time.LoadLocation(loc.TimeZone)
	if err != nil {
		return ""
	}
	return ts.In(tz).Format("15:04")
}
