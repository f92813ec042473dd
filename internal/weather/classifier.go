package weather

import (
	"math"
	"sort"
)

// intRange is an inclusive range checked against the truncated temperature.
type intRange struct {
	Min, Max int
}

// windBand awards Points when Min <= wind <= Max.
type windBand struct {
	Min, Max float64
	Points   float64
}

// tempStep awards Points when temp <= AtMost.
type tempStep struct {
	AtMost float64
	Points float64
}

// tempCurve scores temperature either linearly around Ideal
// (max(0, Cap - |t-Ideal|*Falloff)) or, when Steps is set, by the first matching step.
type tempCurve struct {
	Ideal   float64
	Cap     float64
	Falloff float64
	Steps   []tempStep
}

// conditionRule is the weight of an accepted condition. MinWind, when non-zero,
// is an extra wind requirement for that condition only.
type conditionRule struct {
	Points  float64
	MinWind float64
}

type vibeRule struct {
	Temp       *intRange
	Conditions map[Condition]conditionRule
	MinWind    float64
	MaxWind    float64
	TempCurve  tempCurve
	WindBands  []windBand
}

var (
	inf    = math.Inf(1)
	negInf = math.Inf(-1)
)

const maxTemperatureC = 1000

// rules holds the per-vibe match and score tables. Every accepted condition
// carries a positive weight, so a strict match always scores on condition.
var rules = map[Vibe]vibeRule{
	VibeRainy: {
		Temp: &intRange{8, 25},
		Conditions: map[Condition]conditionRule{
			ConditionRain:       {Points: 40},
			ConditionDrizzle:    {Points: 35},
			ConditionHeavyRain:  {Points: 30},
			ConditionSunShowers: {Points: 25},
		},
		MinWind:   negInf,
		MaxWind:   30,
		TempCurve: tempCurve{Ideal: 15, Cap: 35, Falloff: 2},
		WindBands: []windBand{{negInf, 15, 25}, {negInf, 25, 20}},
	},
	VibeSunny: {
		Temp: &intRange{18, 35},
		Conditions: map[Condition]conditionRule{
			ConditionClear:        {Points: 40},
			ConditionMostlyClear:  {Points: 35},
			ConditionPartlyCloudy: {Points: 25},
		},
		MinWind:   negInf,
		MaxWind:   20,
		TempCurve: tempCurve{Ideal: 25, Cap: 40, Falloff: 1.5},
		WindBands: []windBand{{negInf, 10, 20}, {negInf, 20, 15}},
	},
	VibeStormy: {
		Conditions: map[Condition]conditionRule{
			ConditionThunderstorms:          {Points: 60},
			ConditionStrongStorms:           {Points: 60},
			ConditionIsolatedThunderstorms:  {Points: 55},
			ConditionScatteredThunderstorms: {Points: 55},
			ConditionHeavyRain:              {Points: 30, MinWind: 25},
		},
		MinWind: negInf,
		MaxWind: inf,
		// Flat: storms are not discriminated by temperature.
		TempCurve: tempCurve{Cap: 15},
		WindBands: []windBand{{50, inf, 25}, {35, inf, 20}, {25, inf, 15}},
	},
	VibeSnowy: {
		Temp: &intRange{-15, 5},
		Conditions: map[Condition]conditionRule{
			ConditionHeavySnow:   {Points: 50},
			ConditionBlizzard:    {Points: 50},
			ConditionSnow:        {Points: 40},
			ConditionFlurries:    {Points: 30},
			ConditionSunFlurries: {Points: 30},
			ConditionWintryMix:   {Points: 25},
		},
		MinWind:   negInf,
		MaxWind:   inf,
		TempCurve: tempCurve{Steps: []tempStep{{-5, 40}, {0, 35}, {3, 25}}},
		WindBands: []windBand{{negInf, 20, 10}, {negInf, inf, 5}},
	},
	VibeBreezy: {
		Temp: &intRange{10, 28},
		Conditions: map[Condition]conditionRule{
			ConditionBreezy:       {Points: 40},
			ConditionWindy:        {Points: 40},
			ConditionClear:        {Points: 30},
			ConditionMostlyClear:  {Points: 30},
			ConditionPartlyCloudy: {Points: 25},
		},
		MinWind:   15,
		MaxWind:   40,
		TempCurve: tempCurve{Ideal: 20, Cap: 30, Falloff: 1},
		WindBands: []windBand{{20, 35, 30}, {15, 40, 25}},
	},
	VibeMisty: {
		Temp: &intRange{5, 20},
		Conditions: map[Condition]conditionRule{
			ConditionHaze:         {Points: 40},
			ConditionFoggy:        {Points: 35},
			ConditionMostlyCloudy: {Points: 30},
			ConditionCloudy:       {Points: 25},
		},
		MinWind:   negInf,
		MaxWind:   15,
		TempCurve: tempCurve{Ideal: 12, Cap: 30, Falloff: 2},
		WindBands: []windBand{{negInf, 10, 30}, {negInf, 15, 20}},
	},
	VibeFoggy: {
		Temp: &intRange{0, 18},
		Conditions: map[Condition]conditionRule{
			ConditionFoggy: {Points: 50},
			ConditionHaze:  {Points: 35},
			ConditionSmoky: {Points: 30},
		},
		MinWind:   negInf,
		MaxWind:   10,
		TempCurve: tempCurve{Ideal: 8, Cap: 30, Falloff: 2},
		WindBands: []windBand{{negInf, 5, 20}, {negInf, 10, 15}},
	},
	VibeCloudy: {
		Temp: &intRange{5, 25},
		Conditions: map[Condition]conditionRule{
			ConditionCloudy:       {Points: 40},
			ConditionMostlyCloudy: {Points: 35},
			ConditionPartlyCloudy: {Points: 25},
		},
		MinWind:   negInf,
		MaxWind:   25,
		TempCurve: tempCurve{Ideal: 16, Cap: 30, Falloff: 1},
		WindBands: []windBand{{negInf, 20, 30}, {negInf, 25, 20}},
	},
}

// IsStrictMatch reports whether obs satisfies every rule of vibe: the
// temperature range (checked on the temperature truncated toward zero), the
// accepted conditions and the wind constraint.
func IsStrictMatch(obs Observation, vibe Vibe) bool {
	r, ok := rules[vibe]
	if !ok {
		return false
	}

	cond, ok := r.Conditions[obs.Condition]
	if !ok {
		return false
	}

	// An unknown wind speed only fails rules that bound the wind.
	bounded := !math.IsInf(r.MinWind, 0) || !math.IsInf(r.MaxWind, 0) || cond.MinWind != 0
	if bounded && math.IsNaN(obs.WindSpeedKph) {
		return false
	}
	wind := obs.WindSpeedKph
	if wind < r.MinWind || wind > r.MaxWind {
		return false
	}
	if cond.MinWind != 0 && wind < cond.MinWind {
		return false
	}

	if r.Temp != nil {
		// Out-of-range floats have no defined integer conversion.
		if math.IsNaN(obs.TemperatureC) || math.Abs(obs.TemperatureC) > maxTemperatureC {
			return false
		}
		t := int(obs.TemperatureC)
		if t < r.Temp.Min || t > r.Temp.Max {
			return false
		}
	}

	return true
}

// ComputeScore rates how well obs fits vibe on a 0-100 scale as the sum of
// independent temperature, condition and wind sub-scores.
func ComputeScore(obs Observation, vibe Vibe) float64 {
	r, ok := rules[vibe]
	if !ok {
		return 0
	}

	score := r.TempCurve.score(obs.TemperatureC) +
		r.Conditions[obs.Condition].Points +
		windScore(r.WindBands, obs.WindSpeedKph)

	return clamp(score, 0, 100)
}

// ConditionScore returns only the condition sub-score of vibe for c.
func ConditionScore(c Condition, vibe Vibe) float64 {
	return rules[vibe].Conditions[c].Points
}

func (tc tempCurve) score(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	if tc.Steps != nil {
		for _, s := range tc.Steps {
			if t <= s.AtMost {
				return s.Points
			}
		}
		return 0
	}
	if tc.Falloff == 0 {
		return tc.Cap
	}
	return math.Max(0, tc.Cap-math.Abs(t-tc.Ideal)*tc.Falloff)
}

func windScore(bands []windBand, wind float64) float64 {
	if math.IsNaN(wind) {
		return 0
	}
	for _, b := range bands {
		if wind >= b.Min && wind <= b.Max {
			return b.Points
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

// VibeMatch pairs a vibe with the score of an observation that strictly matches it.
type VibeMatch struct {
	Vibe  Vibe    `json:"vibe"`
	Score float64 `json:"score"`
}

// MatchingVibes returns every vibe obs strictly matches, best score first.
func MatchingVibes(obs Observation) []VibeMatch {
	var matches []VibeMatch
	for _, v := range AllVibes {
		if IsStrictMatch(obs, v) {
			matches = append(matches, VibeMatch{Vibe: v, Score: ComputeScore(obs, v)})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// RuleSummary is a display-friendly view of a vibe's strict-match rules.
type RuleSummary struct {
	MinTempC   *int        `json:"minTempC,omitempty"`
	MaxTempC   *int        `json:"maxTempC,omitempty"`
	Conditions []Condition `json:"conditions"`
	MinWindKph *float64    `json:"minWindKph,omitempty"`
	MaxWindKph *float64    `json:"maxWindKph,omitempty"`
	IdealTempC *float64    `json:"idealTempC,omitempty"`
}

// Rules describes the strict-match rules of vibe. ok is false for unknown vibes.
func Rules(vibe Vibe) (RuleSummary, bool) {
	r, ok := rules[vibe]
	if !ok {
		return RuleSummary{}, false
	}

	var s RuleSummary
	if r.Temp != nil {
		lo, hi := r.Temp.Min, r.Temp.Max
		s.MinTempC, s.MaxTempC = &lo, &hi
	}
	if !math.IsInf(r.MinWind, 0) {
		w := r.MinWind
		s.MinWindKph = &w
	}
	if !math.IsInf(r.MaxWind, 0) {
		w := r.MaxWind
		s.MaxWindKph = &w
	}
	if r.TempCurve.Steps == nil && r.TempCurve.Falloff != 0 {
		ideal := r.TempCurve.Ideal
		s.IdealTempC = &ideal
	}

	for c := range r.Conditions {
		s.Conditions = append(s.Conditions, c)
	}
	// Highest weight first, then by name for a stable order.
	sort.Slice(s.Conditions, func(i, j int) bool {
		pi, pj := r.Conditions[s.Conditions[i]].Points, r.Conditions[s.Conditions[j]].Points
		if pi != pj {
			return pi > pj
		}
		return s.Conditions[i] < s.Conditions[j]
	})
	return s, true
}
