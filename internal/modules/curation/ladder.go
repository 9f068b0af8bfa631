package curation

import "math"

// Rung is one (model, temperature) combination of the attempt ladder.
type Rung struct {
	Index       int     `json:"index"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Ladder returns the four rungs in order: primary at base temperature,
// primary lowered, fallback at base, fallback lowered. Lowered temperatures
// never go below min.
func Ladder(s Settings, step, min float64) []Rung {
	fallback := s.FallbackModel
	if fallback == "" {
		fallback = s.Model
	}
	low := lowered(s.Temperature, step, min)
	return []Rung{
		{Index: 1, Model: s.Model, Temperature: s.Temperature},
		{Index: 2, Model: s.Model, Temperature: low},
		{Index: 3, Model: fallback, Temperature: s.Temperature},
		{Index: 4, Model: fallback, Temperature: low},
	}
}

func lowered(base, step, min float64) float64 {
	t := math.Max(min, base-step)
	// keep 0.7-0.4 at 0.3 instead of 0.29999999999999993
	return math.Round(t*1000) / 1000
}
