package engine

import "math"

// Growth holds the constants of the logistic multiplier curve.
type Growth struct {
	MinRate   float64 `yaml:"min_rate"`
	MaxRate   float64 `yaml:"max_rate"`
	Threshold float64 `yaml:"threshold"` // x where the rate starts to accelerate
	Capacity  float64 `yaml:"capacity"`  // K, also the hard ceiling
	Midpoint  float64 `yaml:"midpoint"`
	Noise     float64 `yaml:"noise"` // upper bound of the multiplicative jitter
}

func DefaultGrowth() Growth {
	return Growth{
		MinRate:   0.05,
		MaxRate:   0.2,
		Threshold: 5,
		Capacity:  10,
		Midpoint:  10,
		Noise:     0.2,
	}
}

// Rate is flat at MinRate below Threshold and climbs linearly after it.
func (g Growth) Rate(x float64) float64 {
	if x < g.Threshold {
		return g.MinRate
	}
	return g.MinRate + ((g.MaxRate-g.MinRate)/g.Threshold)*(x-g.Threshold)
}

func (g Growth) Logistic(x float64) float64 {
	return g.Capacity / (1 + math.Exp(-g.Rate(x)*(x-g.Midpoint)))
}

// Next advances x by speed/10 and returns the new (x, multiplier) pair. The
// multiplier never drops below prev and never exceeds Capacity. Nothing is
// mutated; the caller commits the result.
func (g Growth) Next(x, prev, speed float64, rng RandomSource) (float64, float64) {
	x += speed / 10

	m := g.Logistic(x) * (1 + rng.Float64()*g.Noise)
	if m < prev {
		m = prev
	}
	return x, math.Min(m, g.Capacity)
}
