package threshold

import "math"

// Goodness maps a score onto a soft "good" label: 0 at or below a, 1 at or
// above b and ((x-a)/(b-a))^p in between.
func Goodness(x, a, b, p float64) float64 {
	if x <= a {
		return 0
	}
	if x >= b {
		return 1
	}
	return math.Pow((x-a)/(b-a), p)
}

// Badness is the complement of Goodness.
func Badness(x, a, b, p float64) float64 {
	return 1 - Goodness(x, a, b, p)
}

// Ramp is the parameterised soft-labeling function.
type Ramp struct {
	Lower    float64
	Upper    float64
	Exponent float64
}

func (r Ramp) Goodness(x float64) float64 {
	return Goodness(x, r.Lower, r.Upper, r.Exponent)
}

func (r Ramp) Badness(x float64) float64 {
	return Badness(x, r.Lower, r.Upper, r.Exponent)
}
