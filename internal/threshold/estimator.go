// Package threshold estimates the score that separates a population of
// unlabeled scores into "good" and "bad" classes.
//
// A Gaussian mixture is fitted to a prefix of the scores. Every component is
// split between a good-weighted and a bad-weighted density according to the
// soft label of its mean, and the threshold is the first point of an evenly
// spaced grid on [a, b] where the posterior ratio f+/(f+ + f-) reaches the
// cutoff t.
package threshold

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Validate checks the invariants every estimate relies on.
func (p Params) Validate() error {
	switch {
	case p.SampleSize <= 0:
		return errors.Wrapf(ErrInvalidParameter, "sample size n must be positive, got %d", p.SampleSize)
	case !isFinite(p.Lower) || !isFinite(p.Upper):
		return errors.Wrapf(ErrInvalidParameter, "bounds must be finite, got a=%v b=%v", p.Lower, p.Upper)
	case p.Lower >= p.Upper:
		return errors.Wrapf(ErrInvalidParameter, "lower bound a=%v must be below upper bound b=%v", p.Lower, p.Upper)
	case !(p.Cutoff > 0 && p.Cutoff < 1):
		return errors.Wrapf(ErrInvalidParameter, "cutoff t must lie in (0, 1), got %v", p.Cutoff)
	case !(p.Exponent > 0) || math.IsInf(p.Exponent, 0):
		return errors.Wrapf(ErrInvalidParameter, "exponent p must be positive and finite, got %v", p.Exponent)
	}
	return nil
}

// Estimator is an immutable, validated threshold estimator. It is safe for
// concurrent use.
type Estimator struct {
	params Params
	fit    FitConfig
}

type Option func(*Estimator)

func WithSeed(seed uint64) Option {
	return func(e *Estimator) {
		e.fit.Seed = seed
	}
}

func WithMaxIterations(maxIterations int) Option {
	return func(e *Estimator) {
		e.fit.MaxIterations = maxIterations
	}
}

func WithTolerance(tolerance float64) Option {
	return func(e *Estimator) {
		e.fit.Tolerance = tolerance
	}
}

func WithVarianceFloor(floor float64) Option {
	return func(e *Estimator) {
		e.fit.VarianceFloor = floor
	}
}

func WithFitConfig(cfg FitConfig) Option {
	return func(e *Estimator) {
		e.fit = cfg
	}
}

func NewEstimator(params Params, opts ...Option) (*Estimator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Estimator{
		params: params,
		fit:    DefaultFitConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.fit.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Estimator) Params() Params {
	return e.params
}

func (e *Estimator) FitConfig() FitConfig {
	return e.fit
}

// Estimate returns the threshold for scores. Only the first n scores are
// fitted; a shorter sample is used whole.
func (e *Estimator) Estimate(scores []float64) (float64, error) {
	analysis, err := e.Analyze(scores)
	if err != nil {
		return 0, err
	}
	return analysis.Threshold, nil
}

// Analyze runs the fit, density synthesis and ratio scan, and returns every
// intermediate alongside the threshold.
func (e *Estimator) Analyze(scores []float64) (*Analysis, error) {
	sample := samplePrefix(scores, e.params.SampleSize)

	mixture, err := FitMixture(sample, e.fit)
	if err != nil {
		return nil, err
	}

	curve, err := RatioCurve(mixture, e.params)
	if err != nil {
		return nil, err
	}

	k := CrossingIndex(curve, e.params.Cutoff)
	return &Analysis{
		Params:        e.params,
		SampleSize:    len(sample),
		Mixture:       mixture,
		Curve:         curve,
		CrossingIndex: k,
		Threshold:     curve[k].X,
	}, nil
}

// FindThreshold builds an Estimator for params and runs it once.
func FindThreshold(scores []float64, params Params, opts ...Option) (float64, error) {
	e, err := NewEstimator(params, opts...)
	if err != nil {
		return 0, err
	}
	return e.Estimate(scores)
}

// ScanGrid returns ScanGridSize evenly spaced points on [a, b], both ends
// included.
func ScanGrid(a, b float64) []float64 {
	grid := floats.Span(make([]float64, ScanGridSize), a, b)
	grid[0], grid[len(grid)-1] = a, b
	return grid
}

// RatioCurve evaluates the good-weighted and bad-weighted densities of the
// mixture on the scan grid. Soft labels are taken at the component means, so
// each component contributes its whole density to both curves in proportion
// to how good its center is. Sums are accumulated in the log domain; a point
// where both densities vanish yields ErrUndefinedRatio.
func RatioCurve(m *Mixture, params Params) ([]RatioPoint, error) {
	ramp := params.Ramp()
	k := len(m.Components)

	logPlusWeights := make([]float64, k)
	logMinusWeights := make([]float64, k)
	for j, c := range m.Components {
		g := ramp.Goodness(c.Mean)
		logPlusWeights[j] = math.Log(c.Weight) + math.Log(g)
		logMinusWeights[j] = math.Log(c.Weight) + math.Log1p(-g)
	}

	grid := ScanGrid(params.Lower, params.Upper)
	curve := make([]RatioPoint, len(grid))
	plus := make([]float64, k)
	minus := make([]float64, k)
	for i, x := range grid {
		for j, c := range m.Components {
			lp := c.normal().LogProb(x)
			plus[j] = logPlusWeights[j] + lp
			minus[j] = logMinusWeights[j] + lp
		}
		logPlus := floats.LogSumExp(plus)
		logMinus := floats.LogSumExp(minus)
		if math.IsInf(logPlus, -1) && math.IsInf(logMinus, -1) {
			return nil, errors.Wrapf(ErrUndefinedRatio, "both weighted densities vanish at x=%v", x)
		}

		ratio := 1 / (1 + math.Exp(logMinus-logPlus))
		if math.IsNaN(ratio) {
			return nil, errors.Wrapf(ErrUndefinedRatio, "ratio is not a number at x=%v", x)
		}

		curve[i] = RatioPoint{
			X:      x,
			FPlus:  math.Exp(logPlus),
			FMinus: math.Exp(logMinus),
			Ratio:  ratio,
		}
	}
	return curve, nil
}

// CrossingIndex counts the leading grid points whose ratio stays below the
// cutoff. When the ratio never reaches the cutoff the last index is returned,
// so the threshold never leaves [a, b].
func CrossingIndex(curve []RatioPoint, cutoff float64) int {
	k := 0
	for k < len(curve) && curve[k].Ratio < cutoff {
		k++
	}
	if k == len(curve) {
		k = len(curve) - 1
	}
	return k
}

func samplePrefix(scores []float64, n int) []float64 {
	if n >= len(scores) {
		return scores
	}
	return scores[:n:n]
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
