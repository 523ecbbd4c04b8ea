package threshold

// Params bundles the caller-chosen knobs of a threshold estimate.
type Params struct {
	SampleSize int     `json:"n"` // prefix of the scores used to fit the mixture
	Cutoff     float64 `json:"t"` // posterior-ratio cutoff in (0, 1)
	Lower      float64 `json:"a"` // ramp and scan lower bound
	Upper      float64 `json:"b"` // ramp and scan upper bound
	Exponent   float64 `json:"p"` // ramp curvature
}

// Ramp returns the soft-label function defined by the params.
func (p Params) Ramp() Ramp {
	return Ramp{Lower: p.Lower, Upper: p.Upper, Exponent: p.Exponent}
}

// Component is one weighted Gaussian of a fitted mixture.
type Component struct {
	Weight   float64 `json:"weight"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Mixture is the result of fitting MixtureComponents Gaussians to a sample.
// Components are ordered by ascending mean.
type Mixture struct {
	Components    []Component `json:"components"`
	LogLikelihood float64     `json:"log_likelihood"` // mean per-sample log-likelihood
	Iterations    int         `json:"iterations"`
	Converged     bool        `json:"converged"`
}

// RatioPoint is one evaluation of the weighted densities on the scan grid.
type RatioPoint struct {
	X      float64 `json:"x"`
	FPlus  float64 `json:"f_plus"`
	FMinus float64 `json:"f_minus"`
	Ratio  float64 `json:"ratio"`
}

// Analysis exposes every intermediate of an estimate, for diagnostics.
type Analysis struct {
	Params        Params       `json:"params"`
	SampleSize    int          `json:"sample_size"` // number of scores actually fitted
	Mixture       *Mixture     `json:"mixture"`
	Curve         []RatioPoint `json:"curve"`
	CrossingIndex int          `json:"crossing_index"`
	Threshold     float64      `json:"threshold"`
}
