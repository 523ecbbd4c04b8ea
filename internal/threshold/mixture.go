package threshold

import (
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FitConfig controls the expectation-maximization fit of the mixture.
type FitConfig struct {
	Seed          uint64  // seeds the k-means++ initialization
	MaxIterations int     // EM iteration cap
	Tolerance     float64 // convergence threshold on the mean log-likelihood
	VarianceFloor float64 // added to every fitted variance
}

func DefaultFitConfig() FitConfig {
	return FitConfig{
		Seed:          0,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		VarianceFloor: DefaultVarianceFloor,
	}
}

func (c FitConfig) validate() error {
	if c.MaxIterations <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "max iterations must be positive, got %d", c.MaxIterations)
	}
	if !(c.Tolerance >= 0) || math.IsInf(c.Tolerance, 0) {
		return errors.Wrapf(ErrInvalidParameter, "tolerance must be a non-negative number, got %v", c.Tolerance)
	}
	if !(c.VarianceFloor >= 0) || math.IsInf(c.VarianceFloor, 0) {
		return errors.Wrapf(ErrInvalidParameter, "variance floor must be a non-negative number, got %v", c.VarianceFloor)
	}
	return nil
}

// weightEpsilon keeps every component weight strictly positive.
const weightEpsilon = 10 * 0x1p-52

// FitMixture fits MixtureComponents Gaussians to a one-dimensional sample by
// expectation-maximization, initialised from a seeded 1-D k-means. The sample
// is not modified.
func FitMixture(sample []float64, cfg FitConfig) (*Mixture, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	k := MixtureComponents
	n := len(sample)
	if n < k {
		return nil, errors.Wrapf(ErrInsufficientData, "%d scores for %d mixture components", n, k)
	}
	for i, x := range sample {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, errors.Wrapf(ErrDegenerateFit, "score at index %d is not finite (%v)", i, x)
		}
	}
	// Fewer distinct values than components is fine: surplus components end up
	// with negligible weight. A single value has no spread to fit at all.
	if d := countDistinct(sample); d < 2 {
		return nil, errors.Wrapf(ErrDegenerateFit, "%d distinct score in %d samples", d, n)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	labels := kmeansLabels(sample, k, rng)

	resp := mat.NewDense(n, k, nil)
	for i, j := range labels {
		resp.Set(i, j, 1)
	}

	globalMean, globalVariance := stat.PopMeanVariance(sample, nil)
	components := make([]Component, k)
	for j := range components {
		components[j] = Component{Weight: 1 / float64(k), Mean: globalMean, Variance: globalVariance + cfg.VarianceFloor}
	}
	mStep(sample, resp, components, cfg.VarianceFloor)

	lowerBound := math.Inf(-1)
	converged := false
	iterations := 0
	for iterations < cfg.MaxIterations {
		iterations++
		prev := lowerBound
		lowerBound = eStep(sample, components, resp)
		if math.IsNaN(lowerBound) || math.IsInf(lowerBound, 0) {
			return nil, errors.Wrapf(ErrDegenerateFit, "log-likelihood is not finite after %d iterations", iterations)
		}
		mStep(sample, resp, components, cfg.VarianceFloor)
		if math.Abs(lowerBound-prev) < cfg.Tolerance {
			converged = true
			break
		}
	}

	logLikelihood := eStep(sample, components, resp)
	if math.IsNaN(logLikelihood) || math.IsInf(logLikelihood, 0) {
		return nil, errors.Wrap(ErrDegenerateFit, "final log-likelihood is not finite")
	}

	for i, c := range components {
		if !(c.Variance > 0) || math.IsInf(c.Variance, 0) {
			return nil, errors.Wrapf(ErrDegenerateFit, "component %d has variance %v", i, c.Variance)
		}
		if !(c.Weight > 0) || math.IsNaN(c.Mean) || math.IsInf(c.Mean, 0) {
			return nil, errors.Wrapf(ErrDegenerateFit, "component %d is not usable: %+v", i, c)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Mean < components[j].Mean
	})

	return &Mixture{
		Components:    components,
		LogLikelihood: logLikelihood,
		Iterations:    iterations,
		Converged:     converged,
	}, nil
}

// eStep fills resp with the posterior responsibilities of every component and
// returns the mean per-sample log-likelihood.
func eStep(xs []float64, components []Component, resp *mat.Dense) float64 {
	k := len(components)
	normals := make([]distuv.Normal, k)
	logWeights := make([]float64, k)
	for j, c := range components {
		normals[j] = c.normal()
		logWeights[j] = math.Log(c.Weight)
	}

	logProb := make([]float64, k)
	var total float64
	for i, x := range xs {
		for j := range components {
			logProb[j] = logWeights[j] + normals[j].LogProb(x)
		}
		lse := floats.LogSumExp(logProb)
		for j := range components {
			resp.Set(i, j, math.Exp(logProb[j]-lse))
		}
		total += lse
	}
	return total / float64(len(xs))
}

// mStep re-estimates weights, means and variances from the responsibilities.
// A component that lost all of its responsibility keeps its previous mean and
// variance.
func mStep(xs []float64, resp *mat.Dense, components []Component, varianceFloor float64) {
	n, k := resp.Dims()
	nk := make([]float64, k)
	col := make([]float64, n)
	for j := range k {
		mat.Col(col, j, resp)
		mass := floats.Sum(col)
		nk[j] = mass + weightEpsilon
		if mass <= weightEpsilon {
			continue
		}
		mean, variance := stat.PopMeanVariance(xs, col)
		components[j].Mean = mean
		components[j].Variance = variance + varianceFloor
	}

	total := floats.Sum(nk)
	for j := range k {
		components[j].Weight = nk[j] / total
	}
}

// kmeansLabels clusters xs into k groups with k-means++ seeding followed by
// Lloyd iterations, and returns the cluster of every point.
func kmeansLabels(xs []float64, k int, rng *rand.Rand) []int {
	centers := seedCenters(xs, k, rng)
	labels := make([]int, len(xs))
	sums := make([]float64, k)
	counts := make([]int, k)

	for iter := range DefaultKMeansMaxIters {
		changed := false
		for i, x := range xs {
			j := nearestCenter(centers, x)
			if iter == 0 || labels[i] != j {
				labels[i] = j
				changed = true
			}
		}
		if !changed {
			break
		}

		clear(sums)
		clear(counts)
		for i, x := range xs {
			sums[labels[i]] += x
			counts[labels[i]]++
		}
		for j := range k {
			if counts[j] > 0 {
				centers[j] = sums[j] / float64(counts[j])
			}
		}
	}
	return labels
}

// seedCenters picks k initial centers with the k-means++ rule: each new center
// is drawn with probability proportional to its squared distance from the
// nearest existing center.
func seedCenters(xs []float64, k int, rng *rand.Rand) []float64 {
	centers := make([]float64, 0, k)
	centers = append(centers, xs[rng.IntN(len(xs))])

	dist := make([]float64, len(xs))
	cumulative := make([]float64, len(xs))
	for len(centers) < k {
		for i, x := range xs {
			d := x - centers[nearestCenter(centers, x)]
			dist[i] = d * d
		}
		floats.CumSum(cumulative, dist)
		total := cumulative[len(cumulative)-1]

		idx := sort.SearchFloat64s(cumulative, rng.Float64()*total)
		if idx >= len(xs) || dist[idx] == 0 {
			idx = floats.MaxIdx(dist)
		}
		centers = append(centers, xs[idx])
	}
	return centers
}

func nearestCenter(centers []float64, x float64) int {
	best := 0
	bestDist := math.Inf(1)
	for j, c := range centers {
		if d := math.Abs(x - c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func countDistinct(xs []float64) int {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return len(slices.Compact(sorted))
}

func (c Component) normal() distuv.Normal {
	return distuv.Normal{Mu: c.Mean, Sigma: math.Sqrt(c.Variance)}
}

// Density evaluates the mixture probability density at x.
func (m *Mixture) Density(x float64) float64 {
	var sum float64
	for _, c := range m.Components {
		sum += c.Weight * c.normal().Prob(x)
	}
	return sum
}

// WeightSum returns the sum of the component weights.
func (m *Mixture) WeightSum() float64 {
	var sum float64
	for _, c := range m.Components {
		sum += c.Weight
	}
	return sum
}
