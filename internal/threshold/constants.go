package threshold

const (
	// MixtureComponents is the number of Gaussians fitted to the score sample.
	MixtureComponents = 4
	// ScanGridSize is the number of candidate thresholds evaluated on [a, b].
	ScanGridSize = 100

	DefaultMaxIterations  = 100
	DefaultTolerance      = 1e-3
	DefaultVarianceFloor  = 1e-6
	DefaultKMeansMaxIters = 300
)

func DefaultParams() Params {
	return Params{
		SampleSize: 5000,
		Cutoff:     0.5,
		Lower:      0.4,
		Upper:      0.85,
		Exponent:   1.0,
	}
}
