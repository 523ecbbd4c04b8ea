// Package config defines environment configuration structs and loaders.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tensorplex-labs/autothreshold/internal/threshold"
)

type AppConfig struct {
	EstimatorEnvConfig
	ScoreSourceEnvConfig
	ServerEnvConfig
	ClientEnvConfig
	Environment string `env:"ENVIRONMENT" envDefault:"prod"`
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EstimatorEnvConfig holds the default estimate parameters and fit knobs.
type EstimatorEnvConfig struct {
	SampleSize    int     `env:"THRESHOLD_N" envDefault:"5000"`
	Cutoff        float64 `env:"THRESHOLD_T" envDefault:"0.5"`
	Lower         float64 `env:"THRESHOLD_A" envDefault:"0.4"`
	Upper         float64 `env:"THRESHOLD_B" envDefault:"0.85"`
	Exponent      float64 `env:"THRESHOLD_P" envDefault:"1.0"`
	Seed          uint64  `env:"THRESHOLD_SEED" envDefault:"0"`
	MaxIterations int     `env:"THRESHOLD_MAX_ITER" envDefault:"100"`
	Tolerance     float64 `env:"THRESHOLD_TOL" envDefault:"1e-3"`
	VarianceFloor float64 `env:"THRESHOLD_VARIANCE_FLOOR" envDefault:"1e-6"`
}

func (c EstimatorEnvConfig) Params() threshold.Params {
	return threshold.Params{
		SampleSize: c.SampleSize,
		Cutoff:     c.Cutoff,
		Lower:      c.Lower,
		Upper:      c.Upper,
		Exponent:   c.Exponent,
	}
}

func (c EstimatorEnvConfig) FitConfig() threshold.FitConfig {
	return threshold.FitConfig{
		Seed:          c.Seed,
		MaxIterations: c.MaxIterations,
		Tolerance:     c.Tolerance,
		VarianceFloor: c.VarianceFloor,
	}
}

// ScoreSourceEnvConfig configures downloads of remote score files.
type ScoreSourceEnvConfig struct {
	DownloadTimeout time.Duration `env:"SCORES_DOWNLOAD_TIMEOUT" envDefault:"30s"`
	DownloadRetries int           `env:"SCORES_DOWNLOAD_RETRIES" envDefault:"3"`
	RetryWaitMin    time.Duration `env:"SCORES_RETRY_WAIT_MIN" envDefault:"500ms"`
	RetryWaitMax    time.Duration `env:"SCORES_RETRY_WAIT_MAX" envDefault:"10s"`
}

// ServerEnvConfig configures the estimation server.
type ServerEnvConfig struct {
	Address       string `env:"THRESHOLDD_ADDRESS" envDefault:"127.0.0.1"`
	Port          int    `env:"THRESHOLDD_PORT" envDefault:"8080"`
	BodySizeLimit int    `env:"THRESHOLDD_BODY_LIMIT" envDefault:"16777216"`
}

// ClientEnvConfig configures clients of the estimation server.
type ClientEnvConfig struct {
	ThresholdAPIUrl string        `env:"THRESHOLD_API_URL" envDefault:"http://127.0.0.1:8080"`
	ClientTimeout   time.Duration `env:"CLIENT_TIMEOUT" envDefault:"30s"`
}
