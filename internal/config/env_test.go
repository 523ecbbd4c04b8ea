package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/autothreshold/internal/threshold"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, threshold.DefaultParams(), cfg.EstimatorEnvConfig.Params())
	assert.Equal(t, threshold.DefaultFitConfig(), cfg.EstimatorEnvConfig.FitConfig())
	assert.Equal(t, 30*time.Second, cfg.ClientTimeout)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("THRESHOLD_N", "1000")
	t.Setenv("THRESHOLD_T", "0.7")
	t.Setenv("THRESHOLD_A", "0.2")
	t.Setenv("THRESHOLD_B", "0.6")
	t.Setenv("THRESHOLD_P", "2")
	t.Setenv("THRESHOLD_SEED", "17")
	t.Setenv("SCORES_DOWNLOAD_RETRIES", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, threshold.Params{SampleSize: 1000, Cutoff: 0.7, Lower: 0.2, Upper: 0.6, Exponent: 2}, cfg.Params())
	assert.Equal(t, uint64(17), cfg.FitConfig().Seed)
	assert.Equal(t, 5, cfg.DownloadRetries)
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("THRESHOLD_N", "many")

	_, err := LoadConfig()
	assert.Error(t, err)
}
