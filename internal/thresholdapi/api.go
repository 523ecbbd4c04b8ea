// Package thresholdapi is a client for the threshold estimation server.
package thresholdapi

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/autothreshold/internal/config"
)

type ThresholdAPIInterface interface {
	Estimate(req EstimateRequest) (EstimateResponse, error)
	Health() (HealthResponse, error)
}

type ThresholdAPI struct {
	cfg    *config.ClientEnvConfig
	client *resty.Client
}

func NewThresholdAPI(cfg *config.ClientEnvConfig) (*ThresholdAPI, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	client := resty.New().
		SetBaseURL(cfg.ThresholdAPIUrl).
		SetTimeout(cfg.ClientTimeout).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &ThresholdAPI{
		cfg:    cfg,
		client: client,
	}, nil
}

// Estimate asks the server for a threshold. Estimator failures reported by the
// server wrap the matching threshold sentinel error.
func (t *ThresholdAPI) Estimate(req EstimateRequest) (EstimateResponse, error) {
	var out EstimateResponse
	resp, err := t.client.R().
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/threshold")
	if err != nil {
		log.Error().Err(err).Msg("threshold request failed")
		return EstimateResponse{}, fmt.Errorf("estimate threshold: %w", err)
	}
	if resp.IsError() {
		if sentinel := ErrorForKind(out.Kind); sentinel != nil {
			return out, fmt.Errorf("threshold server: %w: %s", sentinel, out.Error)
		}
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Msg("threshold non-2xx")
		return EstimateResponse{}, fmt.Errorf("threshold status %d: %s", resp.StatusCode(), resp.String())
	}
	if !out.Success {
		return EstimateResponse{}, fmt.Errorf("threshold api returned success=false")
	}
	return out, nil
}

func (t *ThresholdAPI) Health() (HealthResponse, error) {
	var out HealthResponse
	resp, err := t.client.R().
		SetResult(&out).
		Get("/health")
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health: %w", err)
	}
	if resp.IsError() {
		return HealthResponse{}, fmt.Errorf("health status %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}
