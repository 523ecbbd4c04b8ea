package thresholdapi

import (
	"errors"

	"github.com/tensorplex-labs/autothreshold/internal/threshold"
)

type EstimateRequest struct {
	Scores       []float64         `json:"scores"`
	Params       *threshold.Params `json:"params,omitempty"` // nil uses the server defaults
	Seed         *uint64           `json:"seed,omitempty"`
	IncludeCurve bool              `json:"include_curve,omitempty"`
}

type EstimateResponse struct {
	Success       bool                   `json:"success"`
	Threshold     float64                `json:"threshold"`
	CrossingIndex int                    `json:"crossing_index"`
	SampleSize    int                    `json:"sample_size"`
	Params        threshold.Params       `json:"params"`
	Mixture       *threshold.Mixture     `json:"mixture,omitempty"`
	Curve         []threshold.RatioPoint `json:"curve,omitempty"`
	Kind          string                 `json:"kind,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

const (
	KindInvalidParameter = "invalid_parameter"
	KindInsufficientData = "insufficient_data"
	KindDegenerateFit    = "degenerate_fit"
	KindUndefinedRatio   = "undefined_ratio"
	KindInvalidRequest   = "invalid_request"
	KindInternal         = "internal"
)

var kindErrors = map[string]error{
	KindInvalidParameter: threshold.ErrInvalidParameter,
	KindInsufficientData: threshold.ErrInsufficientData,
	KindDegenerateFit:    threshold.ErrDegenerateFit,
	KindUndefinedRatio:   threshold.ErrUndefinedRatio,
}

// KindOf names the estimator failure carried by err, for the wire.
func KindOf(err error) string {
	for kind, sentinel := range kindErrors {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// ErrorForKind maps a wire kind back to the estimator sentinel, or nil.
func ErrorForKind(kind string) error {
	return kindErrors[kind]
}
