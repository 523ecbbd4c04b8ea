package thresholdapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/autothreshold/internal/config"
	"github.com/tensorplex-labs/autothreshold/internal/threshold"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *ThresholdAPI {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	api, err := NewThresholdAPI(&config.ClientEnvConfig{ThresholdAPIUrl: ts.URL, ClientTimeout: 5 * time.Second})
	require.NoError(t, err)
	return api
}

func TestNewThresholdAPI_NilConfig(t *testing.T) {
	_, err := NewThresholdAPI(nil)
	if err == nil {
		t.Fatal("expected error when cfg is nil")
	}
}

func TestEstimate_Success(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/threshold" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req EstimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := EstimateResponse{
			Success:       true,
			Threshold:     0.55,
			CrossingIndex: 33,
			SampleSize:    len(req.Scores),
			Params:        *req.Params,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			panic(err)
		}
	})

	params := threshold.DefaultParams()
	out, err := api.Estimate(EstimateRequest{Scores: []float64{0.1, 0.2, 0.9}, Params: &params})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 0.55, out.Threshold)
	assert.Equal(t, 3, out.SampleSize)
	assert.Equal(t, params, out.Params)
}

func TestEstimate_EstimatorFailure(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"success":false,"kind":"degenerate_fit","error":"1 distinct scores for 4 mixture components"}`)
	})

	_, err := api.Estimate(EstimateRequest{Scores: []float64{0.5, 0.5, 0.5, 0.5}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, threshold.ErrDegenerateFit), err.Error())
}

func TestEstimate_Non2xx(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})

	_, err := api.Estimate(EstimateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestEstimate_SuccessFalse(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false}`)
	})

	_, err := api.Estimate(EstimateRequest{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	out, err := api.Health()
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
}

func TestKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{
		threshold.ErrInvalidParameter,
		threshold.ErrInsufficientData,
		threshold.ErrDegenerateFit,
		threshold.ErrUndefinedRatio,
	} {
		wrapped := fmt.Errorf("context: %w", sentinel)
		assert.Equal(t, sentinel, ErrorForKind(KindOf(wrapped)))
	}
	assert.Equal(t, KindInternal, KindOf(errors.New("other")))
	assert.Nil(t, ErrorForKind(KindInternal))
}
