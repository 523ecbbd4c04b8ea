// Package scores loads score arrays from local files or HTTP sources.
package scores

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/autothreshold/internal/config"
)

var ErrEmptySource = errors.New("score source contains no values")

type Loader struct {
	httpClient *retryablehttp.Client
}

func NewLoader(cfg *config.ScoreSourceEnvConfig) (*Loader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.DownloadRetries
	client.HTTPClient.Timeout = cfg.DownloadTimeout
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.Logger = nil

	return &Loader{httpClient: client}, nil
}

// Load reads every score from source, a file path or an http(s) URL. The
// decoder is chosen from the file name, see DetectFormat.
func (l *Loader) Load(ctx context.Context, source string) ([]float64, error) {
	start := time.Now()

	var (
		scores []float64
		err    error
	)
	if isRemote(source) {
		scores, err = l.loadRemote(ctx, source)
	} else {
		scores, err = loadFile(source)
	}
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptySource)
	}

	log.Debug().
		Str("source", source).
		Int("count", len(scores)).
		Dur("elapsed", time.Since(start)).
		Msg("loaded scores")
	return scores, nil
}

func loadFile(name string) ([]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open scores: %w", err)
	}
	defer f.Close()

	scores, err := Decode(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return scores, nil
}

func (l *Loader) loadRemote(ctx context.Context, source string) ([]float64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", source).Msg("score download failed")
		return nil, fmt.Errorf("get %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get %s: status %d: %s", source, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	scores, err := Decode(resp.Body, u.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return scores, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
