// Package server exposes threshold estimation over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/autothreshold/internal/config"
	"github.com/tensorplex-labs/autothreshold/internal/threshold"
	"github.com/tensorplex-labs/autothreshold/internal/thresholdapi"
	"github.com/tensorplex-labs/autothreshold/internal/utils/logger"
)

type Server struct {
	app      *fiber.App
	cfg      *config.ServerEnvConfig
	defaults threshold.Params
	fit      threshold.FitConfig
}

func NewServer(cfg *config.ServerEnvConfig, est *config.EstimatorEnvConfig) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodySizeLimit,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
	})

	app.Use(ZstdMiddleware(cfg.BodySizeLimit))

	s := &Server{
		app:      app,
		cfg:      cfg,
		defaults: est.Params(),
		fit:      est.FitConfig(),
	}
	app.Get("/health", s.handleHealth)
	app.Post("/threshold", s.handleThreshold)
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(thresholdapi.HealthResponse{Status: "ok"})
}

func (s *Server) handleThreshold(c *fiber.Ctx) error {
	startTime := time.Now()

	params := s.defaults
	req := thresholdapi.EstimateRequest{Params: &params}
	if err := sonic.Unmarshal(c.Body(), &req); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal threshold request")
		return c.Status(fiber.StatusBadRequest).JSON(thresholdapi.EstimateResponse{
			Kind:  thresholdapi.KindInvalidRequest,
			Error: "invalid payload",
		})
	}
	if req.Params == nil {
		req.Params = &s.defaults
	}

	fit := s.fit
	if req.Seed != nil {
		fit.Seed = *req.Seed
	}

	analysis, err := estimate(req.Scores, *req.Params, fit)
	if err != nil {
		kind := thresholdapi.KindOf(err)
		status := fiber.StatusUnprocessableEntity
		if kind == thresholdapi.KindInternal {
			status = fiber.StatusInternalServerError
		}
		log.Warn().Err(err).Str("kind", kind).Int("scores", len(req.Scores)).Msg("threshold estimate failed")
		return c.Status(status).JSON(thresholdapi.EstimateResponse{
			Params: *req.Params,
			Kind:   kind,
			Error:  err.Error(),
		})
	}

	logger.Sugar().Infow("estimated threshold",
		"threshold", analysis.Threshold,
		"crossingIndex", analysis.CrossingIndex,
		"sampleSize", analysis.SampleSize,
		"iterations", analysis.Mixture.Iterations,
		"converged", analysis.Mixture.Converged,
		"elapsed", time.Since(startTime),
	)

	resp := thresholdapi.EstimateResponse{
		Success:       true,
		Threshold:     analysis.Threshold,
		CrossingIndex: analysis.CrossingIndex,
		SampleSize:    analysis.SampleSize,
		Params:        analysis.Params,
		Mixture:       analysis.Mixture,
	}
	if req.IncludeCurve {
		resp.Curve = analysis.Curve
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func estimate(scores []float64, params threshold.Params, fit threshold.FitConfig) (*threshold.Analysis, error) {
	e, err := threshold.NewEstimator(params, threshold.WithFitConfig(fit))
	if err != nil {
		return nil, err
	}
	return e.Analyze(scores)
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("threshold server listening")
		if err := s.app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server listen failed")
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
