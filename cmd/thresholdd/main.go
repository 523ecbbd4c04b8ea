package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/autothreshold/internal/config"
	"github.com/tensorplex-labs/autothreshold/internal/server"
	"github.com/tensorplex-labs/autothreshold/internal/utils/logger"
)

func main() {
	envErr := godotenv.Load()
	logger.Init()
	log.Info().Msg("Starting threshold server...")
	if envErr != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}
	if err := cfg.Params().Validate(); err != nil {
		log.Fatal().Stack().Err(err).Msg("invalid default estimator parameters")
	}

	s := server.NewServer(&cfg.ServerEnvConfig, &cfg.EstimatorEnvConfig)

	// cancel on shutdown signal; Start drains and returns
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("threshold server stopped with error")
	}
	log.Info().Msg("threshold server stopped")
}
