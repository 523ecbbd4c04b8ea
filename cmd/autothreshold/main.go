package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/autothreshold/internal/config"
	"github.com/tensorplex-labs/autothreshold/internal/scores"
	"github.com/tensorplex-labs/autothreshold/internal/threshold"
	"github.com/tensorplex-labs/autothreshold/internal/thresholdapi"
	"github.com/tensorplex-labs/autothreshold/internal/utils/logger"
)

type options struct {
	inputScores string
	params      threshold.Params
	seed        uint64
	plot        bool
	asJSON      bool
	remote      string
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	opts := options{params: cfg.Params()}
	flag.StringVar(&opts.inputScores, "input_scores", "", "path or http(s) URL of the input scores (.npy, .json or text, optionally .zst/.gz)")
	flag.IntVar(&opts.params.SampleSize, "n", opts.params.SampleSize, "number of samples to use for threshold estimation")
	flag.Float64Var(&opts.params.Cutoff, "t", opts.params.Cutoff, "threshold on the probability f_plus / (f_plus + f_minus)")
	flag.Float64Var(&opts.params.Lower, "a", opts.params.Lower, "bad scores cutoff for the soft-label ramp")
	flag.Float64Var(&opts.params.Upper, "b", opts.params.Upper, "good scores cutoff for the soft-label ramp")
	flag.Float64Var(&opts.params.Exponent, "p", opts.params.Exponent, "curvature of the soft-label ramp")
	flag.Uint64Var(&opts.seed, "seed", cfg.Seed, "seed of the mixture initialization")
	flag.BoolVar(&opts.plot, "plot", false, "draw the posterior ratio curve on stderr")
	flag.BoolVar(&opts.asJSON, "json", false, "print the full analysis as JSON instead of the bare threshold")
	flag.StringVar(&opts.remote, "remote", "", "estimate on a thresholdd server at this URL instead of locally")

	logger.Init()

	if opts.inputScores == "" {
		flag.Usage()
		log.Fatal().Msg("--input_scores is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		log.Fatal().Stack().Err(err).Str("input_scores", opts.inputScores).Msg("failed to find threshold")
	}
}

// loadConfig reads .env from the working directory, if present, and then the
// environment. Flag defaults come from the result, so this runs before Init.
func loadConfig() (*config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}
	return config.LoadConfig()
}

func run(ctx context.Context, cfg *config.AppConfig, opts options, out io.Writer) error {
	loader, err := scores.NewLoader(&cfg.ScoreSourceEnvConfig)
	if err != nil {
		return err
	}
	values, err := loader.Load(ctx, opts.inputScores)
	if err != nil {
		return err
	}

	var analysis *threshold.Analysis
	if opts.remote != "" {
		analysis, err = estimateRemote(cfg, opts, values)
	} else {
		analysis, err = estimateLocal(cfg, opts, values)
	}
	if err != nil {
		return err
	}

	if analysis.Mixture != nil && !analysis.Mixture.Converged {
		log.Warn().Int("iterations", analysis.Mixture.Iterations).Msg("mixture fit did not converge")
	}
	log.Debug().
		Int("sample_size", analysis.SampleSize).
		Int("crossing_index", analysis.CrossingIndex).
		Float64("threshold", analysis.Threshold).
		Msg("threshold estimated")

	if opts.plot && len(analysis.Curve) > 0 {
		threshold.PlotRatioCurveTerminal(os.Stderr, analysis)
	}

	if opts.asJSON {
		data, err := sonic.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err = fmt.Fprintln(out, analysis.Threshold)
	return err
}

func estimateLocal(cfg *config.AppConfig, opts options, values []float64) (*threshold.Analysis, error) {
	fit := cfg.FitConfig()
	fit.Seed = opts.seed

	e, err := threshold.NewEstimator(opts.params, threshold.WithFitConfig(fit))
	if err != nil {
		return nil, err
	}
	return e.Analyze(values)
}

func estimateRemote(cfg *config.AppConfig, opts options, values []float64) (*threshold.Analysis, error) {
	clientCfg := cfg.ClientEnvConfig
	clientCfg.ThresholdAPIUrl = opts.remote

	api, err := thresholdapi.NewThresholdAPI(&clientCfg)
	if err != nil {
		return nil, err
	}

	seed := opts.seed
	params := opts.params
	resp, err := api.Estimate(thresholdapi.EstimateRequest{
		Scores:       values,
		Params:       &params,
		Seed:         &seed,
		IncludeCurve: opts.plot || opts.asJSON,
	})
	if err != nil {
		return nil, err
	}

	return &threshold.Analysis{
		Params:        resp.Params,
		SampleSize:    resp.SampleSize,
		Mixture:       resp.Mixture,
		Curve:         resp.Curve,
		CrossingIndex: resp.CrossingIndex,
		Threshold:     resp.Threshold,
	}, nil
}
