package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stroke-risk/internal/catalog"
	"stroke-risk/internal/cfg"
	"stroke-risk/internal/common"
	"stroke-risk/internal/metrics"
	"stroke-risk/internal/ml"
	"stroke-risk/internal/risk"
	"stroke-risk/internal/web"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	common.SetupLogging(c.LogLevel, c.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := loadCatalog(c)

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	predictor := loadPredictor(ctx, c, cat, mw)
	info := predictor.Info()
	log.Info().
		Str("backend", info.Backend).
		Str("model_path", info.Path).
		Str("version", info.Version).
		Str("fallback", info.Fallback).
		Str("server_backend", info.ServerBackend).
		Msg("model ready")

	assessor, err := risk.NewAssessor(
		risk.Thresholds{MediumAbove: c.RiskMediumAbove, HighAbove: c.RiskHighAbove},
		risk.Messages{Low: cat.Strings.BandLow, Medium: cat.Strings.BandMedium, High: cat.Strings.BandHigh},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid risk thresholds")
	}

	server, err := web.NewServer(web.Options{
		Port:           c.HTTPPort,
		Catalog:        cat,
		Predictor:      predictor,
		Assessor:       assessor,
		Metrics:        mw,
		Gatherer:       prometheus.DefaultGatherer,
		PredictTimeout: c.PredictTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("web server setup failed")
	}
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("web server start failed")
	}

	waitForShutdown(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("web server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

// loadCatalog prefers a catalog file over the built-in locale.
func loadCatalog(c cfg.Settings) *catalog.Catalog {
	var (
		cat *catalog.Catalog
		err error
	)
	if c.CatalogPath != "" {
		cat, err = catalog.LoadFile(c.CatalogPath)
	} else {
		cat, err = catalog.Load(c.Locale)
	}
	if err != nil {
		log.Fatal().Err(err).Str("locale", c.Locale).Str("catalog_path", c.CatalogPath).Msg("catalog load failed")
	}
	return cat
}

// loadPredictor stops the process when the model cannot be loaded; the form
// is never served without a working model.
func loadPredictor(ctx context.Context, c cfg.Settings, cat *catalog.Catalog, mw *metrics.MetricsWrapper) ml.PredictorInterface {
	predictor, err := ml.Open(ctx, ml.BackendConfig{
		Backend:           c.ModelBackend,
		ModelPath:         c.ModelPath,
		FallbackModelPath: c.FallbackModelPath,
		PythonPath:        c.PythonPath,
		ServerURL:         c.ModelServerURL,
		Timeout:           c.PredictTimeout,
	}, mw)
	if err != nil {
		msg := "model load failed"
		if errors.Is(err, ml.ErrModelUnavailable) {
			msg = cat.Strings.ModelMissing
		}
		log.Fatal().Err(err).Str("backend", c.ModelBackend).Str("model_path", c.ModelPath).Msg(msg)
	}
	return predictor
}

// waitForShutdown blocks until a signal arrives or ctx is cancelled.
func waitForShutdown(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}
	log.Info().Msg("shutting down gracefully...")
}
