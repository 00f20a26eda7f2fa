package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stroke-risk/internal/cfg"
	"stroke-risk/internal/common"
	"stroke-risk/internal/metrics"
	"stroke-risk/internal/ml"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// modelserver exposes a local model over HTTP so several front-ends can share it.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	common.SetupLogging(c.LogLevel, c.LogFormat)

	if c.ModelBackend == common.BackendRemote {
		log.Fatal().Msg("model server needs a local backend (python or json)")
	}

	m := metrics.New()
	predictor, err := ml.Open(context.Background(), ml.BackendConfig{
		Backend:           c.ModelBackend,
		ModelPath:         c.ModelPath,
		FallbackModelPath: c.FallbackModelPath,
		PythonPath:        c.PythonPath,
		Timeout:           c.PredictTimeout,
	}, metrics.NewWrapper(m))
	if err != nil {
		log.Fatal().Err(err).Str("model_path", c.ModelPath).Msg("model load failed")
	}

	server := ml.NewModelServer(predictor, c.ModelServerPort, c.PredictTimeout)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("model server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("model server shutdown failed")
	}
}
