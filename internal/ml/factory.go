package ml

import (
	"context"
	"fmt"
	"time"

	"stroke-risk/internal/common"

	"github.com/rs/zerolog/log"
)

// BackendConfig selects and locates the model.
type BackendConfig struct {
	Backend           string
	ModelPath         string
	FallbackModelPath string
	PythonPath        string
	ServerURL         string
	Timeout           time.Duration
}

// Open loads the configured backend. When a fallback JSON model is configured
// it is loaded too and answers whenever the primary fails. A primary that
// cannot be loaded is an error even if a fallback exists.
func Open(ctx context.Context, c BackendConfig, metrics MetricsInterface) (PredictorInterface, error) {
	primary, err := openPrimary(ctx, c, metrics)
	if err != nil {
		return nil, err
	}

	if c.FallbackModelPath == "" {
		return primary, nil
	}

	secondary, err := LoadLogistic(c.FallbackModelPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fallback model: %w", err)
	}
	log.Info().Str("fallback_path", c.FallbackModelPath).Msg("Fallback model enabled")
	return NewFallbackPredictor(primary, secondary, metrics), nil
}

func openPrimary(ctx context.Context, c BackendConfig, metrics MetricsInterface) (PredictorInterface, error) {
	switch c.Backend {
	case common.BackendPython:
		p, err := NewWithMetrics(c.ModelPath, c.PythonPath, metrics, c.Timeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	case common.BackendJSON:
		m, err := LoadLogistic(c.ModelPath, metrics)
		if err != nil {
			return nil, err
		}
		return m, nil
	case common.BackendRemote:
		client := NewRemote(c.ServerURL, c.Timeout, metrics)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", c.Backend)
	}
}
