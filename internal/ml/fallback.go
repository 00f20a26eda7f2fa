package ml

import (
	"context"
	"fmt"

	"stroke-risk/internal/patient"

	"github.com/rs/zerolog/log"
)

// FallbackPredictor answers from a secondary model when the primary fails
type FallbackPredictor struct {
	primary   PredictorInterface
	secondary PredictorInterface
	metrics   MetricsInterface
}

// NewFallbackPredictor creates a new fallback predictor. secondary may be nil,
// in which case primary errors are returned unchanged.
func NewFallbackPredictor(primary, secondary PredictorInterface, metrics MetricsInterface) *FallbackPredictor {
	return &FallbackPredictor{
		primary:   primary,
		secondary: secondary,
		metrics:   metrics,
	}
}

func (p *FallbackPredictor) PredictProba(ctx context.Context, record patient.Record) ([]float64, error) {
	probs, err := p.primary.PredictProba(ctx, record)
	if err == nil {
		return probs, nil
	}
	if p.secondary == nil {
		return nil, err
	}
	// A cancelled request is not the model's fault
	if ctx.Err() != nil {
		return nil, err
	}

	log.Warn().
		Err(err).
		Str("primary", p.primary.Info().Backend).
		Str("secondary", p.secondary.Info().Backend).
		Msg("Primary model failed, using fallback")
	if p.metrics != nil {
		p.metrics.MLFallbackUseInc()
	}

	probs, fallbackErr := p.secondary.PredictProba(ctx, record)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary: %v; fallback: %w", err, fallbackErr)
	}
	return probs, nil
}

func (p *FallbackPredictor) Info() ModelInfo {
	info := p.primary.Info()
	if p.secondary != nil {
		info.Fallback = p.secondary.Info().Backend
	}
	return info
}
