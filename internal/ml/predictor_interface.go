// Package ml provides the stroke-risk scoring backends. Every backend exposes the
// trained classifier's predict_proba for a single patient record.
//
// The python backend runs the pickled scikit-learn pipeline through a Python
// subprocess, the json backend scores a logistic model exported to JSON natively,
// and the remote backend calls a model server over HTTP. A FallbackPredictor
// chains two of them.
package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stroke-risk/internal/patient"
)

// ErrModelUnavailable is returned when a model artifact cannot be loaded.
var ErrModelUnavailable = errors.New("model unavailable")

// PredictorInterface defines the scoring contract used by the front-end.
type PredictorInterface interface {
	// PredictProba returns the class probabilities [p(no stroke), p(stroke)]
	// for one record.
	PredictProba(ctx context.Context, record patient.Record) ([]float64, error)

	// Info describes the loaded model.
	Info() ModelInfo
}

// MetricsInterface defines metrics methods needed by the predictors
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
	MLTimeoutsInc()
	MLFallbackUseInc()
}

// ModelInfo is reported by the model server and logged at start-up.
type ModelInfo struct {
	Backend   string    `json:"backend"`
	Path      string    `json:"path,omitempty"`
	Version   string    `json:"version,omitempty"`
	TrainedAt string    `json:"trained_at,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
	Features  []string  `json:"features"`
	Fallback  string    `json:"fallback,omitempty"`

	// ServerBackend is the backend behind a model server, set on remote clients.
	ServerBackend string `json:"server_backend,omitempty"`
}

// referenceRecord is the form's default row, used for health checks.
var referenceRecord = patient.Record{
	Gender:          "Male",
	Age:             60,
	EverMarried:     "Yes",
	WorkType:        "Private",
	ResidenceType:   "Urban",
	AvgGlucoseLevel: 90.0,
	BMI:             22.5,
	SmokingStatus:   "never smoked",
}

// PositiveClass returns p(stroke) from a validated probability pair.
func PositiveClass(probs []float64) float64 {
	return probs[1]
}

// validateProbabilities checks a binary classifier output.
func validateProbabilities(probs []float64) error {
	if len(probs) != 2 {
		return fmt.Errorf("expected 2 probabilities, got %d", len(probs))
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("invalid probability %d: %f", i, p)
		}
	}
	return nil
}

// observe records the outcome of one prediction.
func observe(m MetricsInterface, start time.Time, probs []float64, err error) {
	if m == nil {
		return
	}
	m.MLLatencyObserve(time.Since(start).Seconds())
	if err != nil {
		m.MLFailuresInc()
		return
	}
	m.MLPredictionsInc()
	m.MLPredictionScoresObserve(probs[1])
}
