package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"stroke-risk/internal/common"
	"stroke-risk/internal/patient"

	"github.com/rs/zerolog/log"
)

// Unknown category handling, as in scikit-learn's OneHotEncoder.
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// NumericTerm is a standardized numeric input: coef * (x - mean) / scale.
type NumericTerm struct {
	Coef  float64 `json:"coef"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// LogisticModel is a logistic-regression pipeline exported to JSON: a
// StandardScaler on the numeric columns, one-hot weights on the categorical
// columns and an intercept.
type LogisticModel struct {
	Version       string                        `json:"version"`
	TrainedAt     string                        `json:"trained_at"`
	Intercept     float64                       `json:"intercept"`
	Numeric       map[string]NumericTerm        `json:"numeric"`
	Categorical   map[string]map[string]float64 `json:"categorical"`
	HandleUnknown string                        `json:"handle_unknown"`

	path     string
	loadedAt time.Time
	metrics  MetricsInterface
}

// LoadLogistic reads and validates a JSON model.
func LoadLogistic(path string, metrics MetricsInterface) (*LogisticModel, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrModelUnavailable, path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, path, err)
	}

	m.path = path
	m.loadedAt = time.Now()
	m.metrics = metrics

	if metrics != nil {
		metrics.MLModelAgeSet(time.Since(info.ModTime()).Seconds())
	}

	log.Info().
		Str("model_path", path).
		Str("version", m.Version).
		Int("numeric_terms", len(m.Numeric)).
		Int("categorical_terms", len(m.Categorical)).
		Msg("Logistic model loaded")

	return &m, nil
}

func (m *LogisticModel) validate() error {
	if len(m.Numeric) == 0 && len(m.Categorical) == 0 {
		return fmt.Errorf("model has no terms")
	}
	if !finite(m.Intercept) {
		return fmt.Errorf("intercept is not finite")
	}

	numeric := referenceRecord.Numeric()
	for name, term := range m.Numeric {
		if _, ok := numeric[name]; !ok {
			return fmt.Errorf("unknown numeric column %s", name)
		}
		if !finite(term.Coef) || !finite(term.Mean) || !finite(term.Scale) || term.Scale < 0 {
			return fmt.Errorf("numeric column %s has invalid parameters", name)
		}
	}

	categorical := referenceRecord.Categorical()
	for name, weights := range m.Categorical {
		if _, ok := categorical[name]; !ok {
			return fmt.Errorf("unknown categorical column %s", name)
		}
		for value, w := range weights {
			if !finite(w) {
				return fmt.Errorf("weight %s=%s is not finite", name, value)
			}
		}
	}

	switch m.HandleUnknown {
	case "":
		m.HandleUnknown = HandleUnknownIgnore
	case HandleUnknownIgnore, HandleUnknownError:
	default:
		return fmt.Errorf("handle_unknown must be ignore or error, got %q", m.HandleUnknown)
	}
	return nil
}

// PredictProba returns [1-p, p] with p = sigmoid(decision function).
func (m *LogisticModel) PredictProba(ctx context.Context, record patient.Record) ([]float64, error) {
	start := time.Now()
	probs, err := m.predict(ctx, record)
	observe(m.metrics, start, probs, err)
	return probs, err
}

func (m *LogisticModel) predict(ctx context.Context, record patient.Record) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	z, err := m.decision(record)
	if err != nil {
		return nil, err
	}

	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (m *LogisticModel) decision(record patient.Record) (float64, error) {
	numeric := record.Numeric()
	categorical := record.Categorical()

	// Terms are summed in column order so identical records score bit-for-bit the same.
	z := m.Intercept
	for _, name := range patient.Columns {
		if x, ok := numeric[name]; ok {
			term, ok := m.Numeric[name]
			if !ok {
				continue
			}
			scale := term.Scale
			if scale == 0 {
				scale = 1
			}
			z += term.Coef * (x - term.Mean) / scale
			continue
		}

		weights, ok := m.Categorical[name]
		if !ok {
			continue
		}
		value := categorical[name]
		w, known := weights[value]
		if !known && m.HandleUnknown == HandleUnknownError {
			return 0, fmt.Errorf("found unknown category %q in column %s", value, name)
		}
		z += w
	}

	return z, nil
}

func (m *LogisticModel) Info() ModelInfo {
	features := make([]string, 0, len(m.Numeric)+len(m.Categorical))
	for name := range m.Numeric {
		features = append(features, name)
	}
	for name := range m.Categorical {
		features = append(features, name)
	}
	sort.Strings(features)

	return ModelInfo{
		Backend:   common.BackendJSON,
		Path:      m.path,
		Version:   m.Version,
		TrainedAt: m.TrainedAt,
		LoadedAt:  m.loadedAt,
		Features:  features,
	}
}

// sigmoid converts a score to a probability
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
