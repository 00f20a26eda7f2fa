package ml

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"stroke-risk/internal/patient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLogisticModel = `{
  "version": "2024.1",
  "trained_at": "2024-05-01T00:00:00Z",
  "intercept": -4.0,
  "numeric": {
    "age": {"coef": 1.5, "mean": 40, "scale": 20},
    "avg_glucose_level": {"coef": 0.5, "mean": 100, "scale": 50},
    "bmi": {"coef": 0.0, "mean": 28, "scale": 0}
  },
  "categorical": {
    "hypertension": {"0": 0.0, "1": 0.8},
    "heart_disease": {"0": 0.0, "1": 0.6},
    "smoking_status": {"never smoked": -0.2, "smokes": 0.4}
  }
}`

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stroke_model.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLogistic(t *testing.T) {
	metrics := &MockMetrics{}
	m, err := LoadLogistic(writeModel(t, testLogisticModel), metrics)
	require.NoError(t, err)

	assert.Equal(t, "2024.1", m.Version)
	assert.Equal(t, HandleUnknownIgnore, m.HandleUnknown)

	info := m.Info()
	assert.Equal(t, "json", info.Backend)
	assert.Equal(t, "2024.1", info.Version)
	assert.Equal(t, []string{"age", "avg_glucose_level", "bmi", "heart_disease", "hypertension", "smoking_status"}, info.Features)
	assert.False(t, info.LoadedAt.IsZero())
}

func TestLogisticModel_PredictProba(t *testing.T) {
	metrics := &MockMetrics{}
	m, err := LoadLogistic(writeModel(t, testLogisticModel), metrics)
	require.NoError(t, err)

	record := patient.Record{
		Gender:          "Male",
		Age:             60,
		Hypertension:    1,
		HeartDisease:    0,
		EverMarried:     "Yes",
		WorkType:        "Private",
		ResidenceType:   "Urban",
		AvgGlucoseLevel: 150,
		BMI:             30,
		SmokingStatus:   "smokes",
	}

	probs, err := m.PredictProba(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, probs, 2)

	// -4 + 1.5*1 + 0.5*1 + 0 + 0.8 + 0 + 0.4 = -0.8
	want := 1 / (1 + math.Exp(0.8))
	assert.InDelta(t, want, probs[1], 1e-12)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-12)

	assert.Equal(t, 1, metrics.predictions)
	assert.Equal(t, []float64{probs[1]}, metrics.predictionScores)
	assert.Equal(t, 1, metrics.latencyCount)
}

func TestLogisticModel_RiskIncreasesWithAge(t *testing.T) {
	m, err := LoadLogistic(writeModel(t, testLogisticModel), nil)
	require.NoError(t, err)

	young := referenceRecord
	young.Age = 20
	old := referenceRecord
	old.Age = 80

	pYoung, err := m.PredictProba(context.Background(), young)
	require.NoError(t, err)
	pOld, err := m.PredictProba(context.Background(), old)
	require.NoError(t, err)

	assert.Greater(t, pOld[1], pYoung[1])
}

func TestLogisticModel_DecisionSumsInColumnOrder(t *testing.T) {
	m, err := LoadLogistic(writeModel(t, testLogisticModel), nil)
	require.NoError(t, err)

	// age, hypertension, heart_disease, avg_glucose_level, bmi, smoking_status
	want := -4.0
	for _, term := range []float64{1.5, 0, 0, -0.1, 0, -0.2} {
		want += term
	}

	for i := 0; i < 200; i++ {
		z, err := m.decision(referenceRecord)
		require.NoError(t, err)
		require.Equal(t, want, z, "iteration %d", i)
	}
}

func TestLogisticModel_UnknownCategory(t *testing.T) {
	record := referenceRecord
	record.SmokingStatus = "Unknown"

	t.Run("ignore", func(t *testing.T) {
		m, err := LoadLogistic(writeModel(t, testLogisticModel), nil)
		require.NoError(t, err)

		_, err = m.PredictProba(context.Background(), record)
		assert.NoError(t, err)
	})

	t.Run("error", func(t *testing.T) {
		content := `{"intercept": 0, "handle_unknown": "error",
			"categorical": {"smoking_status": {"smokes": 1}}}`
		metrics := &MockMetrics{}
		m, err := LoadLogistic(writeModel(t, content), metrics)
		require.NoError(t, err)

		_, err = m.PredictProba(context.Background(), record)
		assert.Error(t, err)
		assert.Equal(t, 1, metrics.failures)
	})
}

func TestLogisticModel_CancelledContext(t *testing.T) {
	m, err := LoadLogistic(writeModel(t, testLogisticModel), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.PredictProba(ctx, referenceRecord)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadLogistic_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"intercept":`},
		{"no terms", `{"intercept": 1}`},
		{"unknown numeric column", `{"numeric": {"height": {"coef": 1, "scale": 1}}}`},
		{"unknown categorical column", `{"categorical": {"blood_type": {"A": 1}}}`},
		{"negative scale", `{"numeric": {"age": {"coef": 1, "scale": -1}}}`},
		{"bad handle_unknown", `{"handle_unknown": "skip", "numeric": {"age": {"coef": 1, "scale": 1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLogistic(writeModel(t, tt.content), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModelUnavailable))
		})
	}
}

func TestLoadLogistic_MissingFile(t *testing.T) {
	_, err := LoadLogistic(filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, sigmoid(0))
	assert.InDelta(t, 1.0, sigmoid(50), 1e-12)
	assert.InDelta(t, 0.0, sigmoid(-800), 1e-12)
}
