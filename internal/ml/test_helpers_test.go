package ml

import (
	"context"
	"sync"

	"stroke-risk/internal/patient"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	latencySum       float64
	latencyCount     int
	timeouts         int
	fallbackUse      int
	modelAge         float64
	predictionScores []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLTimeoutsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *MockMetrics) MLFallbackUseInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackUse++
}

// stubPredictor returns canned answers and records what it was asked
type stubPredictor struct {
	mu      sync.Mutex
	backend string
	version string
	probs   []float64
	err     error
	calls   int
	last    patient.Record
}

func (s *stubPredictor) PredictProba(ctx context.Context, record patient.Record) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = record
	if s.err != nil {
		return nil, s.err
	}
	return s.probs, nil
}

func (s *stubPredictor) Info() ModelInfo {
	return ModelInfo{Backend: s.backend, Version: s.version, Features: patient.Columns}
}

func (s *stubPredictor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubPredictor) lastRecord() patient.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
