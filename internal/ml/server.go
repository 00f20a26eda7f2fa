package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stroke-risk/internal/patient"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	predictor PredictorInterface
	timeout   time.Duration
	server    *http.Server
}

// PredictionRequest represents the incoming prediction request
type PredictionRequest struct {
	Record    patient.Record `json:"record"`
	RequestID string         `json:"request_id,omitempty"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Probabilities []float64 `json:"probabilities"`
	RiskScore     float64   `json:"risk_score"`
	RequestID     string    `json:"request_id,omitempty"`
	ModelVersion  string    `json:"model_version"`
	Latency       float64   `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Healthy bool      `json:"healthy"`
	Model   ModelInfo `json:"model"`
	Error   string    `json:"error,omitempty"`
}

type requestIDKey struct{}

// ContextWithRequestID tags a context with a request id that is forwarded to the model server.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(predictor PredictorInterface, port int, timeout time.Duration) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		timeout:   timeout,
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ms.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the server's routes.
func (ms *ModelServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/predict", ms.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/health", ms.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", ms.handleModelInfo).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ms.timeout)
	defer cancel()

	probs, err := ms.predictor.PredictProba(ctx, req.Record)
	if err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("prediction failed: %v", err)})
		return
	}
	if err := validateProbabilities(probs); err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("model returned invalid probabilities")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		Probabilities: probs,
		RiskScore:     PositiveClass(probs),
		RequestID:     req.RequestID,
		ModelVersion:  ms.predictor.Info().Version,
		Latency:       float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:     time.Now(),
	})
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ms.timeout)
	defer cancel()

	health := healthResponse{Healthy: true, Model: ms.predictor.Info()}
	status := http.StatusOK
	if _, err := ms.predictor.PredictProba(ctx, referenceRecord); err != nil {
		health.Healthy = false
		health.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ms.predictor.Info())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
