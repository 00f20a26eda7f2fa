// Package web serves the stroke-risk form. It renders the two-column form,
// turns a submission into a model record, scores it and shows the banded
// result with a gauge. A JSON API and a live band-count feed sit alongside.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"stroke-risk/internal/catalog"
	"stroke-risk/internal/gauge"
	"stroke-risk/internal/metrics"
	"stroke-risk/internal/ml"
	"stroke-risk/internal/patient"
	"stroke-risk/internal/risk"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// RequestIDHeader carries the request id in and out of the API.
const RequestIDHeader = "X-Request-ID"

// Options wires the server's collaborators.
type Options struct {
	Port           int
	Catalog        *catalog.Catalog
	Predictor      ml.PredictorInterface
	Assessor       *risk.Assessor
	Metrics        *metrics.MetricsWrapper
	Gatherer       prometheus.Gatherer
	PredictTimeout time.Duration
}

// Server is the form front-end.
type Server struct {
	catalog   *catalog.Catalog
	predictor ml.PredictorInterface
	assessor  *risk.Assessor
	metrics   *metrics.MetricsWrapper
	gatherer  prometheus.Gatherer
	timeout   time.Duration
	tmpl      *template.Template
	hub       *Hub
	server    *http.Server
	isRunning bool
	mu        sync.Mutex
}

// Result is the JSON answer of /api/assess.
type Result struct {
	RequestID     string         `json:"request_id"`
	Record        patient.Record `json:"record"`
	Probabilities []float64      `json:"probabilities"`
	Probability   float64        `json:"probability"`
	RiskPercent   float64        `json:"risk_percent"`
	Display       string         `json:"display"`
	Band          risk.Band      `json:"band"`
	Message       string         `json:"message"`
}

type apiError struct {
	RequestID string            `json:"request_id,omitempty"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func NewServer(opts Options) (*Server, error) {
	if opts.Catalog == nil || opts.Predictor == nil || opts.Assessor == nil || opts.Metrics == nil {
		return nil, errors.New("catalog, predictor, assessor and metrics are required")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.PredictTimeout <= 0 {
		opts.PredictTimeout = 10 * time.Second
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		catalog:   opts.Catalog,
		predictor: opts.Predictor,
		assessor:  opts.Assessor,
		metrics:   opts.Metrics,
		gatherer:  opts.Gatherer,
		timeout:   opts.PredictTimeout,
		tmpl:      tmpl,
		hub:       NewHub(opts.Metrics.LiveViewers()),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.PredictTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger)
	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/assess", s.handleAssessAPI).Methods(http.MethodPost)
	r.HandleFunc("/api/catalog", s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.handleWebSocket).Methods(http.MethodGet)
	return r
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("web server is already running")
	}

	go s.hub.Run()
	go func() {
		log.Info().Str("address", s.server.Addr).Str("locale", s.catalog.Locale).Msg("Starting web server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Stop closes live viewers and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.hub.Stop()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown web server")
		return err
	}

	s.isRunning = false
	log.Info().Msg("Web server stopped")
	return nil
}

// assess runs one form through assembly, prediction and banding.
func (s *Server) assess(ctx context.Context, form patient.Form) (patient.Record, []float64, risk.Assessment, error) {
	start := time.Now()
	defer func() { s.metrics.AssessmentDuration().Observe(time.Since(start).Seconds()) }()

	record, err := patient.Assemble(s.catalog, form)
	if err != nil {
		var verr *patient.ValidationError
		if errors.As(err, &verr) {
			s.metrics.FormErrors(verr.Fields)
		}
		return patient.Record{}, nil, risk.Assessment{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	probs, err := s.predictor.PredictProba(ctx, record)
	if err != nil {
		s.metrics.ErrorsTotal().Inc()
		return record, nil, risk.Assessment{}, fmt.Errorf("prediction failed: %w", err)
	}
	if len(probs) != 2 {
		s.metrics.ErrorsTotal().Inc()
		return record, nil, risk.Assessment{}, fmt.Errorf("expected 2 probabilities, got %d", len(probs))
	}

	assessment, err := s.assessor.Assess(ml.PositiveClass(probs))
	if err != nil {
		s.metrics.ErrorsTotal().Inc()
		return record, nil, risk.Assessment{}, err
	}

	s.metrics.AssessmentsTotal(string(assessment.Band)).Inc()
	s.hub.Record(assessment.Band)

	log.Info().
		Str("request_id", ml.RequestIDFromContext(ctx)).
		Str("band", string(assessment.Band)).
		Float64("risk_percent", assessment.Percent).
		Msg("Assessment completed")

	return record, probs, assessment, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form := patient.Form{
		Selections: make(map[string]string, len(s.catalog.Fields)),
		Age:        r.PostForm.Get("age"),
		BMI:        r.PostForm.Get("bmi"),
		Glucose:    r.PostForm.Get("avg_glucose_level"),
	}
	for _, f := range s.catalog.Fields {
		form.Selections[f.Name] = r.PostForm.Get(f.Name)
	}

	ctx := ml.ContextWithRequestID(r.Context(), requestID(r))
	_, _, assessment, err := s.assess(ctx, form)

	page := s.page(form)
	if err != nil {
		page.Error = fmt.Sprintf("%s: %v", s.catalog.Strings.ErrorPrefix, err)
		s.render(w, http.StatusOK, page)
		return
	}

	page.Result = &resultView{
		Display: assessment.Display(),
		Band:    string(assessment.Band),
		Message: assessment.Message,
		Gauge:   template.HTML(gauge.Render(assessment.Percent, s.assessor.Thresholds())),
	}
	s.render(w, http.StatusOK, page)
}

func (s *Server) handleAssessAPI(w http.ResponseWriter, r *http.Request) {
	id := requestID(r)
	w.Header().Set(RequestIDHeader, id)

	var form patient.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{RequestID: id, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	record, probs, assessment, err := s.assess(ml.ContextWithRequestID(r.Context(), id), form)
	if err != nil {
		var verr *patient.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{RequestID: id, Error: err.Error(), Fields: verr.Fields})
			return
		}
		writeJSON(w, http.StatusBadGateway, apiError{RequestID: id, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, Result{
		RequestID:     id,
		Record:        record,
		Probabilities: probs,
		Probability:   assessment.Probability,
		RiskPercent:   assessment.Percent,
		Display:       assessment.Display(),
		Band:          assessment.Band,
		Message:       assessment.Message,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"locale":     s.catalog.Locale,
		"model":      s.predictor.Info(),
		"thresholds": s.assessor.Thresholds(),
	})
}

// requestID honours a caller-supplied id and mints one otherwise.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hijacked websocket connections bypass the recorder.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
