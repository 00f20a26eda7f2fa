package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stroke-risk/internal/common"
	"stroke-risk/internal/patient"

	"github.com/rs/zerolog/log"
)

// Predictor scores records with the pickled scikit-learn pipeline by running
// predict_proba in a Python subprocess.
type Predictor struct {
	modelPath     string
	pythonPath    string
	timeout       time.Duration
	mu            sync.RWMutex
	lastUsed      time.Time
	healthChecked time.Time
	modelCreated  time.Time
	loadedAt      time.Time
	metrics       MetricsInterface
}

type inferenceRequest struct {
	Columns []string         `json:"columns"`
	Records []patient.Record `json:"records"`
}

type inferenceResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Error         string    `json:"error,omitempty"`
}

func New(path string) (*Predictor, error) {
	return NewWithMetrics(path, "", nil, 10*time.Second)
}

// NewWithMetrics loads the artifact at path. pythonPath may be empty, in which
// case a Python 3 with joblib and pandas is searched for. The model is checked
// once with a reference record before the predictor is returned.
func NewWithMetrics(path, pythonPath string, metrics MetricsInterface, timeout time.Duration) (*Predictor, error) {
	info, err := os.Stat(path)
	if err != nil {
		log.Error().Err(err).Str("model_path", path).Msg("Model artifact not found")
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, path, err)
	}

	if pythonPath == "" {
		pythonPath, err = findPython()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}

	p := &Predictor{
		modelPath:    path,
		pythonPath:   pythonPath,
		timeout:      timeout,
		modelCreated: info.ModTime(),
		loadedAt:     time.Now(),
		metrics:      metrics,
	}

	if err := p.healthCheck(context.Background()); err != nil {
		log.Error().Err(err).Str("model_path", path).Msg("Model health check failed")
		return nil, fmt.Errorf("%w: health check: %v", ErrModelUnavailable, err)
	}
	log.Info().Str("model_path", path).Str("python_path", pythonPath).Msg("Model loaded successfully")

	if p.metrics != nil {
		p.metrics.MLModelAgeSet(time.Since(p.modelCreated).Seconds())
	}

	return p, nil
}

// PredictProba returns [p(no stroke), p(stroke)] for the record.
func (p *Predictor) PredictProba(ctx context.Context, record patient.Record) ([]float64, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is nil")
	}

	start := time.Now()
	probs, err := p.predictInternal(ctx, record)
	observe(p.metrics, start, probs, err)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastUsed = time.Now()
	p.mu.Unlock()

	return probs, nil
}

func (p *Predictor) Info() ModelInfo {
	return ModelInfo{
		Backend:   common.BackendPython,
		Path:      p.modelPath,
		Version:   p.modelCreated.UTC().Format("20060102-150405"),
		TrainedAt: p.modelCreated.UTC().Format(time.RFC3339),
		LoadedAt:  p.loadedAt,
		Features:  patient.Columns,
	}
}

func (p *Predictor) predictInternal(ctx context.Context, record patient.Record) ([]float64, error) {
	reqJSON, err := json.Marshal(inferenceRequest{
		Columns: patient.Columns,
		Records: []patient.Record{record},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pythonPath, "-c", inferenceScript, p.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.mu.Lock()
			p.healthChecked = time.Time{} // Force next health check
			p.mu.Unlock()
			if p.metrics != nil {
				p.metrics.MLTimeoutsInc()
			}
			return nil, fmt.Errorf("prediction timeout after %v", p.timeout)
		}

		// The script reports its own failures as JSON on stdout
		var resp inferenceResponse
		if jsonErr := json.Unmarshal(stdout.Bytes(), &resp); jsonErr == nil && resp.Error != "" {
			log.Error().
				Str("python_error", resp.Error).
				Str("model_path", p.modelPath).
				Msg("Python inference returned error")
			return nil, fmt.Errorf("python inference error: %s", resp.Error)
		}

		log.Error().
			Err(err).
			Str("python_path", p.pythonPath).
			Str("model_path", p.modelPath).
			Str("stderr", stderr.String()).
			Msg("Python inference execution failed")

		if strings.Contains(stderr.String(), "Permission denied") {
			return nil, fmt.Errorf("permission denied accessing model files: %w", err)
		}
		return nil, fmt.Errorf("python inference failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp inferenceResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		log.Error().
			Err(err).
			Str("stdout", stdout.String()).
			Str("stderr", stderr.String()).
			Msg("Failed to parse prediction response")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("python inference error: %s", resp.Error)
	}
	if err := validateProbabilities(resp.Probabilities); err != nil {
		log.Error().
			Interface("probabilities", resp.Probabilities).
			Msg("Invalid prediction response")
		return nil, err
	}

	log.Debug().
		Interface("record", record).
		Interface("probabilities", resp.Probabilities).
		Msg("Prediction successful")

	return resp.Probabilities, nil
}

func (p *Predictor) healthCheck(ctx context.Context) error {
	p.mu.RLock()
	recent := time.Since(p.healthChecked) < 5*time.Minute
	p.mu.RUnlock()
	if recent {
		return nil
	}

	_, err := p.predictInternal(ctx, referenceRecord)
	if err == nil {
		p.mu.Lock()
		p.healthChecked = time.Now()
		p.mu.Unlock()
	}
	return err
}

const dependencyProbe = "import sys, joblib, pandas; print('Python', sys.version)"

func findPython() (string, error) {
	var candidates []string

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates = append(candidates,
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		)
	}

	// Project virtual environments next to the executable
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
			)
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, path)
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		output, err := exec.Command(candidate, "-c", dependencyProbe).Output()
		if err == nil && strings.Contains(string(output), "Python 3") {
			log.Info().Str("python_path", candidate).Msg("Using Python interpreter")
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no Python 3 with joblib and pandas found; set PYTHON_PATH or install them")
}

const inferenceScript = `
import json
import sys

try:
    import joblib
    import pandas as pd
except ImportError as e:
    print(json.dumps({"error": "missing dependency: %s" % e}))
    sys.exit(1)


def main():
    model_path = sys.argv[1]
    try:
        request = json.load(sys.stdin)
        frame = pd.DataFrame(request["records"], columns=request["columns"])
        model = joblib.load(model_path)
        proba = model.predict_proba(frame)
        print(json.dumps({"probabilities": [float(v) for v in proba[0]]}))
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


main()
`
