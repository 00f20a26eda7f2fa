package ml

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stroke-risk/internal/common"
	"stroke-risk/internal/patient"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// RemoteClient scores records through a ModelServer.
type RemoteClient struct {
	base    string
	rest    *resty.Client
	metrics MetricsInterface

	mu   sync.RWMutex
	info ModelInfo
}

func NewRemote(base string, timeout time.Duration, metrics MetricsInterface) *RemoteClient {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Accept", "application/json")

	return &RemoteClient{
		base:    strings.TrimRight(base, "/"),
		rest:    r,
		metrics: metrics,
		info:    ModelInfo{Backend: common.BackendRemote, Path: base},
	}
}

// Connect fetches the server's model info, failing if the server is unreachable.
func (c *RemoteClient) Connect(ctx context.Context) error {
	var info ModelInfo
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&info).
		Get(c.base + "/model/info")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelUnavailable, c.base, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: status %d", ErrModelUnavailable, c.base, resp.StatusCode())
	}

	info.ServerBackend = info.Backend
	info.Backend = common.BackendRemote
	info.Path = c.base

	c.mu.Lock()
	c.info = info
	c.mu.Unlock()

	log.Info().Str("model_server", c.base).Str("version", info.Version).Msg("Connected to model server")
	return nil
}

func (c *RemoteClient) PredictProba(ctx context.Context, record patient.Record) ([]float64, error) {
	start := time.Now()
	probs, err := c.predict(ctx, record)
	observe(c.metrics, start, probs, err)
	return probs, err
}

func (c *RemoteClient) predict(ctx context.Context, record patient.Record) ([]float64, error) {
	result := &PredictionResponse{}
	failure := &errorResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(PredictionRequest{Record: record, RequestID: RequestIDFromContext(ctx)}).
		SetResult(result).
		SetError(failure).
		Post(c.base + "/predict")
	if err != nil {
		if ctx.Err() == nil && strings.Contains(err.Error(), "Client.Timeout") && c.metrics != nil {
			c.metrics.MLTimeoutsInc()
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if failure.Error != "" {
			return nil, fmt.Errorf("model server: %s", failure.Error)
		}
		return nil, fmt.Errorf("model server: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	if err := validateProbabilities(result.Probabilities); err != nil {
		return nil, err
	}
	return result.Probabilities, nil
}

// Info returns the server's model info as of the last Connect.
func (c *RemoteClient) Info() ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}
