package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"cors-dev-proxy/internal/client"
	"cors-dev-proxy/internal/config"
	"cors-dev-proxy/internal/metrics"
)

// SubscriptionKeyHeader carries the API gateway key on load-test calls.
const SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

var (
	// ErrMissingPayload is returned when the load-test request has no usable payload.
	ErrMissingPayload = errors.New("payload is required")
	// ErrIterations is returned when iterations is outside 1..max_iterations.
	ErrIterations = errors.New("iterations out of range")
)

// LoadTestRequest is the body accepted by the fan-out route.
type LoadTestRequest struct {
	Iterations *int            `json:"iterations"`
	Payload    json.RawMessage `json:"payload"`
}

// Attempt is the settled outcome of one fan-out call. Status is the upstream
// status code on success and the string "error" otherwise.
type Attempt struct {
	Number int    `json:"intento"`
	Status any    `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LoadTestResult lists every attempt in order.
type LoadTestResult struct {
	Total    int       `json:"totalIntentos"`
	Attempts []Attempt `json:"respuestas"`
}

// LoadTestService fires the same payload at a fixed endpoint several times
// concurrently and reports each outcome.
type LoadTestService struct {
	client          *client.UpstreamClient
	logger          *slog.Logger
	metrics         *metrics.Metrics
	endpoint        string
	subscriptionKey string
	concurrency     int
	maxIterations   int
}

// NewLoadTestService creates a LoadTestService. The metrics parameter is optional.
func NewLoadTestService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *LoadTestService {
	return &LoadTestService{
		client:          c,
		logger:          logger.With("component", "loadtest_service"),
		metrics:         m,
		endpoint:        cfg.LoadTest.EndpointURL,
		subscriptionKey: cfg.LoadTest.SubscriptionKey,
		concurrency:     cfg.LoadTest.Concurrency,
		maxIterations:   cfg.LoadTest.MaxIterations,
	}
}

// Validate checks req and returns the number of iterations to run.
func (s *LoadTestService) Validate(req *LoadTestRequest) (int, error) {
	if isFalsy(req.Payload) {
		return 0, ErrMissingPayload
	}
	n := 1
	if req.Iterations != nil {
		n = *req.Iterations
	}
	if n < 1 || (s.maxIterations > 0 && n > s.maxIterations) {
		return 0, fmt.Errorf("%w: got %d, want 1..%d", ErrIterations, n, s.maxIterations)
	}
	return n, nil
}

// Run validates req, then sends the payload once per iteration. Every
// attempt settles independently; a failed call never aborts the others.
func (s *LoadTestService) Run(ctx context.Context, req *LoadTestRequest) (*LoadTestResult, error) {
	n, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("running load test",
		"iterations", n,
		"endpoint", s.endpoint,
	)

	attempts := make([]Attempt, n)
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i := range n {
		g.Go(func() error {
			attempts[i] = s.attempt(ctx, i+1, req.Payload)
			return nil
		})
	}
	_ = g.Wait()

	return &LoadTestResult{Total: n, Attempts: attempts}, nil
}

func (s *LoadTestService) attempt(ctx context.Context, number int, payload json.RawMessage) Attempt {
	s.logger.Debug("load test attempt", "attempt", number)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if s.subscriptionKey != "" {
		header.Set(SubscriptionKeyHeader, s.subscriptionKey)
	}

	resp, err := s.client.DoStream(ctx, http.MethodPost, s.endpoint, header, bytes.NewReader(payload))
	if err != nil {
		return s.failed(number, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return s.failed(number, fmt.Sprintf("read response body: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.failed(number, fmt.Sprintf("request failed with status code %d", resp.StatusCode))
	}

	s.record("success")
	return Attempt{Number: number, Status: resp.StatusCode, Data: decodeData(body)}
}

func (s *LoadTestService) failed(number int, msg string) Attempt {
	s.logger.Warn("load test attempt failed", "attempt", number, "err", msg)
	s.record("error")
	return Attempt{Number: number, Status: "error", Error: msg}
}

func (s *LoadTestService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.LoadTestAttempts.WithLabelValues(outcome).Inc()
	}
}

// decodeData keeps a JSON body as-is and falls back to a string otherwise.
func decodeData(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(body)
}

// isFalsy reports whether a JSON value is absent, null, false, "" or any
// spelling of the number zero (0, -0, 0.0, 0e0).
func isFalsy(v json.RawMessage) bool {
	s := string(bytes.TrimSpace(v))
	switch s {
	case "", "null", "false", `""`:
		return true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f == 0
	}
	return false
}
