package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 8 << 20

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "therapy",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of inference service requests",
	}, []string{"modality"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "therapy",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed inference service requests",
	}, []string{"modality"})
)

// Config defines the inference service connection.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
}

// Client implements Analyzer over JSON HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewClient builds a client for the inference service.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("ai service url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Client{
		baseURL: base,
		timeout: cfg.Timeout,
		http:    httpClient,
		tracer:  otel.Tracer("github.com/noah-isme/therapy-api/pkg/ai"),
		logger:  cfg.Logger.With().Str("component", "ai_client").Logger(),
	}, nil
}

// Analyze POSTs the payload and returns the decoded response. Any failure is
// reported as ErrUpstream.
func (c *Client) Analyze(parent context.Context, endpoint Endpoint, payload interface{}) (Result, error) {
	modality := endpoint.Modality()
	ctx, span := c.tracer.Start(parent, "ai.analyze", trace.WithAttributes(
		attribute.String("modality", modality),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.do(ctx, endpoint, payload)
	aiDuration.WithLabelValues(modality).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(modality).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn().Err(err).Str("modality", modality).Msg("inference request failed")
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return result, nil
}

func (c *Client) do(ctx context.Context, endpoint Endpoint, payload interface{}) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+string(endpoint), bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if !json.Valid(raw) {
		return Result{}, fmt.Errorf("response is not json")
	}

	return Result{Payload: json.RawMessage(raw), Confidence: extractConfidence(raw)}, nil
}

// extractConfidence returns the top-level numeric confidence field, if any.
func extractConfidence(raw []byte) *float64 {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}

	value, ok := envelope["confidence"]
	if !ok {
		return nil
	}

	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	if err := decoder.Decode(&number); err != nil {
		return nil
	}

	parsed, err := strconv.ParseFloat(number.String(), 64)
	if err != nil {
		return nil
	}
	return &parsed
}
