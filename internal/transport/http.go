package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Defaults for the finance API client.
const (
	DefaultBaseURL    = "http://localhost:8080/api/v1"
	DefaultTimeout    = 10 * time.Second
	DefaultTracerName = "fintrack/transport"
)

// HTTP is a Transport backed by net/http.
//
// Every request carries the baseline headers (Content-Type: application/json
// and, when a token is set, Authorization: Bearer <token>). Per-request headers
// are merged over the baseline.
type HTTP struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger

	mu      sync.RWMutex
	headers map[string]string
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithBaseURL sets the API base URL. A trailing slash is trimmed.
func WithBaseURL(u string) HTTPOption {
	return func(h *HTTP) {
		h.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.client.Timeout = d
	}
}

// WithToken sets the bearer token in the baseline headers.
func WithToken(token string) HTTPOption {
	return func(h *HTTP) {
		if token != "" {
			h.headers["Authorization"] = "Bearer " + token
		}
	}
}

// WithHeaders merges extra baseline headers.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(h *HTTP) {
		maps.Copy(h.headers, headers)
	}
}

// WithHTTPClient replaces the underlying client.
// Apply WithTimeout after this option to change its timeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) HTTPOption {
	return func(h *HTTP) {
		h.tracer = otel.Tracer(name)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = l
	}
}

// NewHTTP creates an HTTP transport with the default base URL and timeout.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		tracer:  otel.Tracer(DefaultTracerName),
		logger:  slog.Default(),
		headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BaseURL returns the configured base URL.
func (h *HTTP) BaseURL() string {
	return h.baseURL
}

// SetHeaders merges headers into the baseline. Later calls override
// earlier values for the same key.
func (h *HTTP) SetHeaders(headers map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	maps.Copy(h.headers, headers)
}

// Headers returns a copy of the baseline headers.
func (h *HTTP) Headers() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.headers)
}

// Do performs req. Non-2xx responses become KindServer errors; failures to
// obtain a response, including context cancellation, become KindNetwork errors.
func (h *HTTP) Do(ctx context.Context, req Request) (*Response, error) {
	method := string(req.Method)

	ctx, span := h.tracer.Start(ctx, "fintrack.http "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("fintrack.path", req.Path),
		),
	)
	defer span.End()

	httpReq, err := h.build(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	h.logger.Debug("http request",
		"method", method,
		"url", httpReq.URL.String(),
	)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		terr := NewNetworkError(method, req.Path, err)
		span.RecordError(terr)
		span.SetStatus(codes.Error, terr.Message)
		return nil, terr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		terr := NewNetworkError(method, req.Path, fmt.Errorf("read body: %w", err))
		span.RecordError(terr)
		span.SetStatus(codes.Error, terr.Message)
		return nil, terr
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := NewServerError(method, req.Path, resp.StatusCode, body)
		span.SetStatus(codes.Error, terr.Message)
		return nil, terr
	}

	span.SetStatus(codes.Ok, "")
	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (h *HTTP) build(ctx context.Context, req Request) (*http.Request, error) {
	method := string(req.Method)

	target := h.baseURL + req.Path
	if len(req.Query) > 0 {
		values, err := req.Query.Encode()
		if err != nil {
			return nil, NewNetworkError(method, req.Path, fmt.Errorf("encode query: %w", err))
		}
		target += "?" + values.Encode()
	}

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case json.RawMessage:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, NewNetworkError(method, req.Path, fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewNetworkError(method, req.Path, err)
	}

	for k, v := range h.Headers() {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}
