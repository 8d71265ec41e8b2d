// Package backend talks to the property-management backend API that owns
// reading and invoice records when the service runs in remote store mode.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/numeric"
	obscontext "github.com/smallbiznis/rentbook/internal/observability/context"
	"github.com/smallbiznis/rentbook/internal/observability/logger"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	"github.com/smallbiznis/rentbook/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 << 10

var ErrNotConfigured = errors.New("backend_not_configured")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Operation  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: %d %s", e.Operation, e.StatusCode, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg config.BackendConfig, log *zap.Logger, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("backend"),
		metrics: m,
	}
}

// do sends one request and decodes the JSON answer into a generic value.
// Numbers are kept as json.Number so nothing is lost before normalisation.
// Requests are never retried.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any) (any, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	ctx, span := otel.Tracer("rentbook/backend").Start(ctx, "backend."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(attribute.String("backend.operation", operation))...)

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	correlationID := obscontext.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = ulid.Make().String()
	}
	req.Header.Set("X-Correlation-Id", correlationID)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	tracing.InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	log := logger.WithContext(ctx, c.log).With(
		zap.String("operation", operation),
		zap.String("correlation_id", correlationID),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordBackendRequest(ctx, operation, 0, time.Since(start))
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		log.Warn("backend request failed", zap.Error(err))
		return nil, fmt.Errorf("backend %s: %w", operation, err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	c.metrics.RecordBackendRequest(ctx, operation, resp.StatusCode, elapsed)
	log.Debug("backend request",
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
			Operation:  operation,
		}
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		if resp.StatusCode >= http.StatusInternalServerError {
			log.Warn("backend rejected request", zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		}
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("backend %s: decode response: %w", operation, err)
	}
	return out, nil
}

// normalizer logs and counts payload values dropped while decoding a response
// for the request in ctx.
func (c *Client) normalizer(ctx context.Context) normalizer {
	log := logger.WithContext(ctx, c.log)
	return normalizer{parser: numeric.NewParser(func(d numeric.Diagnostic) {
		log.Warn("backend value discarded",
			zap.String("field", d.Field),
			zap.String("raw", d.Raw),
			zap.String("kind", d.Kind),
		)
		c.metrics.RecordCoercionDiscard(ctx, d.Field)
	})}
}

func errorMessage(raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		if msg, ok := payload["message"].(string); ok && msg != "" {
			return msg
		}
		switch e := payload["error"].(type) {
		case string:
			return e
		case map[string]any:
			if msg, ok := e["message"].(string); ok {
				return msg
			}
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
