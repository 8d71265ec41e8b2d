package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	coercionDiscards metric.Int64Counter
	negativeReadings metric.Int64Counter
	approvals        metric.Int64Counter
	dashboardReloads metric.Int64Counter
	backendRequests  metric.Int64Counter
	backendLatencyMs metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rentbook"
	}
	meter := provider.Meter(name)

	coercionDiscards, err := meter.Int64Counter("rentbook_numeric_coercion_discards_total")
	if err != nil {
		return nil, err
	}
	negativeReadings, err := meter.Int64Counter("rentbook_negative_consumption_items_total")
	if err != nil {
		return nil, err
	}
	approvals, err := meter.Int64Counter("rentbook_reading_approvals_total")
	if err != nil {
		return nil, err
	}
	dashboardReloads, err := meter.Int64Counter("rentbook_dashboard_reloads_total")
	if err != nil {
		return nil, err
	}
	backendRequests, err := meter.Int64Counter("rentbook_backend_requests_total")
	if err != nil {
		return nil, err
	}
	backendLatencyMs, err := meter.Float64Histogram("rentbook_backend_request_duration_ms")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		coercionDiscards: coercionDiscards,
		negativeReadings: negativeReadings,
		approvals:        approvals,
		dashboardReloads: dashboardReloads,
		backendRequests:  backendRequests,
		backendLatencyMs: backendLatencyMs,
	}, nil
}

// NewNoop returns instruments backed by the no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordCoercionDiscard counts values whose non-numeric content was dropped.
func (m *Metrics) RecordCoercionDiscard(ctx context.Context, field string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("field", strings.TrimSpace(field)))
	m.coercionDiscards.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNegativeConsumption counts reading items whose new index is below the previous one.
func (m *Metrics) RecordNegativeConsumption(ctx context.Context, scope string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("scope", strings.TrimSpace(scope)))
	m.negativeReadings.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordApproval counts approval attempts by result.
func (m *Metrics) RecordApproval(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.approvals.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDashboardReload counts reloads by outcome (committed, stale, failed).
func (m *Metrics) RecordDashboardReload(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.dashboardReloads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBackendRequest records one call against the backend API.
func (m *Metrics) RecordBackendRequest(ctx context.Context, operation string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.Int("status_code", statusCode),
	)
	m.backendRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendLatencyMs.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"field":       {},
	"scope":       {},
	"result":      {},
	"outcome":     {},
	"operation":   {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
