// Package metrics records import outcomes through OpenTelemetry and exposes
// them in Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	"github.com/triad3/irpf-import/internal/domain"
)

const meterName = "github.com/triad3/irpf-import"

type Config struct {
	ServiceName string
	Environment string
	// Registerer defaults to the global Prometheus registry.
	Registerer prom.Registerer
}

// newResource describes the service. The semconv schema must match the one
// resource.Default uses in the pinned SDK or the merge fails.
func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// Init installs a meter provider backed by a Prometheus exporter.
// The returned shutdown function must be called on application exit.
func Init(ctx context.Context, cfg Config) (*Recorder, func(context.Context) error, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, nil, err
	}

	var opts []prometheus.Option
	if cfg.Registerer != nil {
		opts = append(opts, prometheus.WithRegisterer(cfg.Registerer))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	rec, err := New(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}
	return rec, provider.Shutdown, nil
}

// Handler serves the global Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder holds the import instruments.
type Recorder struct {
	imports            metric.Int64Counter
	importDuration     metric.Float64Histogram
	items              metric.Int64Counter
	collectionFailures metric.Int64Counter
	extractionDuration metric.Float64Histogram
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)

	if r.imports, err = meter.Int64Counter("triad3.imports",
		metric.WithDescription("Declaration imports by terminal status")); err != nil {
		return nil, fmt.Errorf("create imports counter: %w", err)
	}
	if r.importDuration, err = meter.Float64Histogram("triad3.import.duration",
		metric.WithDescription("Wall time of the background import phase"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create import duration histogram: %w", err)
	}
	if r.items, err = meter.Int64Counter("triad3.collection.items",
		metric.WithDescription("Records inserted per collection")); err != nil {
		return nil, fmt.Errorf("create items counter: %w", err)
	}
	if r.collectionFailures, err = meter.Int64Counter("triad3.collection.failures",
		metric.WithDescription("Bulk inserts that failed per collection")); err != nil {
		return nil, fmt.Errorf("create collection failures counter: %w", err)
	}
	if r.extractionDuration, err = meter.Float64Histogram("triad3.extraction.duration",
		metric.WithDescription("Latency of the generative extraction call"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create extraction duration histogram: %w", err)
	}

	return &r, nil
}

// NewNop returns a recorder whose instruments discard everything.
func NewNop() *Recorder {
	r, err := New(noop.NewMeterProvider().Meter(meterName))
	if err != nil {
		panic(err)
	}
	return r
}

// ImportFinished records the terminal status of an import.
func (r *Recorder) ImportFinished(ctx context.Context, status domain.Status, elapsed time.Duration) {
	attrs := []attribute.KeyValue{attribute.String("status", string(status.Kind))}
	if status.Step != "" {
		attrs = append(attrs, attribute.String("step", string(status.Step)))
	}
	set := metric.WithAttributes(attrs...)
	r.imports.Add(ctx, 1, set)
	r.importDuration.Record(ctx, elapsed.Seconds(), set)
}

// CollectionPersisted records one fan-out result.
func (r *Recorder) CollectionPersisted(ctx context.Context, res domain.CollectionResult) {
	set := metric.WithAttributes(attribute.String("collection", string(res.Collection)))
	if res.Error != "" {
		r.collectionFailures.Add(ctx, 1, set)
		return
	}
	r.items.Add(ctx, int64(res.Inserted), set)
}

// ExtractionFinished records the latency of a model call and its outcome code.
func (r *Recorder) ExtractionFinished(ctx context.Context, backend string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if code, ok := domain.CodeOf(err); ok {
			outcome = string(code)
		}
	}
	r.extractionDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}
