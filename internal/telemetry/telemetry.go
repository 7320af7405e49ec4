// Package telemetry installs OpenTelemetry tracer and meter providers for
// the rpcgate binary.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// defaultMetricsInterval is how often OpenTelemetry metrics are exported.
const defaultMetricsInterval = 30 * time.Second

// Options selects exporters and sampling.
type Options struct {
	ServiceName string
	Version     string

	// Exporter is "stdout" (default) or "otlp".
	Exporter string
	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint string
	Insecure bool
	// SampleRatio is the fraction of root spans sampled, clamped to [0, 1].
	// Zero samples nothing.
	SampleRatio float64

	// Metrics installs a meter provider exporting to Writer.
	Metrics         bool
	MetricsInterval time.Duration

	// Writer receives stdout exports. Defaults to os.Stdout.
	Writer io.Writer
}

// Providers holds the installed SDK providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	// MeterProvider is nil unless Options.Metrics is set.
	MeterProvider *sdkmetric.MeterProvider
}

// Setup builds the providers and installs them as the global providers.
// Call Shutdown to flush pending exports.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	if opts.ServiceName = strings.TrimSpace(opts.ServiceName); opts.ServiceName == "" {
		opts.ServiceName = "rpcgate"
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		res = resource.Default()
	}

	spanExporter, err := newSpanExporter(ctx, opts)
	if err != nil {
		return nil, err
	}
	p := &Providers{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(opts.SampleRatio)))),
			sdktrace.WithBatcher(spanExporter),
		),
	}
	otel.SetTracerProvider(p.TracerProvider)

	if opts.Metrics {
		metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			_ = p.TracerProvider.Shutdown(ctx)
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		interval := opts.MetricsInterval
		if interval <= 0 {
			interval = defaultMetricsInterval
		}
		p.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(p.MeterProvider)
	}
	return p, nil
}

func newSpanExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "", "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
		if err != nil {
			return nil, fmt.Errorf("create stdout span exporter: %w", err)
		}
		return exp, nil
	case "otlp":
		if opts.Endpoint == "" {
			return nil, errors.New("telemetry: otlp exporter needs an endpoint")
		}
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp span exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", opts.Exporter)
	}
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func clampRatio(r float64) float64 {
	switch {
	case r <= 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}
