package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/rpcgate/internal/ctxkey"
)

// tracerName is the instrumentation scope of dispatcher spans.
const tracerName = "github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"

// DefaultBatchConcurrency is the number of calls of one batch that are
// dispatched at the same time unless WithBatchConcurrency says otherwise.
const DefaultBatchConcurrency = 32

// CallObserver is notified after every dispatched call.
// It must be safe for concurrent use.
type CallObserver func(method string, kind OutcomeKind, elapsed time.Duration)

// Dispatcher routes parsed calls to a Handler and collects their outcomes.
// A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	handler  Handler
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
	observer CallObserver
	batchMax int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRequestTimeout bounds the time Process waits for a request's calls.
// Calls still unresolved when it expires fail with an internal error whose
// data is "request timed out". Zero means no timeout.
func WithRequestTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// WithLogger sets the fallback logger. A logger stored in the call
// context by the transport takes precedence.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTracerProvider sets the provider for per-call spans.
// Default is the global provider (a no-op unless one is installed).
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMeterProvider records the rpc.server.duration histogram with
// instruments from mp. Default is the global provider.
func WithMeterProvider(mp metric.MeterProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if mp != nil {
			d.duration = newDurationHistogram(mp)
		}
	}
}

// WithBatchConcurrency caps how many calls of one batch run at once.
// Values below 1 select DefaultBatchConcurrency.
func WithBatchConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.batchMax = n
	}
}

// WithCallObserver sets a hook called after every call (metrics).
func WithCallObserver(fn CallObserver) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = fn
	}
}

// NewDispatcher creates a dispatcher over h.
func NewDispatcher(h Handler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handler: h,
		logger:  slog.Default(),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.duration == nil {
		d.duration = newDurationHistogram(otel.GetMeterProvider())
	}
	if d.batchMax < 1 {
		d.batchMax = DefaultBatchConcurrency
	}
	return d
}

func newDurationHistogram(mp metric.MeterProvider) metric.Float64Histogram {
	h, err := mp.Meter(tracerName).Float64Histogram("rpc.server.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of dispatched JSON-RPC calls"),
	)
	if err != nil {
		otel.Handle(err)
		return noop.Float64Histogram{}
	}
	return h
}

// Process parses body, dispatches its calls and returns the encoded
// response payload. An empty payload means nothing is to be sent back.
func (d *Dispatcher) Process(ctx context.Context, body []byte) []byte {
	req := Parse(body)
	if req.Kind == Malformed {
		return Encode(req, nil)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var outcomes []Outcome
	if req.Kind == Single {
		outcomes = []Outcome{d.Dispatch(ctx, req.Calls[0])}
	} else {
		outcomes = d.DispatchBatch(ctx, req.Calls)
	}
	return Encode(req, outcomes)
}

// DispatchBatch dispatches the calls on at most the configured number of
// workers and returns the outcomes in input order, whatever order they
// completed in.
func (d *Dispatcher) DispatchBatch(ctx context.Context, calls []Call) []Outcome {
	outcomes := make([]Outcome, len(calls))
	workers := min(d.batchMax, len(calls))

	next := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range next {
				outcomes[i] = d.Dispatch(ctx, calls[i])
			}
		}()
	}
	for i := range calls {
		next <- i
	}
	close(next)
	wg.Wait()
	return outcomes
}

// Dispatch resolves one call. It blocks until the method's result is
// available or ctx is done. Notifications always yield a suppressed
// outcome, although the method still runs.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) Outcome {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, call.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", call.Method),
			attribute.Bool("rpc.jsonrpc.notification", call.IsNotification()),
		),
	)
	defer span.End()

	outcome := d.resolve(ctx, call)
	if outcome.Kind == OutcomeError {
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", outcome.Err.Code))
		span.SetStatus(codes.Error, outcome.Err.Message)
	}

	if call.IsNotification() {
		outcome = Suppressed()
	}

	elapsed := time.Since(start)
	d.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("rpc.method", call.Method),
		attribute.String("rpc.jsonrpc.outcome", outcome.Kind.String()),
	))
	if d.observer != nil {
		d.observer(call.Method, outcome.Kind, elapsed)
	}
	return outcome
}

// resolve looks the method up, invokes it and waits for its result.
func (d *Dispatcher) resolve(ctx context.Context, call Call) (outcome Outcome) {
	logger := d.loggerFrom(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("handler panicked", "method", call.Method, "panic", rec)
			outcome = Failure(InternalError())
		}
	}()

	m, ok := d.handler.Lookup(call.Method)
	if !ok {
		return Failure(MethodNotFound())
	}

	v, err := m.Invoke(ctx, call.Params).Wait(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				logger.Warn("call timed out", "method", call.Method)
				return Failure(errRequestTimeout)
			}
			logger.Debug("call cancelled", "method", call.Method)
			return Failure(InternalError())
		}
		logger.Debug("call failed", "method", call.Method, "error", err)
		return Failure(toError(err))
	}

	// Params has no MarshalJSON of its own; forward it as raw JSON.
	if p, ok := v.(Params); ok {
		v = json.RawMessage(p)
	}
	result, err := marshalJSON(v)
	if err != nil {
		logger.Error("failed to encode result", "method", call.Method, "error", fmt.Errorf("marshal result: %w", err))
		return Failure(InternalError())
	}
	return Success(result)
}

func (d *Dispatcher) loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return d.logger
}
