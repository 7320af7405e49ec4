// Package rpchttp serves a jsonrpc.Handler over HTTP/1.1.
//
// Every connection carries exactly one request: the server reads it,
// checks the Host and Origin headers, the method and the content type,
// dispatches the JSON-RPC body and writes one chunked response before
// closing the connection.
//
//	reg := jsonrpc.NewRegistry()
//	reg.AddMethod("hello", hello)
//	srv, err := rpchttp.Start(reg,
//		rpchttp.WithBindAddress("127.0.0.1:8545"),
//		rpchttp.WithAllowedHosts(rpchttp.AllowOnlyHosts("node.example.org")),
//		rpchttp.WithCors(rpchttp.CorsAllowOnly("https://wallet.example.org")),
//	)
//	if err != nil { ... }
//	defer srv.Close()
package rpchttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/rpcgate/internal/ctxkey"
	"github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"
)

const (
	// DefaultBindAddress is used when no WithBindAddress option is given.
	DefaultBindAddress = "127.0.0.1:0"
	// DefaultMaxBodyBytes bounds request bodies when WithMaxBodyBytes is not given.
	DefaultMaxBodyBytes = 5 << 20
)

// Server is a running JSON-RPC HTTP server. Its configuration is fixed
// once Start returns.
type Server struct {
	bindAddrs         []string
	hostWhitelist     HostWhitelist
	cors              CorsPolicy
	requestTimeout    time.Duration
	readTimeout       time.Duration
	maxBodyBytes      int64
	maxConnections    int
	batchConcurrency  int
	strictContentType bool
	logger            *slog.Logger
	metrics           *Metrics
	tracerProvider    trace.TracerProvider
	meterProvider     metric.MeterProvider

	dispatcher *jsonrpc.Dispatcher
	hosts      *hostMatcher
	listeners  []net.Listener
	addrs      []net.Addr
	sem        chan struct{}

	baseCtx    context.Context
	cancelBase context.CancelFunc
	quit       chan struct{}
	stopOnce   sync.Once
	inShutdown atomic.Bool
	acceptWG   sync.WaitGroup
	connWG     sync.WaitGroup

	mu          sync.Mutex
	activeConns map[*conn]struct{}
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithCors sets the CORS policy. Default is CorsDisabled.
func WithCors(p CorsPolicy) Option {
	return func(s *Server) {
		s.cors = p
	}
}

// WithAllowedHosts sets the Host header whitelist. Default is AllowAllHosts.
func WithAllowedHosts(w HostWhitelist) Option {
	return func(s *Server) {
		s.hostWhitelist = w
	}
}

// WithBindAddress adds a listen address. It may be given more than once;
// port 0 asks the OS for an ephemeral port.
func WithBindAddress(addr string) Option {
	return func(s *Server) {
		s.bindAddrs = append(s.bindAddrs, addr)
	}
}

// WithRequestTimeout bounds the dispatch of one request. Zero means no bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// WithReadTimeout bounds reading the request line, headers and body.
// Zero means no bound.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// WithMaxBodyBytes sets the largest accepted request body.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// WithMaxConnections bounds the connections served at once. The accept
// loop stops accepting while the bound is reached. Zero means no bound.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.maxConnections = n
	}
}

// WithBatchConcurrency caps how many calls of one batch run at once.
// Values below 1 select jsonrpc.DefaultBatchConcurrency.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		s.batchConcurrency = n
	}
}

// WithStrictContentType requires the Content-Type header to be exactly
// application/json, with no parameters.
func WithStrictContentType() Option {
	return func(s *Server) {
		s.strictContentType = true
	}
}

// WithLogger sets the logger of the server and its connections.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records connection, request and call metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracerProvider traces every call with a span from tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithMeterProvider records per-call OpenTelemetry metrics with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.meterProvider = mp
	}
}

// Start binds every configured address and begins serving handler.
// It fails if any address cannot be bound; addresses already bound are
// released in that case.
func Start(handler jsonrpc.Handler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, errors.New("rpchttp: nil handler")
	}
	s := newServer(handler, opts...)

	var lc net.ListenConfig
	for _, addr := range s.bindAddrs {
		l, err := lc.Listen(context.Background(), "tcp", addr)
		if err != nil {
			for _, bound := range s.listeners {
				_ = bound.Close()
			}
			s.cancelBase()
			return nil, fmt.Errorf("rpchttp: listen on %s: %w", addr, err)
		}
		s.listeners = append(s.listeners, &onceCloseListener{Listener: l})
		s.addrs = append(s.addrs, l.Addr())
	}
	s.hosts = newHostMatcher(s.hostWhitelist, s.addrs)

	for _, l := range s.listeners {
		s.acceptWG.Add(1)
		go s.serve(l)
	}

	s.logger.Info("JSON-RPC HTTP server started",
		"addrs", addrStrings(s.addrs),
		"cors", s.cors.String(),
		"allow_all_hosts", s.hostWhitelist.AllowsAll(),
	)
	return s, nil
}

// newServer applies opts and builds everything but the listeners.
func newServer(handler jsonrpc.Handler, opts ...Option) *Server {
	s := &Server{
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
		quit:         make(chan struct{}),
		activeConns:  make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	if len(s.bindAddrs) == 0 {
		s.bindAddrs = []string{DefaultBindAddress}
	}
	if s.maxConnections > 0 {
		s.sem = make(chan struct{}, s.maxConnections)
	}

	dispatchOpts := []jsonrpc.DispatcherOption{
		jsonrpc.WithRequestTimeout(s.requestTimeout),
		jsonrpc.WithLogger(s.logger),
		jsonrpc.WithBatchConcurrency(s.batchConcurrency),
	}
	if s.tracerProvider != nil {
		dispatchOpts = append(dispatchOpts, jsonrpc.WithTracerProvider(s.tracerProvider))
	}
	if s.meterProvider != nil {
		dispatchOpts = append(dispatchOpts, jsonrpc.WithMeterProvider(s.meterProvider))
	}
	if s.metrics != nil {
		dispatchOpts = append(dispatchOpts, jsonrpc.WithCallObserver(s.metrics.observeCall))
	}
	s.dispatcher = jsonrpc.NewDispatcher(handler, dispatchOpts...)
	s.hosts = newHostMatcher(s.hostWhitelist, nil)
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	return s
}

// AllowsHost reports whether the server accepts a request carrying host.
// present is false when the request had no Host header.
func (s *Server) AllowsHost(host string, present bool) bool {
	return s.hosts.match(host, present)
}

// Addrs returns the bound addresses, in the order they were configured.
func (s *Server) Addrs() []net.Addr {
	return append([]net.Addr(nil), s.addrs...)
}

// IsRunning reports whether the server still accepts connections.
func (s *Server) IsRunning() bool {
	return !s.inShutdown.Load()
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Shutdown stops accepting connections and waits for the connections in
// flight to finish. If ctx ends first, the remaining connections are
// closed and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.stopAccepting()

	done := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelBase()
		s.logger.Info("JSON-RPC HTTP server stopped")
		return err
	case <-ctx.Done():
		s.closeConns()
		<-done
		s.logger.Warn("JSON-RPC HTTP server forced to stop", "error", ctx.Err())
		return ctx.Err()
	}
}

// Close stops the server immediately, closing every open connection.
// Calls in flight see their context cancelled.
func (s *Server) Close() error {
	err := s.stopAccepting()
	s.closeConns()
	s.connWG.Wait()
	return err
}

// stopAccepting closes the listeners and waits for the accept loops.
func (s *Server) stopAccepting() error {
	var err error
	s.stopOnce.Do(func() {
		s.inShutdown.Store(true)
		close(s.quit)
		for _, l := range s.listeners {
			if cerr := l.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("rpchttp: close listener: %w", cerr)
			}
		}
	})
	s.acceptWG.Wait()
	return err
}

// closeConns cancels the dispatch context and closes every tracked connection.
func (s *Server) closeConns() {
	s.cancelBase()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.activeConns {
		_ = c.rwc.Close()
	}
}

// serve is the accept loop of one listener.
func (s *Server) serve(l net.Listener) {
	defer s.acceptWG.Done()

	var tempDelay time.Duration
	for {
		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
			case <-s.quit:
				return
			}
		}

		rw, err := l.Accept()
		if err != nil {
			s.release()
			if s.inShutdown.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if maxDelay := 1 * time.Second; tempDelay > maxDelay {
				tempDelay = maxDelay
			}
			s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
			select {
			case <-time.After(tempDelay):
			case <-s.quit:
				return
			}
			continue
		}
		tempDelay = 0

		c := newConn(s, rw, uuid.New().String())
		if !s.trackConn(c, true) {
			_ = rw.Close()
			s.release()
			return
		}
		go func() {
			defer func() {
				s.trackConn(c, false)
				s.release()
			}()
			c.serve(s.baseCtx)
		}()
	}
}

// trackConn adds or removes c from the active set. Adding fails once the
// server is shutting down.
func (s *Server) trackConn(c *conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.activeConns[c] = struct{}{}
		s.connWG.Add(1)
		s.metrics.connOpened()
		return true
	}
	if _, ok := s.activeConns[c]; ok {
		delete(s.activeConns, c)
		s.metrics.connClosed()
		s.connWG.Done()
	}
	return true
}

func (s *Server) release() {
	if s.sem != nil {
		<-s.sem
	}
}

// onceCloseListener wraps a net.Listener, protecting it from
// multiple Close calls.
type onceCloseListener struct {
	net.Listener
	once     sync.Once
	closeErr error
}

func (oc *onceCloseListener) Close() error {
	oc.once.Do(oc.close)
	return oc.closeErr
}

func (oc *onceCloseListener) close() { oc.closeErr = oc.Listener.Close() }

// withConnLogger stores the connection id and its logger in ctx.
func withConnLogger(ctx context.Context, id string, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, ctxkey.ConnIDKey{}, id)
	return context.WithValue(ctx, ctxkey.LoggerKey{}, logger)
}

// LoggerFromContext returns the connection logger stored in ctx, carrying
// conn_id and remote fields. Returns slog.Default() if there is none.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// ConnIDFromContext returns the id of the connection serving ctx.
func ConnIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxkey.ConnIDKey{}).(string)
	return id, ok
}

func addrStrings(addrs []net.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
