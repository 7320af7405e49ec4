// Package http serves the operations endpoint that runs next to the
// JSON-RPC server.
//
// The JSON-RPC transport itself lives in pkg/rpchttp and speaks HTTP/1.1
// on its own. This package uses net/http and a chi router for the
// endpoints operators scrape:
//
//	GET /health   - JSON health report, 503 once the RPC server stopped
//	GET /metrics  - Prometheus exposition of the shared registry
//
// # Usage
//
//	reg := http.NewRegistry()
//	srv, _ := rpchttp.Start(handler, rpchttp.WithMetrics(rpchttp.NewMetrics(reg)))
//	ops := http.NewOpsServer("127.0.0.1:9545", reg,
//	    http.WithHealthChecker(http.NewHealthChecker(srv, version)),
//	    http.WithLogger(logger),
//	)
//	err := ops.Start(ctx) // blocks until ctx is cancelled
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - Records duration and status per route
//  2. RequestIDMiddleware - Extracts or generates X-Request-ID and enriches the logger
//  3. AccessLogMiddleware - Logs method, path, status and duration at debug level
//  4. chi Recoverer - Turns handler panics into 500 responses
package http
