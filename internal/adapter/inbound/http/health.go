package http

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strings"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// RPCServer is the view of the JSON-RPC server the health check needs.
// *rpchttp.Server implements it.
type RPCServer interface {
	IsRunning() bool
	ActiveConnections() int
	Addrs() []net.Addr
}

// HealthChecker verifies component health.
type HealthChecker struct {
	server  RPCServer
	version string
}

// NewHealthChecker creates a HealthChecker. Pass a nil server when the
// RPC server is not available.
func NewHealthChecker(server RPCServer, version string) *HealthChecker {
	return &HealthChecker{
		server:  server,
		version: version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.server != nil {
		if h.server.IsRunning() {
			checks["rpc_server"] = "ok"
		} else {
			// A stopped server no longer accepts connections.
			checks["rpc_server"] = "stopped"
			healthy = false
		}
		checks["active_connections"] = fmt.Sprintf("%d", h.server.ActiveConnections())

		addrs := h.server.Addrs()
		bound := make([]string, len(addrs))
		for i, a := range addrs {
			bound[i] = a.String()
		}
		checks["addrs"] = strings.Join(bound, ",")
	} else {
		checks["rpc_server"] = "not configured"
	}

	// Add Go runtime info
	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
