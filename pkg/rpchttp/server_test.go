package rpchttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"
)

const (
	worldBody          = "2A\r\n{\"jsonrpc\":\"2.0\",\"result\":\"world\",\"id\":1}\n\r\n0\r\n\r\n"
	worldBatchBody     = "2C\r\n[{\"jsonrpc\":\"2.0\",\"result\":\"world\",\"id\":1}]\n\r\n0\r\n\r\n"
	methodNotFoundBody = "5A\r\n{\"jsonrpc\":\"2.0\",\"error\":{\"code\":-32601,\"message\":\"Method not found\",\"data\":null},\"id\":1}\n\r\n0\r\n\r\n"
	invalidRequestBody = "5C\r\n{\"jsonrpc\":\"2.0\",\"error\":{\"code\":-32600,\"message\":\"Invalid request\",\"data\":null},\"id\":null}\n\r\n0\r\n\r\n"
	invalidHostBody    = "29\r\nProvided Host header is not whitelisted.\n\r\n0\r\n\r\n"
	emptyBody          = "0\r\n\r\n"
)

// rawResponse is a response split at the first empty line.
type rawResponse struct {
	status  string
	headers string
	body    string
}

// startTestServer starts a server on an ephemeral loopback port with an
// allow-only CORS policy for ethcore.io.
func startTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{
		WithBindAddress("127.0.0.1:0"),
		WithCors(CorsAllowOnly("ethcore.io")),
	}, opts...)
	s, err := Start(newTestHandler(), opts...)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// doRequest sends raw to the server's first address and reads until the
// server closes the connection.
func doRequest(t *testing.T, s *Server, raw string) rawResponse {
	t.Helper()

	conn, err := net.Dial("tcp", s.Addrs()[0].String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return parseRawResponse(t, string(data))
}

func parseRawResponse(t *testing.T, data string) rawResponse {
	t.Helper()

	head, body, ok := strings.Cut(data, "\r\n\r\n")
	if !ok {
		t.Fatalf("response has no header terminator: %q", data)
	}
	status, headers, _ := strings.Cut(head, "\r\n")
	return rawResponse{status: status, headers: headers + "\r\n", body: body}
}

func TestServer_MethodNotAllowedForGet(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	resp := doRequest(t, s, "GET / HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nConnection: close\r\n\r\nI shouldn't be read.\r\n")

	if resp.status != "HTTP/1.1 405 Method Not Allowed" {
		t.Errorf("status = %q", resp.status)
	}
	if want := "3D\r\nUsed HTTP Method is not allowed. POST or OPTIONS is required\n\r\n0\r\n\r\n"; resp.body != want {
		t.Errorf("body = %q, want %q", resp.body, want)
	}
}

func TestServer_UnsupportedMediaTypeIfNotJSON(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	resp := doRequest(t, s, "POST / HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nConnection: close\r\n\r\n{}\r\n")

	if resp.status != "HTTP/1.1 415 Unsupported Media Type" {
		t.Errorf("status = %q", resp.status)
	}
	if want := "51\r\nSupplied content type is not allowed. Content-Type: application/json is required\n\r\n0\r\n\r\n"; resp.body != want {
		t.Errorf("body = %q, want %q", resp.body, want)
	}
}

func TestServer_MalformedRequests(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	for _, body := range []string{
		`{"jsonrpc":"3.0","method":"x"}`,
		`{"jsonrpc":"2.0","method":"x"`,
		`[]`,
		`42`,
	} {
		resp := doRequest(t, s, post("127.0.0.1:8080", body)+"\r\n")
		if resp.status != "HTTP/1.1 200 OK" {
			t.Errorf("%s: status = %q", body, resp.status)
		}
		if resp.body != invalidRequestBody {
			t.Errorf("%s: body = %q, want %q", body, resp.body, invalidRequestBody)
		}
	}
}

func TestServer_EmptyResponseForNotification(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	resp := doRequest(t, s, post("127.0.0.1:8080", `{"jsonrpc":"2.0","method":"x"}`)+"\r\n")

	if resp.status != "HTTP/1.1 200 OK" {
		t.Errorf("status = %q", resp.status)
	}
	if resp.body != emptyBody {
		t.Errorf("body = %q, want %q", resp.body, emptyBody)
	}
}

func TestServer_MethodNotFound(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	resp := doRequest(t, s, post("127.0.0.1:8080", `{"jsonrpc":"2.0","id":1,"method":"x"}`)+"\r\n")

	if resp.status != "HTTP/1.1 200 OK" {
		t.Errorf("status = %q", resp.status)
	}
	if resp.body != methodNotFoundBody {
		t.Errorf("body = %q, want %q", resp.body, methodNotFoundBody)
	}
}

func TestServer_CorsHeaders(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"x"}`

	allowed := doRequest(t, s, fmt.Sprintf("POST / HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nOrigin: ethcore.io\r\nConnection: close\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s\r\n", len(body), body))
	if allowed.status != "HTTP/1.1 200 OK" || allowed.body != methodNotFoundBody {
		t.Errorf("allowed origin: %q %q", allowed.status, allowed.body)
	}
	if !strings.Contains(allowed.headers, "Access-Control-Allow-Origin: ethcore.io\r\n") {
		t.Errorf("headers missing CORS origin in %q", allowed.headers)
	}

	denied := doRequest(t, s, fmt.Sprintf("POST / HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nOrigin: fake.io\r\nConnection: close\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s\r\n", len(body), body))
	if denied.status != "HTTP/1.1 200 OK" || denied.body != methodNotFoundBody {
		t.Errorf("denied origin: %q %q", denied.status, denied.body)
	}
	if strings.Contains(denied.headers, "Access-Control-Allow-Origin") {
		t.Errorf("headers must not carry CORS origin: %q", denied.headers)
	}
}

func TestServer_ResponseHeaders(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	resp := doRequest(t, s, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"hello"}`))

	for _, h := range []string{
		"Content-Type: application/json\r\n",
		"Transfer-Encoding: chunked\r\n",
		"Connection: close\r\n",
	} {
		if !strings.Contains(resp.headers, h) {
			t.Errorf("headers missing %q in %q", h, resp.headers)
		}
	}
}

func TestServer_HostWhitelist(t *testing.T) {
	t.Parallel()

	s := startTestServer(t, WithAllowedHosts(AllowOnlyHosts("ethcore.io")))
	body := `{"jsonrpc":"2.0","id":1,"method":"x"}`
	port := s.Addrs()[0].(*net.TCPAddr).Port

	tests := []struct {
		name   string
		host   string
		status string
		body   string
	}{
		{"invalid host", "Host: 127.0.0.1:8080\r\n", "HTTP/1.1 403 Forbidden", invalidHostBody},
		{"missing host", "", "HTTP/1.1 403 Forbidden", invalidHostBody},
		{"valid host", "Host: ethcore.io\r\n", "HTTP/1.1 200 OK", methodNotFoundBody},
		{"bind address", fmt.Sprintf("Host: %s\r\n", s.Addrs()[0]), "HTTP/1.1 200 OK", methodNotFoundBody},
		{"bind address as localhost", fmt.Sprintf("Host: localhost:%d\r\n", port), "HTTP/1.1 200 OK", methodNotFoundBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := fmt.Sprintf("POST / HTTP/1.1\r\n%sConnection: close\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s\r\n", tt.host, len(body), body)
			resp := doRequest(t, s, raw)
			if resp.status != tt.status {
				t.Errorf("status = %q, want %q", resp.status, tt.status)
			}
			if resp.body != tt.body {
				t.Errorf("body = %q, want %q", resp.body, tt.body)
			}
		})
	}
}

func TestServer_EmptyWhitelistAllowsLocalhost(t *testing.T) {
	t.Parallel()

	s := startTestServer(t, WithAllowedHosts(AllowOnlyHosts()))
	port := s.Addrs()[0].(*net.TCPAddr).Port
	resp := doRequest(t, s, post(fmt.Sprintf("localhost:%d", port), `{"jsonrpc":"2.0","id":1,"method":"x"}`)+"\r\n")
	if resp.status != "HTTP/1.1 200 OK" || resp.body != methodNotFoundBody {
		t.Errorf("response = %q %q", resp.status, resp.body)
	}
}

func TestServer_Methods(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	port := s.Addrs()[0].(*net.TCPAddr).Port
	host := fmt.Sprintf("localhost:%d", port)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"sync", `{"jsonrpc":"2.0","id":1,"method":"hello"}`, worldBody},
		{"async immediate", `{"jsonrpc":"2.0","id":1,"method":"hello_async"}`, worldBody},
		{"async delayed", `{"jsonrpc":"2.0","id":1,"method":"hello_async2"}`, worldBody},
		{"sync batch", `[{"jsonrpc":"2.0","id":1,"method":"hello"}]`, worldBatchBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := doRequest(t, s, post(host, tt.body)+"\r\n")
			if resp.status != "HTTP/1.1 200 OK" {
				t.Errorf("status = %q", resp.status)
			}
			if resp.body != tt.want {
				t.Errorf("body = %q, want %q", resp.body, tt.want)
			}
		})
	}
}

func TestServer_StringIDEchoedVerbatim(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	resp := doRequest(t, s, post("localhost", `{"jsonrpc":"2.0","id":"1","method":"hello"}`))
	want := "2C\r\n{\"jsonrpc\":\"2.0\",\"result\":\"world\",\"id\":\"1\"}\n\r\n0\r\n\r\n"
	if resp.body != want {
		t.Errorf("body = %q, want %q", resp.body, want)
	}
}

func TestServer_SlowCallDoesNotBlockOtherConnections(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	reg := newTestHandler()
	reg.AddAsyncMethod("slow", func(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
		p, r := jsonrpc.NewPending()
		go func() {
			select {
			case <-release:
				r.Resolve("late")
			case <-ctx.Done():
				r.Reject(ctx.Err())
			}
		}()
		return p
	})
	s, err := Start(reg, WithBindAddress("127.0.0.1:0"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	slowDone := make(chan rawResponse, 1)
	go func() {
		conn, err := net.Dial("tcp", s.Addrs()[0].String())
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.WriteString(conn, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"slow"}`))
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		data, _ := io.ReadAll(conn)
		head, body, _ := strings.Cut(string(data), "\r\n\r\n")
		status, _, _ := strings.Cut(head, "\r\n")
		slowDone <- rawResponse{status: status, body: body}
	}()

	// Wait for the slow call to be in flight.
	deadline := time.Now().Add(5 * time.Second)
	for s.ActiveConnections() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp := doRequest(t, s, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"hello"}`))
	if resp.body != worldBody {
		t.Errorf("fast call body = %q, want %q", resp.body, worldBody)
	}
	select {
	case <-slowDone:
		t.Fatal("slow call finished before it was released")
	default:
	}

	close(release)
	select {
	case slow := <-slowDone:
		if !strings.Contains(slow.body, `"result":"late"`) {
			t.Errorf("slow call body = %q", slow.body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("slow call did not finish")
	}
}

func TestServer_MultipleBindAddresses(t *testing.T) {
	t.Parallel()

	s, err := Start(newTestHandler(),
		WithBindAddress("127.0.0.1:0"),
		WithBindAddress("127.0.0.1:0"),
		WithAllowedHosts(AllowOnlyHosts("ethcore.io")),
	)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	addrs := s.Addrs()
	if len(addrs) != 2 {
		t.Fatalf("Addrs() = %v, want 2 addresses", addrs)
	}
	for _, addr := range addrs {
		conn, err := net.Dial("tcp", addr.String())
		if err != nil {
			t.Fatalf("dial %s: %v", addr, err)
		}
		// Host names the other listener: every bound address is whitelisted.
		other := addrs[0]
		if other.String() == addr.String() {
			other = addrs[1]
		}
		_, _ = io.WriteString(conn, post(other.String(), `{"jsonrpc":"2.0","id":1,"method":"hello"}`))
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		data, _ := io.ReadAll(conn)
		conn.Close()
		if !strings.HasSuffix(string(data), worldBody) {
			t.Errorf("%s: response = %q", addr, data)
		}
	}
}

func TestServer_StartFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	_, err = Start(newTestHandler(), WithBindAddress("127.0.0.1:0"), WithBindAddress(l.Addr().String()))
	if err == nil {
		t.Fatal("Start should fail when an address is taken")
	}
	if _, err := Start(nil); err == nil {
		t.Fatal("Start should reject a nil handler")
	}
}

func TestServer_ShutdownWaitsForInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	reg := jsonrpc.NewRegistry()
	reg.AddAsyncMethod("wait", func(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
		return jsonrpc.Go(ctx, func(ctx context.Context) (any, error) {
			<-release
			return "done", nil
		})
	})
	s, err := Start(reg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	respCh := make(chan string, 1)
	go func() {
		conn, err := net.Dial("tcp", s.Addrs()[0].String())
		if err != nil {
			respCh <- ""
			return
		}
		defer conn.Close()
		_, _ = io.WriteString(conn, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"wait"}`))
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		data, _ := io.ReadAll(conn)
		respCh <- string(data)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.ActiveConnections() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- s.Shutdown(ctx)
	}()

	// Wait until shutdown has started.
	deadline = time.Now().Add(5 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatal("server still running after Shutdown")
	}

	close(release)
	if err := <-shutdownErr; err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	if got := <-respCh; !strings.Contains(got, `"result":"done"`) {
		t.Errorf("in-flight response = %q", got)
	}
}

func TestServer_ShutdownDeadlineForcesClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := jsonrpc.NewRegistry()
	reg.AddAsyncMethod("forever", func(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
		return jsonrpc.Go(ctx, func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	})
	s, err := Start(reg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, err := net.Dial("tcp", s.Addrs()[0].String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_, _ = io.WriteString(conn, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"forever"}`))

	deadline := time.Now().Add(5 * time.Second)
	for s.ActiveConnections() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want DeadlineExceeded", err)
	}
	if n := s.ActiveConnections(); n != 0 {
		t.Errorf("ActiveConnections() = %d after forced shutdown", n)
	}
}

func TestServer_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	s, err := Start(newTestHandler())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := net.DialTimeout("tcp", s.Addrs()[0].String(), time.Second); err == nil {
		t.Error("dial succeeded after Close")
	}
}

func TestServer_MaxConnections(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var once sync.Once
	reg := newTestHandler()
	reg.AddAsyncMethod("hold", func(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
		return jsonrpc.Go(ctx, func(ctx context.Context) (any, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return "released", nil
		})
	})
	s, err := Start(reg, WithMaxConnections(1))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		once.Do(func() { close(release) })
		_ = s.Close()
	})

	holder, err := net.Dial("tcp", s.Addrs()[0].String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer holder.Close()
	_, _ = io.WriteString(holder, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"hold"}`))

	deadline := time.Now().Add(5 * time.Second)
	for s.ActiveConnections() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The second connection is queued in the backlog, not served.
	waiter, err := net.Dial("tcp", s.Addrs()[0].String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer waiter.Close()
	_, _ = io.WriteString(waiter, post("localhost", `{"jsonrpc":"2.0","id":1,"method":"hello"}`))
	_ = waiter.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := waiter.Read(buf); err == nil {
		t.Fatal("second connection was served while the bound was reached")
	}

	once.Do(func() { close(release) })
	_ = waiter.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, _ := io.ReadAll(waiter)
	if !strings.HasSuffix(string(data), worldBody) {
		t.Errorf("queued response = %q", data)
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := startTestServer(t, WithMetrics(m), WithAllowedHosts(AllowOnlyHosts("ethcore.io")))

	doRequest(t, s, post("ethcore.io", `[{"jsonrpc":"2.0","id":1,"method":"hello"},{"jsonrpc":"2.0","id":2,"method":"x"},{"jsonrpc":"2.0","method":"hello"}]`))
	doRequest(t, s, post("evil.example", `{"jsonrpc":"2.0","id":1,"method":"hello"}`))

	if got := counterValue(t, m.RequestsTotal.WithLabelValues("200")); got != 1 {
		t.Errorf("requests_total{status=200} = %v, want 1", got)
	}
	if got := counterValue(t, m.RequestsTotal.WithLabelValues("403")); got != 1 {
		t.Errorf("requests_total{status=403} = %v, want 1", got)
	}
	if got := counterValue(t, m.AdmissionRejections.WithLabelValues("host")); got != 1 {
		t.Errorf("admission_rejections_total{reason=host} = %v, want 1", got)
	}
	for outcome, want := range map[string]float64{"success": 1, "error": 1, "suppressed": 1} {
		if got := counterValue(t, m.CallsTotal.WithLabelValues(outcome)); got != want {
			t.Errorf("calls_total{outcome=%s} = %v, want %v", outcome, got, want)
		}
	}
	if got := counterValue(t, m.ConnectionsTotal); got != 2 {
		t.Errorf("connections_total = %v, want 2", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestServer_RespondsToHalfClosedClient(t *testing.T) {
	t.Parallel()

	s := startTestServer(t)
	for _, method := range []string{"hello", "hello_async", "hello_async2"} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			conn, err := net.Dial("tcp", s.Addrs()[0].String())
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer conn.Close()

			body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q}`, method)
			if _, err := io.WriteString(conn, post("localhost", body)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
				t.Fatalf("CloseWrite: %v", err)
			}

			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			data, err := io.ReadAll(conn)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			resp := parseRawResponse(t, string(data))
			if resp.status != "HTTP/1.1 200 OK" {
				t.Errorf("status = %q, want 200 OK", resp.status)
			}
			if resp.body != worldBody {
				t.Errorf("body = %q, want %q", resp.body, worldBody)
			}
		})
	}
}
