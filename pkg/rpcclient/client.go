// Package rpcclient is a JSON-RPC 2.0 client for servers that speak
// JSON-RPC over plain HTTP POST, such as rpchttp.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// maxResponseBodySize bounds the response body read from the server.
const maxResponseBodySize = 10 * 1024 * 1024 // 10MB

// Error is a JSON-RPC error object returned by the server.
type Error = jsonrpc.Error

// StatusError is returned when the server answers with a status other
// than 200, which rpchttp does for rejected requests.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpcclient: http status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client sends JSON-RPC requests to one endpoint. It is safe for
// concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	host       string
	origin     string
	nextID     atomic.Int64
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout for the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithHost overrides the Host header sent to the server.
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

// WithOrigin sends an Origin header with every request.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		c.origin = origin
	}
}

// New creates a client for the given endpoint URL.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes method and decodes its result into result (which may be
// nil to discard it). A JSON-RPC error is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	req, err := c.newRequest(method, params, false)
	if err != nil {
		return err
	}
	body, err := jsonrpc.EncodeMessage(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	resp, err := decodeResponse(respBody)
	if err != nil {
		return err
	}
	return resultInto(resp, result)
}

// Notify sends a notification. The server sends no payload back.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := c.newRequest(method, params, true)
	if err != nil {
		return err
	}
	body, err := jsonrpc.EncodeMessage(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	respBody, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(respBody)) != 0 {
		return fmt.Errorf("rpcclient: unexpected payload for notification: %q", respBody)
	}
	return nil
}

// BatchCall is one element of a batch. After Batch returns, Err holds the
// per-call error and Result has been filled for successful calls.
type BatchCall struct {
	Method string
	Params any
	Result any
	Notify bool
	Err    error
}

// Batch sends calls as one batch request. The returned error reports
// transport failures; per-call failures are stored in each BatchCall.
func (c *Client) Batch(ctx context.Context, calls []*BatchCall) error {
	if len(calls) == 0 {
		return errors.New("rpcclient: empty batch")
	}

	byID := make(map[int64]*BatchCall, len(calls))
	elems := make([]json.RawMessage, 0, len(calls))
	for _, call := range calls {
		req, err := c.newRequest(call.Method, call.Params, call.Notify)
		if err != nil {
			return err
		}
		if !call.Notify {
			if id, ok := req.ID.Raw().(int64); ok {
				byID[id] = call
			}
		}
		data, err := jsonrpc.EncodeMessage(req)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		elems = append(elems, data)
	}
	body, err := json.Marshal(elems)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	respBody = bytes.TrimSpace(respBody)
	if len(respBody) == 0 {
		if len(byID) != 0 {
			return errors.New("rpcclient: empty response to a batch with calls")
		}
		return nil
	}
	if respBody[0] != '[' {
		// The server answers a rejected batch with one error object.
		resp, err := decodeResponse(respBody)
		if err != nil {
			return err
		}
		return resp.Error
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(respBody, &raws); err != nil {
		return fmt.Errorf("decode batch response: %w", err)
	}
	for _, raw := range raws {
		resp, err := decodeResponse(raw)
		if err != nil {
			return err
		}
		id, ok := resp.ID.Raw().(int64)
		if !ok {
			continue
		}
		call, ok := byID[id]
		if !ok {
			continue
		}
		call.Err = resultInto(resp, call.Result)
		delete(byID, id)
	}
	for _, call := range byID {
		call.Err = errors.New("rpcclient: no response for call")
	}
	return nil
}

func (c *Client) newRequest(method string, params any, notify bool) (*jsonrpc.Request, error) {
	req := &jsonrpc.Request{Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		req.Params = data
	}
	if !notify {
		id, err := jsonrpc.MakeID(float64(c.nextID.Add(1)))
		if err != nil {
			return nil, fmt.Errorf("make id: %w", err)
		}
		req.ID = id
	}
	return req, nil
}

// post sends an HTTP POST request with the JSON-RPC body.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.host != "" {
		req.Host = c.host
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func decodeResponse(data []byte) (*jsonrpc.Response, error) {
	data = bytes.TrimSpace(data)
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		// Errors about unreadable requests carry a null id, which the
		// decoder rejects; keep their error object.
		var wire struct {
			Error *Error `json:"error"`
		}
		if json.Unmarshal(data, &wire) == nil && wire.Error != nil {
			return &jsonrpc.Response{Error: wire.Error}, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return nil, fmt.Errorf("decode response: got %T, want a response", msg)
	}
	return resp, nil
}

func resultInto(resp *jsonrpc.Response, result any) error {
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
