// Package service holds the JSON-RPC methods served by the rpcgate binary.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"
	"github.com/Sentinel-Gate/rpcgate/pkg/rpchttp"
)

// maxSleep bounds the sleep method so a single call cannot pin a
// connection for long.
const maxSleep = time.Minute

// SleepParams are the params of the sleep method.
type SleepParams struct {
	Ms int64 `json:"ms"`
}

// RegisterBuiltins adds the built-in methods to reg.
func RegisterBuiltins(reg *jsonrpc.Registry) {
	reg.AddMethod("hello", hello)
	reg.AddAsyncMethod("hello_async", func(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
		return jsonrpc.Resolved("world")
	})
	reg.AddAsyncMethod("hello_async2", helloDelayed)
	reg.AddMethod("echo", echo)
	reg.AddAsyncMethod("sleep", sleep)
	reg.AddMethod("rpc.methods", func(ctx context.Context, params jsonrpc.Params) (any, error) {
		return reg.Names(), nil
	})
}

func hello(ctx context.Context, params jsonrpc.Params) (any, error) {
	return "world", nil
}

// helloDelayed resolves from another goroutine after 10ms.
func helloDelayed(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
	p, r := jsonrpc.NewPending()
	go func() {
		t := time.NewTimer(10 * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
			r.Resolve("world")
		case <-ctx.Done():
			r.Abandon()
		}
	}()
	return p
}

func echo(ctx context.Context, params jsonrpc.Params) (any, error) {
	if params.IsZero() {
		return nil, nil
	}
	return json.RawMessage(params), nil
}

func sleep(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
	var p SleepParams
	if err := params.Decode(&p); err != nil {
		return jsonrpc.Rejected(err)
	}
	d := time.Duration(p.Ms) * time.Millisecond
	if p.Ms < 0 || d > maxSleep {
		return jsonrpc.Rejected(jsonrpc.InvalidParams().WithData("ms must be between 0 and 60000"))
	}

	return jsonrpc.Go(ctx, func(ctx context.Context) (any, error) {
		start := time.Now()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return map[string]int64{"slept_ms": time.Since(start).Milliseconds()}, nil
		case <-ctx.Done():
			rpchttp.LoggerFromContext(ctx).Debug("sleep interrupted", "ms", p.Ms, "error", ctx.Err())
			return nil, ctx.Err()
		}
	})
}
