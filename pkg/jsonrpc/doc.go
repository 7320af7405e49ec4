// Package jsonrpc implements the JSON-RPC 2.0 envelope codec and the call
// dispatcher used by the rpcgate HTTP transport.
//
// The package has no networking code. A request body goes in, a response
// payload comes out:
//
//	reg := jsonrpc.NewRegistry()
//	reg.AddMethod("hello", func(ctx context.Context, params jsonrpc.Params) (any, error) {
//	    return "world", nil
//	})
//	d := jsonrpc.NewDispatcher(reg)
//	payload := d.Process(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"hello"}`))
//	// payload == `{"jsonrpc":"2.0","result":"world","id":1}` + "\n"
//
// # Methods
//
// A Method is either synchronous (Sync) or asynchronous (Async). Async
// methods return a *Pending that is resolved later, possibly from another
// goroutine:
//
//	reg.AddAsyncMethod("later", func(ctx context.Context, params jsonrpc.Params) *jsonrpc.Pending {
//	    p, r := jsonrpc.NewPending()
//	    go func() {
//	        time.Sleep(10 * time.Millisecond)
//	        r.Resolve("done")
//	    }()
//	    return p
//	})
//
// # Envelope rules
//
//   - A call without an "id" member is a notification. It never produces
//     output, not even when the method is unknown or fails.
//   - A single call produces a bare response object; a batch produces an
//     array holding the non-notification responses in request order.
//   - A batch made only of notifications produces an empty payload.
//   - Any malformed envelope produces a single -32600 "Invalid request"
//     error with a null id, whether the input was a batch or not.
//
// # Errors
//
// Methods return *Error for protocol-level failures:
//
//	return nil, jsonrpc.InvalidParams()
//
// Any other error, a panic, or a rejected Pending is reported to the
// client as -32603 "Internal error".
package jsonrpc
