package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"
)

func newDispatcher(opts ...jsonrpc.DispatcherOption) *jsonrpc.Dispatcher {
	reg := jsonrpc.NewRegistry()
	RegisterBuiltins(reg)
	return jsonrpc.NewDispatcher(reg, opts...)
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	d := newDispatcher()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "hello",
			body: `{"jsonrpc":"2.0","method":"hello","id":1}`,
			want: `{"jsonrpc":"2.0","result":"world","id":1}` + "\n",
		},
		{
			name: "hello_async",
			body: `{"jsonrpc":"2.0","method":"hello_async","id":1}`,
			want: `{"jsonrpc":"2.0","result":"world","id":1}` + "\n",
		},
		{
			name: "hello_async2",
			body: `{"jsonrpc":"2.0","method":"hello_async2","id":1}`,
			want: `{"jsonrpc":"2.0","result":"world","id":1}` + "\n",
		},
		{
			name: "echo array",
			body: `{"jsonrpc":"2.0","method":"echo","params":[1,"two",{"three":3}],"id":7}`,
			want: `{"jsonrpc":"2.0","result":[1,"two",{"three":3}],"id":7}` + "\n",
		},
		{
			name: "echo without params",
			body: `{"jsonrpc":"2.0","method":"echo","id":2}`,
			want: `{"jsonrpc":"2.0","result":null,"id":2}` + "\n",
		},
		{
			name: "sleep",
			body: `{"jsonrpc":"2.0","method":"sleep","params":{"ms":0},"id":3}`,
			want: `{"jsonrpc":"2.0","result":{"slept_ms":0},"id":3}` + "\n",
		},
		{
			name: "sleep with bad params",
			body: `{"jsonrpc":"2.0","method":"sleep","params":[1],"id":4}`,
			want: `{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid params","data":null},"id":4}` + "\n",
		},
		{
			name: "sleep out of range",
			body: `{"jsonrpc":"2.0","method":"sleep","params":{"ms":-5},"id":5}`,
			want: `{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid params","data":"ms must be between 0 and 60000"},"id":5}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := string(d.Process(context.Background(), []byte(tt.body)))
			if got != tt.want {
				t.Errorf("Process(%s)\n got %s\nwant %s", tt.body, got, tt.want)
			}
		})
	}
}

func TestBuiltins_Methods(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	got := string(d.Process(context.Background(), []byte(`{"jsonrpc":"2.0","method":"rpc.methods","id":1}`)))
	want := `{"jsonrpc":"2.0","result":["echo","hello","hello_async","hello_async2","rpc.methods","sleep"],"id":1}` + "\n"
	if got != want {
		t.Errorf("rpc.methods\n got %s\nwant %s", got, want)
	}
}

func TestBuiltins_SleepHonoursTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newDispatcher(jsonrpc.WithRequestTimeout(20 * time.Millisecond))

	start := time.Now()
	got := string(d.Process(context.Background(), []byte(`{"jsonrpc":"2.0","method":"sleep","params":{"ms":5000},"id":1}`)))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("sleep ran for %v despite the request timeout", elapsed)
	}
	want := `{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error","data":"request timed out"},"id":1}` + "\n"
	if got != want {
		t.Errorf("timed out sleep\n got %s\nwant %s", got, want)
	}
}
