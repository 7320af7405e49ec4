package jsonrpc

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler is the method registry the dispatcher calls into.
// Implementations must be safe for concurrent Lookup calls.
type Handler interface {
	// Lookup returns the method registered under name.
	Lookup(name string) (Method, bool)
}

// SyncFunc computes a result immediately.
type SyncFunc func(ctx context.Context, params Params) (any, error)

// AsyncFunc starts a computation and returns a Pending for its result.
type AsyncFunc func(ctx context.Context, params Params) *Pending

// Method is a registered method: exactly one of a SyncFunc or an AsyncFunc.
type Method struct {
	sync  SyncFunc
	async AsyncFunc
}

// Sync wraps fn as a synchronous method.
func Sync(fn SyncFunc) Method {
	return Method{sync: fn}
}

// Async wraps fn as an asynchronous method.
func Async(fn AsyncFunc) Method {
	return Method{async: fn}
}

// IsAsync reports whether the method was created with Async.
func (m Method) IsAsync() bool {
	return m.async != nil
}

// Invoke starts the method and returns a Pending for its result.
// Synchronous methods run on their own goroutine so a caller waiting with
// a deadline is never blocked by them. Panics raised while invoking are
// turned into a rejected Pending.
func (m Method) Invoke(ctx context.Context, params Params) (p *Pending) {
	defer func() {
		if rec := recover(); rec != nil {
			p = Rejected(fmt.Errorf("jsonrpc: panic in method: %v", rec))
		}
	}()

	switch {
	case m.async != nil:
		p = m.async(ctx, params)
		if p == nil {
			return Rejected(ErrAbandoned)
		}
		return p
	case m.sync != nil:
		fn := m.sync
		return Go(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx, params)
		})
	default:
		return Rejected(MethodNotFound())
	}
}

// Registry is a Handler backed by a map of method names.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// Register adds m under name, replacing any previous method of that name.
func (r *Registry) Register(name string, m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = m
}

// AddMethod registers a synchronous method.
func (r *Registry) AddMethod(name string, fn SyncFunc) {
	r.Register(name, Sync(fn))
}

// AddAsyncMethod registers an asynchronous method.
func (r *Registry) AddAsyncMethod(name string, fn AsyncFunc) {
	r.Register(name, Async(fn))
}

// Lookup implements Handler.
func (r *Registry) Lookup(name string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Compile-time check that Registry implements Handler.
var _ Handler = (*Registry)(nil)
