package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAbandoned is reported by a Pending whose Resolver was released
// without resolving it.
var ErrAbandoned = errors.New("jsonrpc: pending computation abandoned")

// Pending is the result of an asynchronous method: a value or an error
// that becomes available once. It is safe for concurrent use.
type Pending struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// Resolver completes a Pending. Only the first Resolve or Reject has an
// effect.
type Resolver struct {
	p *Pending
}

// NewPending returns an unresolved Pending and the Resolver that completes it.
func NewPending() (*Pending, Resolver) {
	p := &Pending{done: make(chan struct{})}
	return p, Resolver{p: p}
}

// Resolved returns a Pending that already holds v.
func Resolved(v any) *Pending {
	p, r := NewPending()
	r.Resolve(v)
	return p
}

// Rejected returns a Pending that already failed with err.
func Rejected(err error) *Pending {
	p, r := NewPending()
	r.Reject(err)
	return p
}

// Go runs fn in a new goroutine and returns a Pending for its result.
// fn receives ctx and should return when it is cancelled. A panic in fn
// rejects the Pending instead of crashing the process.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) *Pending {
	p, r := NewPending()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.Reject(fmt.Errorf("jsonrpc: panic in async method: %v", rec))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			r.Reject(err)
			return
		}
		r.Resolve(v)
	}()
	return p
}

// Resolve completes the Pending with v. It reports whether this call
// completed it.
func (r Resolver) Resolve(v any) bool {
	return r.p.complete(v, nil)
}

// Reject completes the Pending with err. A nil err is replaced by
// ErrAbandoned. It reports whether this call completed it.
func (r Resolver) Reject(err error) bool {
	if err == nil {
		err = ErrAbandoned
	}
	return r.p.complete(nil, err)
}

// Abandon rejects the Pending with ErrAbandoned if it is still unresolved.
// Producers that may give up call it in a defer.
func (r Resolver) Abandon() {
	r.p.complete(nil, ErrAbandoned)
}

func (p *Pending) complete(v any, err error) bool {
	completed := false
	p.once.Do(func() {
		p.value = v
		p.err = err
		completed = true
		close(p.done)
	})
	return completed
}

// Done returns a channel closed once the Pending is resolved or rejected.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the Pending completes or ctx is done. In the latter
// case it returns ctx.Err() and the Pending is left to its producer.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
	}
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
