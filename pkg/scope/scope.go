// Package scope provides the per-request resource scope. A scope carries
// cleanup callbacks acquired during dispatch and the error captured from the
// handler, so resources are released and errors are dispatched on every exit
// path before the response leaves the middleware chain.
package scope

import (
	"context"
	"sync"
)

// Scope holds per-request state: a LIFO cleanup list and the captured
// dispatch error. A scope belongs to a single request; its methods are safe
// for use from the request goroutine and any goroutines it coordinates.
type Scope struct {
	mu       sync.Mutex
	cleanups []func()
	err      error
	handled  bool
}

// New creates an empty scope.
func New() *Scope {
	return &Scope{}
}

// Defer registers a cleanup to run when the scope is released. Cleanups run
// in reverse registration order.
func (s *Scope) Defer(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

// Release runs all registered cleanups in reverse order. Each cleanup runs
// exactly once; calling Release again is a no-op unless new cleanups were
// registered in the meantime.
func (s *Scope) Release() {
	s.mu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Fail records the dispatch error. The first recorded error wins; subsequent
// calls are ignored so a cleanup failure cannot mask the original cause.
func (s *Scope) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Err returns the captured error, or nil if none was recorded or a boundary
// already handled it.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled {
		return nil
	}
	return s.err
}

// MarkHandled records that a boundary dispatched the captured error to a
// handler. Boundaries further out will then leave it alone.
func (s *Scope) MarkHandled() {
	s.mu.Lock()
	s.handled = true
	s.mu.Unlock()
}

type ctxKey struct{}

// NewContext returns a context carrying the scope.
func NewContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope carried by the context, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Scope)
	return s, ok
}
