// Package rpc implements JSON-RPC 2.0 over HTTP POST: a method registry and
// the dispatcher that decodes envelopes, invokes handlers and encodes
// results and errors.
package rpc

import (
	"context"
	"slices"
	"sync"
)

// Handler serves one method. Returning an *Error sends it to the caller;
// any other error becomes an internal error.
type Handler interface {
	ServeRPC(ctx context.Context, params Params) (any, error)
}

// HandlerFunc adapts a function, or a method value, to Handler.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

func (f HandlerFunc) ServeRPC(ctx context.Context, params Params) (any, error) {
	return f(ctx, params)
}

// Registry maps method names to handlers. Registering a name again
// replaces the earlier handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

func (r *Registry) RegisterFunc(method string, f func(ctx context.Context, params Params) (any, error)) {
	r.Register(method, HandlerFunc(f))
}

func (r *Registry) Lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Methods lists the registered names in order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
