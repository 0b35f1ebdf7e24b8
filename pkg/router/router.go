// Package router maps decoded requests to registered resource handlers by
// URI path. Matching is exact: same segment count, same strings, no
// wildcards.
package router

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gridlite/coap-light/pkg/message"
)

// ErrDuplicateRoute is returned by Register when the (path, method) pair is
// already taken.
var ErrDuplicateRoute = errors.New("router: duplicate route")

// Handler serves a single (path, method) pair. It receives the raw request
// payload, which may be empty, and returns the response code and payload.
// A state-mutating handler must apply its effect in full before returning.
type Handler func(payload []byte) (message.Code, []byte)

// Router is a table of (path, method) → handler. Registration happens at
// startup; Dispatch is driven by the server receive loop.
type Router struct {
	mu     sync.RWMutex
	routes map[string]map[message.Code]Handler
}

// New returns an empty router.
func New() *Router {
	return &Router{routes: make(map[string]map[message.Code]Handler)}
}

// Register adds a handler for the exact path segments and request method.
func (r *Router) Register(path []string, method message.Code, h Handler) error {
	if !method.IsRequest() {
		return fmt.Errorf("router: %v is not a request method", method)
	}
	if h == nil {
		return errors.New("router: nil handler")
	}

	key := strings.Join(path, "/")

	r.mu.Lock()
	defer r.mu.Unlock()

	methods, ok := r.routes[key]
	if !ok {
		methods = make(map[message.Code]Handler)
		r.routes[key] = methods
	}
	if _, exists := methods[method]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, key)
	}
	methods[method] = h
	return nil
}

// Dispatch routes a decoded request to its handler. Unknown paths yield
// NotFound; a known path without a handler for the request's method yields
// MethodNotAllowed. Handler failures surface as response codes, never as Go
// errors.
func (r *Router) Dispatch(req *message.Message) (message.Code, []byte) {
	key := req.PathString()

	r.mu.RLock()
	methods, ok := r.routes[key]
	var h Handler
	if ok {
		h = methods[req.Code]
	}
	r.mu.RUnlock()

	if !ok {
		return message.NotFound, nil
	}
	if h == nil {
		return message.MethodNotAllowed, nil
	}
	return h(req.Payload)
}
