/*
 *    Copyright 2025 The Grapevine Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package grapevine

import (
	"net/http"
	"strings"
	"sync"
)

// Handler is the framework handler signature. It receives a *Context wrapping
// http primitives and helpers, and returns nil when the request was handled.
// Returning ErrNotImplemented yields a 501; any other error is a handler
// fault and yields a 500.
type Handler func(*Context) error

// Middleware composes a handler with cross-cutting concerns.
type Middleware func(Handler) Handler

// MethodAll registers a route for every HTTP method.
const MethodAll = "ALL"

// Route is one compiled binding of method, pattern and handler. Immutable
// after registration.
type Route struct {
	method  string
	pattern *CompiledPattern
	handler Handler
}

// Method returns the HTTP method the route was registered for, or MethodAll.
func (rt *Route) Method() string { return rt.method }

// Pattern returns the route's compiled pattern.
func (rt *Route) Pattern() *CompiledPattern { return rt.pattern }

// Router resolves requests against an ordered route table. Matching is
// first-match in registration order: among all candidates whose method and
// compiled expression match, whichever was registered first wins, regardless
// of specificity.
//
// Registration is intended to happen once during setup, before the owning
// server starts. The table is then read concurrently by every worker;
// registering routes while requests are being routed is not supported.
type Router struct {
	mu     sync.RWMutex
	routes []*Route
	mw     []Middleware
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// Use adds router-level middleware, applied around every matched handler.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mw = append(r.mw, mw...)
}

// Register compiles pattern and appends a route for method. The empty method
// and MethodAll both match any request method. Route-specific middleware wraps
// the handler at registration time.
//
// Registration misuse is a programming error: Register panics on a nil
// handler or a pattern that fails to compile (for example a duplicate bracket
// parameter name). Use CompilePattern directly to validate patterns without
// panicking.
func (r *Router) Register(method, pattern string, h Handler, mw ...Middleware) {
	if h == nil {
		panic("grapevine: nil handler")
	}
	cp, err := CompilePattern(pattern)
	if err != nil {
		panic(err.Error())
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = MethodAll
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, &Route{method: method, pattern: cp, handler: chain(mw, h)})
}

// All registers a handler matched for any request method.
func (r *Router) All(pattern string, h Handler, mw ...Middleware) {
	r.Register(MethodAll, pattern, h, mw...)
}

// GET registers a handler for GET requests matching pattern.
func (r *Router) GET(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodGet, pattern, h, mw...)
}

// POST registers a handler for POST requests matching pattern.
func (r *Router) POST(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodPost, pattern, h, mw...)
}

// PUT registers a handler for PUT requests matching pattern.
func (r *Router) PUT(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodPut, pattern, h, mw...)
}

// DELETE registers a handler for DELETE requests matching pattern.
func (r *Router) DELETE(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodDelete, pattern, h, mw...)
}

// PATCH registers a handler for PATCH requests matching pattern.
func (r *Router) PATCH(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodPatch, pattern, h, mw...)
}

// OPTIONS registers a handler for OPTIONS requests matching pattern.
func (r *Router) OPTIONS(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodOptions, pattern, h, mw...)
}

// HEAD registers a handler for HEAD requests matching pattern.
func (r *Router) HEAD(pattern string, h Handler, mw ...Middleware) {
	r.Register(http.MethodHead, pattern, h, mw...)
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Route resolves c against the table and invokes the first matching handler
// with the extracted parameters already set on the context. It returns false
// when no route matched; translating that into a 404 is the caller's concern.
// Handler errors pass through untouched: the Router never catches them.
func (r *Router) Route(c *Context) (bool, error) {
	r.mu.RLock()
	routes := r.routes
	mw := r.mw
	r.mu.RUnlock()

	method := strings.ToUpper(c.Method())
	for _, rt := range routes {
		if rt.method != MethodAll && rt.method != method {
			continue
		}
		params, ok := rt.pattern.Match(c.Path())
		if !ok {
			continue
		}
		c.params = params
		h := chain(mw, rt.handler)
		return true, h(c)
	}
	return false, nil
}
