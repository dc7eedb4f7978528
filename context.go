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
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Context carries one inbound request through the dispatch path. It wraps
// http primitives, the extracted route parameters, a responded flag, and a
// back-reference to the owning server. A Context is created by the worker (or
// by Dispatch in testing mode), mutated by the handler, and discarded after
// the response is sent; it is never shared across goroutines.
type Context struct {
	W http.ResponseWriter
	R *http.Request

	srv    *Server
	id     string
	params map[string]string
	status int
	wrote  bool
}

// NewContext builds a request context for callers driving the Router or the
// dispatch path directly, such as tests and embedders. srv may be nil.
func NewContext(w http.ResponseWriter, r *http.Request, srv *Server) *Context {
	return newContext(w, r, srv)
}

func newContext(w http.ResponseWriter, r *http.Request, srv *Server) *Context {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", id)
	return &Context{W: w, R: r, srv: srv, id: id}
}

// Server returns the server dispatching this request, or nil for contexts
// built outside a server.
func (c *Context) Server() *Server { return c.srv }

// RequestID returns the correlation id for this request: the inbound
// X-Request-Id header when present, a generated UUID otherwise.
func (c *Context) RequestID() string { return c.id }

// Method returns the request method.
func (c *Context) Method() string { return c.R.Method }

// Path returns the request URL path.
func (c *Context) Path() string { return c.R.URL.Path }

// Param returns the value captured for a named pattern parameter.
func (c *Context) Param(name string) string { return c.params[name] }

// Params returns all captured pattern parameters.
func (c *Context) Params() map[string]string { return c.params }

func (c *Context) Query(key string) string { return c.R.URL.Query().Get(key) }

func (c *Context) Form(key string) string {
	_ = c.R.ParseForm()
	return c.R.FormValue(key)
}

func (c *Context) Header(key string) string { return c.R.Header.Get(key) }

// SetHeader sets a response header value.
func (c *Context) SetHeader(k, v string) { c.W.Header().Set(k, v) }

// Responded reports whether a handler (or the dispatcher) has already written
// a response for this request.
func (c *Context) Responded() bool { return c.wrote }

// StatusCode returns the response status written so far, or 0.
func (c *Context) StatusCode() int { return c.status }

// JSON writes v as an application/json response with the given status code.
func (c *Context) JSON(code int, v any) {
	if !c.wrote {
		c.W.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	c.status = code
	c.W.WriteHeader(code)
	_ = json.NewEncoder(c.W).Encode(v)
	c.wrote = true
}

// Text writes a plain text response.
func (c *Context) Text(code int, s string) {
	if !c.wrote {
		c.W.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	c.status = code
	c.W.WriteHeader(code)
	_, _ = c.W.Write([]byte(s))
	c.wrote = true
}

// Bytes writes arbitrary bytes with a content type.
func (c *Context) Bytes(code int, b []byte, contentType string) {
	if contentType != "" && !c.wrote {
		c.W.Header().Set("Content-Type", contentType)
	}
	c.status = code
	c.W.WriteHeader(code)
	_, _ = c.W.Write(b)
	c.wrote = true
}

// NoContent writes a 204 No Content.
func (c *Context) NoContent() { c.Status(http.StatusNoContent) }

// Redirect sends a redirect to location with code (default 302 if code==0).
func (c *Context) Redirect(code int, location string) {
	if code == 0 {
		code = http.StatusFound
	}
	c.W.Header().Set("Location", location)
	c.Status(code)
}

// SetCookie adds a Set-Cookie header for name/value with optional attributes.
func (c *Context) SetCookie(name, value string, attrs *http.Cookie) {
	ck := &http.Cookie{Name: name, Value: url.QueryEscape(value)}
	if attrs != nil {
		ck.Path = attrs.Path
		ck.Domain = attrs.Domain
		ck.Expires = attrs.Expires
		ck.MaxAge = attrs.MaxAge
		ck.Secure = attrs.Secure
		ck.HttpOnly = attrs.HttpOnly
		ck.SameSite = attrs.SameSite
	}
	http.SetCookie(c.W, ck)
}

// Cookie retrieves a cookie value and ok flag.
func (c *Context) Cookie(name string) (string, bool) {
	ck, err := c.R.Cookie(name)
	if err != nil {
		return "", false
	}
	v, _ := url.QueryUnescape(ck.Value)
	return v, true
}

// Status writes only the status code. Subsequent writes are ignored.
func (c *Context) Status(code int) {
	if c.wrote {
		return
	}
	c.status = code
	c.W.WriteHeader(code)
	c.wrote = true
}

func (c *Context) Context() context.Context { return c.R.Context() }
