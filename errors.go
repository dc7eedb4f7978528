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

import "errors"

var (
	// ErrRouteNotFound is raised from the dispatch path instead of a 404
	// response when error propagation is enabled on the server.
	ErrRouteNotFound = errors.New("grapevine: no route matched")

	// ErrNotImplemented is returned by handlers that declare an operation
	// unimplemented; the dispatcher converts it to a 501 response.
	ErrNotImplemented = errors.New("grapevine: handler not implemented")

	// ErrDuplicateParameter is wrapped by CompilePattern when two bracket
	// parameters in one pattern share a name.
	ErrDuplicateParameter = errors.New("grapevine: duplicate pattern parameter")

	// ErrServerListening is returned by configuration mutators while the
	// server is listening; host, port, scheme and the connection multiplier
	// are frozen between Start and Stop.
	ErrServerListening = errors.New("grapevine: server is listening, configuration is frozen")

	// ErrServerStopping is the cause wrapped into a StartError when Start is
	// called while a Stop is in flight.
	ErrServerStopping = errors.New("grapevine: server is stopping")

	// ErrServerStarting is the cause wrapped into a StopError when Stop is
	// called while a Start is in flight.
	ErrServerStarting = errors.New("grapevine: server is starting")

	// ErrNotListening is returned by a Listener whose Accept is called before
	// Start succeeded.
	ErrNotListening = errors.New("grapevine: listener is not listening")
)

// StartError wraps any failure inside Server.Start. The caller always sees it;
// start failures are never swallowed.
type StartError struct {
	Err error
}

func (e *StartError) Error() string { return "grapevine: start failed: " + e.Err.Error() }

func (e *StartError) Unwrap() error { return e.Err }

// StopError wraps any failure inside Server.Stop.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return "grapevine: stop failed: " + e.Err.Error() }

func (e *StopError) Unwrap() error { return e.Err }

// ErrorResponse is a consistent error payload loosely inspired by RFC 9457
// (Problem Details for HTTP APIs). It does not use the
// application/problem+json media type or the RFC's field names.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}
