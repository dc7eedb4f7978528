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
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the server lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Outcome classifies one pass through the dispatch path.
type Outcome int

const (
	// OutcomeHandled means a handler ran and the response belongs to it.
	OutcomeHandled Outcome = iota
	// OutcomeNotFound means no route matched; converted to 404 at the
	// boundary unless error propagation is enabled.
	OutcomeNotFound
	// OutcomeNotImplemented means the handler declared itself unimplemented;
	// converted to 501.
	OutcomeNotImplemented
	// OutcomeFault means the handler returned an unexpected error or
	// panicked; converted to 500.
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNotImplemented:
		return "not_implemented"
	case OutcomeFault:
		return "fault"
	default:
		return "unknown"
	}
}

func (o Outcome) status() int {
	switch o {
	case OutcomeNotFound:
		return http.StatusNotFound
	case OutcomeNotImplemented:
		return http.StatusNotImplemented
	case OutcomeFault:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// Server owns the configuration, the lifecycle, the acceptor and worker pool,
// and wires them to the Router and the Listener. Start and Stop are expected
// to be called from a single control goroutine; the lifecycle state is a
// guarded flag, not a lock.
//
// In testing mode no goroutines are spawned: the Server is an http.Handler
// and Dispatch drives the same safe-dispatch path synchronously.
type Server struct {
	cfgMu sync.RWMutex
	cfg   ServerConfig

	stateMu sync.Mutex // serializes state transitions, not held across joins
	state   State

	router   *Router
	listener Listener
	logger   *zap.Logger
	metrics  *Metrics

	stop         chan struct{}
	queue        *connQueue
	acceptorDone chan struct{}
	workers      sync.WaitGroup
}

// NewServer creates a Server with the given configuration and router. A nil
// router gets a fresh empty one; a nil logger is replaced with zap.NewNop().
func NewServer(cfg ServerConfig, router *Router, logger *zap.Logger) *Server {
	if router == nil {
		router = NewRouter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ln := NewTCPListener()
	cfg = cfg.withDefaults()
	ln.SetTLSConfig(cfg.TLSConfig)
	return &Server{
		cfg:      cfg,
		router:   router,
		listener: ln,
		logger:   logger,
		metrics:  NewMetrics(""),
	}
}

// Router returns the server's route table.
func (s *Server) Router() *Router { return s.router }

// Metrics returns the server's Prometheus instruments.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Listener returns the listener abstraction in use.
func (s *Server) Listener() Listener { return s.listener }

// SetListener replaces the listener abstraction. Only allowed while idle.
func (s *Server) SetListener(l Listener) error {
	if s.State() != StateIdle {
		return ErrServerListening
	}
	s.listener = l
	return nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Server) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Addr returns the actual bound address once listening, or "" before.
func (s *Server) Addr() string { return s.listener.Addr() }

// Config returns a copy of the current configuration.
func (s *Server) Config() ServerConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// SetHost changes the bind host. Fails with ErrServerListening while the
// server is listening.
func (s *Server) SetHost(host string) error {
	return s.mutateConfig(func(c *ServerConfig) { c.Host = host })
}

// SetPort changes the bind port. Fails with ErrServerListening while the
// server is listening.
func (s *Server) SetPort(port int) error {
	return s.mutateConfig(func(c *ServerConfig) { c.Port = port })
}

// SetScheme changes the listener scheme. Fails with ErrServerListening while
// the server is listening.
func (s *Server) SetScheme(scheme string) error {
	return s.mutateConfig(func(c *ServerConfig) { c.Scheme = scheme })
}

// SetConnections changes the worker multiplier for the next Start. Fails with
// ErrServerListening while the server is listening.
func (s *Server) SetConnections(n int) error {
	return s.mutateConfig(func(c *ServerConfig) { c.Connections = n })
}

func (s *Server) mutateConfig(f func(*ServerConfig)) error {
	if s.State() == StateListening {
		return ErrServerListening
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	f(&s.cfg)
	return nil
}

// Start brings the server to the Listening state: pre-start hook, route scan
// if the table is empty and a scanner is configured, prefix registration,
// listener start, then the acceptor and worker goroutines. In testing mode
// the listener, acceptor and workers are skipped entirely; the lifecycle
// states and hooks still apply. The post-start hook runs only once the
// listener confirms it is actually listening.
//
// Start is a no-op when already Listening or Starting, and fails with a
// StartError while a Stop is in flight. Any failure along the sequence is
// wrapped in a StartError and returns the server to Idle; the Starting state
// is cleared on every path.
func (s *Server) Start() error {
	s.stateMu.Lock()
	switch s.state {
	case StateListening, StateStarting:
		s.stateMu.Unlock()
		return nil
	case StateStopping:
		s.stateMu.Unlock()
		return &StartError{Err: ErrServerStopping}
	}
	s.state = StateStarting
	s.stateMu.Unlock()

	started := false
	defer func() {
		if started {
			s.setState(StateListening)
		} else {
			s.setState(StateIdle)
		}
	}()

	cfg := s.Config()
	if err := cfg.Validate(); err != nil {
		return &StartError{Err: err}
	}
	if hook := cfg.OnBeforeStart; hook != nil {
		hook()
	}
	if s.router.Len() == 0 && cfg.Scanner != nil {
		cfg.Scanner.ScanRoutes(s.router)
	}
	if !cfg.TestingMode {
		if err := s.listener.AddPrefix(cfg.Prefix()); err != nil {
			return &StartError{Err: err}
		}
		if err := s.listener.Start(); err != nil {
			return &StartError{Err: err}
		}

		// A fresh stop channel per run: the signal is one-shot and is never
		// reused once fired.
		s.stop = make(chan struct{})
		s.queue = newConnQueue()
		s.acceptorDone = make(chan struct{})
		go s.acceptLoop(s.stop, s.queue, s.acceptorDone)

		n := cfg.Connections * runtime.NumCPU()
		s.metrics.workers.Set(float64(n))
		s.workers.Add(n)
		for i := 0; i < n; i++ {
			go s.workerLoop(s.stop, s.queue)
		}
	}

	started = true
	if cfg.TestingMode || s.listener.IsListening() {
		if hook := cfg.OnAfterStart; hook != nil {
			hook()
		}
	}
	s.logger.Info("server listening",
		zap.String("addr", s.Addr()),
		zap.String("scheme", cfg.Scheme),
		zap.Bool("testing", cfg.TestingMode),
	)
	return nil
}

// Stop signals the acceptor and workers, joins them, stops the listener, and
// returns the server to Idle. The post-stop hook runs only once the listener
// confirms it is no longer listening. Queued connections that never reached a
// worker are closed unserved.
//
// Stop is a no-op when not Listening, and fails with a StopError while a
// Start is in flight. The Stopping state is cleared on every path.
func (s *Server) Stop() error {
	s.stateMu.Lock()
	switch s.state {
	case StateIdle, StateStopping:
		s.stateMu.Unlock()
		return nil
	case StateStarting:
		s.stateMu.Unlock()
		return &StopError{Err: ErrServerStarting}
	}
	s.state = StateStopping
	s.stateMu.Unlock()
	defer s.setState(StateIdle)

	cfg := s.Config()
	if hook := cfg.OnBeforeStop; hook != nil {
		hook()
	}

	running := !cfg.TestingMode && s.stop != nil
	if running {
		close(s.stop)
	}
	var stopErr error
	if !cfg.TestingMode {
		stopErr = s.listener.Stop()
	}
	if running {
		<-s.acceptorDone
		s.workers.Wait()
		for {
			conn, ok := s.queue.Dequeue()
			if !ok {
				break
			}
			conn.Close()
		}
		s.metrics.queueDepth.Set(0)
		s.stop = nil
	}
	if stopErr != nil {
		return &StopError{Err: stopErr}
	}
	if cfg.TestingMode || !s.listener.IsListening() {
		if hook := cfg.OnAfterStop; hook != nil {
			hook()
		}
	}
	s.logger.Info("server stopped")
	return nil
}

// Close stops the server and releases the listener unconditionally.
func (s *Server) Close() error {
	err := s.Stop()
	if cerr := s.listener.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// acceptLoop is the single acceptor: it blocks on the listener, pushes ready
// connections into the queue and raises the readiness signal. Accept errors
// caused by an intentional shutdown are swallowed; anything else is logged
// and the loop carries on until the listener reports not-listening.
func (s *Server) acceptLoop(stop <-chan struct{}, q *connQueue, done chan<- struct{}) {
	defer close(done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				if !s.listener.IsListening() {
					return
				}
				continue
			}
			s.logger.Error("accept failed", zap.Error(err))
			if !s.listener.IsListening() {
				return
			}
			continue
		}
		// Stop may have won the race while we were accepting; the pending
		// connection is abandoned, not enqueued.
		select {
		case <-stop:
			conn.Close()
			return
		default:
		}
		q.Enqueue(conn)
		s.metrics.queueDepth.Inc()
	}
}

// workerLoop blocks on "queue ready or stop requested". A wake that finds the
// queue drained by a sibling re-blocks; the consumed readiness token is the
// reset. Dispatch happens outside the queue lock so a slow handler never
// blocks siblings from draining.
func (s *Server) workerLoop(stop <-chan struct{}, q *connQueue) {
	defer s.workers.Done()
	for {
		select {
		case <-stop:
			return
		case <-q.Ready():
			conn, ok := q.Dequeue()
			if !ok {
				continue
			}
			s.metrics.queueDepth.Dec()
			s.serveConn(conn)
		}
	}
}

// serveConn reads one request from the connection, dispatches it, and writes
// the buffered response. One request per connection; the response always
// closes it.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	cfg := s.Config()
	if d := time.Duration(cfg.ReadTimeout); d > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d))
	}
	w := newConnWriter(conn)
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		s.logger.Warn("malformed request", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		_ = w.finish(http.MethodGet)
		return
	}
	if d := time.Duration(cfg.WriteTimeout); d > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(d))
	}

	c := newContext(w, req, s)
	_, derr := s.dispatch(c)
	if derr != nil && !c.Responded() {
		// Error propagation has no caller on the wire path; the dropped
		// connection is the diagnostic signal.
		return
	}
	if werr := w.finish(req.Method); werr != nil {
		s.logger.Warn("write response failed", zap.String("id", c.RequestID()), zap.Error(werr))
	}
}

// ServeHTTP implements http.Handler by driving the safe-dispatch path
// synchronously. This is the testing-mode entry point; it also lets an
// embedding application mount the server inside another HTTP stack.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = s.Dispatch(w, r)
}

// Dispatch routes one request through the safe-dispatch wrapper and reports
// the outcome. The returned error is non-nil only when PropagateErrors is
// enabled and the dispatch ended in a routing miss, a not-implemented
// handler, or a fault.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) (Outcome, error) {
	return s.dispatch(newContext(w, r, s))
}

func (s *Server) dispatch(c *Context) (Outcome, error) {
	start := time.Now()
	outcome, err := s.safeDispatch(c)
	status := c.status
	if status == 0 {
		status = outcome.status()
	}
	s.metrics.observeRequest(c.Method(), status)
	s.logger.Info("request",
		zap.String("id", c.RequestID()),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.String("outcome", outcome.String()),
		zap.Duration("duration", time.Since(start)),
	)
	return outcome, err
}

// safeDispatch invokes routing and converts the three failure classes into
// responses: routing miss to 404, ErrNotImplemented to 501, anything else to
// 500 with details attached only when the diagnostic mode allows it. With
// PropagateErrors enabled the typed error is returned instead, after
// logging. One bad request never takes down the worker or the server.
func (s *Server) safeDispatch(c *Context) (outcome Outcome, err error) {
	cfg := s.Config()
	defer func() {
		if r := recover(); r != nil {
			outcome, err = s.fault(c, cfg, fmt.Errorf("handler panic: %v", r))
		}
	}()

	matched, herr := s.router.Route(c)
	if !matched {
		if pf := cfg.PublicFolder; pf != nil && pf.TryServe(c) {
			return OutcomeHandled, nil
		}
		if cfg.PropagateErrors {
			return OutcomeNotFound, ErrRouteNotFound
		}
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		return OutcomeNotFound, nil
	}

	switch {
	case herr == nil:
		return OutcomeHandled, nil
	case errors.Is(herr, ErrNotImplemented):
		if cfg.PropagateErrors {
			return OutcomeNotImplemented, herr
		}
		if !c.Responded() {
			c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "not implemented"})
		}
		return OutcomeNotImplemented, nil
	default:
		return s.fault(c, cfg, herr)
	}
}

func (s *Server) fault(c *Context, cfg ServerConfig, ferr error) (Outcome, error) {
	s.logger.Error("handler fault",
		zap.String("id", c.RequestID()),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(ferr),
	)
	if cfg.PropagateErrors {
		return OutcomeFault, ferr
	}
	resp := ErrorResponse{Error: "internal server error"}
	if cfg.IncludeErrorDetails {
		resp.Message = ferr.Error()
	}
	if !c.Responded() {
		c.JSON(http.StatusInternalServerError, resp)
	}
	return OutcomeFault, nil
}
