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
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
)

// Listener abstracts the platform socket primitive the acceptor blocks on.
// The dispatch core depends only on this contract; TLS termination and
// authentication schemes are pass-through configuration on implementations,
// never reimplemented by the core.
//
// Stop must unblock any in-flight Accept, which then returns an error
// satisfying errors.Is(err, net.ErrClosed); the acceptor treats that as the
// normal consequence of an intentional shutdown.
type Listener interface {
	// AddPrefix registers a "scheme://host:port/" prefix to listen on.
	AddPrefix(prefix string) error
	// Start binds the registered prefix and begins accepting.
	Start() error
	// Stop unbinds and unblocks pending Accepts. Idempotent.
	Stop() error
	// Close releases the listener entirely. Idempotent.
	Close() error
	// IsListening reports whether the listener is currently bound.
	IsListening() bool
	// Accept blocks until the next connection or an error.
	Accept() (net.Conn, error)
	// Addr returns the bound address ("host:port"), or "" before Start.
	Addr() string
}

// TCPListener is the default Listener over a net.Listener. An "https" prefix
// with a TLS config wraps the listener with tls.NewListener; the TLS details
// themselves are opaque to the core.
type TCPListener struct {
	mu        sync.Mutex
	prefixes  []string
	scheme    string
	hostPort  string
	tlsConfig *tls.Config
	ln        net.Listener
	listening atomic.Bool
}

// NewTCPListener creates an unbound TCPListener.
func NewTCPListener() *TCPListener {
	return &TCPListener{}
}

// SetTLSConfig installs the pass-through TLS configuration used for https
// prefixes. It must be called before Start.
func (l *TCPListener) SetTLSConfig(cfg *tls.Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tlsConfig = cfg
}

// AddPrefix registers a prefix of the form "http://host:port/" or
// "https://host:port/". Registering the same prefix twice is a no-op;
// registering while listening is an error.
func (l *TCPListener) AddPrefix(prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listening.Load() {
		return ErrServerListening
	}
	u, err := url.Parse(prefix)
	if err != nil {
		return fmt.Errorf("grapevine: invalid listener prefix %q: %w", prefix, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("grapevine: unsupported listener scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("grapevine: listener prefix %q has no host", prefix)
	}
	for _, p := range l.prefixes {
		if p == prefix {
			return nil
		}
	}
	l.prefixes = append(l.prefixes, prefix)
	l.scheme = u.Scheme
	l.hostPort = u.Host
	return nil
}

// Start binds the most recently registered prefix.
func (l *TCPListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listening.Load() {
		return nil
	}
	if l.hostPort == "" {
		return errors.New("grapevine: no listener prefix registered")
	}
	ln, err := net.Listen("tcp", l.hostPort)
	if err != nil {
		return err
	}
	if l.scheme == "https" {
		if l.tlsConfig == nil || (len(l.tlsConfig.Certificates) == 0 && l.tlsConfig.GetCertificate == nil) {
			ln.Close()
			return errors.New("grapevine: https prefix requires a TLS config with certificates")
		}
		ln = tls.NewListener(ln, l.tlsConfig)
	}
	l.ln = ln
	l.listening.Store(true)
	return nil
}

// Stop closes the bound socket, unblocking pending Accepts.
func (l *TCPListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.listening.Load() {
		return nil
	}
	l.listening.Store(false)
	return l.ln.Close()
}

// Close releases the listener. A TCPListener holds no resources beyond its
// socket, so Close is Stop.
func (l *TCPListener) Close() error { return l.Stop() }

// IsListening reports whether the socket is bound.
func (l *TCPListener) IsListening() bool { return l.listening.Load() }

// Accept blocks for the next connection.
func (l *TCPListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil, ErrNotListening
	}
	return ln.Accept()
}

// Addr returns the actual bound address, which is the way to discover the
// port when the prefix asked for port 0.
func (l *TCPListener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}
