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
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15s".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or an integer nanosecond
// count. The node tag decides: yaml.v3 would otherwise happily decode an int
// scalar into a string, which ParseDuration then rejects for lacking a unit.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("grapevine: invalid duration: %w", err)
		}
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("grapevine: invalid duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("grapevine: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// RouteScanner populates a Router. Start invokes a configured scanner exactly
// once, when the route table is still empty; it is the explicit replacement
// for annotation-driven handler discovery.
type RouteScanner interface {
	ScanRoutes(r *Router)
}

// ServerConfig is the typed configuration surface consumed by the Server.
// Host, Port, Scheme and Connections are frozen while the server is
// listening; the Server's mutators fail fast with ErrServerListening.
type ServerConfig struct {
	// Host and Port form the bind address. An unset port falls back to 1234.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Scheme is "http" or "https". https requires TLSConfig.
	Scheme string `yaml:"scheme"`

	// Connections is the worker multiplier: the pool runs
	// Connections x runtime.NumCPU() workers, fixed at Start.
	Connections int `yaml:"connections"`

	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`

	// PropagateErrors makes the dispatch path re-raise typed errors
	// (ErrRouteNotFound, ErrNotImplemented, handler faults) instead of
	// converting them to 404/501/500 responses. Intended for diagnostics and
	// testing mode.
	PropagateErrors bool `yaml:"propagateErrors"`

	// IncludeErrorDetails attaches the fault message to 500 responses.
	IncludeErrorDetails bool `yaml:"includeErrorDetails"`

	// PublicFolder, when set, serves static files on a routing miss before
	// the 404 is produced.
	PublicFolder *PublicFolder `yaml:"publicFolder"`

	// TestingMode skips the acceptor and worker pool entirely; dispatch is
	// driven synchronously through Server.Dispatch or http.Handler.
	TestingMode bool `yaml:"-"`

	// TLSConfig is pass-through configuration for the listener.
	TLSConfig *tls.Config `yaml:"-"`

	// Scanner, when set, populates an empty route table during Start.
	Scanner RouteScanner `yaml:"-"`

	// Lifecycle hooks. Before-hooks always run; after-hooks run only once the
	// listener confirms the corresponding state.
	OnBeforeStart func() `yaml:"-"`
	OnAfterStart  func() `yaml:"-"`
	OnBeforeStop  func() `yaml:"-"`
	OnAfterStop   func() `yaml:"-"`
}

// DefaultConnections is the worker multiplier applied when none is
// configured.
const DefaultConnections = 50

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 1234
	}
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.Connections == 0 {
		c.Connections = DefaultConnections
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(15 * time.Second)
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = Duration(30 * time.Second)
	}
	return c
}

// Validate checks the configuration after defaults have been applied.
func (c ServerConfig) Validate() error {
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("grapevine: unsupported scheme %q", c.Scheme)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("grapevine: port %d out of range", c.Port)
	}
	if c.Connections <= 0 {
		return fmt.Errorf("grapevine: connections multiplier %d must be positive", c.Connections)
	}
	return nil
}

// Prefix renders the listener prefix, "scheme://host:port/".
func (c ServerConfig) Prefix() string {
	return fmt.Sprintf("%s://%s:%d/", c.Scheme, c.Host, c.Port)
}

// LoadConfig reads a ServerConfig from a YAML file.
func LoadConfig(path string) (ServerConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("grapevine: read config %s: %w", path, err)
	}
	defer f.Close()
	return LoadConfigReader(f)
}

// LoadConfigReader reads a ServerConfig from YAML.
func LoadConfigReader(r io.Reader) (ServerConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("grapevine: read config: %w", err)
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("grapevine: parse config: %w", err)
	}
	if err := cfg.withDefaults().Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}
