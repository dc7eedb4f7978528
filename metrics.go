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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for one server, registered on a
// private registry so embedding applications can expose or ignore them.
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	workers       prometheus.Gauge
}

// NewMetrics creates the server metrics under the given namespace
// ("grapevine" when empty).
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "grapevine"
	}
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests",
		},
		[]string{"method", "status"},
	)
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Accepted connections waiting for a worker",
	})
	m.workers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers",
		Help:      "Size of the worker pool",
	})

	m.registry.MustRegister(m.requestsTotal, m.queueDepth, m.workers)
	return m
}

// Registry returns the private registry for exposure via promhttp or a
// push gateway.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeRequest(method string, status int) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
