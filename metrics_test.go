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

package grapevine_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	g "github.com/kbrimble/grapevine"
)

func counterValue(m *g.Metrics, name, method, status string) float64 {
	families, err := m.Registry().Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == method && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

var _ = Describe("Metrics", func() {
	It("counts dispatched requests by method and status", func() {
		r := g.NewRouter()
		r.GET("/ok$", func(c *g.Context) error {
			c.Status(http.StatusOK)
			return nil
		})
		srv := testingServer(g.ServerConfig{}, r)

		_, _, _ = dispatchRequest(srv, http.MethodGet, "/ok")
		_, _, _ = dispatchRequest(srv, http.MethodGet, "/ok")
		_, _, _ = dispatchRequest(srv, http.MethodPost, "/missing")

		m := srv.Metrics()
		Expect(counterValue(m, "grapevine_requests_total", "GET", "200")).To(Equal(2.0))
		Expect(counterValue(m, "grapevine_requests_total", "POST", "404")).To(Equal(1.0))
	})

	It("registers the gauges on the private registry", func() {
		m := g.NewMetrics("custom")
		families, err := m.Registry().Gather()
		Expect(err).NotTo(HaveOccurred())

		// Gauges report even at zero; the counter vec has no series yet.
		names := make([]string, 0, len(families))
		for _, mf := range families {
			names = append(names, mf.GetName())
		}
		Expect(names).To(ContainElements("custom_queue_depth", "custom_workers"))
	})
})
