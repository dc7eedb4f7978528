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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	g "github.com/kbrimble/grapevine"
)

var _ = Describe("Middleware", func() {
	It("propagates the request id into the request context", func() {
		r := g.NewRouter()
		r.Use(g.RequestID())

		var fromCtx string
		r.GET("/id$", func(c *g.Context) error {
			id, ok := g.RequestIDFrom(c.Context())
			Expect(ok).To(BeTrue())
			fromCtx = id
			c.Status(http.StatusOK)
			return nil
		})

		_, matched, _ := routeRequest(r, http.MethodGet, "/id")
		Expect(matched).To(BeTrue())
		Expect(fromCtx).NotTo(BeEmpty())
	})

	It("bounds the handler's context deadline with Timeout", func() {
		r := g.NewRouter()
		var deadline time.Time
		var ok bool
		r.GET("/slow$", func(c *g.Context) error {
			deadline, ok = c.Context().Deadline()
			c.Status(http.StatusOK)
			return nil
		}, g.Timeout(50*time.Millisecond))

		_, matched, _ := routeRequest(r, http.MethodGet, "/slow")
		Expect(matched).To(BeTrue())
		Expect(ok).To(BeTrue())
		Expect(deadline).To(BeTemporally("~", time.Now().Add(50*time.Millisecond), time.Second))
	})

	It("converts a panic into a 500 with Recover", func() {
		r := g.NewRouter()
		r.GET("/panic$", func(c *g.Context) error {
			panic("boom")
		}, g.Recover(nil))

		rr, matched, err := routeRequest(r, http.MethodGet, "/panic")
		Expect(matched).To(BeTrue())
		Expect(err).NotTo(HaveOccurred())
		Expect(rr.Code).To(Equal(http.StatusInternalServerError))
	})

	It("applies the security headers", func() {
		r := g.NewRouter()
		r.GET("/h$", func(c *g.Context) error {
			c.Status(http.StatusOK)
			return nil
		}, g.SecurityHeaders(g.DefaultSecurityHeadersConfig()))

		rr, matched, _ := routeRequest(r, http.MethodGet, "/h")
		Expect(matched).To(BeTrue())
		Expect(rr.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
		Expect(rr.Header().Get("X-Frame-Options")).NotTo(BeEmpty())
	})
})
