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
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	g "github.com/kbrimble/grapevine"
)

func routeRequest(r *g.Router, method, path string) (*httptest.ResponseRecorder, bool, error) {
	rr := httptest.NewRecorder()
	c := g.NewContext(rr, httptest.NewRequest(method, path, nil), nil)
	matched, err := r.Route(c)
	return rr, matched, err
}

var _ = Describe("Router", func() {
	It("routes methods and captures params", func() {
		r := g.NewRouter()
		r.GET("/hi/[name]", func(c *g.Context) error {
			c.Text(http.StatusOK, c.Param("name"))
			return nil
		})

		rr, matched, err := routeRequest(r, http.MethodGet, "/hi/alex")
		Expect(err).NotTo(HaveOccurred())
		Expect(matched).To(BeTrue())
		Expect(rr.Body.String()).To(Equal("alex"))
	})

	It("reports a routing miss distinctly from a handler outcome", func() {
		r := g.NewRouter()
		r.POST("/things$", func(c *g.Context) error {
			c.Status(http.StatusCreated)
			return nil
		})

		_, matched, err := routeRequest(r, http.MethodGet, "/missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(matched).To(BeFalse())

		// Same path, wrong method, is also a miss: method matching is part of
		// the candidate test, there is no separate 405 in the core.
		_, matched, _ = routeRequest(r, http.MethodGet, "/things")
		Expect(matched).To(BeFalse())
	})

	It("picks the first registered match regardless of specificity", func() {
		r := g.NewRouter()
		var won string
		r.GET("/users/[id]", func(c *g.Context) error {
			won = "generic"
			c.Status(http.StatusOK)
			return nil
		})
		r.GET("/users/42$", func(c *g.Context) error {
			won = "specific"
			c.Status(http.StatusOK)
			return nil
		})

		_, matched, _ := routeRequest(r, http.MethodGet, "/users/42")
		Expect(matched).To(BeTrue())
		Expect(won).To(Equal("generic"))
	})

	It("preserves registration order as the tie-break", func() {
		r := g.NewRouter()
		order := []string{}
		r.GET("/a/[x]", func(c *g.Context) error {
			order = append(order, "first")
			c.Status(http.StatusOK)
			return nil
		})
		r.GET("/a/[y]", func(c *g.Context) error {
			order = append(order, "second")
			c.Status(http.StatusOK)
			return nil
		})

		for i := 0; i < 3; i++ {
			_, matched, _ := routeRequest(r, http.MethodGet, "/a/z")
			Expect(matched).To(BeTrue())
		}
		Expect(order).To(Equal([]string{"first", "first", "first"}))
	})

	It("matches ALL-method routes for any method", func() {
		r := g.NewRouter()
		hits := 0
		r.All("/ping$", func(c *g.Context) error {
			hits++
			c.Text(http.StatusOK, "pong")
			return nil
		})

		for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch} {
			_, matched, _ := routeRequest(r, m, "/ping")
			Expect(matched).To(BeTrue())
		}
		Expect(hits).To(Equal(4))
	})

	It("passes handler errors through untouched", func() {
		r := g.NewRouter()
		boom := errors.New("boom")
		r.GET("/fail", func(c *g.Context) error { return boom })

		_, matched, err := routeRequest(r, http.MethodGet, "/fail")
		Expect(matched).To(BeTrue())
		Expect(err).To(MatchError(boom))
	})

	It("supports all HTTP method helpers", func() {
		r := g.NewRouter()
		h := func(c *g.Context) error {
			c.Text(http.StatusOK, c.Method())
			return nil
		}

		r.GET("/m$", h)
		r.POST("/m$", h)
		r.PUT("/m$", h)
		r.DELETE("/m$", h)
		r.PATCH("/m$", h)
		r.OPTIONS("/m$", h)
		r.HEAD("/m$", h)
		Expect(r.Len()).To(Equal(7))

		for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions, http.MethodHead} {
			_, matched, err := routeRequest(r, m, "/m")
			Expect(err).NotTo(HaveOccurred())
			Expect(matched).To(BeTrue())
		}
	})

	It("applies router-level and route-level middleware in order", func() {
		r := g.NewRouter()
		order := []string{}
		r.Use(func(next g.Handler) g.Handler {
			return func(c *g.Context) error {
				order = append(order, "router")
				return next(c)
			}
		})
		r.GET("/mw", func(c *g.Context) error {
			order = append(order, "handler")
			c.Status(http.StatusOK)
			return nil
		}, func(next g.Handler) g.Handler {
			return func(c *g.Context) error {
				order = append(order, "route")
				return next(c)
			}
		})

		_, matched, _ := routeRequest(r, http.MethodGet, "/mw")
		Expect(matched).To(BeTrue())
		Expect(order).To(Equal([]string{"router", "route", "handler"}))
	})

	It("panics on nil handler at registration time", func() {
		r := g.NewRouter()
		Expect(func() {
			r.GET("/bad", nil)
		}).To(PanicWith("grapevine: nil handler"))
	})

	It("panics on duplicate parameter names at registration time", func() {
		r := g.NewRouter()
		Expect(func() {
			r.GET("/users/[id]/pets/[id]", func(c *g.Context) error { return nil })
		}).To(PanicWith(ContainSubstring("duplicate pattern parameter")))
	})

	It("treats an empty method as the ALL wildcard", func() {
		r := g.NewRouter()
		r.Register("", "/any$", func(c *g.Context) error {
			c.Status(http.StatusOK)
			return nil
		})

		_, matched, _ := routeRequest(r, http.MethodPut, "/any")
		Expect(matched).To(BeTrue())
	})
})
