// Package grapevine provides an embeddable REST server built on a small,
// explicit dispatch core: a single acceptor feeds inbound connections into a
// FIFO queue, a fixed pool of workers drains it, and a pattern router picks
// the handler for each request.
//
// It focuses on:
//   - Regex-compiled path templates ("/users/[id]") with named parameters
//   - Deterministic first-match routing in registration order
//   - A producer/consumer core with orderly start/stop semantics
//   - Structured logging (zap), Prometheus metrics, and YAML configuration
//
// Getting started:
//
//	r := grapevine.NewRouter()
//	r.GET("/hello/[name]", func(c *grapevine.Context) error {
//		c.JSON(http.StatusOK, map[string]any{"hello": c.Param("name")})
//		return nil
//	})
//
//	srv := grapevine.NewServer(grapevine.ServerConfig{Host: "0.0.0.0", Port: 8080}, r, nil)
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop()
//
// The package is framework-agnostic and container-friendly; import it and wire
// it in your service. For tests, enable TestingMode and drive the Server as an
// http.Handler.
package grapevine
