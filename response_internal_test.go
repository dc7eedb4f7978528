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
	"bytes"
	"io"
	"net"
	"net/http"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordConn struct {
	net.Conn
	buf bytes.Buffer
}

func (c *recordConn) Write(b []byte) (int, error) { return c.buf.Write(b) }

func parseResponse(c *recordConn, method string) *http.Response {
	req := &http.Request{Method: method}
	resp, err := http.ReadResponse(bufio.NewReader(&c.buf), req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

var _ = ginkgo.Describe("connWriter", func() {
	ginkgo.It("serializes status, headers and body with an exact Content-Length", func() {
		conn := &recordConn{}
		w := newConnWriter(conn)
		w.Header().Set("X-Thing", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
		Expect(w.finish(http.MethodPost)).To(Succeed())

		resp := parseResponse(conn, http.MethodPost)
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(resp.Header.Get("X-Thing")).To(Equal("yes"))
		// ReadResponse strips hop-by-hop headers; Connection: close surfaces
		// as the Close flag.
		Expect(resp.Close).To(BeTrue())
		Expect(resp.ContentLength).To(Equal(int64(len("created"))))
		body, _ := io.ReadAll(resp.Body)
		Expect(string(body)).To(Equal("created"))
	})

	ginkgo.It("defaults to 200 when the handler never set a status", func() {
		conn := &recordConn{}
		w := newConnWriter(conn)
		_, _ = w.Write([]byte("implicit"))
		Expect(w.finish(http.MethodGet)).To(Succeed())

		resp := parseResponse(conn, http.MethodGet)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	ginkgo.It("sniffs a content type when none was set", func() {
		conn := &recordConn{}
		w := newConnWriter(conn)
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
		Expect(w.finish(http.MethodGet)).To(Succeed())

		resp := parseResponse(conn, http.MethodGet)
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
	})

	ginkgo.It("keeps the first status when WriteHeader is called twice", func() {
		conn := &recordConn{}
		w := newConnWriter(conn)
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusInternalServerError)
		Expect(w.finish(http.MethodGet)).To(Succeed())

		resp := parseResponse(conn, http.MethodGet)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
	})

	ginkgo.It("suppresses the body for HEAD while keeping Content-Length", func() {
		conn := &recordConn{}
		w := newConnWriter(conn)
		_, _ = w.Write([]byte("not on the wire"))
		Expect(w.finish(http.MethodHead)).To(Succeed())

		resp := parseResponse(conn, http.MethodHead)
		defer resp.Body.Close()
		Expect(resp.ContentLength).To(Equal(int64(len("not on the wire"))))

		body, _ := io.ReadAll(resp.Body)
		Expect(body).To(BeEmpty())
	})
})
