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
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// connWriter is a connection-backed http.ResponseWriter. Handlers write into
// an in-memory buffer; finish serializes the status line, headers and body to
// the wire in one pass so Content-Length is always exact. Each accepted
// connection carries exactly one request, so every response closes the
// connection.
type connWriter struct {
	conn        net.Conn
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newConnWriter(conn net.Conn) *connWriter {
	return &connWriter{conn: conn, header: make(http.Header)}
}

func (w *connWriter) Header() http.Header { return w.header }

func (w *connWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *connWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

// finish writes the buffered response to the connection. The body is
// suppressed for HEAD requests; Content-Length still reflects what a GET
// would have returned.
func (w *connWriter) finish(method string) error {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	if w.header.Get("Content-Type") == "" && w.body.Len() > 0 {
		w.header.Set("Content-Type", http.DetectContentType(w.body.Bytes()))
	}
	w.header.Set("Content-Length", strconv.Itoa(w.body.Len()))
	w.header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	w.header.Set("Connection", "close")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, statusText(status))
	if err := w.header.Write(&buf); err != nil {
		return err
	}
	buf.WriteString("\r\n")
	if method != http.MethodHead {
		buf.Write(w.body.Bytes())
	}
	_, err := w.conn.Write(buf.Bytes())
	return err
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Status"
}
