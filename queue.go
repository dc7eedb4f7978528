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
	"net"
	"sync"
)

// connQueue is the FIFO of accepted connections shared between the acceptor
// and the worker pool. The slice is guarded by one mutex; readiness is a
// cap-1 channel acting as a binary signal: Enqueue sets it (setting an
// already-set signal is a no-op), a waking worker consumes it, and a dequeue
// that leaves items behind sets it again so the next worker wakes.
//
// A worker that wakes to find the queue already drained simply re-blocks; the
// consumed token is the signal reset, so no busy-spin and no lost wakeup.
type connQueue struct {
	mu    sync.Mutex
	conns []net.Conn
	ready chan struct{}
}

func newConnQueue() *connQueue {
	return &connQueue{ready: make(chan struct{}, 1)}
}

// Enqueue appends conn and raises the readiness signal.
func (q *connQueue) Enqueue(conn net.Conn) {
	q.mu.Lock()
	q.conns = append(q.conns, conn)
	q.mu.Unlock()
	q.signal()
}

// Dequeue pops the oldest connection. It returns false when the queue was
// already drained by another worker. When items remain after the pop the
// readiness signal is raised again.
func (q *connQueue) Dequeue() (net.Conn, bool) {
	q.mu.Lock()
	if len(q.conns) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	conn := q.conns[0]
	q.conns[0] = nil
	q.conns = q.conns[1:]
	remaining := len(q.conns)
	q.mu.Unlock()

	if remaining > 0 {
		q.signal()
	}
	return conn, true
}

// Ready returns the readiness signal channel. Receiving from it consumes the
// signal; callers must follow up with Dequeue and tolerate an empty result.
func (q *connQueue) Ready() <-chan struct{} { return q.ready }

// Len returns the current queue depth.
func (q *connQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.conns)
}

func (q *connQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
