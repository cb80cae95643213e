/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package queue implements the bounded packet ring the UDP transport uses
// for both its outbound and inbound sides. Message sizes are small and
// bounded and every consumer already polls in a loop, so a single mutex
// around a fixed ring outweighs the complexity of a condition variable.
package queue

import (
	"sync"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
)

// MaxPayloadSize is the largest payload this queue accepts, per spec §3.
const MaxPayloadSize = 4096

// DefaultCapacity is the number of slots in a new ring, per spec §4.1.
const DefaultCapacity = 512

// Packet is a value object: an address/port pair plus an opaque payload.
type Packet struct {
	Address string
	Port    int
	Payload []byte
	Empty   bool
}

// Queue is a fixed-capacity ring buffer of Packet values guarded by one
// mutex. There is no blocking primitive: Dequeue returns an empty Packet
// immediately when the ring has nothing queued, and callers sleep briefly
// between polls (see transport/udp).
type Queue struct {
	mu     sync.Mutex
	slots  []Packet
	front  int
	rear   int
	count  int
	closed bool
}

// New allocates a ring of the given capacity. A capacity of zero falls
// back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{slots: make([]Packet, capacity)}
}

// Enqueue copies address/port/payload into the next rear slot. It fails
// with CodeResourceExhaustion when the ring is saturated, CodeMalformedInput
// when the payload exceeds MaxPayloadSize, and a closed-queue error once
// Release has been called.
func (q *Queue) Enqueue(address string, port int, payload []byte) liberr.Error {
	if len(payload) > MaxPayloadSize {
		return liberr.Newf(liberr.CodeMalformedInput, "payload %d bytes exceeds max %d", len(payload), MaxPayloadSize)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return liberr.Newf(liberr.CodeFatalInit, "queue is closed")
	}

	if q.count == len(q.slots) {
		return liberr.Newf(liberr.CodeResourceExhaustion, "queue full (capacity %d)", len(q.slots))
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	q.slots[q.rear] = Packet{Address: address, Port: port, Payload: buf}
	q.rear = (q.rear + 1) % len(q.slots)
	q.count++

	return nil
}

// Dequeue returns the front packet and advances the ring, or a Packet with
// Empty set to true when nothing is queued.
func (q *Queue) Dequeue() Packet {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Packet{Empty: true}
	}

	p := q.slots[q.front]
	q.slots[q.front] = Packet{}
	q.front = (q.front + 1) % len(q.slots)
	q.count--

	return p
}

// Len reports the number of packets currently queued, for the metrics
// package's queue-depth gauge.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Release transitions the queue to closed and drains every remaining
// packet. Further Enqueue calls fail; Dequeue keeps returning empty.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.front = 0
	q.rear = 0
	q.count = 0
	q.slots = make([]Packet, len(q.slots))
}

// Closed reports whether Release has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
