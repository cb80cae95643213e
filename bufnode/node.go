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

// Package bufnode defines the scheduler's unit of work: one datagram plus
// routing metadata, drawn from a mempool.Pool and carrying its own
// intrusive list link so it can be spliced into a buffer list without a
// second allocation.
package bufnode

import (
	"time"

	"github.com/nabbar/lbeacon-coordinator/intrusivelist"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

// Node is the buffer node of spec §3: once placed on a buffer list, exactly
// one goroutine owns it until it is freed back to the pool.
type Node struct {
	Link intrusivelist.Header[*Node]

	Direction  wire.Direction
	Type       wire.Type
	APIVersion float64

	SourceAddress string
	SourcePort    int

	Payload []byte

	ReceivedAt time.Time
}

// Age returns how long ago the node was received.
func (n *Node) Age(now time.Time) time.Duration {
	return now.Sub(n.ReceivedAt)
}

// Link the node's own header Value back to itself so that, once the
// header is retrieved off a buffer list, the owning Node is recovered in
// one field access - the Go equivalent of the original design's
// container_of macro.
func (n *Node) bind() {
	n.Link.Value = n
}

// New allocates a zero-value Node, outside any pool, ready to be linked
// into a buffer list with a self-referencing Link. Nodes taken from a
// mempool.Pool are prepared with Reset after Alloc instead.
func New() *Node {
	n := &Node{}
	n.bind()
	return n
}

// Reset clears a recycled Node (pulled back out of a mempool.Pool, whose
// Free zeroes the struct) and rebinds its link, since zeroing also clears
// Link.Value.
func Reset(n *Node) {
	*n = Node{}
	n.bind()
}
