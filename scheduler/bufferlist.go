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

// Package scheduler holds the priority-list dispatcher: a small set of
// buffer lists, each bound to one packet class, one nice value and one
// handler, scanned by a single dispatcher goroutine that hands detached
// nodes to the worker pool.
package scheduler

import (
	"sync"

	"github.com/nabbar/lbeacon-coordinator/bufnode"
	"github.com/nabbar/lbeacon-coordinator/intrusivelist"
)

// Handler processes exactly one node and is responsible for freeing it
// back to the node pool when it is done.
type Handler func(n *bufnode.Node)

// BufferList is a FIFO of buffer nodes bound to one packet class.
type BufferList struct {
	Link intrusivelist.Header[*BufferList]

	Name    string
	Nice    int
	Handler Handler

	mu   sync.Mutex
	root intrusivelist.Header[*bufnode.Node]
}

// NewBufferList builds an empty buffer list ready to be registered with a
// PriorityList.
func NewBufferList(name string, nice int, handler Handler) *BufferList {
	bl := &BufferList{Name: name, Nice: nice, Handler: handler}
	bl.Link.Value = bl
	intrusivelist.Init(&bl.root)
	return bl
}

// Push appends a node at the tail of this buffer list's FIFO.
func (bl *BufferList) Push(n *bufnode.Node) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	intrusivelist.PushBack(&bl.root, &n.Link)
}

// PopFront detaches and returns the head node, or nil when the list is
// empty. The lock is held only for the detach, never across the handler.
func (bl *BufferList) PopFront() *bufnode.Node {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	h := bl.root.Front()
	if h == nil {
		return nil
	}

	intrusivelist.Remove(h)
	return h.Value
}

// Len reports the current depth of this buffer list's FIFO.
func (bl *BufferList) Len() int {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	n := 0
	for h := bl.root.Front(); h != nil; h = h.Next(&bl.root) {
		n++
	}
	return n
}

// Empty reports whether this buffer list's FIFO currently has no nodes.
func (bl *BufferList) Empty() bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return bl.root.Empty()
}
