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

// Package intrusivelist is a header-embedded doubly-linked list, a direct
// translation of the original design's LinkedList.c/.h: next/prev self-loop
// on an empty list, no allocation inside any list operation, storage is
// always the embedded Header of the containing node.
//
// Go cannot express "pointer to the struct containing this field" as
// cheaply as C's container_of macro, so Header carries the contained value
// itself via generics instead of an offsetof computation; the list shape
// (self-looping sentinel head, insert-after/before, remove, concat) is
// preserved exactly.
package intrusivelist

// Header is one node in the list: a sentinel when used as the list root,
// or a live entry carrying a Value otherwise.
type Header[T any] struct {
	next  *Header[T]
	prev  *Header[T]
	Value T
}

// New returns a new, empty list root: both pointers self-looped.
func New[T any]() *Header[T] {
	h := &Header[T]{}
	h.next = h
	h.prev = h
	return h
}

// Init self-loops h in place, so a Header embedded by value inside another
// struct can be made an empty list root without taking its address twice
// (which New, returning a freshly-allocated Header, cannot do).
func Init[T any](h *Header[T]) {
	h.next = h
	h.prev = h
}

// Empty reports whether the list rooted at h has no entries.
func (h *Header[T]) Empty() bool {
	return h.next == h
}

// InsertAfter splices n in immediately after at.
func InsertAfter[T any](at, n *Header[T]) {
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
}

// InsertBefore splices n in immediately before at.
func InsertBefore[T any](at, n *Header[T]) {
	InsertAfter(at.prev, n)
}

// PushFront inserts n as the new head of the list rooted at h.
func PushFront[T any](h, n *Header[T]) {
	InsertAfter(h, n)
}

// PushBack inserts n as the new tail of the list rooted at h.
func PushBack[T any](h, n *Header[T]) {
	InsertBefore(h, n)
}

// Remove unlinks n from whatever list it is in and self-loops it.
func Remove[T any](n *Header[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = n
	n.prev = n
}

// Front returns the first entry after root h, or nil when the list is
// empty.
func (h *Header[T]) Front() *Header[T] {
	if h.Empty() {
		return nil
	}
	return h.next
}

// Next returns the entry following n, or nil when n is the list's root
// (the iteration's natural end).
func (n *Header[T]) Next(root *Header[T]) *Header[T] {
	if n.next == root {
		return nil
	}
	return n.next
}

// Back returns the last entry before root h, or nil when the list is
// empty.
func (h *Header[T]) Back() *Header[T] {
	if h.Empty() {
		return nil
	}
	return h.prev
}

// Prev returns the entry preceding n, or nil when n is the list's root
// (the reverse iteration's natural end).
func (n *Header[T]) Prev(root *Header[T]) *Header[T] {
	if n.prev == root {
		return nil
	}
	return n.prev
}

// Concat splices every entry of src onto the tail of dst, leaving src
// empty. Both must be list roots.
func Concat[T any](dst, src *Header[T]) {
	if src.Empty() {
		return
	}

	first := src.next
	last := src.prev

	last.next = dst
	first.prev = dst.prev
	dst.prev.next = first
	dst.prev = last

	src.next = src
	src.prev = src
}
