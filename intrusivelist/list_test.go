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

package intrusivelist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/nabbar/lbeacon-coordinator/intrusivelist"
)

func collect(h *Header[int]) []int {
	var out []int
	for n := h.Front(); n != nil; n = n.Next(h) {
		out = append(out, n.Value)
	}
	return out
}

func collectReverse(h *Header[int]) []int {
	var out []int
	for n := h.Back(); n != nil; n = n.Prev(h) {
		out = append(out, n.Value)
	}
	return out
}

func TestEmptyListHasNoFrontOrBack(t *testing.T) {
	h := New[int]()
	assert.True(t, h.Empty())
	assert.Nil(t, h.Front())
	assert.Nil(t, h.Back())
}

func TestPushBackOrdersForward(t *testing.T) {
	h := New[int]()
	nodes := []*Header[int]{{Value: 1}, {Value: 2}, {Value: 3}}
	for _, n := range nodes {
		PushBack(h, n)
	}
	assert.Equal(t, []int{1, 2, 3}, collect(h))
	assert.Equal(t, []int{3, 2, 1}, collectReverse(h))
}

func TestPushFrontOrdersReverse(t *testing.T) {
	h := New[int]()
	nodes := []*Header[int]{{Value: 1}, {Value: 2}, {Value: 3}}
	for _, n := range nodes {
		PushFront(h, n)
	}
	assert.Equal(t, []int{3, 2, 1}, collect(h))
}

func TestRemoveUnlinksAndSelfLoops(t *testing.T) {
	h := New[int]()
	a := &Header[int]{Value: 1}
	b := &Header[int]{Value: 2}
	c := &Header[int]{Value: 3}
	PushBack(h, a)
	PushBack(h, b)
	PushBack(h, c)

	Remove(b)

	assert.Equal(t, []int{1, 3}, collect(h))
	assert.True(t, b.Empty())
}

func TestInitSelfLoopsAnEmbeddedHeader(t *testing.T) {
	type holder struct {
		root Header[int]
	}
	var hl holder
	Init(&hl.root)

	require.True(t, hl.root.Empty())

	n := &Header[int]{Value: 42}
	PushBack(&hl.root, n)
	assert.Equal(t, []int{42}, collect(&hl.root))
}

func TestConcatAppendsAndEmptiesSource(t *testing.T) {
	dst := New[int]()
	src := New[int]()

	PushBack(dst, &Header[int]{Value: 1})
	PushBack(src, &Header[int]{Value: 2})
	PushBack(src, &Header[int]{Value: 3})

	Concat(dst, src)

	assert.Equal(t, []int{1, 2, 3}, collect(dst))
	assert.True(t, src.Empty())
}

func TestConcatOfEmptySourceIsNoOp(t *testing.T) {
	dst := New[int]()
	PushBack(dst, &Header[int]{Value: 1})
	src := New[int]()

	Concat(dst, src)

	assert.Equal(t, []int{1}, collect(dst))
}
