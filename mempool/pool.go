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

// Package mempool is a fixed-slot free-list allocator over Go's own heap:
// slabs of identically-sized slots are preallocated so hot-path code (the
// classifier and handlers allocating buffer nodes) never triggers a fresh
// heap allocation once the pool has warmed up.
//
// This is a from-scratch translation of the original design's malloc'd
// slab + intrusive free-list (import/Mempool.c, src/Mempool.c): Go has no
// pointer arithmetic, so slot ownership is tracked with a set of the slot
// pointers the pool handed out instead of computing slab offsets, which
// sidesteps the original's
// undefined-behaviour int-cast pointer arithmetic flagged in spec §9.
package mempool

import (
	"sync"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
)

// Pool hands out *T values drawn from preallocated slabs. T is expected to
// be a plain data struct; Alloc returns a zeroed value each time.
type Pool[T any] struct {
	mu sync.Mutex

	slotsPerSlab int
	maxSlabs     int

	slabs [][]T
	owned map[*T]bool
	free  []*T

	allocated int
}

// New builds a pool with one slab of slotsPerSlab slots already strung
// onto the free-list, growing by one additional slab (up to maxSlabs) on
// exhaustion.
func New[T any](slotsPerSlab, maxSlabs int) *Pool[T] {
	if slotsPerSlab <= 0 {
		slotsPerSlab = 256
	}
	if maxSlabs <= 0 {
		maxSlabs = 10
	}

	p := &Pool[T]{
		slotsPerSlab: slotsPerSlab,
		maxSlabs:     maxSlabs,
		owned:        make(map[*T]bool),
	}
	p.expandLocked()
	return p
}

func (p *Pool[T]) expandLocked() bool {
	if len(p.slabs) >= p.maxSlabs {
		return false
	}

	slab := make([]T, p.slotsPerSlab)
	p.slabs = append(p.slabs, slab)

	for i := range slab {
		slot := &slab[i]
		p.owned[slot] = true
		p.free = append(p.free, slot)
	}

	return true
}

// Alloc pops a slot off the free-list, expanding by one slab first if the
// free-list is empty. Returns CodeResourceExhaustion once maxSlabs slabs
// are all in use.
func (p *Pool[T]) Alloc() (*T, liberr.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 && !p.expandLocked() {
		return nil, liberr.Newf(liberr.CodeResourceExhaustion, "pool exhausted: %d slabs x %d slots in use", len(p.slabs), p.slotsPerSlab)
	}

	n := len(p.free) - 1
	slot := p.free[n]
	p.free = p.free[:n]

	var zero T
	*slot = zero

	p.allocated++
	return slot, nil
}

// Free validates that ptr was handed out by this pool (not a wild or
// already-freed pointer), zeroes it and pushes it back onto the free-list.
// This boundary check is what prevents a double-free or a foreign pointer
// from corrupting the free-list.
func (p *Pool[T]) Free(ptr *T) liberr.Error {
	if ptr == nil {
		return liberr.Newf(liberr.CodeMalformedInput, "free of nil pointer")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.owned[ptr] {
		return liberr.Newf(liberr.CodeMalformedInput, "free of pointer not owned by this pool")
	}

	for _, f := range p.free {
		if f == ptr {
			return liberr.Newf(liberr.CodeMalformedInput, "double free detected")
		}
	}

	var zero T
	*ptr = zero

	p.free = append(p.free, ptr)
	p.allocated--

	return nil
}

// UsagePercent reports allocated slots as a percentage of total capacity
// across every slab grown so far, for the metrics package's gauge.
func (p *Pool[T]) UsagePercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.slabs) * p.slotsPerSlab
	if total == 0 {
		return 0
	}
	return 100 * float64(p.allocated) / float64(total)
}

// Stats returns (allocated, free, capacity) for the invariant
// allocated + free == capacity that spec §8 requires hold after every op.
func (p *Pool[T]) Stats() (allocated, free, capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated, len(p.free), len(p.slabs) * p.slotsPerSlab
}
