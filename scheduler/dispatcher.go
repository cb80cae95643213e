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

package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nabbar/lbeacon-coordinator/bufnode"
	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/workerpool"
)

// DroppedFunc is called whenever the dispatcher discards a node instead of
// submitting it to the pool, with a short machine-readable reason
// ("stale" or the empty string for none), for the metrics package.
type DroppedFunc func(reason string)

// Dispatcher repeatedly selects the highest-priority non-empty buffer list,
// detaches its head node and submits it to the worker pool, inverting scan
// direction after StarvationTimeout elapses to guarantee every list makes
// bounded progress.
type Dispatcher struct {
	List *PriorityList
	Pool *workerpool.Pool

	// TimeCriticalNice is the Nice value identifying the time-critical
	// tier that phase 2 keeps privileged even while starving other tiers.
	TimeCriticalNice int

	OutOfDateAge      time.Duration
	StarvationTimeout time.Duration
	IdleSleep         time.Duration

	Log     logger.FuncLog
	Dropped DroppedFunc

	// Starved is called once per entry into phase 2, for the metrics
	// package's starvation counter.
	Starved func()

	lastReset atomic.Int64 // unix nano
	ready     atomic.Bool
}

// NewDispatcher builds a Dispatcher with the given collaborators. Call Run
// in its own goroutine.
func NewDispatcher(list *PriorityList, pool *workerpool.Pool, timeCriticalNice int, outOfDateAge, starvation time.Duration) *Dispatcher {
	d := &Dispatcher{
		List:              list,
		Pool:              pool,
		TimeCriticalNice:  timeCriticalNice,
		OutOfDateAge:      outOfDateAge,
		StarvationTimeout: starvation,
		IdleSleep:         5 * time.Millisecond,
	}
	d.lastReset.Store(time.Now().UnixNano())
	return d
}

// Ready reports whether Run has started at least one iteration, for the
// main loop's startup barrier.
func (d *Dispatcher) Ready() bool {
	return d.ready.Load()
}

func (d *Dispatcher) log() logger.Logger {
	if d.Log != nil {
		return d.Log()
	}
	return logger.Discard()
}

// Run drives the dispatcher until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.ready.Store(true)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if d.runIteration() {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.IdleSleep):
		}
	}
}

// runIteration runs one scheduling step and reports whether any node was
// either submitted or dropped (i.e. whether the caller should immediately
// try again instead of sleeping).
func (d *Dispatcher) runIteration() bool {
	since := time.Duration(time.Now().UnixNano() - d.lastReset.Load())

	if since < d.StarvationTimeout {
		return d.phaseScan()
	}

	if d.Starved != nil {
		d.Starved()
	}

	did := d.phaseStarvation()
	d.lastReset.Store(time.Now().UnixNano())
	return did
}

// phaseScan is phase 1: a single high-to-low walk that submits the first
// node it finds and stops.
func (d *Dispatcher) phaseScan() bool {
	did := false

	d.List.forEachForward(func(bl *BufferList) bool {
		n := bl.PopFront()
		if n == nil {
			return true
		}
		d.dispatch(bl, n)
		did = true
		return false
	})

	return did
}

// phaseStarvation is phase 2: re-scan the time-critical tier, then walk
// every list in reverse submitting at most one head per non-empty list,
// guaranteeing every list is serviced within one starvation window.
func (d *Dispatcher) phaseStarvation() bool {
	did := false

	d.List.forEachForward(func(bl *BufferList) bool {
		if bl.Nice != d.TimeCriticalNice {
			return true
		}
		if n := bl.PopFront(); n != nil {
			d.dispatch(bl, n)
			did = true
		}
		return true
	})

	d.List.forEachReverse(func(bl *BufferList) bool {
		if n := bl.PopFront(); n != nil {
			d.dispatch(bl, n)
			did = true
		}
		return true
	})

	return did
}

// dispatch drops nodes whose receive timestamp is too old instead of
// submitting them - the scheduler's sole back-pressure mechanism - and
// otherwise submits (handler, node) as one job to the worker pool.
func (d *Dispatcher) dispatch(bl *BufferList, n *bufnode.Node) {
	now := time.Now()

	if d.OutOfDateAge > 0 && n.Age(now) > d.OutOfDateAge {
		d.log().Warn("dropping out-of-date packet", logger.Fields{
			"list": bl.Name, "age": n.Age(now).String(),
		})
		if d.Dropped != nil {
			d.Dropped("stale")
		}
		return
	}

	handler := bl.Handler
	node := n
	nice := bl.Nice

	d.Pool.Push(workerpool.Job{
		Nice: nice,
		Arg:  node,
		Fn: func(arg any) {
			handler(arg.(*bufnode.Node))
		},
	})
}
