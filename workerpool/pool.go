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

// Package workerpool is a fixed set of worker goroutines pulling jobs from
// a single FIFO, a direct translation of the original design's
// thpool.c/thpool.h: one mutex around the job queue plus a "has jobs"
// semaphore, rather than one channel per worker.
//
// The "has jobs" semaphore is built on golang.org/x/sync/semaphore, the
// same primitive the corpus's own semaphore/sem package wraps, so that
// Acquire is context-aware and shutdown can cancel every blocked worker in
// one step instead of posting once per worker.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Job is one unit of work: a function plus its opaque argument and the
// priority nice it was scheduled under. The pool carries Nice but never
// consults it — priority scheduling is the dispatcher's job (see package
// scheduler), not the pool's; this keeps the pool a uniform executor.
type Job struct {
	Fn   func(arg any)
	Arg  any
	Nice int
}

// Pool is a fixed-size set of worker goroutines draining one job FIFO.
type Pool struct {
	mu   sync.Mutex
	jobs []Job
	sem  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	aliveWorkers int32
	working      int32

	wg sync.WaitGroup
}

// New starts workers goroutines immediately, each blocked waiting for a
// job to be pushed.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	const maxPending = int64(1 << 30)

	p := &Pool{
		sem:    semaphore.NewWeighted(maxPending),
		ctx:    ctx,
		cancel: cancel,
	}

	// Start with every permit held, so a worker's Acquire blocks until Push
	// releases one permit for the job it queued.
	p.sem.TryAcquire(maxPending)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		atomic.AddInt32(&p.aliveWorkers, 1)
		go p.worker()
	}

	return p
}

// Push links job at the rear of the FIFO and posts the semaphore once.
func (p *Pool) Push(job Job) {
	p.mu.Lock()
	p.jobs = append(p.jobs, job)
	p.mu.Unlock()

	p.sem.Release(1)
}

// pull unlinks the front job, if any, and reports whether one was found.
func (p *Pool) pull() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.jobs) == 0 {
		return Job{}, false
	}

	j := p.jobs[0]
	p.jobs = p.jobs[1:]
	return j, true
}

func (p *Pool) worker() {
	defer p.wg.Done()
	defer atomic.AddInt32(&p.aliveWorkers, -1)

	for {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			// context cancelled: shutting down.
			return
		}

		if p.ctx.Err() != nil {
			return
		}

		job, ok := p.pull()
		if !ok {
			// A permit with no queued job behind it: wait for the next one.
			continue
		}

		atomic.AddInt32(&p.working, 1)
		job.Fn(job.Arg)
		atomic.AddInt32(&p.working, -1)
	}
}

// Working reports how many workers are presently executing a job.
func (p *Pool) Working() int {
	return int(atomic.LoadInt32(&p.working))
}

// Pending reports how many jobs are queued but not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Shutdown cancels the pool's context, unblocking every worker's Acquire,
// and waits for all of them to exit.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
