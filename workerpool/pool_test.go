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

package workerpool_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/lbeacon-coordinator/workerpool"
)

func TestEveryJobRunsExactlyOnce(t *testing.T) {
	p := workerpool.New(4)
	defer p.Shutdown()

	const n = 200
	var total int32
	for i := 0; i < n; i++ {
		p.Push(workerpool.Job{Fn: func(arg any) { atomic.AddInt32(&total, 1) }})
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&total) == n }, time.Second, time.Millisecond)
}

func TestJobArgumentIsPassedThrough(t *testing.T) {
	p := workerpool.New(2)
	defer p.Shutdown()

	done := make(chan any, 1)
	p.Push(workerpool.Job{Arg: "payload", Fn: func(arg any) { done <- arg }})

	select {
	case got := <-done:
		assert.Equal(t, "payload", got)
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}

func TestShutdownWaitsForWorkersToExit(t *testing.T) {
	p := workerpool.New(2)

	var ran int32
	p.Push(workerpool.Job{Fn: func(arg any) {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&ran, 1)
	}})

	time.Sleep(5 * time.Millisecond)
	p.Shutdown()

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran), "Shutdown must wait for in-flight jobs to finish")
}

func TestWorkingReflectsJobsCurrentlyExecuting(t *testing.T) {
	p := workerpool.New(1)
	defer p.Shutdown()

	release := make(chan struct{})
	p.Push(workerpool.Job{Fn: func(arg any) { <-release }})

	require.Eventually(t, func() bool { return p.Working() == 1 }, time.Second, time.Millisecond)
	close(release)
	require.Eventually(t, func() bool { return p.Working() == 0 }, time.Second, time.Millisecond)
}
