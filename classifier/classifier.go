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

// Package classifier runs the single receive-side goroutine that pulls raw
// datagrams off the inbound queue, parses their wire header, allocates a
// buffer node from the pool and routes it to exactly one buffer list by
// (direction, type), per spec §4.8.
package classifier

import (
	"context"
	"time"

	"github.com/nabbar/lbeacon-coordinator/bufnode"
	liberr "github.com/nabbar/lbeacon-coordinator/errors"
	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/mempool"
	"github.com/nabbar/lbeacon-coordinator/queue"
	"github.com/nabbar/lbeacon-coordinator/scheduler"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

// routeKey identifies one (direction, type) pair in the routing table.
type routeKey struct {
	Direction wire.Direction
	Type      wire.Type
}

// Classifier owns the routing table from (direction, type) to a single
// target buffer list.
type Classifier struct {
	Inbound *queue.Queue
	Pool    *mempool.Pool[bufnode.Node]

	AllocateRetries int
	BusyWaitingTime time.Duration

	IdleSleep time.Duration

	Log logger.FuncLog

	// Routed is called with the target list's name once a node has been
	// pushed onto it, for the metrics package's per-list counter.
	Routed func(listName string)

	// Dropped is called with a short machine-readable reason whenever a
	// datagram is discarded before reaching a buffer list.
	Dropped func(reason string)

	routes map[routeKey]*scheduler.BufferList
}

// New builds a Classifier with an empty routing table; call Route to
// populate the table per spec §4.8's dispatch table before calling Run.
func New(inbound *queue.Queue, pool *mempool.Pool[bufnode.Node], retries int, busyWait time.Duration, log logger.FuncLog) *Classifier {
	if retries <= 0 {
		retries = 5
	}
	if busyWait <= 0 {
		busyWait = 10 * time.Millisecond
	}

	return &Classifier{
		Inbound:         inbound,
		Pool:            pool,
		AllocateRetries: retries,
		BusyWaitingTime: busyWait,
		IdleSleep:       5 * time.Millisecond,
		Log:             log,
		routes:          make(map[routeKey]*scheduler.BufferList),
	}
}

// Route registers the single target buffer list for one (direction, type)
// pair. Any pair not registered is dropped per spec §4.8's "anything else"
// row.
func (c *Classifier) Route(dir wire.Direction, typ wire.Type, list *scheduler.BufferList) {
	c.routes[routeKey{dir, typ}] = list
}

func (c *Classifier) log() logger.Logger {
	if c.Log != nil {
		return c.Log()
	}
	return logger.Discard()
}

// Run pulls one datagram at a time from Inbound until ctx is cancelled.
func (c *Classifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p := c.Inbound.Dequeue()
		if p.Empty {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.IdleSleep):
			}
			continue
		}

		c.handleDatagram(p)
	}
}

func (c *Classifier) handleDatagram(p queue.Packet) {
	header, err := wire.Decode(p.Payload)
	if err != nil {
		c.log().Debug("dropping malformed datagram", logger.Fields{"error": err.Error(), "peer": p.Address})
		c.drop("malformed")
		return
	}

	list, ok := c.routes[routeKey{header.Direction, header.Type}]
	if !ok {
		c.log().Debug("dropping datagram with no route", logger.Fields{
			"direction": int(header.Direction), "type": int(header.Type),
		})
		c.drop("no-route")
		return
	}

	node, alloc := c.allocateWithRetry()
	if alloc != nil {
		c.log().Warn("dropping datagram: node pool exhausted", logger.Fields{"error": alloc.Error()})
		c.drop("pool-exhausted")
		return
	}

	node.Direction = header.Direction
	node.Type = header.Type
	node.APIVersion = header.APIVersion
	node.SourceAddress = p.Address
	node.SourcePort = p.Port
	node.Payload = []byte(header.Payload)
	node.ReceivedAt = time.Now()

	list.Push(node)

	if c.Routed != nil {
		c.Routed(list.Name)
	}
}

func (c *Classifier) drop(reason string) {
	if c.Dropped != nil {
		c.Dropped(reason)
	}
}

// allocateWithRetry retries a bounded number of times with a short sleep
// on pool exhaustion before giving up, per spec §7's resource-exhaustion
// policy and §8 scenario 5.
func (c *Classifier) allocateWithRetry() (*bufnode.Node, liberr.Error) {
	var last liberr.Error

	for attempt := 0; attempt < c.AllocateRetries; attempt++ {
		n, err := c.Pool.Alloc()
		if err == nil {
			bufnode.Reset(n)
			return n, nil
		}

		last = err
		if attempt < c.AllocateRetries-1 {
			time.Sleep(c.BusyWaitingTime)
		}
	}

	return nil, last
}
