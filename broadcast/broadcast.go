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

// Package broadcast runs the main loop's two periodic fan-outs of spec
// §4.11: every T_tracked interval it asks every in-use gateway for tracked-
// object data, and every T_health interval it asks for a health report.
// Both share one outbound queue; per-destination order is preserved, but
// interleaving between the two broadcasts is unspecified.
package broadcast

import (
	"context"
	"time"

	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/queue"
	"github.com/nabbar/lbeacon-coordinator/registry"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

// Broadcaster drives the two periodic fan-outs against one gateway
// registry and one outbound queue.
type Broadcaster struct {
	Outbound *queue.Queue
	Gateways *registry.Map

	TrackedInterval time.Duration
	HealthInterval  time.Duration

	APIVersion string

	Log logger.FuncLog

	tick time.Duration
}

// New builds a Broadcaster; a zero TrackedInterval or HealthInterval
// disables that fan-out entirely.
func New(outbound *queue.Queue, gateways *registry.Map, trackedInterval, healthInterval time.Duration, apiVersion string, log logger.FuncLog) *Broadcaster {
	return &Broadcaster{
		Outbound:        outbound,
		Gateways:        gateways,
		TrackedInterval: trackedInterval,
		HealthInterval:  healthInterval,
		APIVersion:      apiVersion,
		Log:             log,
		tick:            100 * time.Millisecond,
	}
}

func (b *Broadcaster) log() logger.Logger {
	if b.Log != nil {
		return b.Log()
	}
	return logger.Discard()
}

// Run drives both fan-outs on independent tickers until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	var trackedC, healthC <-chan time.Time

	if b.TrackedInterval > 0 {
		t := time.NewTicker(b.TrackedInterval)
		defer t.Stop()
		trackedC = t.C
	}
	if b.HealthInterval > 0 {
		t := time.NewTicker(b.HealthInterval)
		defer t.Stop()
		healthC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-trackedC:
			b.fanOut(wire.TypeTrackedObjectData)
		case <-healthC:
			b.fanOut(wire.TypeGatewayHealthReport)
		}
	}
}

// fanOut enqueues one request datagram of typ addressed to every currently
// registered gateway.
func (b *Broadcaster) fanOut(typ wire.Type) {
	raw := wire.Encode(wire.DirectionFromServer, typ, b.APIVersion, "")

	for _, e := range b.Gateways.Snapshot() {
		if err := b.Outbound.Enqueue(e.Address, e.Port, raw); err != nil {
			b.log().Warn("dropping broadcast datagram", logger.Fields{"address": e.Address, "error": err.Error()})
		}
	}
}
