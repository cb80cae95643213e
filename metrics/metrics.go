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

// Package metrics exposes the core's internal state as Prometheus
// collectors: pool usage, queue depth, dispatcher starvation counts and
// address-map occupancy. The packet and starvation counters are updated
// inline through their owners' callbacks; pool usage, queue depth and map
// occupancy are sampled once a second by the server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry owns every collector this server registers.
type Registry struct {
	reg *prometheus.Registry

	PoolUsage   *prometheus.GaugeVec
	QueueDepth  *prometheus.GaugeVec
	MapOccupied prometheus.Gauge

	StarvationEvents prometheus.Counter
	PacketsDropped   *prometheus.CounterVec
	PacketsRouted    *prometheus.CounterVec
}

// New constructs and registers every collector against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		PoolUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coordinator",
			Name:      "pool_usage_percent",
			Help:      "Percentage of slots allocated out of a mempool.Pool.",
		}, []string{"pool"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coordinator",
			Name:      "queue_depth",
			Help:      "Number of packets currently queued.",
		}, []string{"queue"}),
		MapOccupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coordinator",
			Name:      "address_map_occupancy_ratio",
			Help:      "Fraction of address-map slots currently in use.",
		}),
		StarvationEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "dispatcher_starvation_total",
			Help:      "Number of times the dispatcher entered its reverse-scan starvation phase.",
		}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped, labeled by reason.",
		}, []string{"reason"}),
		PacketsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "packets_routed_total",
			Help:      "Packets routed to a buffer list, labeled by list name.",
		}, []string{"list"}),
	}

	reg.MustRegister(r.PoolUsage, r.QueueDepth, r.MapOccupied, r.StarvationEvents, r.PacketsDropped, r.PacketsRouted)

	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP /metrics
// handler to use.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
