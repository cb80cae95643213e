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

// Package server wires every component in this repository into one runnable
// coordinator: the queues, node pool, address maps, classifier, dispatcher,
// worker pool, handlers, geo-fence evaluator, periodic broadcasters, store
// and notifier, plus the process-wide cooperative shutdown token of spec
// §5.
package server

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nabbar/lbeacon-coordinator/broadcast"
	"github.com/nabbar/lbeacon-coordinator/bufnode"
	"github.com/nabbar/lbeacon-coordinator/classifier"
	"github.com/nabbar/lbeacon-coordinator/config"
	liberr "github.com/nabbar/lbeacon-coordinator/errors"
	"github.com/nabbar/lbeacon-coordinator/geofence"
	"github.com/nabbar/lbeacon-coordinator/handler"
	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/mempool"
	"github.com/nabbar/lbeacon-coordinator/metrics"
	"github.com/nabbar/lbeacon-coordinator/notify"
	"github.com/nabbar/lbeacon-coordinator/queue"
	"github.com/nabbar/lbeacon-coordinator/registry"
	"github.com/nabbar/lbeacon-coordinator/scheduler"
	"github.com/nabbar/lbeacon-coordinator/store/gormstore"
	"github.com/nabbar/lbeacon-coordinator/transport/udp"
	"github.com/nabbar/lbeacon-coordinator/wire"
	"github.com/nabbar/lbeacon-coordinator/workerpool"
)

// Buffer list names, shared by the classifier's routing table and the
// metrics package's per-list labels.
const (
	listNSIReceive      = "NSI-receive"
	listGeoFenceReceive = "geo-fence-receive"
	listDataReceive     = "data-receive"
	listBHMReceive      = "BHM-receive"
	listCommand         = "command"
	listNSISend         = "NSI-send"
	listBHMSend         = "BHM-send"
)

// Server owns every long-running component and the ready_to_work flag that
// every polling loop consults, per spec §5.
type Server struct {
	cfg *config.Config
	log logger.FuncLog

	readyToWork atomic.Bool

	inbound  *queue.Queue
	outbound *queue.Queue

	pool *mempool.Pool[bufnode.Node]

	gateways *registry.Map
	beacons  *registry.Map

	priority   *scheduler.PriorityList
	dispatcher *scheduler.Dispatcher
	workers    *workerpool.Pool

	classifier *classifier.Classifier
	evaluator  *geofence.Evaluator
	notifier   notify.Sender

	transport   *udp.Transport
	broadcaster *broadcast.Broadcaster

	store *gormstore.Store

	metrics *metrics.Registry
}

// New builds a Server from cfg without starting anything; call Run to start
// every component and block until ctx is cancelled.
func New(cfg *config.Config, dsn string, log logger.FuncLog) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		inbound:  queue.New(queue.DefaultCapacity),
		outbound: queue.New(queue.DefaultCapacity),
		pool:     mempool.New[bufnode.Node](cfg.NodePoolSlotsPerSlab, cfg.NodePoolMaxSlabs),
		gateways: registry.New(cfg.AddressMapCapacity, cfg.AddressMapTolerance),
		beacons:  registry.New(cfg.AddressMapCapacity, cfg.AddressMapTolerance),
		priority: scheduler.NewPriorityList(),
		workers:  workerpool.New(cfg.WorkerCount),
		metrics:  metrics.New(),
	}
	s.readyToWork.Store(true)

	st, err := gormstore.Open(gormstore.Config{
		DSN:            dsn,
		RetentionHours: cfg.DatabaseRetentionHours,
	})
	if err != nil {
		return nil, liberr.New(liberr.CodeFatalInit, err)
	}
	s.store = st

	s.notifier = notify.NewLogSender(log)

	s.evaluator = geofence.NewEvaluator(cfg.PerimeterValidDuration, s.onGeoFenceViolation)

	transport, terr := udp.New(cfg.ReceiveAddress, cfg.ReceivePort, s.inbound, s.outbound, log)
	if terr != nil {
		return nil, terr
	}
	s.transport = transport

	s.classifier = classifier.New(s.inbound, s.pool, cfg.MemoryAllocateRetries, cfg.BusyWaitingTime, log)
	s.classifier.Routed = func(listName string) { s.metrics.PacketsRouted.WithLabelValues(listName).Inc() }
	s.classifier.Dropped = func(reason string) { s.metrics.PacketsDropped.WithLabelValues(reason).Inc() }
	s.broadcaster = broadcast.New(s.outbound, s.gateways, cfg.BroadcastTrackedInterval, cfg.BroadcastHealthInterval, cfg.APIVersion, log)

	s.wireHandlers()

	s.dispatcher = scheduler.NewDispatcher(s.priority, s.workers, cfg.NiceTimeCritical, cfg.OutOfDatePacketAge, cfg.StarvationTimeout)
	s.dispatcher.Log = log
	s.dispatcher.Dropped = func(reason string) { s.metrics.PacketsDropped.WithLabelValues(reason).Inc() }
	s.dispatcher.Starved = func() { s.metrics.StarvationEvents.Inc() }

	return s, nil
}

// onGeoFenceViolation is the evaluator's ViolationCallback: it records the
// confirmed violation in the store and forwards it to the notifier.
func (s *Server) onGeoFenceViolation(mac string) {
	now := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.store.IdentifyGeoFenceViolation(ctx, mac, now); err != nil {
		s.logger().Error("recording geo-fence violation", logger.Fields{"mac": mac, "error": err.Error()})
	}

	if err := s.notifier.Send(ctx, notify.Alarm{MAC: mac, At: now}); err != nil {
		s.logger().Error("sending geo-fence notification", logger.Fields{"mac": mac, "error": err.Error()})
	}
}

// wireHandlers builds the seven buffer lists of spec §4.8/§4.9, registers
// them with the priority list, and populates the classifier's routing
// table.
func (s *Server) wireHandlers() {
	h := &handler.Set{
		Pool:        s.pool,
		Outbound:    s.outbound,
		Gateways:    s.gateways,
		Beacons:     s.beacons,
		Evaluator:   s.evaluator,
		JoinStore:   s.store,
		HealthStore: s.store,
		DataStore:   s.store,
		FenceStore:  s.store,
		APIVersion:  s.cfg.APIVersion,
		Log:         s.log,
	}

	nsiSend := scheduler.NewBufferList(listNSISend, s.cfg.NiceNormal, nil)
	bhmSend := scheduler.NewBufferList(listBHMSend, s.cfg.NiceNormal, nil)
	nsiSend.Handler = h.NSISend()
	bhmSend.Handler = h.BHMSendHandler()

	h.NSISendList = nsiSend
	h.BHMSendList = bhmSend

	nsiRecv := scheduler.NewBufferList(listNSIReceive, s.cfg.NiceHigh, h.NSI())
	geoRecv := scheduler.NewBufferList(listGeoFenceReceive, s.cfg.NiceTimeCritical, h.GeoFence())
	dataRecv := scheduler.NewBufferList(listDataReceive, s.cfg.NiceNormal, h.Data())
	bhmRecv := scheduler.NewBufferList(listBHMReceive, s.cfg.NiceLow, h.BHM())
	cmdRecv := scheduler.NewBufferList(listCommand, s.cfg.NiceHigh, h.Command())

	for _, bl := range []*scheduler.BufferList{nsiRecv, geoRecv, dataRecv, bhmRecv, cmdRecv, nsiSend, bhmSend} {
		s.priority.Register(bl)
	}
	s.priority.Sort()

	s.classifier.Route(wire.DirectionFromGateway, wire.TypeJoinRequest, nsiRecv)
	s.classifier.Route(wire.DirectionFromBeacon, wire.TypeJoinRequest, nsiRecv)
	s.classifier.Route(wire.DirectionFromGateway, wire.TypeTimeCriticalTrackedObject, geoRecv)
	s.classifier.Route(wire.DirectionFromGateway, wire.TypeTrackedObjectData, dataRecv)
	s.classifier.Route(wire.DirectionFromGateway, wire.TypeGatewayHealthReport, bhmRecv)
	s.classifier.Route(wire.DirectionFromGateway, wire.TypeBeaconHealthReport, bhmRecv)
	s.classifier.Route(wire.DirectionFromGUI, wire.TypeIPCCommand, cmdRecv)
}

func (s *Server) logger() logger.Logger {
	if s.log != nil {
		return s.log()
	}
	return logger.Discard()
}

// Ready reports whether every started component has completed its own
// startup barrier, for callers that want to wait before declaring liveness.
func (s *Server) Ready() bool {
	return s.readyToWork.Load() && s.transport.Ready() && s.dispatcher.Ready()
}

// Metrics exposes the registry for an HTTP /metrics endpoint.
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics
}

// Run starts every component and blocks until ctx is cancelled, then clears
// the ready flag and waits for the worker pool to shut down. The other
// component goroutines exit on their own once they observe the cancelled
// ctx; Run does not wait for them.
func (s *Server) Run(ctx context.Context) {
	s.logger().Info("coordinator starting", logger.Fields{
		"receive_address": s.cfg.ReceiveAddress,
		"receive_port":    s.cfg.ReceivePort,
		"workers":         s.cfg.WorkerCount,
	})

	go s.transport.Run(ctx)
	go s.classifier.Run(ctx)
	go s.dispatcher.Run(ctx)
	go s.broadcaster.Run(ctx)
	go s.runSweeper(ctx)
	go s.runVacuum(ctx)
	go s.runMetricsSampler(ctx)

	<-ctx.Done()
	s.readyToWork.Store(false)
	s.logger().Info("coordinator stopping", logger.Fields{})

	s.workers.Shutdown()
}

// runSweeper periodically releases stale address-map entries, an auxiliary
// loop per spec §5's roster.
func (s *Server) runSweeper(ctx context.Context) {
	t := time.NewTicker(s.cfg.AddressMapTolerance / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.gateways.Sweep(now)
			s.beacons.Sweep(now)
		}
	}
}

// runVacuum periodically trims the store of rows older than the configured
// retention window.
func (s *Server) runVacuum(ctx context.Context) {
	interval := time.Duration(s.cfg.DatabaseRetentionHours) * time.Hour / 24
	if interval <= 0 {
		interval = time.Hour
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	retention := time.Duration(s.cfg.DatabaseRetentionHours) * time.Hour

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			vctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := s.store.Vacuum(vctx, retention); err != nil {
				s.logger().Error("database vacuum failed", logger.Fields{"error": err.Error()})
			}
			cancel()
		}
	}
}

// runMetricsSampler refreshes the gauges that have no natural mutation
// point to update inline (pool usage, queue depth, map occupancy).
func (s *Server) runMetricsSampler(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.metrics.PoolUsage.WithLabelValues("node").Set(s.pool.UsagePercent())
			s.metrics.QueueDepth.WithLabelValues("inbound").Set(float64(s.inbound.Len()))
			s.metrics.QueueDepth.WithLabelValues("outbound").Set(float64(s.outbound.Len()))
			s.metrics.MapOccupied.Set((s.gateways.Occupancy() + s.beacons.Occupancy()) / 2)
		}
	}
}

// StatusLine renders a short human-readable liveness summary; the server
// tests assert on it.
func (s *Server) StatusLine() string {
	allocated, free, capacity := s.pool.Stats()
	return fmt.Sprintf(
		"ready=%v inbound=%d outbound=%d pool=%d/%d/%d gateways=%.0f%% beacons=%.0f%%",
		s.Ready(), s.inbound.Len(), s.outbound.Len(), allocated, free, capacity,
		s.gateways.Occupancy()*100, s.beacons.Occupancy()*100,
	)
}
