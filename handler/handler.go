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

// Package handler holds the seven packet handlers of spec §4.9, each bound
// to exactly one buffer list by the server's wiring. Every handler receives
// one bufnode.Node, does bounded work and frees the node back to the pool
// before returning, per the buffer-node ownership invariant.
package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/lbeacon-coordinator/bufnode"
	liberr "github.com/nabbar/lbeacon-coordinator/errors"
	"github.com/nabbar/lbeacon-coordinator/geofence"
	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/mempool"
	"github.com/nabbar/lbeacon-coordinator/queue"
	"github.com/nabbar/lbeacon-coordinator/registry"
	"github.com/nabbar/lbeacon-coordinator/scheduler"
	"github.com/nabbar/lbeacon-coordinator/store"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

// Set bundles every collaborator the seven handlers close over, built once
// by the server; its methods (NSI, BHM, Data, GeoFence, Command, NSISend,
// BHMSendHandler) build the handlers.
type Set struct {
	Pool     *mempool.Pool[bufnode.Node]
	Outbound *queue.Queue
	Gateways *registry.Map
	Beacons  *registry.Map

	// Evaluator's OnViolation callback is wired by the server to the fence
	// store and the notification sender; handlers only feed it packets.
	Evaluator *geofence.Evaluator

	JoinStore   store.JoinStore
	HealthStore store.HealthStore
	DataStore   store.TrackedObjectStore
	FenceStore  store.GeoFenceStore

	NSISendList *scheduler.BufferList
	BHMSendList *scheduler.BufferList

	APIVersion string

	Log logger.FuncLog
}

func (s *Set) log() logger.Logger {
	if s.Log != nil {
		return s.Log()
	}
	return logger.Discard()
}

func (s *Set) free(n *bufnode.Node) {
	if err := s.Pool.Free(n); err != nil {
		s.log().Error("freeing buffer node", logger.Fields{"error": err.Error()})
	}
}

// NSI builds the join handler: it inserts the gateway or beacon into the
// right address map, then enqueues a join-response node onto NSI-send. It
// never fails outward - denials are carried in the response status, per
// spec §4.9.
func (s *Set) NSI() scheduler.Handler {
	return func(n *bufnode.Node) {
		defer s.free(n)

		fields := strings.SplitN(string(n.Payload), ";", 2)
		uuid := ""
		if len(fields) > 0 {
			uuid = fields[0]
		}

		target := s.Gateways
		if n.Direction == wire.DirectionFromBeacon {
			target = s.Beacons
		}

		now := time.Now()
		status := wire.JoinAck
		if err := target.Join(n.SourceAddress, n.SourcePort, uuid, strconv.FormatFloat(n.APIVersion, 'f', -1, 64), now); err != nil {
			status = wire.JoinDeny
			s.log().Warn("join denied", logger.Fields{"address": n.SourceAddress, "error": err.Error()})
		}

		if s.JoinStore != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.JoinStore.RecordJoin(ctx, n.SourceAddress, uuid, s.APIVersion, now); err != nil {
				s.log().Error("recording join", logger.Fields{"error": err.Error()})
			}
			cancel()
		}

		out, aerr := s.Pool.Alloc()
		if aerr != nil {
			s.log().Warn("dropping join-response: pool exhausted", logger.Fields{"error": aerr.Error()})
			return
		}
		bufnode.Reset(out)

		out.Direction = wire.DirectionFromServer
		out.Type = wire.TypeJoinResponse
		out.APIVersion = n.APIVersion
		out.SourceAddress = n.SourceAddress
		out.SourcePort = n.SourcePort
		out.Payload = []byte(strconv.Itoa(status) + ";")
		out.ReceivedAt = now

		s.NSISendList.Push(out)
	}
}

// BHM builds the health-report handler: it refreshes the reporting peer's
// address-map slot, then dispatches to the health store by packet type.
func (s *Set) BHM() scheduler.Handler {
	return func(n *bufnode.Node) {
		defer s.free(n)

		isBeacon := n.Type == wire.TypeBeaconHealthReport

		target := s.Gateways
		if isBeacon {
			target = s.Beacons
		}
		target.Refresh(n.SourceAddress, "", time.Now())

		r, err := parseHealthReport(n.Payload, n.SourceAddress, isBeacon, n.ReceivedAt)
		if err != nil {
			s.log().Debug("dropping malformed health report", logger.Fields{"error": err.Error()})
			return
		}

		if s.HealthStore == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.HealthStore.RecordHealth(ctx, r); err != nil {
			s.log().Error("recording health report", logger.Fields{"error": err.Error()})
		}
	}
}

// parseHealthReport parses the semicolon-delimited
// cpu;memory;battery_volt;uptime_seconds payload body.
func parseHealthReport(payload []byte, address string, isBeacon bool, at time.Time) (store.HealthReport, liberr.Error) {
	fields := strings.Split(string(payload), ";")
	if len(fields) < 4 {
		return store.HealthReport{}, liberr.Newf(liberr.CodeMalformedInput, "health report too short")
	}

	cpu, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return store.HealthReport{}, liberr.New(liberr.CodeMalformedInput, err)
	}
	mem, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return store.HealthReport{}, liberr.New(liberr.CodeMalformedInput, err)
	}
	batt, _ := strconv.ParseFloat(fields[2], 64)
	uptime, _ := strconv.ParseInt(fields[3], 10, 64)

	return store.HealthReport{
		SourceAddress: address,
		IsBeacon:      isBeacon,
		CPUUsage:      cpu,
		MemoryUsage:   mem,
		BatteryVolt:   batt,
		UptimeSeconds: uptime,
		At:            at,
	}, nil
}

// Data builds the tracked-object-data handler: persists every detected
// object, battery voltage included, to the data store.
func (s *Set) Data() scheduler.Handler {
	return func(n *bufnode.Node) {
		defer s.free(n)
		s.recordTrackedObjects(n)
	}
}

// GeoFence builds the time-critical-tracked-object-data handler: runs the
// geo-fence evaluator, then dispatches to the same store path as Data.
func (s *Set) GeoFence() scheduler.Handler {
	return func(n *bufnode.Node) {
		defer s.free(n)

		payload, err := wire.ParseTrackedObject(string(n.Payload))
		if err != nil {
			s.log().Debug("dropping malformed time-critical tracked-object packet", logger.Fields{"error": err.Error()})
			return
		}

		if s.Evaluator != nil {
			s.Evaluator.Evaluate(payload, n.ReceivedAt)
		}

		s.recordParsedTrackedObjects(payload)
	}
}

func (s *Set) recordTrackedObjects(n *bufnode.Node) {
	payload, err := wire.ParseTrackedObject(string(n.Payload))
	if err != nil {
		s.log().Debug("dropping malformed tracked-object packet", logger.Fields{"error": err.Error()})
		return
	}
	s.recordParsedTrackedObjects(payload)
}

func (s *Set) recordParsedTrackedObjects(payload wire.TrackedObjectPayload) {
	if s.DataStore == nil {
		return
	}

	var records []store.TrackedObjectRecord
	for _, block := range payload.Blocks {
		for _, obj := range block.Objects {
			records = append(records, store.TrackedObjectRecord{
				BeaconUUID: payload.BeaconUUID,
				MAC:        obj.MAC,
				RSSI:       obj.RSSI,
				Panic:      obj.Panic,
				BatteryMv:  obj.Battery,
				At:         time.Now(),
			})
		}
	}
	if len(records) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.DataStore.RecordTrackedObjects(ctx, records); err != nil {
		s.log().Error("recording tracked objects", logger.Fields{"error": err.Error()})
	}
}

// Command codes carried as the first field of an ipc-command payload.
const (
	CommandReloadGeoFenceSettings = 1
	CommandReloadMonitoredObjects = 2
)

// Command builds the ipc-command handler: "reload geo-fence settings" asks
// the geo-fence store for the refreshed list and swaps it into the
// evaluator in place.
func (s *Set) Command() scheduler.Handler {
	return func(n *bufnode.Node) {
		defer s.free(n)

		fields := strings.SplitN(string(n.Payload), ";", 2)
		code, err := strconv.Atoi(fields[0])
		if err != nil {
			s.log().Debug("dropping malformed ipc command", logger.Fields{"error": err.Error()})
			return
		}

		switch code {
		case CommandReloadGeoFenceSettings:
			s.reloadGeoFenceSettings()
		case CommandReloadMonitoredObjects:
			areaID := 0
			if len(fields) > 1 {
				areaID, _ = strconv.Atoi(fields[1])
			}
			s.reloadMonitoredObjects(areaID)
		default:
			s.log().Debug("unknown ipc command code", logger.Fields{"code": code})
		}
	}
}

func (s *Set) reloadGeoFenceSettings() {
	if s.FenceStore == nil || s.Evaluator == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	areas, err := s.FenceStore.LoadAreas(ctx)
	if err != nil {
		s.log().Error("reloading geo-fence settings", logger.Fields{"error": err.Error()})
		return
	}
	s.Evaluator.ReplaceAreas(areas)
}

func (s *Set) reloadMonitoredObjects(areaID int) {
	if s.FenceStore == nil || s.Evaluator == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	macs, err := s.FenceStore.LoadMonitoredMACs(ctx, areaID)
	if err != nil {
		s.log().Error("reloading monitored objects", logger.Fields{"area_id": areaID, "error": err.Error()})
		return
	}
	s.Evaluator.ReplaceMonitored(areaID, macs)
}

// sendHandler builds a handler that renders the node's own direction, type
// and payload into wire form and enqueues it on Outbound - shared by the
// NSI-send and BHM-send buffer lists of spec §4.9.
func (s *Set) sendHandler() scheduler.Handler {
	return func(n *bufnode.Node) {
		defer s.free(n)

		raw := wire.Encode(n.Direction, n.Type, s.APIVersion, string(n.Payload))
		if err := s.Outbound.Enqueue(n.SourceAddress, n.SourcePort, raw); err != nil {
			s.log().Warn("dropping outbound packet", logger.Fields{"error": err.Error()})
		}
	}
}

// NSISend builds the NSI-send handler.
func (s *Set) NSISend() scheduler.Handler { return s.sendHandler() }

// BHMSendHandler builds the BHM-send handler.
func (s *Set) BHMSendHandler() scheduler.Handler { return s.sendHandler() }
