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

package handler_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/lbeacon-coordinator/bufnode"
	"github.com/nabbar/lbeacon-coordinator/geofence"
	"github.com/nabbar/lbeacon-coordinator/handler"
	"github.com/nabbar/lbeacon-coordinator/mempool"
	"github.com/nabbar/lbeacon-coordinator/queue"
	"github.com/nabbar/lbeacon-coordinator/registry"
	"github.com/nabbar/lbeacon-coordinator/scheduler"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

// fakeFenceStore backs both LoadAreas/LoadMonitoredMACs (read side of the
// command handler's reload path) and IdentifyGeoFenceViolation (write side,
// exercised indirectly through the evaluator's OnViolation callback in the
// server wiring, not by these handler-level tests).
type fakeFenceStore struct {
	areas     []geofence.Area
	monitored []string
	violated  []string
}

func (f *fakeFenceStore) LoadAreas(ctx context.Context) ([]geofence.Area, error) { return f.areas, nil }
func (f *fakeFenceStore) LoadMonitoredMACs(ctx context.Context, areaID int) ([]string, error) {
	return f.monitored, nil
}
func (f *fakeFenceStore) IdentifyGeoFenceViolation(ctx context.Context, mac string, at time.Time) error {
	f.violated = append(f.violated, mac)
	return nil
}

func newSet(t *testing.T) (*handler.Set, *mempool.Pool[bufnode.Node]) {
	t.Helper()

	pool := mempool.New[bufnode.Node](16, 1)
	s := &handler.Set{
		Pool:        pool,
		Gateways:    registry.New(4, time.Minute),
		Beacons:     registry.New(4, time.Minute),
		NSISendList: scheduler.NewBufferList("nsi-send", 0, nil),
		BHMSendList: scheduler.NewBufferList("bhm-send", 0, nil),
		APIVersion:  "2.2",
	}
	return s, pool
}

func allocNode(t *testing.T, pool *mempool.Pool[bufnode.Node], dir wire.Direction, typ wire.Type, addr string, port int, payload string) *bufnode.Node {
	t.Helper()
	n, err := pool.Alloc()
	require.NoError(t, err)
	bufnode.Reset(n)
	n.Direction = dir
	n.Type = typ
	n.SourceAddress = addr
	n.SourcePort = port
	n.Payload = []byte(payload)
	n.ReceivedAt = time.Now()
	return n
}

func TestNSIJoinRegistersGatewayAndEnqueuesAck(t *testing.T) {
	s, pool := newSet(t)
	n := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeJoinRequest, "10.0.0.1", 9000, "uuid-1")

	s.NSI()(n)

	assert.True(t, s.Gateways.InUse("10.0.0.1", "uuid-1"))

	resp := s.NSISendList.PopFront()
	require.NotNil(t, resp)
	assert.Equal(t, wire.TypeJoinResponse, resp.Type)
	assert.Equal(t, strconv.Itoa(wire.JoinAck)+";", string(resp.Payload))
}

func TestNSIJoinDeniesWhenMapFull(t *testing.T) {
	s, pool := newSet(t)
	s.Gateways = registry.New(1, time.Minute)
	require.NoError(t, s.Gateways.Join("10.0.0.9", 1, "", "2.2", time.Now()))

	n := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeJoinRequest, "10.0.0.1", 9000, "uuid-1")
	s.NSI()(n)

	resp := s.NSISendList.PopFront()
	require.NotNil(t, resp)
	assert.Equal(t, strconv.Itoa(wire.JoinDeny)+";", string(resp.Payload))
}

func TestNSIFreesTheInboundNodeAndAllocatesOneResponse(t *testing.T) {
	s, pool := newSet(t)
	n := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeJoinRequest, "10.0.0.1", 9000, "uuid-1")

	before, _, _ := pool.Stats()
	s.NSI()(n)
	after, _, _ := pool.Stats()

	assert.Equal(t, before, after, "one node freed, one allocated for the response: net zero")
}

func TestBHMRefreshesAddressMapEntry(t *testing.T) {
	s, pool := newSet(t)
	require.NoError(t, s.Gateways.Join("10.0.0.1", 9000, "", "2.2", time.Now().Add(-time.Hour)))

	n := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeGatewayHealthReport, "10.0.0.1", 9000, "10.5;40.0;3.7;3600")
	s.BHM()(n)

	snap := s.Gateways.Snapshot()
	require.Len(t, snap, 1)
	assert.WithinDuration(t, time.Now(), snap[0].LastReportedAt, time.Second)
}

func TestGeoFenceHandlerEvaluatesAndFiresViolation(t *testing.T) {
	s, pool := newSet(t)

	var violated string
	s.Evaluator = geofence.NewEvaluator(10*time.Second, func(mac string) { violated = mac })
	s.Evaluator.ReplaceAreas([]geofence.Area{{
		ID: 1,
		Settings: []geofence.Setting{{
			PerimeterBeaconUUIDs: []string{"0001perimeter"},
			PerimeterRSSI:        -70,
			FenceBeaconUUIDs:     []string{"0001fence"},
			FenceRSSI:            -60,
			Active:               true,
		}},
	}})
	s.Evaluator.ReplaceMonitored(1, []string{"aa:bb:cc:dd:ee:ff"})

	perimeterPayload := "0001perimeter;2024-01-01T00:00:00;10.0.0.5;0;1;aa:bb:cc:dd:ee:ff;t1;t2;-50;0;80;"
	fencePayload := "0001fence;2024-01-01T00:00:01;10.0.0.5;0;1;aa:bb:cc:dd:ee:ff;t1;t2;-50;0;80;"

	n1 := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeTimeCriticalTrackedObject, "10.0.0.5", 9000, perimeterPayload)
	s.GeoFence()(n1)

	n2 := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeTimeCriticalTrackedObject, "10.0.0.5", 9000, fencePayload)
	s.GeoFence()(n2)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", violated)
}

func TestCommandReloadGeoFenceSettingsAndMonitoredObjectsWireTheEvaluator(t *testing.T) {
	var violated string
	fence := &fakeFenceStore{
		areas: []geofence.Area{{
			ID: 7,
			Settings: []geofence.Setting{{
				PerimeterBeaconUUIDs: []string{"0007perimeter"},
				PerimeterRSSI:        -70,
				FenceBeaconUUIDs:     []string{"0007fence"},
				FenceRSSI:            -60,
				Active:               true,
			}},
		}},
		monitored: []string{"aa:bb:cc:dd:ee:ff"},
	}

	s, pool := newSet(t)
	s.FenceStore = fence
	s.Evaluator = geofence.NewEvaluator(10*time.Second, func(mac string) { violated = mac })

	reload := allocNode(t, pool, wire.DirectionFromGUI, wire.TypeIPCCommand, "127.0.0.1", 1, strconv.Itoa(handler.CommandReloadGeoFenceSettings))
	s.Command()(reload)

	monitor := allocNode(t, pool, wire.DirectionFromGUI, wire.TypeIPCCommand, "127.0.0.1", 1, strconv.Itoa(handler.CommandReloadMonitoredObjects)+";7")
	s.Command()(monitor)

	n1 := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeTimeCriticalTrackedObject, "10.0.0.5", 9000, "0007perimeter;dt;ip;0;1;aa:bb:cc:dd:ee:ff;t1;t2;-50;0;80;")
	s.GeoFence()(n1)
	n2 := allocNode(t, pool, wire.DirectionFromGateway, wire.TypeTimeCriticalTrackedObject, "10.0.0.5", 9000, "0007fence;dt;ip;0;1;aa:bb:cc:dd:ee:ff;t1;t2;-50;0;80;")
	s.GeoFence()(n2)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", violated, "command handler must have loaded the area and monitored MAC from the fence store")
}

func TestCommandUnknownCodeIsIgnored(t *testing.T) {
	s, pool := newSet(t)
	n := allocNode(t, pool, wire.DirectionFromGUI, wire.TypeIPCCommand, "127.0.0.1", 1, "999")

	require.NotPanics(t, func() { s.Command()(n) })
}

func TestSendHandlerEnqueuesWireEncodedPayload(t *testing.T) {
	s, pool := newSet(t)
	s.Outbound = queue.New(8)

	n := allocNode(t, pool, wire.DirectionFromServer, wire.TypeJoinResponse, "10.0.0.1", 9000, strconv.Itoa(wire.JoinAck)+";")
	s.NSISend()(n)

	p := s.Outbound.Dequeue()
	require.False(t, p.Empty)
	assert.Equal(t, "10.0.0.1", p.Address)
	assert.Equal(t, 9000, p.Port)

	hdr, err := wire.Decode(p.Payload)
	require.NoError(t, err)
	assert.Equal(t, wire.DirectionFromServer, hdr.Direction)
	assert.Equal(t, wire.TypeJoinResponse, hdr.Type)
	assert.Equal(t, strconv.Itoa(wire.JoinAck)+";", hdr.Payload)
}
