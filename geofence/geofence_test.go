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

package geofence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/lbeacon-coordinator/geofence"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

const (
	perimeterUUID = "0001perimeter000000000000000000"
	fenceUUID     = "0001fence00000000000000000000000"
	monitoredMAC  = "aa:bb:cc:dd:ee:ff"
)

func payloadFrom(beaconUUID string, mac string, rssi int) wire.TrackedObjectPayload {
	return wire.TrackedObjectPayload{
		BeaconUUID: beaconUUID,
		Blocks: []wire.TrackedObjectBlock{{
			Class: wire.DeviceClassBLE,
			Objects: []wire.DetectedObject{
				{MAC: mac, RSSI: rssi},
			},
		}},
	}
}

func newSingleAreaEvaluator(perimeterValid time.Duration, onViolation geofence.ViolationCallback) *geofence.Evaluator {
	e := geofence.NewEvaluator(perimeterValid, onViolation)
	e.ReplaceAreas([]geofence.Area{{
		ID: 0x0001,
		Settings: []geofence.Setting{{
			ID:                   1,
			PerimeterBeaconUUIDs: []string{perimeterUUID},
			PerimeterRSSI:        -70,
			FenceBeaconUUIDs:     []string{fenceUUID},
			FenceRSSI:            -60,
			Active:               true,
		}},
	}})
	e.ReplaceMonitored(0x0001, []string{monitoredMAC})
	return e
}

func TestPerimeterThenFenceWithinWindowFiresViolation(t *testing.T) {
	var fired string
	e := newSingleAreaEvaluator(10*time.Second, func(mac string) { fired = mac })

	now := time.Now()
	e.Evaluate(payloadFrom(perimeterUUID, monitoredMAC, -50), now)
	e.Evaluate(payloadFrom(fenceUUID, monitoredMAC, -50), now.Add(2*time.Second))

	assert.Equal(t, monitoredMAC, fired)
}

func TestFenceHitAfterPerimeterWindowExpiresDoesNotFire(t *testing.T) {
	var fired bool
	e := newSingleAreaEvaluator(5*time.Second, func(mac string) { fired = true })

	now := time.Now()
	e.Evaluate(payloadFrom(perimeterUUID, monitoredMAC, -50), now)
	e.Evaluate(payloadFrom(fenceUUID, monitoredMAC, -50), now.Add(10*time.Second))

	assert.False(t, fired)
}

func TestFenceHitWithoutPriorPerimeterDoesNotFire(t *testing.T) {
	var fired bool
	e := newSingleAreaEvaluator(10*time.Second, func(mac string) { fired = true })

	e.Evaluate(payloadFrom(fenceUUID, monitoredMAC, -50), time.Now())

	assert.False(t, fired)
}

func TestUnmonitoredMACNeverFires(t *testing.T) {
	var fired bool
	e := newSingleAreaEvaluator(10*time.Second, func(mac string) { fired = true })

	now := time.Now()
	e.Evaluate(payloadFrom(perimeterUUID, "00:00:00:00:00:00", -50), now)
	e.Evaluate(payloadFrom(fenceUUID, "00:00:00:00:00:00", -50), now.Add(time.Second))

	assert.False(t, fired)
}

func TestWeakRSSIBelowThresholdDoesNotRecordPerimeterHit(t *testing.T) {
	var fired bool
	e := newSingleAreaEvaluator(10*time.Second, func(mac string) { fired = true })

	now := time.Now()
	e.Evaluate(payloadFrom(perimeterUUID, monitoredMAC, -90), now)
	e.Evaluate(payloadFrom(fenceUUID, monitoredMAC, -50), now.Add(time.Second))

	assert.False(t, fired)
}

func TestViolationFiresOnlyOncePerPerimeterHit(t *testing.T) {
	count := 0
	e := newSingleAreaEvaluator(10*time.Second, func(mac string) { count++ })

	now := time.Now()
	e.Evaluate(payloadFrom(perimeterUUID, monitoredMAC, -50), now)
	e.Evaluate(payloadFrom(fenceUUID, monitoredMAC, -50), now.Add(time.Second))
	e.Evaluate(payloadFrom(fenceUUID, monitoredMAC, -50), now.Add(2*time.Second))

	assert.Equal(t, 1, count)
}

func TestReplaceAreasSwapsConfigurationAtomically(t *testing.T) {
	e := geofence.NewEvaluator(time.Second, nil)
	e.ReplaceAreas([]geofence.Area{{ID: 1}})
	e.ReplaceAreas([]geofence.Area{{ID: 2}})

	require.NotPanics(t, func() {
		e.Evaluate(payloadFrom("0001x", "mac", 0), time.Now())
	})
}

func TestSettingBeaconMatchIsCaseInsensitive(t *testing.T) {
	s := geofence.Setting{PerimeterBeaconUUIDs: []string{"ABCDEF"}}
	assert.True(t, s.IsPerimeterBeacon("abcdef"))
}
