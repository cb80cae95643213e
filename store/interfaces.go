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

// Package store defines the persistence boundary the packet handlers call
// across: relational-database persistence of gateways, beacons, tracking
// data and geo-fence violations is explicitly out of scope for the core
// (spec §1), so only the interfaces are load-bearing here. The gormstore
// sub-package gives them one concrete, runnable implementation.
package store

import (
	"context"
	"time"

	"github.com/nabbar/lbeacon-coordinator/geofence"
)

// JoinStore persists gateway/beacon registration events.
type JoinStore interface {
	RecordJoin(ctx context.Context, address, uuid, apiVersion string, at time.Time) error
}

// HealthReport is the payload of a gateway or beacon health report.
type HealthReport struct {
	SourceAddress string
	IsBeacon      bool
	CPUUsage      float64
	MemoryUsage   float64
	BatteryVolt   float64
	UptimeSeconds int64
	At            time.Time
}

// HealthStore persists gateway and beacon health reports.
type HealthStore interface {
	RecordHealth(ctx context.Context, r HealthReport) error
}

// TrackedObjectRecord is one detected-MAC observation ready for
// persistence, battery voltage included per spec §4.9's data handler.
type TrackedObjectRecord struct {
	BeaconUUID string
	MAC        string
	RSSI       int
	Panic      bool
	BatteryMv  int
	At         time.Time
}

// TrackedObjectStore persists tracked-object-data and
// time-critical-tracked-object-data observations.
type TrackedObjectStore interface {
	RecordTrackedObjects(ctx context.Context, records []TrackedObjectRecord) error
}

// GeoFenceStore supplies the reloadable geo-fence configuration and
// records confirmed fence violations.
type GeoFenceStore interface {
	LoadAreas(ctx context.Context) ([]geofence.Area, error)
	LoadMonitoredMACs(ctx context.Context, areaID int) ([]string, error)
	IdentifyGeoFenceViolation(ctx context.Context, mac string, at time.Time) error
}
