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

package gormstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/lbeacon-coordinator/store"
	"github.com/nabbar/lbeacon-coordinator/store/gormstore"
)

func openTestStore(t *testing.T) *gormstore.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "coordinator.sqlite")
	s, err := gormstore.Open(gormstore.Config{DSN: dsn, SilentGormLog: true})
	require.NoError(t, err)
	return s
}

func TestRecordJoinPersistsWithoutError(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordJoin(context.Background(), "10.0.0.1", "uuid-1", "2.2", time.Now())
	assert.NoError(t, err)
}

func TestRecordHealthPersistsWithoutError(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordHealth(context.Background(), store.HealthReport{
		SourceAddress: "10.0.0.1",
		IsBeacon:      false,
		CPUUsage:      10.5,
		MemoryUsage:   40.0,
		BatteryVolt:   3.7,
		UptimeSeconds: 3600,
		At:            time.Now(),
	})
	assert.NoError(t, err)
}

func TestRecordTrackedObjectsBatchesAllRecords(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordTrackedObjects(context.Background(), []store.TrackedObjectRecord{
		{BeaconUUID: "0001abc", MAC: "aa:bb:cc:dd:ee:ff", RSSI: -50, At: time.Now()},
		{BeaconUUID: "0001abc", MAC: "11:22:33:44:55:66", RSSI: -60, At: time.Now()},
	})
	assert.NoError(t, err)
}

func TestRecordTrackedObjectsOfEmptySliceIsNoOp(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.RecordTrackedObjects(context.Background(), nil))
}

func TestLoadAreasWithoutFenceSettingsIsEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IdentifyGeoFenceViolation(ctx, "aa:bb:cc:dd:ee:ff", time.Now()))

	areas, err := s.LoadAreas(ctx)
	require.NoError(t, err)
	assert.Empty(t, areas, "no fence settings were seeded, so no areas should be reassembled")
}

func TestLoadMonitoredMACsOfUnknownAreaIsEmpty(t *testing.T) {
	s := openTestStore(t)
	macs, err := s.LoadMonitoredMACs(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, macs)
}

func TestIdentifyGeoFenceViolationPersistsWithoutError(t *testing.T) {
	s := openTestStore(t)
	err := s.IdentifyGeoFenceViolation(context.Background(), "aa:bb:cc:dd:ee:ff", time.Now())
	assert.NoError(t, err)
}

func TestVacuumWithRowsOnBothSidesOfRetentionSucceeds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.RecordHealth(ctx, store.HealthReport{SourceAddress: "10.0.0.1", At: old}))
	require.NoError(t, s.RecordHealth(ctx, store.HealthReport{SourceAddress: "10.0.0.2", At: time.Now()}))

	require.NoError(t, s.Vacuum(ctx, 24*time.Hour))
}

func TestStoreSatisfiesEveryCoreInterface(t *testing.T) {
	s := openTestStore(t)
	var (
		_ store.JoinStore          = s
		_ store.HealthStore        = s
		_ store.TrackedObjectStore = s
		_ store.GeoFenceStore      = s
	)
}
