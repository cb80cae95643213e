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

package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/nabbar/lbeacon-coordinator/geofence"
	"github.com/nabbar/lbeacon-coordinator/store"
)

// RecordJoin implements store.JoinStore.
func (s *Store) RecordJoin(ctx context.Context, address, uuid, apiVersion string, at time.Time) error {
	return s.db.WithContext(ctx).Create(&joinEvent{
		Address: address, UUID: uuid, APIVersion: apiVersion, At: at,
	}).Error
}

// RecordHealth implements store.HealthStore.
func (s *Store) RecordHealth(ctx context.Context, r store.HealthReport) error {
	return s.db.WithContext(ctx).Create(&healthEvent{
		SourceAddress: r.SourceAddress,
		IsBeacon:      r.IsBeacon,
		CPUUsage:      r.CPUUsage,
		MemoryUsage:   r.MemoryUsage,
		BatteryVolt:   r.BatteryVolt,
		UptimeSeconds: r.UptimeSeconds,
		At:            r.At,
	}).Error
}

// RecordTrackedObjects implements store.TrackedObjectStore.
func (s *Store) RecordTrackedObjects(ctx context.Context, records []store.TrackedObjectRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]trackedObjectEvent, 0, len(records))
	for _, r := range records {
		rows = append(rows, trackedObjectEvent{
			BeaconUUID: r.BeaconUUID,
			MAC:        r.MAC,
			RSSI:       r.RSSI,
			Panic:      r.Panic,
			BatteryMv:  r.BatteryMv,
			At:         r.At,
		})
	}

	return s.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// LoadAreas implements store.GeoFenceStore, reassembling the geofence.Area
// tree from the flat fenceSettingRow table.
func (s *Store) LoadAreas(ctx context.Context) ([]geofence.Area, error) {
	var rows []fenceSettingRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	byArea := make(map[int][]geofence.Setting)
	for _, r := range rows {
		byArea[r.AreaID] = append(byArea[r.AreaID], geofence.Setting{
			ID:                   r.SettingID,
			Name:                 r.Name,
			PerimeterBeaconUUIDs: splitNonEmpty(r.Perimeters),
			PerimeterRSSI:        r.PerimeterRSSI,
			FenceBeaconUUIDs:     splitNonEmpty(r.Fences),
			FenceRSSI:            r.FenceRSSI,
			Active:               r.Active,
		})
	}

	areas := make([]geofence.Area, 0, len(byArea))
	for id, settings := range byArea {
		areas = append(areas, geofence.Area{ID: id, Settings: settings})
	}

	return areas, nil
}

// LoadMonitoredMACs implements store.GeoFenceStore.
func (s *Store) LoadMonitoredMACs(ctx context.Context, areaID int) ([]string, error) {
	var rows []fenceObjectRow
	if err := s.db.WithContext(ctx).Where("area_id = ?", areaID).Find(&rows).Error; err != nil {
		return nil, err
	}

	macs := make([]string, 0, len(rows))
	for _, r := range rows {
		macs = append(macs, r.MAC)
	}
	return macs, nil
}

// IdentifyGeoFenceViolation implements store.GeoFenceStore.
func (s *Store) IdentifyGeoFenceViolation(ctx context.Context, mac string, at time.Time) error {
	return s.db.WithContext(ctx).Create(&fenceViolationEvent{MAC: mac, At: at}).Error
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	for _, v := range strings.Split(s, ";") {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
