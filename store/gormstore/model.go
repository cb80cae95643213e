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

// Package gormstore is the one concrete implementation of the store
// interfaces, backed by gorm.io/gorm against SQLite - standing in for the
// out-of-scope SQL wrapper collaborator named in spec §1. Schema and
// migration strategy are deliberately minimal: the load-bearing contract
// for the core is the store interface, not this package's internals.
package gormstore

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config is the DSN and retention policy for the gorm-backed store.
type Config struct {
	DSN            string
	RetentionHours int
	SkipMigrate    bool
	SilentGormLog  bool
}

type joinEvent struct {
	ID         uint `gorm:"primarykey"`
	Address    string
	UUID       string
	APIVersion string
	At         time.Time
}

type healthEvent struct {
	ID            uint `gorm:"primarykey"`
	SourceAddress string
	IsBeacon      bool
	CPUUsage      float64
	MemoryUsage   float64
	BatteryVolt   float64
	UptimeSeconds int64
	At            time.Time
}

type trackedObjectEvent struct {
	ID         uint `gorm:"primarykey"`
	BeaconUUID string
	MAC        string
	RSSI       int
	Panic      bool
	BatteryMv  int
	At         time.Time
}

type fenceSettingRow struct {
	ID            uint `gorm:"primarykey"`
	AreaID        int
	SettingID     int
	Name          string
	Perimeters    string // semicolon-joined UUIDs
	PerimeterRSSI int
	Fences        string // semicolon-joined UUIDs
	FenceRSSI     int
	Active        bool
}

type fenceObjectRow struct {
	ID     uint `gorm:"primarykey"`
	AreaID int
	MAC    string
}

type fenceViolationEvent struct {
	ID  uint `gorm:"primarykey"`
	MAC string
	At  time.Time
}

// Store implements store.JoinStore, store.HealthStore,
// store.TrackedObjectStore and store.GeoFenceStore against one *gorm.DB.
type Store struct {
	db *gorm.DB
}

// Open connects to the database per cfg and migrates the schema unless
// SkipMigrate is set.
func Open(cfg Config) (*Store, error) {
	gcfg := &gorm.Config{}
	if cfg.SilentGormLog {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), gcfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}

	if !cfg.SkipMigrate {
		if err := db.AutoMigrate(
			&joinEvent{}, &healthEvent{}, &trackedObjectEvent{},
			&fenceSettingRow{}, &fenceObjectRow{}, &fenceViolationEvent{},
		); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Vacuum deletes rows older than olderThan, standing in for
// the periodic database-maintenance auxiliary worker of spec §2.
func (s *Store) Vacuum(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)

	if err := s.db.WithContext(ctx).Where("at < ?", cutoff).Delete(&healthEvent{}).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("at < ?", cutoff).Delete(&trackedObjectEvent{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("at < ?", cutoff).Delete(&fenceViolationEvent{}).Error
}
