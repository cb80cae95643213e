/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package config parses the server's key=value configuration file into the
// typed result schema the packet-routing core consults. Parsing itself is
// delegated to viper; this package owns only the shape of the result and
// the defaults applied when a key is absent.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Nice values, lower is higher priority, matching the four buffer-list
// classes the scheduler sorts into.
const (
	NiceTimeCritical = 0
	NiceHigh         = 5
	NiceNormal       = 10
	NiceLow          = 15
)

// Config is the result schema produced by Load. Every field the core
// consults per spec §6 has a default so a missing key never panics.
type Config struct {
	ReceiveAddress string
	ReceivePort    int
	SendPort       int

	WorkerCount int

	NiceTimeCritical int
	NiceHigh         int
	NiceNormal       int
	NiceLow          int

	OutOfDatePacketAge time.Duration
	StarvationTimeout  time.Duration

	BroadcastTrackedInterval time.Duration
	BroadcastHealthInterval  time.Duration

	AddressMapTolerance time.Duration
	AddressMapCapacity  int

	PerimeterValidDuration time.Duration

	DatabaseRetentionHours int

	NodePoolSlotsPerSlab int
	NodePoolMaxSlabs     int

	MemoryAllocateRetries int
	BusyWaitingTime       time.Duration

	APIVersion string

	FeatureGeoFence     bool
	FeatureNotification bool

	LogLevel    string
	LogFilePath string
}

// Default returns the Config produced by Load against an empty file: every
// field filled with the value the original BOT-Server-Lite ships in its
// sample config, translated into Go duration/int types.
func Default() *Config {
	return &Config{
		ReceiveAddress: "0.0.0.0",
		ReceivePort:    8888,
		SendPort:       8889,

		WorkerCount: 4,

		NiceTimeCritical: NiceTimeCritical,
		NiceHigh:         NiceHigh,
		NiceNormal:       NiceNormal,
		NiceLow:          NiceLow,

		OutOfDatePacketAge: 30 * time.Second,
		StarvationTimeout:  600 * time.Second,

		BroadcastTrackedInterval: 5 * time.Second,
		BroadcastHealthInterval:  30 * time.Second,

		AddressMapTolerance: 300 * time.Second,
		AddressMapCapacity:  4096,

		PerimeterValidDuration: 10 * time.Second,

		DatabaseRetentionHours: 720,

		NodePoolSlotsPerSlab: 256,
		NodePoolMaxSlabs:     10,

		MemoryAllocateRetries: 5,
		BusyWaitingTime:       10 * time.Millisecond,

		APIVersion: "2.2",

		FeatureGeoFence:     true,
		FeatureNotification: true,

		LogLevel: "info",
	}
}

// Load parses the key=value file at path into a Config, starting from
// Default and overriding only the keys present in the file. Unknown keys
// are ignored, matching spec §6's "unknown keys are ignored" contract.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	apply(v, cfg)
	return cfg, nil
}

func apply(v *viper.Viper, cfg *Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	i := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	b := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	sec := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = time.Duration(v.GetInt64(key)) * time.Second
		}
	}
	ms := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = time.Duration(v.GetInt64(key)) * time.Millisecond
		}
	}

	str("server_ip", &cfg.ReceiveAddress)
	i("recv_port", &cfg.ReceivePort)
	i("send_port", &cfg.SendPort)
	i("number_worker_threads", &cfg.WorkerCount)

	i("priority_nice_time_critical", &cfg.NiceTimeCritical)
	i("priority_nice_high", &cfg.NiceHigh)
	i("priority_nice_normal", &cfg.NiceNormal)
	i("priority_nice_low", &cfg.NiceLow)

	sec("min_age_out_of_date_packet_in_sec", &cfg.OutOfDatePacketAge)
	sec("max_starvation_time_in_sec", &cfg.StarvationTimeout)

	sec("periodic_tracked_object_interval_in_sec", &cfg.BroadcastTrackedInterval)
	sec("periodic_health_report_interval_in_sec", &cfg.BroadcastHealthInterval)

	sec("gateway_timeout_in_sec", &cfg.AddressMapTolerance)
	i("address_map_capacity", &cfg.AddressMapCapacity)

	sec("perimeter_valid_duration_in_sec", &cfg.PerimeterValidDuration)

	i("database_retention_hours", &cfg.DatabaseRetentionHours)

	i("memory_pool_slots_per_slab", &cfg.NodePoolSlotsPerSlab)
	i("memory_pool_max_slabs", &cfg.NodePoolMaxSlabs)

	i("memory_allocate_retries", &cfg.MemoryAllocateRetries)
	ms("busy_waiting_time_in_ms", &cfg.BusyWaitingTime)

	str("api_version", &cfg.APIVersion)

	b("enable_geofence", &cfg.FeatureGeoFence)
	b("enable_notification", &cfg.FeatureNotification)

	str("log_level", &cfg.LogLevel)
	str("log_file", &cfg.LogFilePath)
}
