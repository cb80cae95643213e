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

// Package geofence evaluates tracked-object packets against the configured
// perimeter/fence settings, maintaining the short-lived perimeter-violation
// list that gates fence-violation callbacks - a Go translation of the
// original design's Geo-Fencing.c / GeoFence.c.
package geofence

import "strings"

// Setting is one fence configuration within an area: a shared RSSI
// threshold for its perimeter beacons and another for its fence beacons.
type Setting struct {
	ID   int
	Name string

	PerimeterBeaconUUIDs []string
	PerimeterRSSI        int

	FenceBeaconUUIDs []string
	FenceRSSI        int

	Active bool
}

func containsFold(list []string, uuid string) bool {
	for _, v := range list {
		if strings.EqualFold(v, uuid) {
			return true
		}
	}
	return false
}

// IsPerimeterBeacon reports whether uuid is one of this setting's
// perimeter beacons.
func (s Setting) IsPerimeterBeacon(uuid string) bool {
	return containsFold(s.PerimeterBeaconUUIDs, uuid)
}

// IsFenceBeacon reports whether uuid is one of this setting's fence
// beacons.
func (s Setting) IsFenceBeacon(uuid string) bool {
	return containsFold(s.FenceBeaconUUIDs, uuid)
}

// Area groups every fence setting derived from one beacon-UUID area id.
type Area struct {
	ID       int
	Settings []Setting
}
