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

package wire

import (
	"strconv"
	"strings"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
)

// DeviceClass distinguishes the device-class blocks of a tracked-object
// payload (BR/EDR or BLE), taken from each block's object_type field.
type DeviceClass int

const (
	DeviceClassBREDR DeviceClass = iota
	DeviceClassBLE
)

// DetectedObject is one MAC observation inside a tracked-object-data block.
type DetectedObject struct {
	MAC       string
	TSInitial string
	TSFinal   string
	RSSI      int
	Panic     bool
	Battery   int
}

// TrackedObjectBlock groups the detections of one device class.
type TrackedObjectBlock struct {
	Class   DeviceClass
	Objects []DetectedObject
}

// TrackedObjectPayload is the parsed body of a tracked-object-data or
// time-critical-tracked-object-data packet.
type TrackedObjectPayload struct {
	BeaconUUID string
	DateTime   string
	BeaconIP   string
	Blocks     []TrackedObjectBlock
}

// ParseTrackedObject parses the grammar:
//
//	uuid ";" datetime ";" beacon_ip ";"
//	{ object_type ";" count ";" { mac ";" ts_i ";" ts_f ";" rssi ";" panic ";" battery ";" }×count }×2
//
// At most two blocks are read; parsing stops early, without error, at the
// end of the payload or at an empty object_type field, so a payload with
// fewer than two blocks is accepted.
func ParseTrackedObject(payload string) (TrackedObjectPayload, liberr.Error) {
	fields := strings.Split(payload, ";")

	if len(fields) < 3 {
		return TrackedObjectPayload{}, liberr.Newf(liberr.CodeMalformedInput, "tracked-object payload too short")
	}

	out := TrackedObjectPayload{
		BeaconUUID: fields[0],
		DateTime:   fields[1],
		BeaconIP:   fields[2],
	}

	idx := 3
	for block := 0; block < 2 && idx < len(fields); block++ {
		if fields[idx] == "" {
			break
		}

		objType, err := strconv.Atoi(fields[idx])
		if err != nil {
			return TrackedObjectPayload{}, liberr.New(liberr.CodeMalformedInput, err)
		}
		idx++

		if idx >= len(fields) {
			return TrackedObjectPayload{}, liberr.Newf(liberr.CodeMalformedInput, "missing count field")
		}

		count, err := strconv.Atoi(fields[idx])
		if err != nil {
			return TrackedObjectPayload{}, liberr.New(liberr.CodeMalformedInput, err)
		}
		idx++

		b := TrackedObjectBlock{Class: DeviceClass(objType)}

		for n := 0; n < count; n++ {
			if idx+6 > len(fields) {
				return TrackedObjectPayload{}, liberr.Newf(liberr.CodeMalformedInput, "truncated detection record")
			}

			rssi, err := strconv.Atoi(fields[idx+3])
			if err != nil {
				return TrackedObjectPayload{}, liberr.New(liberr.CodeMalformedInput, err)
			}

			battery, _ := strconv.Atoi(fields[idx+5])

			b.Objects = append(b.Objects, DetectedObject{
				MAC:       strings.ToLower(fields[idx]),
				TSInitial: fields[idx+1],
				TSFinal:   fields[idx+2],
				RSSI:      rssi,
				Panic:     fields[idx+4] == "1",
				Battery:   battery,
			})

			idx += 6
		}

		out.Blocks = append(out.Blocks, b)
	}

	return out, nil
}

// AreaID extracts the area id: the integer value of the first four hex
// digits of a beacon UUID.
func AreaID(beaconUUID string) (int, liberr.Error) {
	if len(beaconUUID) < 4 {
		return 0, liberr.Newf(liberr.CodeMalformedInput, "uuid too short for area id: %q", beaconUUID)
	}

	v, err := strconv.ParseInt(beaconUUID[:4], 16, 32)
	if err != nil {
		return 0, liberr.New(liberr.CodeMalformedInput, err)
	}

	return int(v), nil
}
