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

// Package registry is the fixed-size address map of registered gateways
// (and, for the beacon variant, LBeacons): a flat array, not a hashtable,
// because the configured capacity is small enough that a linear scan beats
// hashing overhead - a direct translation of the original design's
// NetworkAddressMap.
package registry

import (
	"sync"
	"time"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
)

// Entry is one slot of the address map.
type Entry struct {
	InUse          bool
	Address        string
	Port           int
	UUID           string
	APIVersion     string
	LastReportedAt time.Time
}

// Map is the fixed-capacity array of Entry, keyed by UUID when one is given
// and by network address otherwise, guarded by a single mutex.
type Map struct {
	mu        sync.RWMutex
	entries   []Entry
	tolerance time.Duration
}

// New allocates a Map with room for capacity entries. A capacity of zero
// falls back to spec §3's N = 4096.
func New(capacity int, tolerance time.Duration) *Map {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Map{entries: make([]Entry, capacity), tolerance: tolerance}
}

func (m *Map) identifier(address, uuid string) string {
	if uuid != "" {
		return uuid
	}
	return address
}

// Join performs spec §4.7's join_request: refresh-on-match, else
// first-free-slot, else CodeProtocolDenial when the map is full. port is
// the peer's source port observed on the join datagram, kept so later
// broadcasts know where to reach the gateway again.
func (m *Map) Join(address string, port int, uuid, apiVersion string, now time.Time) liberr.Error {
	id := m.identifier(address, uuid)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].InUse && m.identifier(m.entries[i].Address, m.entries[i].UUID) == id {
			m.entries[i].LastReportedAt = now
			m.entries[i].Port = port
			return nil
		}
	}

	for i := range m.entries {
		if !m.entries[i].InUse {
			m.entries[i] = Entry{
				InUse:          true,
				Address:        address,
				Port:           port,
				UUID:           uuid,
				APIVersion:     apiVersion,
				LastReportedAt: now,
			}
			return nil
		}
	}

	return liberr.Newf(liberr.CodeProtocolDenial, "address map full: all %d slots in use", len(m.entries))
}

// Refresh updates the last-reported timestamp for an already-registered
// identifier. It is a no-op (not an error) when the identifier is unknown,
// matching "every inbound packet from a known address refreshes the slot".
func (m *Map) Refresh(address, uuid string, now time.Time) {
	id := m.identifier(address, uuid)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].InUse && m.identifier(m.entries[i].Address, m.entries[i].UUID) == id {
			m.entries[i].LastReportedAt = now
			return
		}
	}
}

// Sweep releases every entry whose last-reported timestamp is older than
// the configured tolerance, relative to now.
func (m *Map) Sweep(now time.Time) (released int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].InUse && now.Sub(m.entries[i].LastReportedAt) > m.tolerance {
			m.entries[i] = Entry{}
			released++
		}
	}

	return released
}

// InUse reports whether the given identifier currently holds a slot.
func (m *Map) InUse(address, uuid string) bool {
	id := m.identifier(address, uuid)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.entries {
		if m.entries[i].InUse && m.identifier(m.entries[i].Address, m.entries[i].UUID) == id {
			return true
		}
	}

	return false
}

// Snapshot returns a copy of every in-use entry, for the periodic
// broadcasters to fan out to.
func (m *Map) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.InUse {
			out = append(out, e)
		}
	}
	return out
}

// Occupancy reports the fraction of slots currently in use, for the
// metrics package's gauge.
func (m *Map) Occupancy() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return 0
	}

	used := 0
	for _, e := range m.entries {
		if e.InUse {
			used++
		}
	}

	return float64(used) / float64(len(m.entries))
}
