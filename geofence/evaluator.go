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

package geofence

import (
	"strings"
	"sync"
	"time"

	"github.com/nabbar/lbeacon-coordinator/wire"
)

// ViolationCallback is invoked once a perimeter hit is confirmed by a
// subsequent fence hit within PerimeterValidDuration - the core's only
// contact point with the database collaborator's
// identify_geofence_violation, per spec §4.10.
type ViolationCallback func(mac string)

// Evaluator holds the areas, their object-under-monitor sets and the
// short-lived perimeter-violation list, all guarded by one mutex per
// spec §5's "geo-fence-list lock".
type Evaluator struct {
	PerimeterValidDuration time.Duration
	OnViolation            ViolationCallback

	mu         sync.Mutex
	areas      map[int]Area
	monitored  map[int]map[string]struct{}
	violations map[string]time.Time // mac -> perimeter_violation_timestamp
}

// NewEvaluator builds an Evaluator with no areas registered; use
// ReplaceAreas and ReplaceMonitored (or Reload) to populate it.
func NewEvaluator(perimeterValidDuration time.Duration, onViolation ViolationCallback) *Evaluator {
	return &Evaluator{
		PerimeterValidDuration: perimeterValidDuration,
		OnViolation:            onViolation,
		areas:                  make(map[int]Area),
		monitored:              make(map[int]map[string]struct{}),
		violations:             make(map[string]time.Time),
	}
}

// ReplaceAreas atomically swaps the in-memory geo-fence list, used by the
// command handler's "reload geo-fence settings" path (spec §4.9).
func (e *Evaluator) ReplaceAreas(areas []Area) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.areas = make(map[int]Area, len(areas))
	for _, a := range areas {
		e.areas[a.ID] = a
	}
}

// ReplaceMonitored atomically swaps the per-area monitored-MAC sets.
func (e *Evaluator) ReplaceMonitored(areaID int, macs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := make(map[string]struct{}, len(macs))
	for _, m := range macs {
		set[strings.ToLower(m)] = struct{}{}
	}
	e.monitored[areaID] = set
}

func (e *Evaluator) isMonitored(areaID int, mac string) bool {
	set, ok := e.monitored[areaID]
	if !ok {
		return false
	}
	_, ok = set[mac]
	return ok
}

// sweepLocked drops any perimeter violation older than
// PerimeterValidDuration, relative to now. Must be called with mu held.
func (e *Evaluator) sweepLocked(now time.Time) {
	for mac, ts := range e.violations {
		if now.Sub(ts) > e.PerimeterValidDuration {
			delete(e.violations, mac)
		}
	}
}

// Evaluate runs the perimeter-then-fence protocol of spec §4.10 against
// one parsed tracked-object payload, under the geo-fence-list lock.
func (e *Evaluator) Evaluate(payload wire.TrackedObjectPayload, now time.Time) {
	areaID, err := wire.AreaID(payload.BeaconUUID)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sweepLocked(now)

	area, ok := e.areas[areaID]
	if !ok {
		return
	}

	for _, setting := range area.Settings {
		if !setting.Active {
			continue
		}

		isPerimeter := setting.IsPerimeterBeacon(payload.BeaconUUID)
		isFence := setting.IsFenceBeacon(payload.BeaconUUID)

		if !isPerimeter && !isFence {
			continue
		}

		for _, block := range payload.Blocks {
			for _, obj := range block.Objects {
				if !e.isMonitored(areaID, obj.MAC) {
					continue
				}

				if isPerimeter && obj.RSSI >= setting.PerimeterRSSI {
					e.violations[obj.MAC] = now
				}

				if isFence && obj.RSSI >= setting.FenceRSSI {
					ts, seen := e.violations[obj.MAC]
					if seen && now.Sub(ts) <= e.PerimeterValidDuration {
						delete(e.violations, obj.MAC)
						if e.OnViolation != nil {
							e.OnViolation(obj.MAC)
						}
					}
				}
			}
		}
	}
}

// ViolationAge reports how long ago mac's perimeter record was set, for
// tests; the second return is false when no record is currently held.
func (e *Evaluator) ViolationAge(mac string, now time.Time) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.violations[strings.ToLower(mac)]
	if !ok {
		return 0, false
	}
	return now.Sub(ts), true
}
