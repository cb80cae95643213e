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

package registry_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
	"github.com/nabbar/lbeacon-coordinator/registry"
)

func TestJoinThenRefreshUpdatesSameSlot(t *testing.T) {
	m := registry.New(4, time.Minute)
	now := time.Now()

	require.NoError(t, m.Join("10.0.0.1", 9000, "", "2.2", now))
	require.NoError(t, m.Join("10.0.0.1", 9001, "", "2.2", now.Add(time.Second)))

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 9001, snap[0].Port)
}

func TestJoinFailsWhenMapIsFull(t *testing.T) {
	m := registry.New(2, time.Minute)
	now := time.Now()

	require.NoError(t, m.Join("10.0.0.1", 1, "", "2.2", now))
	require.NoError(t, m.Join("10.0.0.2", 1, "", "2.2", now))

	err := m.Join("10.0.0.3", 1, "", "2.2", now)
	require.Error(t, err)
	assert.True(t, err.IsCode(liberr.CodeProtocolDenial))
}

func TestUniqueIdentifiersAcrossInUseSlots(t *testing.T) {
	m := registry.New(16, time.Minute)
	now := time.Now()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Join(fmt.Sprintf("10.0.0.%d", i), 1, "", "2.2", now))
	}

	seen := make(map[string]bool)
	for _, e := range m.Snapshot() {
		assert.False(t, seen[e.Address], "duplicate identifier in map")
		seen[e.Address] = true
	}
}

func TestSweepReleasesOnlyExpiredEntries(t *testing.T) {
	m := registry.New(4, 10*time.Second)
	t0 := time.Now()

	require.NoError(t, m.Join("10.0.0.1", 1, "", "2.2", t0))
	require.NoError(t, m.Join("10.0.0.2", 1, "", "2.2", t0.Add(20*time.Second)))

	released := m.Sweep(t0.Add(20 * time.Second))

	assert.Equal(t, 1, released)
	assert.False(t, m.InUse("10.0.0.1", ""))
	assert.True(t, m.InUse("10.0.0.2", ""))
}

func TestOccupancyReflectsInUseFraction(t *testing.T) {
	m := registry.New(4, time.Minute)
	assert.Equal(t, 0.0, m.Occupancy())

	require.NoError(t, m.Join("10.0.0.1", 1, "", "2.2", time.Now()))
	assert.Equal(t, 0.25, m.Occupancy())
}

func TestBeaconsAreIdentifiedByUUIDNotAddress(t *testing.T) {
	m := registry.New(4, time.Minute)
	now := time.Now()

	require.NoError(t, m.Join("10.0.0.1", 1, "uuid-a", "2.2", now))
	require.NoError(t, m.Join("10.0.0.1", 1, "uuid-b", "2.2", now))

	assert.Len(t, m.Snapshot(), 2, "same address with distinct UUIDs must occupy distinct slots")
}
