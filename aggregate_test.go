// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.18
//

package gnssir_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	m "github.com/mkhts/gnssir"
)

func updateRec(sat m.SatType, tow float64, sig m.SignalID, pr float64) m.UpdateRecord {
	return m.UpdateRecord{
		Stream: "rover",
		Time:   m.GTime{Week: 2330, Sec: tow},
		Sat:    sat,
		Elev:   35,
		Azim:   120,
		Pos:    m.PosXYZ{X: 1.5e7, Y: 1.1e7, Z: 1.9e7},
		Signals: map[m.SignalID]m.SignalData{
			sig: {Pseudorange: pr, Snr: 45, Valid: true},
		},
	}
}

func Test_aggregatorApply(t *testing.T) {
	assert := assert.New(t)

	agg := m.NewAggregator([]m.SysType{'G', 'C'}, 5*time.Second)
	now := time.Now()

	assert.True(agg.Apply(updateRec("G01", 100, "1C", 2.2e7), now))
	assert.True(agg.Apply(updateRec("C08", 100, "2I", 2.3e7), now))
	// Outside the target system set
	assert.False(agg.Apply(updateRec("R11", 100, "1C", 2.1e7), now))
	assert.Equal(2, agg.Size())

	// Signals from separate records accumulate on the same satellite
	assert.True(agg.Apply(updateRec("G01", 101, "2W", 2.2e7), now))
	snap := agg.Snapshot()
	assert.Len(snap.Sats["G01"].Signals, 2)
	assert.Equal(101.0, snap.Time.Sec)
}

func Test_aggregatorKeepsPosition(t *testing.T) {
	assert := assert.New(t)

	agg := m.NewAggregator(nil, 5*time.Second)
	now := time.Now()

	agg.Apply(updateRec("G01", 100, "1C", 2.2e7), now)

	// A record without a satellite position must not wipe the known one
	rec := updateRec("G01", 101, "1C", 2.2e7)
	rec.Pos = m.PosXYZ{}
	agg.Apply(rec, now)

	snap := agg.Snapshot()
	assert.False(snap.Sats["G01"].Pos.IsZero())
}

func Test_aggregatorPrune(t *testing.T) {
	assert := assert.New(t)

	agg := m.NewAggregator(nil, 5*time.Second)
	t0 := time.Now()

	agg.Apply(updateRec("G01", 100, "1C", 2.2e7), t0)
	agg.Apply(updateRec("G02", 100, "1C", 2.2e7), t0.Add(3*time.Second))

	// Only the satellite beyond the staleness window goes away
	removed := agg.Prune(t0.Add(6 * time.Second))
	assert.Equal([]m.SatType{"G01"}, removed)
	assert.Equal(1, agg.Size())

	assert.Empty(agg.Prune(t0.Add(6 * time.Second)))
}

func Test_aggregatorSnapshotImmutable(t *testing.T) {
	assert := assert.New(t)

	agg := m.NewAggregator(nil, 5*time.Second)
	now := time.Now()

	agg.Apply(updateRec("G01", 100, "1C", 2.2e7), now)
	snap := agg.Snapshot()

	// Mutations after publication never show up in the snapshot
	rec := updateRec("G01", 200, "2W", 2.25e7)
	rec.Elev = 80
	agg.Apply(rec, now)

	assert.Equal(35.0, snap.Sats["G01"].Elev)
	assert.Len(snap.Sats["G01"].Signals, 1)
	assert.Equal(100.0, snap.Time.Sec)
}
