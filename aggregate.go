// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.8
//

package gnssir

import (
	"time"

	"golang.org/x/exp/slices"
)

// Aggregator folds decoded per-satellite update records into the current
// epoch state. It is single-owner: exactly one goroutine calls Apply, Prune
// and Snapshot, so no internal locking is needed. Consumers only ever see
// the immutable copies returned by Snapshot.
type Aggregator struct {
	systems    []SysType     // target constellations; others dropped
	staleAfter time.Duration // satellites not refreshed within this window are pruned

	sats map[SatType]*SatelliteState
	time GTime // epoch time of the most recent applied update
}

func NewAggregator(systems []SysType, staleAfter time.Duration) *Aggregator {
	return &Aggregator{
		systems:    systems,
		staleAfter: staleAfter,
		sats:       map[SatType]*SatelliteState{},
	}
}

// Apply merges one update record into the aggregate state. Records for
// systems outside the target set are dropped. Returns whether the record
// was accepted.
func (p *Aggregator) Apply(rec UpdateRecord, now time.Time) bool {
	sys := rec.Sat.Sys()
	if len(p.systems) > 0 && !slices.Contains(p.systems, sys) {
		return false
	}

	st, ok := p.sats[rec.Sat]
	if !ok {
		st = &SatelliteState{
			Sat:     rec.Sat,
			Signals: map[SignalID]SignalData{},
		}
		p.sats[rec.Sat] = st
	}
	st.Elev = rec.Elev
	st.Azim = rec.Azim
	if !rec.Pos.IsZero() {
		st.Pos = rec.Pos
	}
	for id, sig := range rec.Signals {
		st.Signals[id] = sig
	}
	st.UpdatedAt = now

	if p.time.Less(rec.Time) {
		p.time = rec.Time
	}
	return true
}

// Prune removes satellites not updated within the staleness window.
// Returns the pruned satellite names.
func (p *Aggregator) Prune(now time.Time) []SatType {
	var removed []SatType
	cutoff := now.Add(-p.staleAfter)
	for sat, st := range p.sats {
		if st.UpdatedAt.Before(cutoff) {
			delete(p.sats, sat)
			removed = append(removed, sat)
		}
	}
	return removed
}

// Snapshot publishes an immutable deep copy of the current state tagged with
// the latest epoch time. Later Apply calls never alter a published snapshot.
func (p *Aggregator) Snapshot() *EpochSnapshot {
	snap := &EpochSnapshot{
		Time: p.time,
		Sats: make(map[SatType]*SatelliteState, len(p.sats)),
	}
	for sat, st := range p.sats {
		snap.Sats[sat] = st.clone()
	}
	return snap
}

// Size returns the number of tracked satellites.
func (p *Aggregator) Size() int {
	return len(p.sats)
}
