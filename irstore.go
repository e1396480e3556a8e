// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.14
//

// Time-windowed store of masked observables for GNSS-IR analysis.

package gnssir

import (
	"golang.org/x/exp/slices"
)

// IrSample is one retained observable for reflectometry analysis.
type IrSample struct {
	Tow         float64  // GPS time of week [s]
	Sat         SatType  // Satellite name, e.g. "G01"
	Sys         SysType  // Satellite system
	SignalID    SignalID // Signal identifier, e.g. "1C"
	Snr         float64  // [dB-Hz]
	Phase       float64  // [cycle]
	Pseudorange float64  // [m]
	Azim        float64  // [deg]
	Elev        float64  // [deg]
}

// IrStoreOpt configures the acceptance masks and retention window.
type IrStoreOpt struct {
	MinElevDeg  float64
	MaxElevDeg  float64
	AzWindows   []AzWindow // empty means all azimuths accepted
	Systems     []SysType  // empty means all systems accepted
	KeepSeconds float64    // retention window relative to the newest sample
}

// NewIrStoreOpt creates an IrStoreOpt with default values
func NewIrStoreOpt() *IrStoreOpt {
	return &IrStoreOpt{
		MinElevDeg:  DefaultMinElevation,
		MaxElevDeg:  DefaultMaxElevation,
		KeepSeconds: DefaultKeepSeconds,
	}
}

// IrStore keeps a rolling window of masked observations. Samples are held in
// insertion order, so eviction is a pop from the head. Like the Aggregator
// it is single-owner: one goroutine calls AddEpoch, and queries return
// copies, so no internal locking is needed.
//
// Memory is bounded by KeepSeconds times the accepted-sample rate.
type IrStore struct {
	opt  *IrStoreOpt
	data []IrSample
}

func NewIrStore(opt *IrStoreOpt) *IrStore {
	if opt == nil {
		opt = NewIrStoreOpt()
	}
	return &IrStore{opt: opt}
}

// AddEpoch filters and appends observations from one published snapshot,
// then evicts samples older than KeepSeconds behind the newest retained tow.
// Returns the number of samples accepted.
func (p *IrStore) AddEpoch(snap *EpochSnapshot) int {
	tow := snap.Time.Sec
	accepted := 0

	for _, sat := range snap.Satellites() {
		st := snap.Sats[sat]
		sys := sat.Sys()
		if len(p.opt.Systems) > 0 && !slices.Contains(p.opt.Systems, sys) {
			continue
		}
		if st.Elev < p.opt.MinElevDeg || st.Elev > p.opt.MaxElevDeg {
			continue
		}
		if !p.azAllowed(st.Azim) {
			continue
		}

		ids := make([]SignalID, 0, len(st.Signals))
		for id := range st.Signals {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			sig := st.Signals[id]
			if sig.Snr <= 0 {
				continue
			}
			p.data = append(p.data, IrSample{
				Tow:         tow,
				Sat:         sat,
				Sys:         sys,
				SignalID:    id,
				Snr:         sig.Snr,
				Phase:       sig.Phase,
				Pseudorange: sig.Pseudorange,
				Azim:        st.Azim,
				Elev:        st.Elev,
			})
			accepted++
		}
	}

	p.evict()
	return accepted
}

// azAllowed checks the azimuth against the configured windows.
// No windows means everything is accepted.
func (p *IrStore) azAllowed(az float64) bool {
	if len(p.opt.AzWindows) == 0 {
		return true
	}
	for i := range p.opt.AzWindows {
		if p.opt.AzWindows[i].Contains(az) {
			return true
		}
	}
	return false
}

// evict drops samples older than KeepSeconds relative to the newest sample.
func (p *IrStore) evict() {
	if len(p.data) == 0 {
		return
	}
	cutoff := p.data[len(p.data)-1].Tow - p.opt.KeepSeconds
	i := 0
	for i < len(p.data) && p.data[i].Tow < cutoff {
		i++
	}
	if i > 0 {
		p.data = append(p.data[:0], p.data[i:]...)
	}
}

// Series returns the retained samples matching the filters, in insertion
// order. Zero-valued filters match everything.
func (p *IrStore) Series(sat SatType, sys SysType, signalID SignalID) []IrSample {
	out := []IrSample{}
	for _, s := range p.data {
		if sat != "" && s.Sat != sat {
			continue
		}
		if sys != 0 && s.Sys != sys {
			continue
		}
		if signalID != "" && s.SignalID != signalID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Size returns the number of retained samples.
func (p *IrStore) Size() int {
	return len(p.data)
}
