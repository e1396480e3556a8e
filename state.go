// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.6
//

package gnssir

import (
	"strconv"
	"time"
)

// Type representing satellite name like "G10"
type SatType string

// Type representing satellite system like 'G'
type SysType byte

// Type representing signal/code identifier like "1C", "2W"
type SignalID string

// Extract satellite system from satellite name
func (p *SatType) Sys() SysType {
	if len(*p) == 0 {
		return 0
	}
	return SysType((*p)[0])
}

// Check validity of satellite system
func (p *SysType) IsValid() bool {
	return *p == 'G' || *p == 'J' || *p == 'E' || *p == 'R' || *p == 'C' || *p == 'S'
}

// Extract satellite number from satellite name
func (p *SatType) Num() int {
	if len(*p) < 3 {
		return 0
	}
	i, err := strconv.Atoi(string((*p)[1:3]))
	if err != nil {
		return 0
	}
	return i
}

// Observation data for one frequency/code of one satellite.
// Produced by the external decoder and never modified afterwards.
type SignalData struct {
	Pseudorange float64 // Pseudorange [m], > 0 when usable
	Phase       float64 // Carrier phase [cycle]
	Snr         float64 // Signal strength [dB-Hz]
	Doppler     float64 // Doppler frequency [Hz]
	LockTime    int     // Lock time indicator
	Valid       bool    // Whether the pseudorange passed decoder checks
}

// State of one satellite as merged from decoder updates.
// Written only by the Aggregator; consumers see deep copies in snapshots.
type SatelliteState struct {
	Sat       SatType                  // Satellite name, e.g. "G01"
	Elev      float64                  // Elevation [deg]
	Azim      float64                  // Azimuth [deg], 0-360
	Pos       PosXYZ                   // Satellite ECEF position [m]
	Signals   map[SignalID]SignalData  // Observations keyed by signal identifier
	UpdatedAt time.Time                // Wall-clock time of the last update
}

func (s *SatelliteState) clone() *SatelliteState {
	c := *s
	c.Signals = make(map[SignalID]SignalData, len(s.Signals))
	for id, sig := range s.Signals {
		c.Signals[id] = sig
	}
	return &c
}

// Decoded per-satellite record crossing the decoder boundary.
// One record updates one satellite of one stream.
type UpdateRecord struct {
	Stream  string                  `json:"stream"`
	Time    GTime                   `json:"time"`
	Sat     SatType                 `json:"sat"`
	Elev    float64                 `json:"elev"`
	Azim    float64                 `json:"azim"`
	Pos     PosXYZ                  `json:"pos"`
	Signals map[SignalID]SignalData `json:"signals"`
}

// Immutable point-in-time view of all tracked satellites.
// Produced fresh by the Aggregator each refresh cycle; safe to share.
type EpochSnapshot struct {
	Time GTime
	Sats map[SatType]*SatelliteState
}

// Return map keys as sorted slice
func (p *EpochSnapshot) Satellites() []SatType {
	keys := make([]SatType, 0, len(p.Sats))
	for sat := range p.Sats {
		keys = append(keys, sat)
	}
	return Sorted(keys)
}
