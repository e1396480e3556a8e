// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.18
//

package gnssir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	m "github.com/mkhts/gnssir"
)

func Test_llhXyzRoundTrip(t *testing.T) {
	assert := assert.New(t)

	llh := m.NewPosLLH(m.ToRad(36.1), m.ToRad(140.08), 150.0)
	xyz := llh.ToXYZ()
	back := xyz.ToLLH()

	// Bowring's single-pass formula is exact to well below a millimeter
	assert.InDelta(llh.Lat, back.Lat, 1e-9)
	assert.InDelta(llh.Lon, back.Lon, 1e-9)
	assert.InDelta(llh.Hei, back.Hei, 1e-4)
}

func Test_xyzToLLHKnownPoint(t *testing.T) {
	assert := assert.New(t)

	// GSI Tsukuba station, rounded
	xyz := m.NewPosXYZ(-3957199.0, 3310199.0, 3737713.0)
	llh := xyz.ToLLH()

	assert.InDelta(36.1, m.ToDeg(llh.Lat), 0.1)
	assert.InDelta(140.08, m.ToDeg(llh.Lon), 0.1)
}

func Test_enuRoundTrip(t *testing.T) {
	assert := assert.New(t)

	base := m.NewPosLLH(m.ToRad(35.0), m.ToRad(139.0), 50.0).ToXYZ()
	enu := m.NewPosENU(120.0, -80.0, 35.0)
	xyz := enu.ToXYZ(base)
	back := xyz.ToENU(base)

	assert.InDelta(enu.E, back.E, 1e-6)
	assert.InDelta(enu.N, back.N, 1e-6)
	assert.InDelta(enu.U, back.U, 1e-6)
}

func Test_elevationAzimuth(t *testing.T) {
	assert := assert.New(t)

	base := m.NewPosLLH(m.ToRad(35.0), m.ToRad(139.0), 50.0).ToXYZ()

	// A satellite straight up has 90 deg elevation
	up := m.NewPosENU(0, 0, 2e7).ToXYZ(base)
	assert.InDelta(90.0, m.ToDeg(base.Elevation(up)), 1e-6)

	// Due east at the horizon: azimuth 90, elevation ~0
	east := m.NewPosENU(2e7, 0, 0).ToXYZ(base)
	assert.InDelta(90.0, m.ToDeg(base.Azimuth(east)), 1e-6)
	assert.InDelta(0.0, m.ToDeg(base.Elevation(east)), 1e-6)
}

func Test_posXyzIsZero(t *testing.T) {
	assert := assert.New(t)

	var zero m.PosXYZ
	assert.True(zero.IsZero())
	pos := m.PosXYZ{X: 1}
	assert.False(pos.IsZero())
}

func Test_satTypeHelpers(t *testing.T) {
	assert := assert.New(t)

	sat := m.SatType("G05")
	assert.Equal(m.SysType('G'), sat.Sys())
	assert.Equal(5, sat.Num())

	sys := sat.Sys()
	assert.True(sys.IsValid())
	bad := m.SysType('X')
	assert.False(bad.IsValid())

	sats := []m.SatType{"C01", "G08", "E11", "G01", "R07"}
	assert.Equal([]m.SatType{"G01", "G08", "E11", "R07", "C01"}, m.Sorted(sats))
}
