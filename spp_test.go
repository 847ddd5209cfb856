// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSppPosConvergesFromZero(t *testing.T) {
	sc := newPPPScenario()
	s := NewSession(NewPPPOpt()) // No position or clock seed

	tm := GTime{Week: 2295, Sec: 172830}
	obse := sc.observe(tm)
	pvs := sc.nav.Eph.Positions(tm, obse.Data)

	require.NoError(t, s.sppPos(tm, obse.Data, pvs, sc.nav))
	assert.Equal(t, SolSingle, s.Sol.Stat)
	assert.Equal(t, 6, s.Sol.NS)

	dx := s.Sol.Pos.X - sc.truth.X
	dy := s.Sol.Pos.Y - sc.truth.Y
	dz := s.Sol.Pos.Z - sc.truth.Z
	assert.Less(t, math.Sqrt(dx*dx+dy*dy+dz*dz), 0.5)
	assert.InDelta(t, sc.dtr, s.Sol.Dtr[0], 1e-9)

	for _, sat := range sc.sats {
		assert.True(t, s.Sat[sat].VS, "sat %s not valid", sat)
		assert.Greater(t, s.Sat[sat].Azel[1], s.Opt.ElMask)
	}
}

func TestSppPosExcludesOutlier(t *testing.T) {
	sc := newPPPScenario()
	s := newPPPSession(sc)

	tm := GTime{Week: 2295, Sec: 172830}
	obse := sc.observe(tm)
	bad := sc.sats[0]
	obse.Data[0].P[0] += 300
	obse.Data[0].P[1] += 300
	pvs := sc.nav.Eph.Positions(tm, obse.Data)

	require.NoError(t, s.sppPos(tm, obse.Data, pvs, sc.nav))
	assert.Equal(t, 5, s.Sol.NS)
	// The excluded satellite stays valid; the filter gates it on its own.
	assert.True(t, s.Sat[bad].VS)

	dx := s.Sol.Pos.X - sc.truth.X
	dy := s.Sol.Pos.Y - sc.truth.Y
	dz := s.Sol.Pos.Z - sc.truth.Z
	assert.Less(t, math.Sqrt(dx*dx+dy*dy+dz*dz), 0.5)
}

func TestSppPosTooFewSatellites(t *testing.T) {
	sc := newPPPScenario()
	s := newPPPSession(sc)

	tm := GTime{Week: 2295, Sec: 172830}
	obse := sc.observe(tm)
	obse.Data = obse.Data[:3]
	pvs := sc.nav.Eph.Positions(tm, obse.Data)

	assert.Error(t, s.sppPos(tm, obse.Data, pvs, sc.nav))
}

func TestSppPosVelocityFromDifferencing(t *testing.T) {
	sc := newPPPScenario()
	s := newPPPSession(sc)

	t0 := GTime{Week: 2295, Sec: 172830}
	obse := sc.observe(t0)
	require.NoError(t, s.sppPos(t0, obse.Data, sc.nav.Eph.Positions(t0, obse.Data), sc.nav))
	assert.Zero(t, s.Sol.Vel[0], "no previous fix to difference against")

	// The receiver moves 30 m in X over a 30 s epoch interval.
	sc.truth.X += 30
	s.TT = 30
	t1 := GTime{Week: 2295, Sec: 172860}
	obse = sc.observe(t1)
	require.NoError(t, s.sppPos(t1, obse.Data, sc.nav.Eph.Positions(t1, obse.Data), sc.nav))
	assert.InDelta(t, 1.0, s.Sol.Vel[0], 0.05)
	assert.InDelta(t, 0.0, s.Sol.Vel[1], 0.05)
	assert.InDelta(t, 0.0, s.Sol.Vel[2], 0.05)
}
