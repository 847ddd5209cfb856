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

func TestUdPosModes(t *testing.T) {
	site := PosLLH{Lat: ToRad(35), Lon: ToRad(139), Hei: 50}
	pos := site.ToXYZ()

	t.Run("kinematic reseeds every epoch", func(t *testing.T) {
		s := NewSession(NewPPPOpt())
		s.Sol.Pos = pos
		s.udPos()
		assert.InDelta(t, pos.X, s.Float.X.AtVec(0), 1e-9)
		assert.InDelta(t, VarPos, s.Float.P.At(0, 0), 1e-9)

		s.Sol.Pos.X += 10
		s.udPos()
		assert.InDelta(t, pos.X+10, s.Float.X.AtVec(0), 1e-9)
		assert.InDelta(t, VarPos, s.Float.P.At(1, 1), 1e-9)
	})

	t.Run("static walks the covariance", func(t *testing.T) {
		opt := NewPPPOpt()
		opt.Mode = ModeStatic
		opt.PrnPos = 0.01
		s := NewSession(opt)
		s.Sol.Pos = pos
		s.udPos()
		p0 := s.Float.P.At(0, 0)

		s.TT = 30
		s.udPos()
		assert.InDelta(t, pos.X, s.Float.X.AtVec(0), 1e-9, "state value held")
		assert.InDelta(t, p0+SQ(0.01)*30, s.Float.P.At(0, 0), 1e-12)
	})

	t.Run("fixed pins the coordinates", func(t *testing.T) {
		opt := NewPPPOpt()
		opt.Mode = ModeFixed
		opt.FixedPos = pos
		s := NewSession(opt)
		s.udPos()
		assert.InDelta(t, pos.Z, s.Float.X.AtVec(2), 1e-9)
		assert.InDelta(t, 1e-8, s.Float.P.At(2, 2), 1e-15)
	})
}

func TestUdClkSeedsFromSolution(t *testing.T) {
	s := NewSession(NewPPPOpt())
	s.Sol.Dtr[0] = 2e-9
	s.Sol.Dtr[1] = 1e-9 // GLONASS ISB, relative to the GPS clock

	s.udClk()
	assert.InDelta(t, C*2e-9, s.Float.X.AtVec(s.L.IC(0)), 1e-9)
	assert.InDelta(t, C*3e-9, s.Float.X.AtVec(s.L.IC(1)), 1e-9)
	assert.InDelta(t, C*2e-9, s.Float.X.AtVec(s.L.IC(2)), 1e-9)
	for i := 0; i < NSys; i++ {
		assert.True(t, s.Float.Initialized(s.L.IC(i)))
		assert.InDelta(t, VarClk, s.Float.P.At(s.L.IC(i), s.L.IC(i)), 1e-9)
	}
}

func TestUdTrop(t *testing.T) {
	s := NewSession(NewPPPOpt())
	site := PosLLH{Lat: ToRad(35), Lon: ToRad(139), Hei: 50}
	s.Sol.Pos = site.ToXYZ()
	s.Sol.Time = GTime{Week: 2295, Sec: 172800}

	s.udTrop()
	i := s.L.IT()
	ztd, v := TropSBASCorr(s.Sol.Time, s.Sol.Pos.ToLLH(), [2]float64{0, PI / 2})
	assert.InDelta(t, ztd, s.Float.X.AtVec(i), 1e-9)
	assert.InDelta(t, v, s.Float.P.At(i, i), 1e-9)

	s.TT = 30
	s.udTrop()
	assert.InDelta(t, ztd, s.Float.X.AtVec(i), 1e-9)
	assert.InDelta(t, v+SQ(s.Opt.PrnTrop)*30, s.Float.P.At(i, i), 1e-12)
}

func TestUdIonoSeedsFromGeometry(t *testing.T) {
	opt := NewPPPOpt()
	opt.IonoModel = IonoEst
	s := NewSession(opt)
	site := PosLLH{Lat: ToRad(35), Lon: ToRad(139), Hei: 50}
	s.Sol.Pos = site.ToXYZ()
	nav := newSlipTestNav()

	sat := SatNo('G', 3)
	s.Sat[sat].Azel = [2]float64{0, ToRad(45)}
	lam := nav.Lam[sat]
	iono := 4.0 // Slant L1 delay [m]
	rho := 2.2e7
	obs := []ObsD{{
		Sat: sat,
		P:   [NFREQ]float64{rho + iono, rho + iono*SQ(lam[1]/lam[0]), 0},
	}}

	s.udIono(obs, nav)
	j := s.L.II(sat)
	pos := s.Sol.Pos.ToLLH()
	want := iono / IonMapf(pos, ToRad(45))
	assert.InDelta(t, want, s.Float.X.AtVec(j), 1e-6)
	assert.InDelta(t, VarIono, s.Float.P.At(j, j), 1e-9)

	// Long outage clears the state.
	s.Sat[sat].Outc[0] = opt.GapResIono + 1
	s.udIono(nil, nav)
	assert.Zero(t, s.Float.X.AtVec(j))
}

func TestUdBiasFreshArc(t *testing.T) {
	s := NewSession(NewPPPOpt()) // Iono-free combination, one ambiguity per sat
	nav := newSlipTestNav()
	sat := SatNo('G', 1)
	s.Sat[sat].Azel = [2]float64{0, ToRad(50)}
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 12345678)}

	s.udBias(GTime{Week: 2295, Sec: 3600.5}, obs, nav)

	var dantr, dants [NFREQ]float64
	_, _, Lc, Pc := corrMeas(&obs[0], nav, s.Sat[sat].Azel, s.Opt, &dantr, &dants, 0)
	require.NotZero(t, Lc)
	j := s.L.IB(sat, 0)
	assert.InDelta(t, Lc-Pc, s.Float.X.AtVec(j), 1e-6)
	assert.InDelta(t, VarBias, s.Float.P.At(j, j), 1e-9)
}

func TestUdBiasOutageExpiry(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 3)
	other := SatNo('G', 7)
	j := s.L.IB(sat, 0)

	s.Float.Init(j, 5.0, VarBias)
	s.Sat[sat].Outc[0] = s.Opt.MaxOut
	s.Amb[sat].Flags[other] = true
	s.Amb[other].Flags[sat] = true

	s.udBias(GTime{Week: 2295, Sec: 3600.5}, nil, nav)

	assert.Zero(t, s.Float.X.AtVec(j))
	assert.Zero(t, s.Float.P.At(j, j))
	assert.False(t, s.Amb[sat].Flags[other], "pair continuity cleared")
	assert.False(t, s.Amb[other].Flags[sat])
}

func TestUdBiasDayBoundaryExpiry(t *testing.T) {
	nav := newSlipTestNav()
	sat := SatNo('G', 3)
	other := SatNo('G', 7)

	setup := func(rep bool) *Session {
		opt := NewPPPOpt()
		opt.ClkJumpRep = rep
		s := NewSession(opt)
		s.Float.Init(s.L.IB(sat, 0), 5.0, VarBias)
		s.Amb[sat].Flags[other] = true
		s.Amb[other].Flags[sat] = true
		return s
	}

	t.Run("repair clears the arcs at the boundary", func(t *testing.T) {
		s := setup(true)
		s.udBias(GTime{Week: 2295, Sec: 172800}, nil, nav)
		j := s.L.IB(sat, 0)
		assert.Zero(t, s.Float.X.AtVec(j))
		assert.Zero(t, s.Float.P.At(j, j))
		assert.False(t, s.Amb[sat].Flags[other], "pair continuity cleared")
	})

	t.Run("state survives off the boundary", func(t *testing.T) {
		s := setup(true)
		s.udBias(GTime{Week: 2295, Sec: 172830}, nil, nav)
		assert.InDelta(t, 5.0, s.Float.X.AtVec(s.L.IB(sat, 0)), 1e-9)
		assert.True(t, s.Amb[sat].Flags[other])
	})

	t.Run("repair disabled keeps the state at the boundary", func(t *testing.T) {
		s := setup(false)
		s.udBias(GTime{Week: 2295, Sec: 172800}, nil, nav)
		assert.InDelta(t, 5.0, s.Float.X.AtVec(s.L.IB(sat, 0)), 1e-9)
		assert.True(t, s.Amb[sat].Flags[other])
	})
}

func TestUdBiasSlipReinit(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 5)
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 12345678)}

	s.udBias(GTime{Week: 2295, Sec: 3600.5}, obs, nav)
	j := s.L.IB(sat, 0)
	b0 := s.Float.X.AtVec(j)
	require.NotZero(t, b0)

	// An integer jump on L1 with a loss-of-lock flag reinitializes the state
	// at the new arc's bias.
	obs[0].L[0] += 100
	obs[0].LLI[0] = 1
	s.udBias(GTime{Week: 2295, Sec: 3630.5}, obs, nav)
	b1 := s.Float.X.AtVec(j)
	assert.Greater(t, math.Abs(b1-b0), 1.0, "state reinitialized at the new arc")
	assert.InDelta(t, VarBias, s.Float.P.At(j, j), 1e-9)
	assert.True(t, s.Sat[sat].Slip[0])
}

func TestUdBiasClockJumpRepair(t *testing.T) {
	nav := newSlipTestNav()
	jump := 0.001 * C // 1 ms receiver jump, as a phase-code range offset

	setup := func() (*Session, []ObsD, []float64) {
		s := NewSession(NewPPPOpt())
		sats := []SatID{SatNo('G', 1), SatNo('G', 2)}
		obs := make([]ObsD, len(sats))
		bias := make([]float64, len(sats))
		var dantr, dants [NFREQ]float64
		for i, sat := range sats {
			obs[i] = newSlipTestObs(sat, nav, 2.1e7+float64(i)*1e5, 1e6+float64(i)*1e3)
			s.Sat[sat].Azel = [2]float64{0, ToRad(45)}
			_, _, Lc, Pc := corrMeas(&obs[i], nav, s.Sat[sat].Azel, s.Opt, &dantr, &dants, 0)
			bias[i] = Lc - Pc
		}
		return s, obs, bias
	}

	t.Run("common offset applied to live states", func(t *testing.T) {
		s, obs, bias := setup()
		for i := range obs {
			s.Float.Init(s.L.IB(obs[i].Sat, 0), bias[i]-jump, VarBias)
		}
		s.udBias(GTime{Week: 2295, Sec: 3600.5}, obs, nav)
		for i := range obs {
			assert.InDelta(t, bias[i], s.Float.X.AtVec(s.L.IB(obs[i].Sat, 0)), 1e-6)
		}
	})

	t.Run("dominating satellite is not a jump", func(t *testing.T) {
		s, obs, bias := setup()
		// One deviation three times the mean: a slip on that satellite, not a
		// receiver event.
		s.Float.Init(s.L.IB(obs[0].Sat, 0), bias[0]+jump, VarBias)
		s.Float.Init(s.L.IB(obs[1].Sat, 0), bias[1]-3*jump, VarBias)
		s.udBias(GTime{Week: 2295, Sec: 3600.5}, obs, nav)
		assert.InDelta(t, bias[0]+jump, s.Float.X.AtVec(s.L.IB(obs[0].Sat, 0)), 1e-6)
		assert.InDelta(t, bias[1]-3*jump, s.Float.X.AtVec(s.L.IB(obs[1].Sat, 0)), 1e-6)
	})
}
