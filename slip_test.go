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
)

func newSlipTestNav() *NavContext {
	nav := &NavContext{}
	nav.DefaultWavelengths()
	return nav
}

// newSlipTestObs returns a dual-frequency GPS observation with phase and code
// consistent up to the given L1 ambiguity offset in cycles.
func newSlipTestObs(sat SatID, nav *NavContext, rho float64, n0 float64) ObsD {
	lam := nav.Lam[sat]
	return ObsD{
		Sat: sat,
		P:   [NFREQ]float64{rho, rho, 0},
		L:   [NFREQ]float64{rho/lam[0] + n0, rho / lam[1], 0},
	}
}

func (s *Session) clearSlipFlags(sat SatID) {
	for j := 0; j < NFREQ; j++ {
		s.Sat[sat].Slip[j] = false
		s.Sat[sat].SlipLL[j] = false
		s.Sat[sat].SlipGF[j] = false
		s.Sat[sat].SlipMW[j] = false
	}
}

func TestCombMeasMissing(t *testing.T) {
	nav := newSlipTestNav()
	sat := SatNo('G', 1)
	// A nonzero ambiguity keeps the combinations away from the zero value
	// that marks a missing measurement.
	obs := newSlipTestObs(sat, nav, 2.1e7, 1000)
	assert.NotZero(t, gfMeas(&obs, nav))
	assert.NotZero(t, mwMeas(&obs, nav))

	obs.L[1] = 0
	assert.Zero(t, gfMeas(&obs, nav), "gf needs both phases")
	assert.Zero(t, mwMeas(&obs, nav), "mw needs both phases")

	obs = newSlipTestObs(sat, nav, 2.1e7, 1000)
	obs.P[1] = 0
	assert.NotZero(t, gfMeas(&obs, nav), "gf does not use code")
	assert.Zero(t, mwMeas(&obs, nav), "mw needs both codes")
}

func TestDetSlipLL(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 5)
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 0)}

	obs[0].LLI[0] = 1
	s.detSlipLL(obs)
	assert.True(t, s.Sat[sat].Slip[0])
	assert.True(t, s.Sat[sat].SlipLL[0])
	assert.False(t, s.Sat[sat].Slip[1])

	// Bits above the slip/half-cycle pair do not count.
	s.clearSlipFlags(sat)
	obs[0].LLI[0] = 4
	s.detSlipLL(obs)
	assert.False(t, s.Sat[sat].Slip[0])
}

func TestDetSlipGF(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 7)
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 1000)}

	// First epoch only seeds the reference value.
	s.detSlipGF(obs, nav)
	assert.False(t, s.Sat[sat].Slip[0])
	assert.NotZero(t, s.Sat[sat].GF)

	// Change below the threshold.
	obs[0].L[0] += 0.04 / nav.Lam[sat][0] // 4 cm on L1
	s.detSlipGF(obs, nav)
	assert.False(t, s.Sat[sat].Slip[0])

	// One L1 cycle (about 19 cm) trips the default 5 cm threshold.
	obs[0].L[0] += 1
	s.detSlipGF(obs, nav)
	assert.True(t, s.Sat[sat].Slip[0])
	assert.True(t, s.Sat[sat].SlipGF[0])
	assert.True(t, s.Sat[sat].Slip[1], "gf slips flag every frequency")
}

func TestDetSlipMWArcAndCeiling(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 9)
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 1000)}

	lam := nav.Lam[sat]
	lamW := lam[0] * lam[1] / (lam[1] - lam[0])

	// Seed.
	s.detSlipMW(obs, nav)
	assert.False(t, s.Sat[sat].Slip[0])
	assert.Equal(t, 1, s.Sat[sat].MWArc)
	assert.InDelta(t, lamW/2, s.Sat[sat].MWVar, 1e-9)

	// Stable value grows the arc.
	s.detSlipMW(obs, nav)
	assert.False(t, s.Sat[sat].Slip[0])
	assert.Equal(t, 2, s.Sat[sat].MWArc)

	// Seven L1 cycles move the MW combination by about 6 m, over the ceiling.
	obs[0].L[0] += 7
	s.detSlipMW(obs, nav)
	assert.True(t, s.Sat[sat].Slip[0])
	assert.True(t, s.Sat[sat].SlipMW[0])
	assert.Equal(t, 1, s.Sat[sat].MWArc, "slip restarts the arc")
}

func TestDetSlipMWAdaptiveThreshold(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 11)
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 1000)}

	// Four stable epochs: the arc reaches the minimum fit length and the
	// deviation statistic decays below the seed.
	for i := 0; i < 4; i++ {
		s.detSlipMW(obs, nav)
		assert.False(t, s.Sat[sat].Slip[0])
	}
	assert.Equal(t, 4, s.Sat[sat].MWArc)
	thres := math.Min(MWGapMax, math.Max(4*math.Sqrt(s.Sat[sat].MWVar), MWCsMin))
	assert.Less(t, thres, MWGapMax)

	// Two L1 cycles (about 1.7 m) stay under the hard ceiling but leave the
	// tightened arc.
	obs[0].L[0] += 2
	s.detSlipMW(obs, nav)
	assert.True(t, s.Sat[sat].Slip[0])
	assert.True(t, s.Sat[sat].SlipMW[0])
	assert.Equal(t, 1, s.Sat[sat].MWArc)
}

func TestDetSlipMWFollowsOtherDetectors(t *testing.T) {
	s := NewSession(NewPPPOpt())
	nav := newSlipTestNav()
	sat := SatNo('G', 13)
	obs := []ObsD{newSlipTestObs(sat, nav, 2.1e7, 1000)}

	s.detSlipMW(obs, nav)
	s.Sat[sat].MWMean = 123.0 // Marker to observe the restart

	// A slip flagged by another detector restarts the arc without an MW flag.
	s.Sat[sat].Slip[0] = true
	s.detSlipMW(obs, nav)
	assert.Equal(t, 1, s.Sat[sat].MWArc)
	assert.False(t, s.Sat[sat].SlipMW[0])
	assert.NotEqual(t, 123.0, s.Sat[sat].MWMean)
}
