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

func TestLAMBDANearInteger(t *testing.T) {
	n := 4
	a := []float64{1.1, -2.9, 4.05, 0.98}
	Q := make([]float64, n*n)
	for i := 0; i < n; i++ {
		Q[i+i*n] = 0.01
	}
	F := make([]float64, n*2)
	s := make([]float64, 2)

	require.NoError(t, LAMBDA(n, 2, a, Q, F, s))

	want := []float64{1, -3, 4, 1}
	for i := 0; i < n; i++ {
		assert.InDelta(t, want[i], F[i], 1e-9, "component %d", i)
	}
	assert.Less(t, s[0], s[1], "best candidate first")
	assert.Greater(t, s[0], 0.0)
}

func TestLAMBDACorrelated(t *testing.T) {
	// Strong correlation: rounding the float vector componentwise gives
	// {1, 1} but the integer search must still return the minimum of the
	// quadratic form.
	n := 2
	a := []float64{0.8, 1.2}
	Q := []float64{0.5, 0.45, 0.45, 0.5} // Column-major, symmetric
	F := make([]float64, n*2)
	s := make([]float64, 2)

	require.NoError(t, LAMBDA(n, 2, a, Q, F, s))
	best := []float64{F[0], F[1]}
	for _, v := range best {
		assert.InDelta(t, math.Round(v), v, 1e-9, "candidates are integers")
	}
	assert.LessOrEqual(t, s[0], s[1])
}

func TestLAMBDAInvalidInput(t *testing.T) {
	assert.Error(t, LAMBDA(0, 2, nil, nil, nil, nil))

	// Non positive definite covariance.
	n := 2
	a := []float64{0.5, 0.5}
	Q := []float64{1, 0, 0, 0}
	F := make([]float64, n*2)
	s := make([]float64, 2)
	assert.Error(t, LAMBDA(n, 2, a, Q, F, s))
}

// resolverFixture builds a session with five GPS satellites whose L1
// ambiguity states sit near integer multiples of the wavelength above a
// common real-valued receiver bias.
func resolverFixture(t *testing.T) (*Session, []ObsD, *NavContext, map[SatID]float64) {
	t.Helper()
	opt := NewPPPOpt()
	opt.IonoModel = IonoEst // Raw frequencies keep the ambiguities integer
	s := NewSession(opt)
	nav := &NavContext{}
	nav.DefaultWavelengths()

	common := 0.3 // Receiver phase bias [m], cancels in single differences
	ints := map[SatID]float64{}
	eps := []float64{0.010, -0.020, 0.015, 0.005, -0.010}
	ns := []float64{100, 120, -80, 5, 42}
	els := []float64{60, 45, 40, 35, 30}

	var obs []ObsD
	for i, prn := range []int{1, 2, 3, 5, 7} {
		sat := SatNo('G', prn)
		obs = append(obs, ObsD{Sat: sat})
		ints[sat] = ns[i]
		lam := nav.Lam[sat][0]
		ib := s.L.IB(sat, 0)
		s.Float.Init(ib, common+(ns[i]+eps[i])*lam, SQ(0.05))
		s.Sat[sat].VS = true
		s.Sat[sat].Vsat[0] = true
		s.Sat[sat].Azel = [2]float64{0, ToRad(els[i])}
	}
	return s, obs, nav, ints
}

func TestLambdaResolverFixes(t *testing.T) {
	s, obs, nav, ints := resolverFixture(t)
	r := &LambdaResolver{RatioThres: 2.0}

	fixes, ratio, err := r.Resolve(s, obs, nav, &s.Float)
	require.NoError(t, err)
	require.Len(t, fixes, 4, "four single differences against the reference")
	assert.Greater(t, ratio, 2.0)

	ref := SatNo('G', 1) // Highest elevation
	for _, fx := range fixes {
		assert.Equal(t, ref, fx.Ref)
		assert.InDelta(t, ints[fx.Sat]-ints[ref], fx.Value, 1e-9)
	}
}

func TestLambdaResolverSkipsIFLC(t *testing.T) {
	s := NewSession(NewPPPOpt()) // Iono-free combination
	r := &LambdaResolver{RatioThres: 2.0}
	fixes, ratio, err := r.Resolve(s, nil, nil, &s.Float)
	assert.NoError(t, err)
	assert.Nil(t, fixes)
	assert.Zero(t, ratio)
}

func TestLambdaResolverTooFewCandidates(t *testing.T) {
	s, obs, nav, _ := resolverFixture(t)
	r := &LambdaResolver{RatioThres: 2.0, MinSD: 3}
	fixes, _, err := r.Resolve(s, obs[:2], nav, &s.Float)
	assert.NoError(t, err)
	assert.Nil(t, fixes, "one single difference is below the minimum")
}

func TestApplyFixesAndMarkFixed(t *testing.T) {
	s, obs, nav, ints := resolverFixture(t)
	r := &LambdaResolver{RatioThres: 2.0}
	fixes, _, err := r.Resolve(s, obs, nav, &s.Float)
	require.NoError(t, err)
	require.NotEmpty(t, fixes)

	s.Fixed.CopyFrom(s.Float)
	require.NoError(t, s.applyFixes(&s.Fixed, fixes, nav, varFixAmb))
	for _, fx := range fixes {
		lam := nav.Lam[fx.Sat][fx.F]
		sd := (s.Fixed.X.AtVec(s.L.IB(fx.Sat, fx.F)) -
			s.Fixed.X.AtVec(s.L.IB(fx.Ref, fx.F))) / lam
		assert.InDelta(t, ints[fx.Sat]-ints[fx.Ref], sd, 1e-3,
			"constraint pulls the difference onto the integer")
	}

	s.markFixed(fixes)
	for _, fx := range fixes {
		assert.EqualValues(t, 2, s.Sat[fx.Sat].Fix[fx.F])
		assert.True(t, s.Amb[fx.Sat].Flags[fx.Ref])
		assert.True(t, s.Amb[fx.Ref].Flags[fx.Sat])
	}
}

func TestHoldCountContinuity(t *testing.T) {
	s, obs, nav, _ := resolverFixture(t)
	r := &LambdaResolver{RatioThres: 2.0}
	fixes, _, err := r.Resolve(s, obs, nav, &s.Float)
	require.NoError(t, err)
	require.NotEmpty(t, fixes)

	// First fixed set: no recorded continuity, the count restarts at one.
	s.holdCount(fixes)
	assert.Equal(t, 1, s.NFix)
	s.holdCount(fixes)
	assert.Equal(t, 2, s.NFix)

	// A reset ambiguity breaks the pair continuity and the count with it.
	s.NFix = 7
	s.clearAmbPair(fixes[0].Sat)
	s.holdCount(fixes)
	assert.Equal(t, 1, s.NFix)
}

func TestHoldAmbResetsCounter(t *testing.T) {
	s, obs, nav, ints := resolverFixture(t)
	r := &LambdaResolver{RatioThres: 2.0}
	fixes, _, err := r.Resolve(s, obs, nav, &s.Float)
	require.NoError(t, err)
	require.NotEmpty(t, fixes)

	s.NFix = 7
	require.NoError(t, s.holdAmb(fixes, nav))
	assert.Zero(t, s.NFix, "the next hold needs a fresh run of fixes")

	// The soft constraints pull the float differences onto the integers.
	for _, fx := range fixes {
		lam := nav.Lam[fx.Sat][fx.F]
		sd := (s.Float.X.AtVec(s.L.IB(fx.Sat, fx.F)) -
			s.Float.X.AtVec(s.L.IB(fx.Ref, fx.F))) / lam
		assert.InDelta(t, ints[fx.Sat]-ints[fx.Ref], sd, 1e-2)
	}
}
