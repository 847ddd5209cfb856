// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

// Implements integer ambiguity resolution on top of the float PPP solution.

package goppp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FixedAmb is one fixed single-difference ambiguity between a satellite and
// its per-system reference, in cycles.
type FixedAmb struct {
	Ref   SatID
	Sat   SatID
	F     int
	Value float64
}

// AmbResolver attempts to fix the carrier ambiguities of a float estimate.
// It returns the fixed single differences and the validation ratio; an empty
// result means no fix this epoch.
type AmbResolver interface {
	Resolve(s *Session, obs []ObsD, nav *NavContext, e *Estimate) ([]FixedAmb, float64, error)
}

// LambdaResolver fixes single-difference ambiguities with the LAMBDA method
// and a ratio test. GLONASS is excluded: its inter-channel wavelengths make
// the single differences non-integer.
type LambdaResolver struct {
	RatioThres float64
	MinSD      int // Minimum single differences to attempt a fix
}

// ambCand is one fixable ambiguity state.
type ambCand struct {
	sat SatID
	f   int
	lam float64
	el  float64
}

// Resolve selects the fixable ambiguities, single-differences them against
// the highest satellite of each system and searches the integer space.
func (r *LambdaResolver) Resolve(s *Session, obs []ObsD, nav *NavContext,
	e *Estimate) ([]FixedAmb, float64, error) {

	// Iono-free combination ambiguities are not integers.
	if s.Opt.IonoModel == IonoIFLC {
		return nil, 0, nil
	}
	minSD := r.MinSD
	if minSD <= 0 {
		minSD = 3
	}
	// Gather candidates per frequency.
	var cands []ambCand
	for i := range obs {
		sat := obs[i].Sat
		if sat.Sys() == 'R' {
			continue
		}
		ssat := &s.Sat[sat]
		if !ssat.VS || ssat.Azel[1] < s.Opt.ElMask {
			continue
		}
		for f := 0; f < s.L.NF; f++ {
			lam := nav.Lam[sat][f]
			if lam == 0 || !ssat.Vsat[f] || ssat.Slip[f] {
				continue
			}
			if e.X.AtVec(s.L.IB(sat, f)) == 0 {
				continue
			}
			cands = append(cands, ambCand{sat: sat, f: f, lam: lam, el: ssat.Azel[1]})
		}
	}
	// Per-system, per-frequency reference: the highest candidate.
	type key struct {
		sys SysType
		f   int
	}
	ref := map[key]ambCand{}
	for _, c := range cands {
		k := key{c.sat.Sys(), c.f}
		if best, ok := ref[k]; !ok || c.el > best.el {
			ref[k] = c
		}
	}
	// Single differences against the references.
	type sd struct {
		ref, sat SatID
		f        int
		lam      float64
	}
	var sds []sd
	for _, c := range cands {
		rc := ref[key{c.sat.Sys(), c.f}]
		if rc.sat == c.sat {
			continue
		}
		sds = append(sds, sd{ref: rc.sat, sat: c.sat, f: c.f, lam: c.lam})
	}
	n := len(sds)
	if n < minSD {
		return nil, 0, nil
	}
	// Float SD values [cycle] and their covariance.
	a := make([]float64, n)
	Q := make([]float64, n*n)
	for i, d := range sds {
		ib := s.L.IB(d.sat, d.f)
		ir := s.L.IB(d.ref, d.f)
		a[i] = (e.X.AtVec(ib) - e.X.AtVec(ir)) / d.lam
		for j, dj := range sds {
			jb := s.L.IB(dj.sat, dj.f)
			jr := s.L.IB(dj.ref, dj.f)
			Q[i+j*n] = (e.P.At(ib, jb) - e.P.At(ib, jr) -
				e.P.At(ir, jb) + e.P.At(ir, jr)) / (d.lam * dj.lam)
		}
	}
	F := make([]float64, n*2)
	resid := make([]float64, 2)
	if err := LAMBDA(n, 2, a, Q, F, resid); err != nil {
		return nil, 0, fmt.Errorf("LAMBDA() failed, err= %s", err.Error())
	}
	ratio := 0.0
	if resid[0] > 0 {
		ratio = resid[1] / resid[0]
	}
	PrintD(2, "Resolve: n=%d ratio=%8.2f (%.3f/%.3f)\n", n, ratio, resid[1], resid[0])
	if ratio < r.RatioThres {
		return nil, ratio, nil
	}
	fixes := make([]FixedAmb, n)
	for i, d := range sds {
		fixes[i] = FixedAmb{Ref: d.ref, Sat: d.sat, F: d.f, Value: F[i]}
	}
	return fixes, ratio, nil
}

// applyFixes constrains an estimate to the fixed single differences through
// the filter, as tight pseudo-observations of variance varr.
func (s *Session) applyFixes(e *Estimate, fixes []FixedAmb, nav *NavContext,
	varr float64) error {

	nv := len(fixes)
	if nv == 0 {
		return nil
	}
	nx := s.L.NX
	v := mat.NewVecDense(nv, nil)
	H := mat.NewDense(nv, nx, nil)
	R := mat.NewDense(nv, nv, nil)
	for i, fx := range fixes {
		lam := nav.Lam[fx.Sat][fx.F]
		ib := s.L.IB(fx.Sat, fx.F)
		ir := s.L.IB(fx.Ref, fx.F)
		v.SetVec(i, fx.Value*lam-(e.X.AtVec(ib)-e.X.AtVec(ir)))
		H.Set(i, ib, 1.0)
		H.Set(i, ir, -1.0)
		R.Set(i, i, varr)
	}
	if err := s.Filter(e, H, v, R); err != nil {
		return fmt.Errorf("filter on ambiguity constraints failed, err= %s", err.Error())
	}
	return nil
}

// holdCount advances the consecutive-fix counter over a validated fixed set.
// A pair without recorded continuity restarts the count: a hold must be backed
// by an unbroken run of joint fixes, not by a set that just changed.
func (s *Session) holdCount(fixes []FixedAmb) {
	for _, fx := range fixes {
		if !s.Amb[fx.Sat].Flags[fx.Ref] {
			s.NFix = 0
			break
		}
	}
	s.markFixed(fixes)
	s.NFix++
}

// holdAmb constrains the float ambiguities to the fixed values and restarts
// the consecutive-fix counter, so the next hold needs a fresh run of fixes.
func (s *Session) holdAmb(fixes []FixedAmb, nav *NavContext) error {
	if err := s.applyFixes(&s.Float, fixes, nav, varHoldAmb); err != nil {
		return fmt.Errorf("hold failed, err= %s", err.Error())
	}
	s.NFix = 0
	return nil
}

// markFixed records the fix flags and pairwise fix continuity of a fixed set.
func (s *Session) markFixed(fixes []FixedAmb) {
	for _, fx := range fixes {
		s.Sat[fx.Sat].Fix[fx.F] = 2
		s.Sat[fx.Ref].Fix[fx.F] = 2
		s.Amb[fx.Sat].Flags[fx.Ref] = true
		s.Amb[fx.Ref].Flags[fx.Sat] = true
	}
}

// fixStd returns the 3D position standard deviation of an estimate [m].
func fixStd(e *Estimate) float64 {
	return math.Sqrt(e.P.At(0, 0) + e.P.At(1, 1) + e.P.At(2, 2))
}
