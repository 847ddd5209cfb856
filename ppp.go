// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

// Implements the per-epoch orchestration of precise point positioning.

package goppp

import (
	"fmt"
)

// Hold and fix constraint variances [m^2].
const (
	varFixAmb  = 1e-6
	varHoldAmb = 1e-3
)

// ProcessEpoch runs one epoch of the PPP filter: temporal update, iterated
// measurement update with outlier rejection, ambiguity resolution and status
// bookkeeping. On error the epoch is abandoned and the session stays usable;
// Sol.Stat reports SolNone for the epoch.
func (s *Session) ProcessEpoch(obse *ObsE, nav *NavContext) error {
	s.Sol.Stat = SolNone
	obs := obse.Data
	if len(obs) == 0 {
		return fmt.Errorf("no observation data")
	}
	if nav == nil || nav.Eph == nil {
		return fmt.Errorf("no ephemeris source")
	}
	t := obse.Time
	if !s.prevTime.IsZero() {
		s.TT = t.Diff(s.prevTime)
	} else {
		s.TT = 0
	}
	s.prevTime = t
	s.Sol.Time = t

	pvs := nav.Eph.Positions(t, obs)
	if len(pvs) != len(obs) {
		return fmt.Errorf("ephemeris result length mismatch: %d != %d", len(pvs), len(obs))
	}
	if s.Opt.RejEclipse {
		testEclipse(t, obs, pvs, nav)
	}
	for i := range s.Sat {
		s.Sat[i].VS = false
		s.Sat[i].Fix = [NFREQ]uint8{}
	}
	// Standalone pseudorange solution: position, velocity and receiver clocks
	// seeding the temporal update, and the fallback quality of the epoch.
	if err := s.sppPos(t, obs, pvs, nav); err != nil {
		return fmt.Errorf("standalone positioning failed, err= %s", err.Error())
	}
	// Earth tide site displacement.
	var dr [3]float64
	if s.Opt.TideCorr && nav.Tide != nil {
		dr = nav.Tide.Disp(t, s.Sol.Pos)
	}

	s.TemporalUpdate(t, obs, nav)

	// Iterated measurement update on a working copy; the float states commit
	// only after the post-fit residuals pass.
	xp := s.Float.Clone()
	exc := make([]bool, len(obs))
	azel := make([][2]float64, len(obs))
	committed := false
	for iter := 0; iter < MaxIter; iter++ {
		xp.CopyFrom(s.Float)
		v, H, R, _ := s.pppRes(0, t, obs, pvs, dr, exc, nav, &xp, azel)
		if v == nil {
			break
		}
		if err := s.Filter(&xp, H, v, R); err != nil {
			return fmt.Errorf("measurement update failed, err= %s", err.Error())
		}
		if v, _, _, ok := s.pppRes(iter+1, t, obs, pvs, dr, exc, nav, &xp, azel); v != nil && ok {
			committed = true
			break
		}
	}
	if !committed {
		PrintD(2, "ProcessEpoch: no converged solution %s\n",
			t.ToTime().UTC().Format("2006-01-02T15:04:05.0"))
		// The epoch keeps the standalone solution; lock and outage counters
		// advance only with a filtered solution.
		return nil
	}
	s.Float.CopyFrom(xp)
	for i := range obs {
		s.Sat[obs[i].Sat].Azel = azel[i]
	}
	stat := SolFloat

	// Ambiguity resolution on the committed float solution.
	if s.AR != nil {
		fixes, ratio, err := s.AR.Resolve(s, obs, nav, &s.Float)
		if err != nil {
			PrintD(2, "ProcessEpoch: ambiguity resolution failed, err= %s\n", err.Error())
		} else if len(fixes) > 0 {
			s.Fixed.CopyFrom(s.Float)
			if err := s.applyFixes(&s.Fixed, fixes, nav, varFixAmb); err != nil {
				PrintD(2, "ProcessEpoch: %s\n", err.Error())
			} else if v, _, _, okf := s.pppRes(9, t, obs, pvs, dr, exc, nav,
				&s.Fixed, azel); v == nil || !okf {
				// The constrained estimate must survive the same residual
				// test as the float solution.
				PrintD(2, "ProcessEpoch: fixed solution rejected by residuals\n")
			} else if fixStd(&s.Fixed) <= MaxStdFix {
				stat = SolFixed
				s.holdCount(fixes)
				PrintD(2, "ProcessEpoch: fixed ratio=%.2f nfix=%d\n", ratio, s.NFix)
				// Fix-and-hold: after enough consecutive fixes the float
				// ambiguities are softly constrained to the fixed values.
				if s.Opt.ARMode == ARFixHold && s.NFix >= s.Opt.MinFix {
					if err := s.holdAmb(fixes, nav); err != nil {
						PrintD(2, "ProcessEpoch: %s\n", err.Error())
					}
				}
			}
		}
	}
	if stat != SolFixed {
		s.NFix = 0
	}
	s.updateStat(obs, stat)
	return nil
}

// updateStat refreshes the solution record and the per-satellite counters
// after an epoch. A solution with fewer than the minimum satellites is
// demoted to SolNone.
func (s *Session) updateStat(obs []ObsD, stat SolStat) {
	s.Sol.NS = 0
	for i := range obs {
		ssat := &s.Sat[obs[i].Sat]
		for j := 0; j < s.L.NF; j++ {
			if !ssat.Vsat[j] {
				continue
			}
			ssat.Lock[j]++
			ssat.Outc[j] = 0
			if j == 0 {
				s.Sol.NS++
			}
		}
	}
	if stat != SolNone && s.Sol.NS < MinNSatSol {
		stat = SolNone
	}
	s.Sol.Stat = stat
	if stat == SolNone {
		s.NFix = 0
		return
	}
	// Position and covariance from the fixed estimate when available.
	e := &s.Float
	if stat == SolFixed {
		e = &s.Fixed
	}
	s.Sol.Pos = PosXYZ{X: e.X.AtVec(0), Y: e.X.AtVec(1), Z: e.X.AtVec(2)}
	s.Sol.QR = [6]float64{
		e.P.At(0, 0), e.P.At(1, 1), e.P.At(2, 2),
		e.P.At(0, 1), e.P.At(1, 2), e.P.At(2, 0),
	}
	if s.Opt.Dynamics {
		for i := 0; i < 3; i++ {
			s.Sol.Vel[i] = s.Float.X.AtVec(3 + i)
		}
	}
	s.Sol.Dtr[0] = s.Float.X.AtVec(s.L.IC(0)) / C
	for i := 1; i < NSys; i++ {
		s.Sol.Dtr[i] = s.Float.X.AtVec(s.L.IC(i))/C - s.Sol.Dtr[0]
	}
	for i := range obs {
		ssat := &s.Sat[obs[i].Sat]
		for j := 0; j < NFREQ; j++ {
			ssat.SNR[j] = obs[i].SNR[j]
		}
	}
	for i := range s.Sat {
		for j := 0; j < NFREQ; j++ {
			if s.Sat[i].Slip[j] {
				s.Sat[i].Slipc[j]++
			}
			if s.Sat[i].Fix[j] == 2 && stat != SolFixed {
				s.Sat[i].Fix[j] = 1
			}
		}
	}
}
