// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

import "math"

// gfMeas returns the geometry-free phase combination [m], or 0 when either
// frequency is missing.
func gfMeas(obs *ObsD, nav *NavContext) float64 {
	i := pairIdx(obs.Sat.Sys())
	lam := &nav.Lam[obs.Sat]
	if lam[0] == 0 || lam[i] == 0 || obs.L[0] == 0 || obs.L[i] == 0 {
		return 0
	}
	return lam[0]*obs.L[0] - lam[i]*obs.L[i]
}

// mwMeas returns the Melbourne-Wubbena combination [m], or 0 when any of the
// four measurements is missing. It is insensitive to geometry, clocks and
// first-order ionosphere.
func mwMeas(obs *ObsD, nav *NavContext) float64 {
	i := pairIdx(obs.Sat.Sys())
	lam := &nav.Lam[obs.Sat]
	if lam[0] == 0 || lam[i] == 0 || obs.L[0] == 0 || obs.L[i] == 0 ||
		obs.P[0] == 0 || obs.P[i] == 0 {
		return 0
	}
	return lam[0]*lam[i]*(obs.L[0]-obs.L[i])/(lam[i]-lam[0]) -
		(lam[i]*obs.P[0]+lam[0]*obs.P[i])/(lam[i]+lam[0])
}

// detSlipLL flags all frequencies whose loss-of-lock indicator reports a slip
// or half-cycle ambiguity. Indicators are fast but unreliable; the GF and MW
// detectors back them up.
func (s *Session) detSlipLL(obs []ObsD) {
	for i := range obs {
		ssat := &s.Sat[obs[i].Sat]
		for j := 0; j < s.Opt.NumFreq; j++ {
			if obs[i].L[j] == 0 || obs[i].LLI[j]&3 == 0 {
				continue
			}
			PrintD(2, "detSlipLL: slip detected sat=%s f=%d LLI=%d\n",
				obs[i].Sat, j+1, obs[i].LLI[j])
			ssat.Slip[j] = true
			ssat.SlipLL[j] = true
		}
	}
}

// detSlipGF flags all frequencies of a satellite whose geometry-free phase
// jumped by more than the configured threshold since the previous epoch.
func (s *Session) detSlipGF(obs []ObsD, nav *NavContext) {
	for i := range obs {
		g1 := gfMeas(&obs[i], nav)
		if g1 == 0 {
			continue
		}
		ssat := &s.Sat[obs[i].Sat]
		g0 := ssat.GF
		ssat.GF = g1
		if g0 != 0 && math.Abs(g1-g0) > s.Opt.ThresSlip {
			PrintD(2, "detSlipGF: slip detected sat=%s gf=%8.3f->%8.3f\n",
				obs[i].Sat, g0, g1)
			for j := 0; j < s.Opt.NumFreq; j++ {
				ssat.Slip[j] = true
				ssat.SlipGF[j] = true
			}
		}
	}
}

// resetMWArc restarts a satellite's Melbourne-Wubbena arc at value mw.
// The mean square deviation is seeded at half a widelane wavelength so the
// adaptive threshold starts wide and tightens as the arc accumulates.
func resetMWArc(ssat *SatStatus, mw, lamW float64) {
	ssat.MWMean = mw
	ssat.MWVar = lamW / 2
	ssat.MWArc = 1
}

// detSlipMW maintains per-satellite running statistics of the MW combination
// and flags a slip when the new value leaves the arc by more than an
// adaptive, noise-scaled threshold. Within an epoch flags are only ever set.
func (s *Session) detSlipMW(obs []ObsD, nav *NavContext) {
	for i := range obs {
		mw1 := mwMeas(&obs[i], nav)
		if mw1 == 0 {
			continue
		}
		lam := &nav.Lam[obs[i].Sat]
		k := pairIdx(obs[i].Sat.Sys())
		lamW := lam[0] * lam[k] / (lam[k] - lam[0])
		ssat := &s.Sat[obs[i].Sat]
		mw0 := ssat.MW
		ssat.MW = mw1

		// No arc yet: seed and wait for history.
		if ssat.MWArc == 0 || mw0 == 0 {
			resetMWArc(ssat, mw1, lamW)
			continue
		}
		// Another detector already flagged this satellite: restart the arc.
		if ssat.Slip[0] || ssat.Slip[1] {
			for j := 0; j < s.Opt.NumFreq; j++ {
				ssat.Slip[j] = true
			}
			resetMWArc(ssat, mw1, lamW)
			continue
		}
		// Hard ceiling on the epoch-to-epoch jump.
		if math.Abs(mw1-mw0) > MWGapMax {
			PrintD(2, "detSlipMW: slip detected sat=%s mw=%8.3f->%8.3f\n",
				obs[i].Sat, mw0, mw1)
			for j := 0; j < s.Opt.NumFreq; j++ {
				ssat.Slip[j] = true
				ssat.SlipMW[j] = true
			}
			resetMWArc(ssat, mw1, lamW)
			continue
		}
		// Adaptive threshold once the arc carries enough history.
		diff := mw1 - ssat.MWMean
		thres := math.Min(MWGapMax, math.Max(4*math.Sqrt(ssat.MWVar), MWCsMin))
		if ssat.MWArc >= MWArcMinFit && math.Abs(diff) > thres {
			PrintD(2, "detSlipMW: slip detected sat=%s mw=%8.3f->%8.3f thres=%.3f\n",
				obs[i].Sat, mw0, mw1, thres)
			for j := 0; j < s.Opt.NumFreq; j++ {
				ssat.Slip[j] = true
				ssat.SlipMW[j] = true
			}
			resetMWArc(ssat, mw1, lamW)
			continue
		}
		// Fold into the capped running mean; cap keeps the arc adaptive to
		// slowly drifting multipath conditions.
		n := ssat.MWArc + 1
		if n > MWArcMax {
			n = MWArcMax
		}
		ssat.MWMean = (float64(n-1)*ssat.MWMean + mw1) / float64(n)
		ssat.MWVar = (float64(n-1)*ssat.MWVar + diff*diff) / float64(n)
		ssat.MWArc = n
	}
}
