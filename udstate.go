// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

// Implements the temporal (prediction) update of the PPP filter states.

package goppp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// TemporalUpdate propagates the float states to the current epoch: position
// dynamics, receiver clocks, troposphere, ionosphere, inter-frequency bias
// and carrier ambiguities, in state order. Slip detection runs inside the
// ambiguity update so fresh flags drive the reinitialization.
func (s *Session) TemporalUpdate(t GTime, obs []ObsD, nav *NavContext) {
	s.udPos()
	s.udClk()
	if s.Opt.TropModel >= TropEst {
		s.udTrop()
	}
	if s.Opt.IonoModel == IonoEst {
		s.udIono(obs, nav)
	}
	if s.L.ND > 0 {
		s.udDcb()
	}
	s.udBias(t, obs, nav)
}

// seedVel keeps a velocity state alive when the standalone solution has no
// velocity yet; a zero value would mark the state uninitialized.
func seedVel(v float64) float64 {
	if v == 0 {
		return 1e-6
	}
	return v
}

// udPos propagates the receiver position states.
func (s *Session) udPos() {
	// Receiver pinned to known coordinates.
	if s.Opt.Mode == ModeFixed {
		s.initx(s.Opt.FixedPos.X, 1e-8, 0)
		s.initx(s.Opt.FixedPos.Y, 1e-8, 1)
		s.initx(s.Opt.FixedPos.Z, 1e-8, 2)
		return
	}
	x := s.Float.X

	// First epoch: seed from the standalone solution.
	if norm3([3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}) <= 0 {
		s.initx(s.Sol.Pos.X, VarPos, 0)
		s.initx(s.Sol.Pos.Y, VarPos, 1)
		s.initx(s.Sol.Pos.Z, VarPos, 2)
		if s.Opt.Dynamics {
			for i := 3; i < 6; i++ {
				s.initx(seedVel(s.Sol.Vel[i-3]), VarVel, i)
			}
			for i := 6; i < 9; i++ {
				s.initx(1e-6, VarAcc, i)
			}
		}
	}
	if s.Opt.Mode == ModeStatic {
		for i := 0; i < 3; i++ {
			s.Float.P.Set(i, i, s.Float.P.At(i, i)+SQ(s.Opt.PrnPos)*math.Abs(s.TT))
		}
		return
	}
	// Kinematic without dynamics: position is white noise.
	if !s.Opt.Dynamics {
		s.initx(s.Sol.Pos.X, VarPos, 0)
		s.initx(s.Sol.Pos.Y, VarPos, 1)
		s.initx(s.Sol.Pos.Z, VarPos, 2)
		return
	}
	// Reset a diverged dynamics solution.
	v := (s.Float.P.At(0, 0) + s.Float.P.At(1, 1) + s.Float.P.At(2, 2)) / 3.0
	if v > VarPos {
		s.initx(s.Sol.Pos.X, VarPos, 0)
		s.initx(s.Sol.Pos.Y, VarPos, 1)
		s.initx(s.Sol.Pos.Z, VarPos, 2)
		for i := 3; i < 6; i++ {
			s.initx(seedVel(s.Sol.Vel[i-3]), VarVel, i)
		}
		for i := 6; i < 9; i++ {
			s.initx(1e-6, VarAcc, i)
		}
		PrintD(2, "udPos: position reset due to large variance: var=%.3f\n", v)
		return
	}
	// State transition x += v*tt + a*tt^2/2, v += a*tt. Only the first nine
	// rows of the transition differ from identity, so the covariance is
	// propagated by block multiplications instead of a full nx x nx product.
	tt := s.TT
	F9 := mat.NewDense(9, 9, nil)
	for i := 0; i < 9; i++ {
		F9.Set(i, i, 1)
	}
	for i := 0; i < 6; i++ {
		F9.Set(i, i+3, tt)
	}
	for i := 0; i < 3; i++ {
		F9.Set(i, i+6, SQ(tt)/2.0)
	}
	nx := s.L.NX
	x9 := mat.NewVecDense(9, nil)
	for i := 0; i < 9; i++ {
		x9.SetVec(i, x.AtVec(i))
	}
	var xp mat.VecDense
	xp.MulVec(F9, x9)
	for i := 0; i < 9; i++ {
		x.SetVec(i, xp.AtVec(i))
	}
	// P[0:9,:] = F9 P[0:9,:], then P[:,0:9] = P[:,0:9] F9'.
	var top mat.Dense
	top.Mul(F9, s.Float.P.Slice(0, 9, 0, nx))
	for i := 0; i < 9; i++ {
		for j := 0; j < nx; j++ {
			s.Float.P.Set(i, j, top.At(i, j))
		}
	}
	var left mat.Dense
	left.Mul(s.Float.P.Slice(0, nx, 0, 9), F9.T())
	for i := 0; i < nx; i++ {
		for j := 0; j < 9; j++ {
			s.Float.P.Set(i, j, left.At(i, j))
		}
	}
	// Process noise enters the acceleration states only, expressed in local
	// ENU and rotated into ECEF.
	q := [9]float64{
		SQ(s.Opt.PrnAccH) * math.Abs(tt), 0, 0,
		0, SQ(s.Opt.PrnAccH) * math.Abs(tt), 0,
		0, 0, SQ(s.Opt.PrnAccV) * math.Abs(tt),
	}
	rr := PosXYZ{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	qv := covECEF(rr.ToLLH(), q)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.Float.P.Set(i+6, j+6, s.Float.P.At(i+6, j+6)+qv[i*3+j])
		}
	}
}

// udClk reinitializes the receiver clock states each epoch from the
// standalone solution; the clocks are modeled as white noise.
func (s *Session) udClk() {
	for i := 0; i < NSys; i++ {
		dtr := s.Sol.Dtr[0]
		if i > 0 {
			dtr += s.Sol.Dtr[i]
		}
		s.initx(C*dtr, VarClk, s.L.IC(i))
	}
}

// udTrop propagates the troposphere states as random walks, initializing
// from the Saastamoinen model on first use.
func (s *Session) udTrop() {
	i := s.L.IT()
	if !s.Float.Initialized(i) {
		pos := s.Sol.Pos.ToLLH()
		ztd, v := TropSBASCorr(s.Sol.Time, pos, [2]float64{0, PI / 2.0})
		s.initx(ztd, v, i)
		if s.Opt.TropModel == TropEstG {
			for j := i + 1; j < i+3; j++ {
				s.initx(1e-6, VarGrad, j)
			}
		}
		return
	}
	s.Float.P.Set(i, i, s.Float.P.At(i, i)+SQ(s.Opt.PrnTrop)*math.Abs(s.TT))
	if s.Opt.TropModel == TropEstG {
		for j := i + 1; j < i+3; j++ {
			s.Float.P.Set(j, j, s.Float.P.At(j, j)+SQ(s.Opt.PrnTrop*0.1)*math.Abs(s.TT))
		}
	}
}

// udIono propagates the per-satellite slant ionosphere states. States of
// satellites unseen for longer than the configured gap are cleared; new ones
// are seeded from the dual-frequency pseudorange difference.
func (s *Session) udIono(obs []ObsD, nav *NavContext) {
	for sat := SatID(1); sat <= MaxSat; sat++ {
		j := s.L.II(sat)
		if s.Float.X.AtVec(j) != 0 && s.Sat[sat].Outc[0] > s.Opt.GapResIono {
			s.Float.X.SetVec(j, 0)
		}
	}
	pos := s.Sol.Pos.ToLLH()
	for i := range obs {
		sat := obs[i].Sat
		j := s.L.II(sat)
		if s.Float.X.AtVec(j) == 0 {
			k := pairIdx(sat.Sys())
			lam := &nav.Lam[sat]
			if obs[i].P[0] == 0 || obs[i].P[k] == 0 || lam[0] == 0 || lam[k] == 0 {
				continue
			}
			ion := (obs[i].P[0] - obs[i].P[k]) / (1.0 - SQ(lam[k]/lam[0]))
			ion /= IonMapf(pos, s.Sat[sat].Azel[1])
			s.initx(ion, VarIono, j)
		} else {
			sinel := math.Sin(math.Max(s.Sat[sat].Azel[1], ToRad(5)))
			s.Float.P.Set(j, j, s.Float.P.At(j, j)+SQ(s.Opt.PrnIono/sinel)*math.Abs(s.TT))
		}
	}
}

// udDcb keeps the receiver inter-frequency bias state alive.
func (s *Session) udDcb() {
	i := s.L.ID()
	if !s.Float.Initialized(i) {
		s.initx(1e-6, VarDcb, i)
	}
}

// clearAmbPair resets the joint-fix continuity of a satellite in both
// directions.
func (s *Session) clearAmbPair(sat SatID) {
	for k := SatID(1); k <= MaxSat; k++ {
		s.Amb[sat].Flags[k] = false
		s.Amb[k].Flags[sat] = false
	}
}

// udBias propagates the carrier ambiguity states: runs the slip detectors,
// repairs receiver clock jumps at day boundaries, reinitializes slipped or
// expired ambiguities and adds the random-walk process noise.
func (s *Session) udBias(t GTime, obs []ObsD, nav *NavContext) {
	clkJump := false
	if s.Opt.ClkJumpRep && t.AtDayBoundary() {
		clkJump = true
		PrintD(2, "udBias: day boundary clock jump %s\n", t.ToTime().UTC().Format("2006-01-02T15:04:05"))
	}
	for i := range s.Sat {
		for j := 0; j < NFREQ; j++ {
			s.Sat[i].Slip[j] = false
			s.Sat[i].SlipLL[j] = false
			s.Sat[i].SlipGF[j] = false
			s.Sat[i].SlipMW[j] = false
		}
	}
	s.detSlipLL(obs)
	s.detSlipGF(obs, nav)
	s.detSlipMW(obs, nav)

	var dantr, dants [NFREQ]float64
	for f := 0; f < s.L.NF; f++ {
		// Expire ambiguities after an outage, on instantaneous AR and on a
		// clock jump; all three invalidate the old bias value.
		for sat := SatID(1); sat <= MaxSat; sat++ {
			s.Sat[sat].Outc[f]++
			if s.Sat[sat].Outc[f] > s.Opt.MaxOut || s.Opt.ARMode == ARInst || clkJump {
				if s.Float.Initialized(s.L.IB(sat, f)) {
					s.Float.Init(s.L.IB(sat, f), 0, 0)
					s.clearAmbPair(sat)
				}
			}
		}
		bias := make([]float64, len(obs))
		slip := make([]bool, len(obs))
		offset, k := 0.0, 0
		maxAbs := 0.0
		for i := range obs {
			sat := obs[i].Sat
			j := s.L.IB(sat, f)
			L, P, Lc, Pc := corrMeas(&obs[i], nav, s.Sat[sat].Azel, s.Opt, &dantr, &dants, 0)

			if s.Opt.IonoModel == IonoIFLC {
				if Lc == 0 || Pc == 0 {
					continue
				}
				bias[i] = Lc - Pc
				slip[i] = s.Sat[sat].Slip[0] || s.Sat[sat].Slip[1]
			} else if L[f] != 0 && P[f] != 0 {
				slip[i] = s.Sat[sat].Slip[f]
				l := pairIdx(sat.Sys())
				lam := &nav.Lam[sat]
				if obs[i].P[0] == 0 || obs[i].P[l] == 0 ||
					lam[0] == 0 || lam[l] == 0 || lam[f] == 0 {
					continue
				}
				ion := (obs[i].P[0] - obs[i].P[l]) / (1.0 - SQ(lam[l]/lam[0]))
				bias[i] = L[f] - P[f] + 2.0*ion*SQ(lam[f]/lam[0])
			}
			if s.Float.X.AtVec(j) == 0 || slip[i] || bias[i] == 0 {
				continue
			}
			d := bias[i] - s.Float.X.AtVec(j)
			offset += d
			if math.Abs(d) > maxAbs {
				maxAbs = math.Abs(d)
			}
			k++
		}
		// A common phase-code offset marks a receiver clock jump; apply it to
		// every live ambiguity. A single dominating satellite is a slip, not
		// a jump, so the largest deviation must stay near the mean.
		if k >= 2 {
			mean := offset / float64(k)
			if math.Abs(mean) > 0.0005*C && maxAbs <= 2.0*math.Abs(mean) {
				for sat := SatID(1); sat <= MaxSat; sat++ {
					j := s.L.IB(sat, f)
					if s.Float.X.AtVec(j) != 0 {
						s.Float.X.SetVec(j, s.Float.X.AtVec(j)+mean)
					}
				}
				PrintD(2, "udBias: phase-code jump corrected: n=%2d dt=%12.9fs\n",
					k, mean/C)
			}
		}
		for i := range obs {
			sat := obs[i].Sat
			j := s.L.IB(sat, f)
			s.Float.P.Set(j, j, s.Float.P.At(j, j)+SQ(s.Opt.PrnBias)*math.Abs(s.TT))
			if bias[i] == 0 || (s.Float.X.AtVec(j) != 0 && !slip[i]) {
				continue
			}
			// Reinitialize on a detected cycle slip or a fresh arc.
			s.Float.Init(j, bias[i], VarBias)
			s.clearAmbPair(sat)
			PrintD(5, "udBias: sat=%s bias=%.3f\n", sat, bias[i])
		}
	}
}
