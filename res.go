// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

// Implements the residual and design matrix builder of the PPP filter.

package goppp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// geodist returns the geometric distance [m] corrected for the Sagnac effect
// and the receiver-to-satellite unit vector, or -1 when the satellite
// position is invalid.
func geodist(rs PosXYZ, rr PosXYZ) (r float64, e [3]float64) {
	if rs.Norm() < Re {
		return -1, e
	}
	e = [3]float64{rs.X - rr.X, rs.Y - rr.Y, rs.Z - rr.Z}
	r = norm3(e)
	for i := range e {
		e[i] /= r
	}
	return r + We*(rs.X*rr.Y-rs.Y*rr.X)/C, e
}

// satAzel returns azimuth and elevation [rad] of the line of sight e at pos.
func satAzel(pos PosLLH, e [3]float64) [2]float64 {
	enu := ecefToENUVec(pos, e)
	az := 0.0
	if enu[0]*enu[0]+enu[1]*enu[1] > 1e-12 {
		az = math.Atan2(enu[0], enu[1])
		if az < 0 {
			az += 2 * PI
		}
	}
	return [2]float64{az, math.Asin(enu[2])}
}

// varerr returns the observation error variance of one measurement.
// type 0 is carrier phase, 1 is pseudorange.
func varerr(sat SatID, el float64, freq, typ int, opt *PPPOpt) float64 {
	fact := 1.0
	if typ == 1 {
		if freq == 0 {
			fact *= opt.ERatio[0]
		} else {
			fact *= opt.ERatio[1]
		}
	}
	if sat.Sys() == 'R' {
		fact *= 1.5
	}
	if sat.Sys() == 'G' && freq == 2 {
		fact *= EFactGPSL5
	}
	if opt.IonoModel == IonoIFLC {
		fact *= 3.0
	}
	sinel := math.Sin(el)
	return SQ(fact*opt.ErrA) + SQ(fact*opt.ErrB/sinel)
}

// resBuf accumulates measurement rows before they are assembled into the
// dense innovation, design and covariance structures the filter consumes.
type resBuf struct {
	nx  int
	v   []float64
	h   []float64 // Row-major nv x nx
	vrr []float64
}

func newResBuf(nx, cap_ int) *resBuf {
	return &resBuf{
		nx:  nx,
		v:   make([]float64, 0, cap_),
		h:   make([]float64, 0, cap_*nx),
		vrr: make([]float64, 0, cap_),
	}
}

// push appends one measurement row. The row slice is consumed.
func (b *resBuf) push(v float64, row []float64, varr float64) {
	b.v = append(b.v, v)
	b.h = append(b.h, row...)
	b.vrr = append(b.vrr, varr)
}

// assemble returns the gonum structures for the accumulated rows.
func (b *resBuf) assemble() (*mat.VecDense, *mat.Dense, *mat.Dense) {
	nv := len(b.v)
	if nv == 0 {
		return nil, nil, nil
	}
	v := mat.NewVecDense(nv, b.v)
	H := mat.NewDense(nv, b.nx, b.h)
	R := mat.NewDense(nv, nv, nil)
	for i := 0; i < nv; i++ {
		R.Set(i, i, b.vrr[i])
	}
	return v, H, R
}

// pppRes builds the innovation vector, design matrix and observation
// covariance for one filter iteration. post is 0 for the pre-fit pass and the
// iteration number for post-fit passes. exc marks excluded satellites and is
// extended in place. The post-fit return value reports whether the residuals
// passed the rejection test (at most the single worst outlier is excluded per
// pass).
func (s *Session) pppRes(post int, t GTime, obs []ObsD, pvs []SatPV,
	dr [3]float64, exc []bool, nav *NavContext, e *Estimate,
	azel [][2]float64) (v *mat.VecDense, H *mat.Dense, R *mat.Dense, ok bool) {

	opt := s.Opt
	nx := s.L.NX
	x := e.X

	for i := range s.Sat {
		s.Sat[i].Vsat = [NFREQ]bool{}
	}
	rr := PosXYZ{
		X: x.AtVec(0) + dr[0],
		Y: x.AtVec(1) + dr[1],
		Z: x.AtVec(2) + dr[2],
	}
	pos := rr.ToLLH()

	buf := newResBuf(nx, len(obs)*2*s.L.NF+MaxSat+3)
	// Large post-fit residual candidates.
	type cand struct {
		obsIdx int
		j      int
		v      float64
	}
	var large []cand
	var dantr, dants [NFREQ]float64

	for i := range obs {
		sat := obs[i].Sat
		pv := &pvs[i]

		r, eu := geodist(pv.Pos, rr)
		if r <= 0 {
			exc[i] = true
			continue
		}
		azel[i] = satAzel(pos, eu)
		if azel[i][1] < opt.ElMask {
			exc[i] = true
			continue
		}
		if !sat.Sys().IsValid() || !s.Sat[sat].VS || exc[i] ||
			pv.Health != 0 || pv.Var > opt.MaxVarURA {
			exc[i] = true
			continue
		}
		// Atmospheric models; a satellite without both is unusable.
		var dtdx [3]float64
		dtrp, vart, okT := s.modelTrop(t, pos, azel[i], nav, &dtdx)
		dion, vari, okI := s.modelIono(t, pos, azel[i], sat, nav)
		if !okT || !okI {
			continue
		}
		// Antenna models and phase windup.
		if opt.SatPCVCorr {
			satAntPCV(pv.Pos, rr, nav.SatPCV[sat], &dants)
		} else {
			dants = [NFREQ]float64{}
		}
		antModel(opt.RecPCV, [3]float64{opt.AntDel.E, opt.AntDel.N, opt.AntDel.U},
			ecefToENUVec(pos, eu), azel[i][1], &dantr)
		if opt.PhaseWindup {
			if !modelPhw(t, pv, rr, &s.Sat[sat].Phw) {
				continue
			}
		}
		L, P, Lc, Pc := corrMeas(&obs[i], nav, azel[i], opt, &dantr, &dants, s.Sat[sat].Phw)

		lam := &nav.Lam[sat]
		// Stack phase and code rows {L1,P1,L2,P2,...}.
		for j := 0; j < 2*s.L.NF; j++ {
			freq := j / 2
			code := j % 2 // 0: phase, 1: code

			var y, dcb, bias float64
			if opt.IonoModel == IonoIFLC {
				if code == 0 {
					y = Lc
				} else {
					y = Pc
				}
			} else {
				if code == 0 {
					y = L[freq]
				} else {
					y = P[freq]
				}
				// Receiver P2 DCB.
				if freq == 1 && code == 1 {
					if sat.Sys() == 'R' {
						dcb = -nav.RBias[1]
					} else {
						dcb = -nav.RBias[0]
					}
				}
			}
			if y == 0 {
				continue
			}
			cf := 0.0
			if lam[0] != 0 && lam[freq] != 0 {
				cf = SQ(lam[freq]/lam[0]) * IonMapf(pos, azel[i][1])
				if code == 0 {
					cf = -cf
				}
			}
			row := make([]float64, nx)
			row[0] = -eu[0]
			row[1] = -eu[1]
			row[2] = -eu[2]

			// Receiver clock of the satellite's system.
			ic := s.L.IC(sat.SysIndex())
			cdtr := x.AtVec(ic)
			row[ic] = 1.0

			if opt.TropModel == TropEst || opt.TropModel == TropEstG {
				nt := 1
				if opt.TropModel == TropEstG {
					nt = 3
				}
				for k := 0; k < nt; k++ {
					row[s.L.IT()+k] = dtdx[k]
				}
			}
			if opt.IonoModel == IonoEst {
				if x.AtVec(s.L.II(sat)) == 0 {
					continue
				}
				row[s.L.II(sat)] = cf
			}
			if freq == 2 && code == 1 {
				// Third-frequency code carries the receiver inter-frequency
				// bias.
				dcb += x.AtVec(s.L.ID())
				row[s.L.ID()] = 1.0
			}
			if code == 0 {
				bias = x.AtVec(s.L.IB(sat, freq))
				if bias == 0 {
					continue
				}
				row[s.L.IB(sat, freq)] = 1.0
			}
			res := y - (r + cdtr - C*pv.Dts + dtrp + cf*dion + dcb + bias)

			if code == 0 {
				s.Sat[sat].Resc[freq] = res
			} else {
				s.Sat[sat].Resp[freq] = res
			}
			vr := varerr(sat, azel[i][1], freq, code, opt) +
				vart + SQ(cf)*vari + pv.Var
			if sat.Sys() == 'R' && code == 1 {
				vr += VarGloIFB
			}
			PrintD(4, "pppRes: sat=%s %s%d res=%9.4f sig=%9.4f el=%4.1f\n",
				sat, lpName(code), freq+1, res, math.Sqrt(vr), ToDeg(azel[i][1]))

			// Pre-fit innovation gate.
			if post == 0 && opt.MaxInno > 0 && math.Abs(res) > opt.MaxInno {
				PrintD(2, "pppRes: outlier (%d) rejected sat=%s %s%d res=%9.4f el=%4.1f\n",
					post, sat, lpName(code), freq+1, res, ToDeg(azel[i][1]))
				exc[i] = true
				s.Sat[sat].Rejc[code]++
				continue
			}
			// Record large post-fit residuals.
			if post > 0 && math.Abs(res) > math.Sqrt(vr)*ThresReject {
				large = append(large, cand{obsIdx: i, j: j, v: res})
			}
			if code == 0 {
				s.Sat[sat].Vsat[freq] = true
			}
			s.Sat[sat].Dion = dion
			s.Sat[sat].Vari = vari
			buf.push(res, row, vr)
		}
	}
	// Reject the satellite with the single largest post-fit residual; one
	// rejection per iteration keeps a bad satellite from dragging others out.
	ok = true
	if post > 0 && len(large) > 0 {
		rej := 0
		for j := 1; j < len(large); j++ {
			if math.Abs(large[j].v) > math.Abs(large[rej].v) {
				rej = j
			}
		}
		c := large[rej]
		sat := obs[c.obsIdx].Sat
		PrintD(2, "pppRes: outlier (%d) rejected sat=%s %s%d res=%9.4f el=%4.1f\n",
			post, sat, lpName(c.j%2), c.j/2+1, c.v, ToDeg(azel[c.obsIdx][1]))
		exc[c.obsIdx] = true
		s.Sat[sat].Rejc[c.j%2]++
		ok = false
	}
	// Soft constraints from the external correction feed.
	s.constCorr(t, obs, exc, nav, x, pos, buf)

	v, H, R = buf.assemble()
	return v, H, R, ok
}

func lpName(code int) string {
	if code == 1 {
		return "P"
	}
	return "L"
}

// constCorr appends pseudo-observations constraining the estimated
// troposphere and ionosphere states to the external correction feed.
func (s *Session) constCorr(t GTime, obs []ObsD, exc []bool, nav *NavContext,
	x *mat.VecDense, pos PosLLH, buf *resBuf) {

	if nav.Corr == nil {
		return
	}
	opt := s.Opt
	if opt.TropModel == TropEst || opt.TropModel == TropEstG {
		if corr, ok := nav.Corr.Trop(t, pos); ok {
			nt := 1
			if opt.TropModel == TropEstG {
				nt = 3
			}
			for i := 0; i < nt; i++ {
				if corr.Std[i] == 0 {
					continue
				}
				j := s.L.IT() + i
				row := make([]float64, s.L.NX)
				row[j] = 1.0
				buf.push(corr.Trp[i]-x.AtVec(j), row, SQ(corr.Std[i]))
			}
		}
	}
	if opt.IonoModel == IonoEst {
		if corr, ok := s.Stec.field(t, pos, nav.Corr); ok {
			for i := range obs {
				sat := obs[i].Sat
				if exc[i] || int(sat) >= len(corr.Iono) ||
					corr.Iono[sat] == 0 || corr.Std[sat] > 0.5 {
					continue
				}
				j := s.L.II(sat)
				row := make([]float64, s.L.NX)
				row[j] = 1.0
				buf.push(corr.Iono[sat]-x.AtVec(j), row, SQ(corr.Std[sat]))
			}
		}
	}
}
