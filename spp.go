// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

// Implements the standalone pseudorange solution seeding each filter epoch.

package goppp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	sppMaxIter = 10   // Max least-squares iterations
	sppConvTol = 1e-4 // Position increment accepted as converged [m]
	sppMaxRej  = 3    // Max satellites excluded by the residual test
)

// solveLS solves the observation equation by weighted least squares,
// dx = (G^t W G)^-1 G^t W dr with the diagonal weights w, and returns the
// solution with its error covariance (G^t W G)^-1.
func solveLS(G mat.Matrix, dr mat.Vector, w []float64) (*mat.VecDense, *mat.Dense, error) {
	W := mat.NewDiagDense(len(w), w)
	var WG mat.Dense
	WG.Mul(W, G)
	var A mat.Dense
	A.Mul(G.T(), &WG)

	var GtW mat.Dense
	GtW.Mul(G.T(), W)
	var b mat.VecDense
	b.MulVec(&GtW, dr)

	var dx mat.VecDense
	if err := dx.SolveVec(&A, &b); err != nil {
		return nil, nil, fmt.Errorf("normal equations are singular, err= %s", err.Error())
	}
	var cov mat.Dense
	if err := cov.Inverse(&A); err != nil {
		return nil, nil, err
	}
	return &dx, &cov, nil
}

// sppRange returns the pseudorange of one satellite for the standalone solve:
// the iono-free combination when both frequencies carry code, the raw first
// frequency otherwise. A zero return marks an unusable observation.
func sppRange(o *ObsD, nav *NavContext) (psr float64, iflc bool) {
	lam := &nav.Lam[o.Sat]
	k := pairIdx(o.Sat.Sys())
	if lam[0] != 0 && lam[k] != 0 && o.P[0] != 0 && o.P[k] != 0 {
		c1 := SQ(lam[k]) / (SQ(lam[k]) - SQ(lam[0]))
		c2 := -SQ(lam[0]) / (SQ(lam[k]) - SQ(lam[0]))
		return c1*o.P[0] + c2*o.P[k], true
	}
	return o.P[0], false
}

// sppFit is the outcome of one converged standalone solve.
type sppFit struct {
	used []int      // Observation indices in the final solve
	res  []float64  // Their residuals at the solution [m]
	vr   []float64  // Their modeled variances [m^2]
	cov  *mat.Dense // Error covariance of the last update
	nx   int        // Number of unknowns
	cols [NSys]int  // Clock column per system slot, -1 when absent
}

// sppEstimate iterates the weighted least-squares solve to convergence,
// updating rr and clk in place. The clock columns follow the systems present,
// so the unknown count adapts to the constellation of the epoch. Elevation
// mask and atmosphere models apply once the position has left the origin.
func (s *Session) sppEstimate(t GTime, obs []ObsD, pvs []SatPV, nav *NavContext,
	usable, exc []bool, azel [][2]float64, rr *PosXYZ, clk *[NSys]float64) (*sppFit, error) {

	opt := s.Opt
	type rowd struct {
		idx  int
		e    [3]float64
		res  float64 // Residual before the receiver clock is removed
		varr float64
	}
	var cov *mat.Dense
	done := false
	for iter := 0; iter < sppMaxIter; iter++ {
		pos := rr.ToLLH()
		var rows []rowd
		var ns [NSys]int
		for i := range obs {
			if !usable[i] || exc[i] {
				continue
			}
			sat := obs[i].Sat
			pv := &pvs[i]
			r, e := geodist(pv.Pos, *rr)
			if r <= 0 {
				continue
			}
			azel[i] = satAzel(pos, e)
			psr, iflc := sppRange(&obs[i], nav)
			var dion, vion, dtrp, vtrp float64
			if iter > 0 && rr.Norm() > 0 {
				if azel[i][1] < opt.ElMask {
					continue
				}
				if !iflc {
					dion = IonModel(t, nav.IonParam, pos, azel[i])
					vion = SQ(dion * ErrBrdcIono)
				}
				dtrp = TropModel(pos, azel[i][1], RelHumidity)
				vtrp = SQ(ErrSaas / (math.Sin(azel[i][1]) + 0.1))
			}
			wel := math.Max(azel[i][1], ToRad(5))
			rows = append(rows, rowd{
				idx:  i,
				e:    e,
				res:  psr - (r - C*pv.Dts + dion + dtrp),
				varr: varerr(sat, wel, 0, 1, opt) + pv.Var + vion + vtrp,
			})
			ns[sat.SysIndex()]++
		}
		cols := [NSys]int{-1, -1, -1, -1}
		nx := 3
		for i := 0; i < NSys; i++ {
			if ns[i] > 0 {
				cols[i] = nx
				nx++
			}
		}
		if len(rows) < nx {
			return nil, fmt.Errorf("not enough satellites: %d < %d", len(rows), nx)
		}
		n := len(rows)
		G := mat.NewDense(n, nx, nil)
		dr := mat.NewVecDense(n, nil)
		w := make([]float64, n)
		for j, rw := range rows {
			G.Set(j, 0, -rw.e[0])
			G.Set(j, 1, -rw.e[1])
			G.Set(j, 2, -rw.e[2])
			c := cols[obs[rw.idx].Sat.SysIndex()]
			G.Set(j, c, 1)
			dr.SetVec(j, rw.res-clk[obs[rw.idx].Sat.SysIndex()])
			w[j] = 1.0 / rw.varr
		}
		// The converged pass only refreshes the residuals at the solution.
		if done {
			fit := &sppFit{nx: nx, cols: cols, cov: cov}
			for j, rw := range rows {
				fit.used = append(fit.used, rw.idx)
				fit.res = append(fit.res, dr.AtVec(j))
				fit.vr = append(fit.vr, rw.varr)
			}
			return fit, nil
		}
		dx, cv, err := solveLS(G, dr, w)
		if err != nil {
			return nil, err
		}
		cov = cv
		rr.X += dx.AtVec(0)
		rr.Y += dx.AtVec(1)
		rr.Z += dx.AtVec(2)
		for i := 0; i < NSys; i++ {
			if cols[i] >= 0 {
				clk[i] += dx.AtVec(cols[i])
			}
		}
		if norm3([3]float64{dx.AtVec(0), dx.AtVec(1), dx.AtVec(2)}) < sppConvTol {
			done = true
		}
	}
	return nil, fmt.Errorf("standalone solution did not converge")
}

// sppPos computes the standalone pseudorange solution of one epoch and stores
// it in s.Sol: receiver position, per-system clock biases and, from
// consecutive standalone fixes, the velocity. The satellites used are marked
// valid with their azimuth/elevation; the temporal update consumes both the
// solution and the flags. The epoch quality stays SolSingle until the filter
// upgrades it.
func (s *Session) sppPos(t GTime, obs []ObsD, pvs []SatPV, nav *NavContext) error {
	opt := s.Opt
	rr := s.Sol.Pos
	var clk [NSys]float64
	for i := 0; i < NSys; i++ {
		clk[i] = C * s.Sol.Dtr[0]
		if i > 0 {
			clk[i] += C * s.Sol.Dtr[i]
		}
	}
	usable := make([]bool, len(obs))
	for i := range obs {
		sat := obs[i].Sat
		psr, _ := sppRange(&obs[i], nav)
		usable[i] = psr != 0 && sat.Sys().IsValid() && pvs[i].Pos.Norm() > 0 &&
			pvs[i].Health == 0 && pvs[i].Var <= opt.MaxVarURA
	}
	exc := make([]bool, len(obs))
	azel := make([][2]float64, len(obs))

	var fit *sppFit
	for rej := 0; ; rej++ {
		var err error
		fit, err = s.sppEstimate(t, obs, pvs, nav, usable, exc, azel, &rr, &clk)
		if err != nil {
			return err
		}
		// Residual test: exclude the worst standardized residual and solve
		// again while redundancy lasts.
		wi, wd := -1, ThresReject
		for j, i := range fit.used {
			if d := math.Abs(fit.res[j]) / math.Sqrt(fit.vr[j]); d > wd {
				wi, wd = i, d
			}
		}
		if wi < 0 || len(fit.used) <= fit.nx {
			break
		}
		if rej >= sppMaxRej {
			return fmt.Errorf("standalone residual test failed: sat=%s", obs[wi].Sat)
		}
		PrintD(2, "sppPos: outlier excluded sat=%s norm res=%9.4f\n", obs[wi].Sat, wd)
		exc[wi] = true
	}
	// Validity and azimuth/elevation of the epoch. Satellites excluded by the
	// residual test keep their validity; the filter gates them itself.
	for i := range obs {
		if usable[i] {
			s.Sat[obs[i].Sat].Azel = azel[i]
		}
		if exc[i] {
			s.Sat[obs[i].Sat].VS = true
		}
	}
	for _, i := range fit.used {
		s.Sat[obs[i].Sat].VS = true
	}

	s.Sol.Stat = SolSingle
	s.Sol.NS = len(fit.used)
	s.Sol.Pos = rr
	if fit.cov != nil {
		s.Sol.QR = [6]float64{
			fit.cov.At(0, 0), fit.cov.At(1, 1), fit.cov.At(2, 2),
			fit.cov.At(0, 1), fit.cov.At(1, 2), fit.cov.At(2, 0),
		}
	}
	if fit.cols[0] >= 0 {
		s.Sol.Dtr[0] = clk[0] / C
	}
	for i := 1; i < NSys; i++ {
		if fit.cols[i] >= 0 {
			s.Sol.Dtr[i] = (clk[i] - clk[0]) / C
		}
	}
	// Velocity from consecutive standalone fixes. The raw observations carry
	// no Doppler, so position differencing is the only source.
	if s.prevSpp.Norm() > 0 && s.TT > 0 {
		s.Sol.Vel = [3]float64{
			(rr.X - s.prevSpp.X) / s.TT,
			(rr.Y - s.prevSpp.Y) / s.TT,
			(rr.Z - s.prevSpp.Z) / s.TT,
		}
	}
	s.prevSpp = rr

	PrintD(3, "sppPos: ns=%d pos=%.3f %.3f %.3f dtr=%12.9f\n",
		s.Sol.NS, rr.X, rr.Y, rr.Z, s.Sol.Dtr[0])
	return nil
}
