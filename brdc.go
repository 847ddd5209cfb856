// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

// Implements an EphemerisSource backed by broadcast navigation messages.

package goppp

import (
	"math"
)

// Ephe is one broadcast ephemeris record. Kepler fields are used for
// GPS/Galileo/BeiDou; the state vector fields for GLONASS.
type Ephe struct {
	Sat  SatID
	Toc  GTime // Time of clock
	Toe  GTime // Time of ephemeris
	Tot  GTime // Time of transmission
	Week int
	Iode int
	Iodc int
	Sva  int // URA/SISA index
	Svh  int // Health flag, 0 = healthy

	// Kepler elements and corrections.
	SqrtA, Ecc, M0, DeltaN          float64
	Omega0, OmegaD, Omega, I0, Idot float64
	Cuc, Cus, Crc, Crs, Cic, Cis    float64
	Af0, Af1, Af2                   float64
	Tgd, Tgd2                       float64
	Fit                             float64

	// GLONASS state vector [m, m/s, m/s^2] and clock.
	Pos, Vel, Acc [3]float64
	TauN, GammaN  float64
	FreqN         int // FDMA frequency channel number
	Age           int
}

// BrdcNav holds the broadcast ephemerides of all satellites plus the
// ionosphere parameters of the navigation message header. It implements
// EphemerisSource.
type BrdcNav struct {
	Ephs     [MaxSat + 1][]*Ephe // Sorted by Tot
	IonParam [8]float64          // Klobuchar alpha/beta
}

// Maximum ephemeris age |t - Toe| accepted per system [s].
func maxDToe(sys SysType) float64 {
	switch sys {
	case 'R':
		return 1800
	case 'E':
		return 14400
	case 'C':
		return 21600
	}
	return 7200
}

// Select returns the ephemeris of a satellite valid at time t, preferring the
// smallest |t - Toe|. It returns nil when none is within the validity window.
func (n *BrdcNav) Select(sat SatID, t GTime) *Ephe {
	var best *Ephe
	dmin := maxDToe(sat.Sys())
	for _, e := range n.Ephs[sat] {
		if d := math.Abs(t.Diff(e.Toe)); d <= dmin {
			best = e
			dmin = d
		}
	}
	return best
}

// Positions evaluates satellite positions, velocities and clocks at signal
// transmission for one observation batch. Entries without a usable ephemeris
// or pseudorange are left zeroed.
func (n *BrdcNav) Positions(t GTime, obs []ObsD) []SatPV {
	pvs := make([]SatPV, len(obs))
	for i := range obs {
		sat := obs[i].Sat
		psr := 0.0
		for f := 0; f < NFREQ; f++ {
			if obs[i].P[f] != 0 {
				psr = obs[i].P[f]
				break
			}
		}
		if psr == 0 {
			continue
		}
		e := n.Select(sat, t)
		if e == nil {
			PrintD(3, "Positions: no ephemeris %s\n", sat)
			continue
		}
		// Pseudorange corrected by the satellite clock, then the orbit.
		psr2 := psr + ephClk(e, t, psr)*C
		pvs[i].Pos = ephPos(e, t, psr2)
		pvs[i].Dts = ephClk(e, t, psr2)
		// Velocity and clock drift by differencing over a short step.
		tt := 1e-3
		t2 := GTime{Week: t.Week, Sec: t.Sec + tt}
		p2 := ephPos(e, t2, psr2)
		pvs[i].Vel = [3]float64{
			(p2.X - pvs[i].Pos.X) / tt,
			(p2.Y - pvs[i].Pos.Y) / tt,
			(p2.Z - pvs[i].Pos.Z) / tt,
		}
		pvs[i].Ddts = (ephClk(e, t2, psr2) - pvs[i].Dts) / tt
		pvs[i].Var = uraVar(sat.Sys(), e.Sva)
		pvs[i].Health = e.Svh
	}
	return pvs
}

// Wavelengths overrides the nominal GLONASS wavelengths of a NavContext with
// the per-channel FDMA values from the broadcast frequency numbers.
func (n *BrdcNav) Wavelengths(nav *NavContext) {
	for sat := SatID(NSatGPS + 1); sat <= NSatGPS+NSatGLO; sat++ {
		if len(n.Ephs[sat]) == 0 {
			continue
		}
		k := float64(n.Ephs[sat][0].FreqN)
		nav.Lam[sat][0] = C / (G1 + G1d*k)
		nav.Lam[sat][1] = C / (G2 + G2d*k)
	}
}

// ephPos calculates the ECEF satellite position at signal transmission from
// the reception time and the clock-corrected pseudorange. The earth rotation
// during signal flight is included.
func ephPos(e *Ephe, rcvt GTime, psr float64) (xyz PosXYZ) {
	sys := e.Sat.Sys()
	switch sys {
	case 'G', 'E', 'C':
		mu := 3.986005e14
		if sys == 'E' || sys == 'C' {
			mu = 3.986004418e14
		}
		omge := We
		if sys == 'C' {
			omge = 7.292115e-5
		}
		tk0 := rcvt.Diff(e.Toe)
		tk := tk0 - psr/C
		nn := math.Sqrt(mu)/e.SqrtA/e.SqrtA/e.SqrtA + e.DeltaN
		mk := e.M0 + nn*tk
		ek := mk
		for i := 0; i < 10; i++ {
			ek = mk + e.Ecc*math.Sin(ek)
		}
		rk := e.SqrtA * e.SqrtA * (1 - e.Ecc*math.Cos(ek))
		vk := math.Atan2(math.Sqrt(1-e.Ecc*e.Ecc)*math.Sin(ek), math.Cos(ek)-e.Ecc)
		pk := vk + e.Omega
		uk := pk + e.Cus*math.Sin(2*pk) + e.Cuc*math.Cos(2*pk)
		rk += e.Crs*math.Sin(2*pk) + e.Crc*math.Cos(2*pk)
		ik := e.I0 + e.Cis*math.Sin(2*pk) + e.Cic*math.Cos(2*pk) + e.Idot*tk
		xk := rk * math.Cos(uk)
		yk := rk * math.Sin(uk)
		// Ascending node with earth rotation during signal flight.
		toes := e.Toe.Sec
		if sys == 'C' {
			toes -= 14 // BDT offset already applied to Toe
		}
		omk := e.Omega0 + (e.OmegaD-omge)*tk0 - omge*toes
		xyz.X = xk*math.Cos(omk) - yk*math.Sin(omk)*math.Cos(ik)
		xyz.Y = xk*math.Sin(omk) + yk*math.Cos(omk)*math.Cos(ik)
		xyz.Z = yk * math.Sin(ik)
		if sys == 'C' && (e.Sat.Prn() <= 5 || e.Sat.Prn() >= 59) {
			// BeiDou GEO: inclined-by-minus-5-degree frame.
			omk = e.Omega0 + e.OmegaD*tk0 - omge*toes
			xg := xk*math.Cos(omk) - yk*math.Sin(omk)*math.Cos(ik)
			yg := xk*math.Sin(omk) + yk*math.Cos(omk)*math.Cos(ik)
			zg := yk * math.Sin(ik)
			sino, coso := math.Sin(omge*tk0), math.Cos(omge*tk0)
			sin5, cos5 := math.Sin(ToRad(-5)), math.Cos(ToRad(-5))
			xyz.X = xg*coso + yg*sino*cos5 + zg*sino*sin5
			xyz.Y = -xg*sino + yg*coso*cos5 + zg*coso*sin5
			xyz.Z = -yg*sin5 + zg*cos5
		}
	case 'R':
		tk := rcvt.Diff(e.Toe) - psr/C
		var x [6]float64
		x[0], x[1], x[2] = e.Pos[0], e.Pos[1], e.Pos[2]
		x[3], x[4], x[5] = e.Vel[0], e.Vel[1], e.Vel[2]
		const tstep = 60.0
		tt := tstep
		if tk < 0 {
			tt = -tstep
		}
		for math.Abs(tk) > 1e-9 {
			if math.Abs(tk) < tstep {
				tt = tk
			}
			glorbit(tt, &x, e.Acc)
			tk -= tt
		}
		// Earth rotation during signal flight.
		omk := We * psr / C
		xyz.X = x[0]*math.Cos(omk) + x[1]*math.Sin(omk)
		xyz.Y = -x[0]*math.Sin(omk) + x[1]*math.Cos(omk)
		xyz.Z = x[2]
	}
	return
}

// ephClk calculates the satellite clock correction [s] including the
// relativistic term and the broadcast group delay.
func ephClk(e *Ephe, rcvt GTime, psr float64) (dts float64) {
	sys := e.Sat.Sys()
	switch sys {
	case 'G', 'E', 'C':
		mu := 3.986005e14
		if sys == 'E' || sys == 'C' {
			mu = 3.986004418e14
		}
		tk := rcvt.Diff(e.Toe) - psr/C
		nn := math.Sqrt(mu)/e.SqrtA/e.SqrtA/e.SqrtA + e.DeltaN
		mk := e.M0 + nn*tk
		ek := mk
		for i := 0; i < 10; i++ {
			ek = mk + e.Ecc*math.Sin(ek)
		}
		tr := -2 * math.Sqrt(mu) / C / C * e.Ecc * e.SqrtA * math.Sin(ek)
		tk = rcvt.Diff(e.Toc) - psr/C
		dt := e.Af0 + e.Af1*tk + e.Af2*tk*tk
		tg := e.Tgd
		if sys == 'E' {
			tg = e.Tgd2 // E1/E5b
		}
		dts = tr + dt - tg
	case 'R':
		tk := rcvt.Diff(e.Toe) - psr/C
		dts = -e.TauN + e.GammaN*tk
	}
	return
}

// glonass orbit differential equations with J2 perturbation
func deq(x [6]float64, xdot *[6]float64, acc [3]float64) {
	const omge = 7.292115e-5
	const omg2 = omge * omge
	const j2 = 1.0826257e-3
	const mu = 3.9860044e14
	const re = 6378136.0

	r2 := x[0]*x[0] + x[1]*x[1] + x[2]*x[2]
	r3 := r2 * math.Sqrt(r2)
	if r2 <= 0 {
		*xdot = [6]float64{}
		return
	}
	a := 1.5 * j2 * mu * (re * re) / r2 / r3
	b := 5.0 * x[2] * x[2] / r2
	c := -mu/r3 - a*(1.0-b)
	xdot[0], xdot[1], xdot[2] = x[3], x[4], x[5]
	xdot[3] = (c+omg2)*x[0] + 2.0*omge*x[4] + acc[0]
	xdot[4] = (c+omg2)*x[1] - 2.0*omge*x[3] + acc[1]
	xdot[5] = (c-2.0*a)*x[2] + acc[2]
}

// glorbit integrates the GLONASS state vector by one RK4 step of length t.
func glorbit(t float64, x *[6]float64, acc [3]float64) {
	var k1, k2, k3, k4, w [6]float64
	deq(*x, &k1, acc)
	for i := 0; i < 6; i++ {
		w[i] = x[i] + k1[i]*t/2.0
	}
	deq(w, &k2, acc)
	for i := 0; i < 6; i++ {
		w[i] = x[i] + k2[i]*t/2.0
	}
	deq(w, &k3, acc)
	for i := 0; i < 6; i++ {
		w[i] = x[i] + k3[i]*t
	}
	deq(w, &k4, acc)
	for i := 0; i < 6; i++ {
		x[i] += (k1[i] + 2.0*k2[i] + 2.0*k3[i] + k4[i]) * t / 6.0
	}
}

// uraVar returns the ephemeris variance [m^2] for a URA or SISA index.
func uraVar(sys SysType, ura int) float64 {
	uraVal := [...]float64{2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0,
		96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0}
	switch sys {
	case 'E': // Galileo SIS ICD SISA
		switch {
		case ura <= 49:
			return SQ(float64(ura) * 0.01)
		case ura <= 74:
			return SQ(0.5 + (float64(ura)-50)*0.02)
		case ura <= 99:
			return SQ(1.0 + (float64(ura)-75)*0.04)
		case ura <= 125:
			return SQ(2.0 + (float64(ura)-100)*0.16)
		default:
			return SQ(500.0)
		}
	case 'R':
		return SQ(5.0)
	default:
		if ura < 0 || ura > 14 {
			return SQ(6144.0)
		}
		return SQ(uraVal[ura])
	}
}
