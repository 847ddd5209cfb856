// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"math"
	"strings"
)

const (
	AU         = 149597870691.0 // 1 AU [m]
	gpsUTCLeap = 18.0           // GPS-UTC leap seconds since 2017
)

// PCV is an antenna phase center model: per-frequency offsets plus an
// elevation (receiver, 5 deg zenith steps) or nadir (satellite, 1 deg steps)
// variation table.
type PCV struct {
	Type string
	Off  [NFREQ][3]float64 // ENU for receiver, body-fixed for satellite [m]
	Var  [NFREQ][]float64  // Phase center variation [m]
}

func interpVar(ang float64, v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	a := ang / 5.0
	i := int(a)
	if i < 0 {
		return v[0]
	} else if i >= len(v)-1 {
		return v[len(v)-1]
	}
	return v[i]*(1.0-a+float64(i)) + v[i+1]*(a - float64(i))
}

// antModel returns the receiver antenna corrections per frequency for the
// line of sight e (ENU unit vector toward the satellite).
func antModel(pcv *PCV, del [3]float64, e [3]float64, el float64, dant *[NFREQ]float64) {
	for i := 0; i < NFREQ; i++ {
		var off [3]float64
		for j := 0; j < 3; j++ {
			off[j] = del[j]
			if pcv != nil {
				off[j] += pcv.Off[i][j]
			}
		}
		dant[i] = -dot3(off, e)
		if pcv != nil {
			dant[i] += interpVar(90.0-ToDeg(el), pcv.Var[i])
		}
	}
}

// satAntPCV returns the satellite antenna phase center variation per
// frequency, from the nadir angle of the receiver seen from the satellite.
func satAntPCV(rs PosXYZ, rr PosXYZ, pcv *PCV, dant *[NFREQ]float64) {
	for i := range dant {
		dant[i] = 0
	}
	if pcv == nil {
		return
	}
	ru := [3]float64{rr.X - rs.X, rr.Y - rs.Y, rr.Z - rs.Z}
	rz := [3]float64{-rs.X, -rs.Y, -rs.Z}
	eu, ok1 := normv3(ru)
	ez, ok2 := normv3(rz)
	if !ok1 || !ok2 {
		return
	}
	cosa := dot3(eu, ez)
	cosa = math.Min(1, math.Max(-1, cosa))
	nadir := math.Acos(cosa)
	for i := 0; i < NFREQ; i++ {
		dant[i] = interpVar(ToDeg(nadir)*5.0, pcv.Var[i])
	}
}

// gmst returns Greenwich mean sidereal time [rad] for a GPS time.
func gmst(t GTime) float64 {
	tut := GTime{Week: t.Week, Sec: t.Sec - gpsUTCLeap}
	td := tut.Diff(j2000)
	t1 := td / 86400.0 / 36525.0
	ut := math.Mod(td, 86400.0)
	gmst0 := 24110.54841 + 8640184.812866*t1 + 0.093104*t1*t1 - 6.2e-6*t1*t1*t1
	g := gmst0 + 1.002737909350795*ut
	return math.Mod(g, 86400.0) * PI / 43200.0
}

// sunPosECEF returns a low precision sun position in ECEF [m]. Precession,
// nutation and polar motion are ignored; the residual rotation error is far
// below what the windup and eclipse tests need.
func sunPosECEF(t GTime) [3]float64 {
	tut := GTime{Week: t.Week, Sec: t.Sec - gpsUTCLeap}
	tc := tut.Diff(j2000) / 86400.0 / 36525.0

	eps := ToRad(23.439291 - 0.0130042*tc)
	sine, cose := math.Sin(eps), math.Cos(eps)
	ms := ToRad(357.5277233 + 35999.05034*tc)
	ls := ToRad(280.460 + 36000.770*tc + 1.914666471*math.Sin(ms) +
		0.019994643*math.Sin(2.0*ms))
	rs := AU * (1.000140612 - 0.016708617*math.Cos(ms) - 0.000139589*math.Cos(2.0*ms))
	sinl, cosl := math.Sin(ls), math.Cos(ls)
	eci := [3]float64{rs * cosl, rs * cose * sinl, rs * sine * sinl}

	g := gmst(t)
	sing, cosg := math.Sin(g), math.Cos(g)
	return [3]float64{
		cosg*eci[0] + sing*eci[1],
		-sing*eci[0] + cosg*eci[1],
		eci[2],
	}
}

func yawNominal(beta, mu float64) float64 {
	if math.Abs(beta) < 1e-12 && math.Abs(mu) < 1e-12 {
		return PI
	}
	return math.Atan2(-math.Tan(beta), math.Sin(mu)) + PI
}

// satYaw returns the satellite body-fixed x and y unit vectors in ECEF under
// the nominal yaw attitude model.
func satYaw(t GTime, pv *SatPV) (exs, eys [3]float64, ok bool) {
	rsun := sunPosECEF(t)

	// Inertial velocity and orbit normal.
	vi := [3]float64{
		pv.Vel[0] - We*pv.Pos.Y,
		pv.Vel[1] + We*pv.Pos.X,
		pv.Vel[2],
	}
	rs := [3]float64{pv.Pos.X, pv.Pos.Y, pv.Pos.Z}
	n := cross3(rs, vi)
	p := cross3(rsun, n)
	es, ok1 := normv3(rs)
	esun, ok2 := normv3(rsun)
	en, ok3 := normv3(n)
	ep, ok4 := normv3(p)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return exs, eys, false
	}
	beta := PI/2.0 - math.Acos(dot3(esun, en))
	e := math.Acos(dot3(es, ep))
	mu := PI / 2.0
	if dot3(es, esun) <= 0 {
		mu -= e
	} else {
		mu += e
	}
	if mu < -PI/2.0 {
		mu += 2.0 * PI
	} else if mu >= PI/2.0 {
		mu -= 2.0 * PI
	}
	yaw := yawNominal(beta, mu)

	ex := cross3(en, es)
	cosy, siny := math.Cos(yaw), math.Sin(yaw)
	for i := 0; i < 3; i++ {
		exs[i] = -siny*en[i] - cosy*ex[i]
		eys[i] = -cosy*en[i] + siny*ex[i]
	}
	return exs, eys, true
}

// modelPhw updates the accumulated phase windup [cycle] of a satellite. The
// previous value resolves the half-cycle ambiguity of the geometric angle.
func modelPhw(t GTime, pv *SatPV, rr PosXYZ, phw *float64) bool {
	exs, eys, ok := satYaw(t, pv)
	if !ok {
		return false
	}
	r := [3]float64{rr.X - pv.Pos.X, rr.Y - pv.Pos.Y, rr.Z - pv.Pos.Z}
	ek, ok := normv3(r)
	if !ok {
		return false
	}
	// Receiver "antenna" x/y axes from local north and east.
	llh := rr.ToLLH()
	e := enuRotation(llh)
	exr := [3]float64{e[3], e[4], e[5]}    // north
	eyr := [3]float64{-e[0], -e[1], -e[2]} // minus east

	var ds, dr [3]float64
	cs := cross3(ek, eys)
	cr := cross3(ek, eyr)
	dks := dot3(ek, exs)
	dkr := dot3(ek, exr)
	for i := 0; i < 3; i++ {
		ds[i] = exs[i] - ek[i]*dks - cs[i]
		dr[i] = exr[i] - ek[i]*dkr + cr[i]
	}
	cosp := dot3(ds, dr) / norm3(ds) / norm3(dr)
	cosp = math.Min(1, math.Max(-1, cosp))
	ph := math.Acos(cosp) / 2.0 / PI
	if dot3(ek, cross3(ds, dr)) < 0 {
		ph = -ph
	}
	*phw = ph + math.Floor(*phw-ph+0.5)
	return true
}

// testEclipse zeroes the position of BLOCK IIA satellites inside the Earth's
// shadow; their yaw attitude is unpredictable there and the windup correction
// would be wrong.
func testEclipse(t GTime, obs []ObsD, pvs []SatPV, nav *NavContext) {
	rsun := sunPosECEF(t)
	rsn := norm3(rsun)
	for i := range obs {
		typ := nav.SatType[obs[i].Sat]
		if typ != "" && !strings.Contains(typ, "BLOCK IIA") {
			continue
		}
		pv := &pvs[i]
		rs := [3]float64{pv.Pos.X, pv.Pos.Y, pv.Pos.Z}
		r := norm3(rs)
		if r <= 0 {
			continue
		}
		cosa := dot3(rs, rsun) / (r * rsn)
		cosa = math.Min(1, math.Max(-1, cosa))
		ang := math.Acos(cosa)
		if ang < PI/2.0 || r*math.Sin(ang) > Re {
			continue
		}
		PrintD(2, "testEclipse: eclipsing sat excluded sat=%s\n", obs[i].Sat)
		pv.Pos = PosXYZ{}
	}
}

// Wanninger/Beer elevation dependent code multipath of BDS-2 satellites [m],
// 10 degree elevation bins, per orbit class and frequency.
var bds2MPIGSO = [NFREQ][10]float64{
	{-0.55, -0.40, -0.34, -0.23, -0.15, -0.04, 0.09, 0.19, 0.27, 0.35},
	{-0.71, -0.36, -0.33, -0.19, -0.14, -0.03, 0.08, 0.17, 0.24, 0.33},
	{-0.27, -0.23, -0.21, -0.15, -0.11, -0.04, 0.05, 0.14, 0.19, 0.32},
}

var bds2MPMEO = [NFREQ][10]float64{
	{-0.47, -0.38, -0.32, -0.23, -0.11, 0.06, 0.34, 0.69, 0.97, 1.05},
	{-0.40, -0.31, -0.26, -0.18, -0.06, 0.09, 0.28, 0.48, 0.64, 0.69},
	{-0.22, -0.15, -0.13, -0.10, -0.04, 0.05, 0.14, 0.27, 0.36, 0.47},
}

// bds2Multipath returns the per-frequency code multipath correction for a
// BDS-2 satellite, interpolated over the elevation bins. Zero for other
// systems or unknown orbit classes.
func bds2Multipath(sat SatID, typ string, el float64) [NFREQ]float64 {
	var mp [NFREQ]float64
	if sat.Sys() != 'C' {
		return mp
	}
	var tbl *[NFREQ][10]float64
	switch {
	case strings.Contains(typ, "IGSO"):
		tbl = &bds2MPIGSO
	case strings.Contains(typ, "MEO"):
		tbl = &bds2MPMEO
	default:
		return mp
	}
	a := ToDeg(el) / 10.0
	i := int(a)
	if i < 0 {
		i = 0
	} else if i > 8 {
		i = 8
	}
	for f := 0; f < NFREQ; f++ {
		mp[f] = tbl[f][i]*(1.0-a+float64(i)) + tbl[f][i+1]*(a-float64(i))
	}
	return mp
}

// corrMeas applies antenna, windup, DCB and BDS-2 multipath corrections to
// one satellite's raw measurements and forms the iono-free combinations.
// Zero entries mark unusable measurements.
func corrMeas(obs *ObsD, nav *NavContext, azel [2]float64, opt *PPPOpt,
	dantr, dants *[NFREQ]float64, phw float64) (L, P [NFREQ]float64, Lc, Pc float64) {

	lam := &nav.Lam[obs.Sat]
	mp := bds2Multipath(obs.Sat, nav.SatType[obs.Sat], azel[1])
	for i := 0; i < NFREQ; i++ {
		if lam[i] == 0 || obs.L[i] == 0 || obs.P[i] == 0 {
			continue
		}
		if opt.CnMask > 0 && obs.SNR[i] > 0 && obs.SNR[i] < opt.CnMask {
			continue
		}
		L[i] = obs.L[i]*lam[i] - dants[i] - dantr[i] - phw*lam[i]
		P[i] = obs.P[i] - dants[i] - dantr[i] - mp[i]
	}
	// C1->P1, C2->P2 code bias corrections.
	k := pairIdx(obs.Sat.Sys())
	if P[0] != 0 {
		P[0] += nav.CBias[obs.Sat][0]
	}
	if P[k] != 0 {
		P[k] += nav.CBias[obs.Sat][1]
	}
	// Iono-free linear combination.
	if lam[0] == 0 || lam[k] == 0 {
		return L, P, 0, 0
	}
	c1 := SQ(lam[k]) / (SQ(lam[k]) - SQ(lam[0]))
	c2 := -SQ(lam[0]) / (SQ(lam[k]) - SQ(lam[0]))
	if L[0] != 0 && L[k] != 0 {
		Lc = c1*L[0] + c2*L[k]
	}
	if P[0] != 0 && P[k] != 0 {
		Pc = c1*P[0] + c2*P[k]
	}
	return L, P, Lc, Pc
}
