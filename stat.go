// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"fmt"
	"math"
	"strings"
)

// OutStat renders the estimation status of the last processed epoch as
// $POS/$VELACC/$CLK/$TROP/$TRPG/$ION/$DCB/$AMB records, each value followed by
// its standard deviation from the active covariance. It returns the empty
// string when the epoch produced no solution. The output depends only on the
// session state, so repeated calls render identical text.
func (s *Session) OutStat() string {
	if s.Sol.Stat == SolNone {
		return ""
	}
	var b strings.Builder
	week, tow := s.Sol.Time.Gpst()
	stat := int(s.Sol.Stat)

	// The fixed estimate carries the epoch when the fix was accepted.
	e := &s.Float
	if s.Sol.Stat == SolFixed {
		e = &s.Fixed
	}
	x := e.X
	std := func(i int) float64 {
		v := e.P.At(i, i)
		if v <= 0 {
			return 0
		}
		return math.Sqrt(v)
	}
	// Receiver position.
	fmt.Fprintf(&b, "$POS,%d,%.3f,%d,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f\n", week, tow,
		stat, x.AtVec(0), x.AtVec(1), x.AtVec(2), std(0), std(1), std(2))

	// Receiver velocity and acceleration in local ENU.
	if s.Opt.Dynamics {
		pos := s.Sol.Pos.ToLLH()
		vel := ecefToENUVec(pos, [3]float64{
			x.AtVec(3), x.AtVec(4), x.AtVec(5)})
		acc := ecefToENUVec(pos, [3]float64{
			x.AtVec(6), x.AtVec(7), x.AtVec(8)})
		fmt.Fprintf(&b, "$VELACC,%d,%.3f,%d,%.4f,%.4f,%.4f,%.5f,%.5f,%.5f,%.4f,%.4f,%.4f,%.5f,%.5f,%.5f\n",
			week, tow, stat, vel[0], vel[1], vel[2], acc[0], acc[1], acc[2],
			0.0, 0.0, 0.0, 0.0, 0.0, 0.0)
	}
	// Receiver clocks [ns].
	i := s.L.IC(0)
	fmt.Fprintf(&b, "$CLK,%d,%.3f,%d,%d,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f\n",
		week, tow, stat, 1,
		x.AtVec(i)*1e9/C, x.AtVec(i+1)*1e9/C, x.AtVec(i+2)*1e9/C, x.AtVec(i+3)*1e9/C,
		std(i)*1e9/C, std(i+1)*1e9/C, std(i+2)*1e9/C, std(i+3)*1e9/C)

	// Troposphere.
	if s.Opt.TropModel == TropEst || s.Opt.TropModel == TropEstG {
		i = s.L.IT()
		fmt.Fprintf(&b, "$TROP,%d,%.3f,%d,%d,%.4f,%.4f\n", week, tow, stat,
			1, x.AtVec(i), std(i))
	}
	if s.Opt.TropModel == TropEstG {
		i = s.L.IT()
		fmt.Fprintf(&b, "$TRPG,%d,%.3f,%d,%d,%.5f,%.5f,%.5f,%.5f\n", week, tow,
			stat, 1, x.AtVec(i+1), x.AtVec(i+2), std(i+1), std(i+2))
	}
	// Ionosphere.
	if s.Opt.IonoModel == IonoEst {
		for sat := SatID(1); sat <= MaxSat; sat++ {
			ssat := &s.Sat[sat]
			if !ssat.VS {
				continue
			}
			j := s.L.II(sat)
			if x.AtVec(j) == 0 {
				continue
			}
			fmt.Fprintf(&b, "$ION,%d,%.3f,%d,%s,%.1f,%.1f,%.4f,%.4f\n", week,
				tow, stat, sat, ToDeg(ssat.Azel[0]), ToDeg(ssat.Azel[1]),
				x.AtVec(j), std(j))
		}
	}
	// Receiver inter-frequency bias.
	if s.L.ND > 0 {
		i = s.L.ID()
		fmt.Fprintf(&b, "$DCB,%d,%.3f,%d,%d,%.4f,%.4f\n", week, tow, stat,
			1, x.AtVec(i), std(i))
	}
	// Carrier ambiguities.
	for sat := SatID(1); sat <= MaxSat; sat++ {
		for j := 0; j < s.L.NF; j++ {
			k := s.L.IB(sat, j)
			if x.AtVec(k) == 0 {
				continue
			}
			fmt.Fprintf(&b, "$AMB,%d,%.3f,%d,%s,%d,%.4f,%.4f\n", week, tow,
				stat, sat, j+1, x.AtVec(k), std(k))
		}
	}
	return b.String()
}
