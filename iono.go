// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

import "math"

// IonModel returns the broadcast (Klobuchar) ionospheric delay [m] at L1.
func IonModel(t GTime, ion [8]float64, pos PosLLH, azel [2]float64) float64 {
	defaultIon := [8]float64{
		0.1118e-7, -0.7451e-8, -0.5961e-7, 0.1192e-6,
		0.1167e+6, -0.2294e+6, -0.1311e+6, 0.1049e+7,
	}
	if pos.Hei < -1e3 || azel[1] <= 0 {
		return 0
	}
	zero := true
	for _, v := range ion {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		ion = defaultIon
	}
	// earth centered angle (semi-circle)
	psi := 0.0137/(azel[1]/PI+0.11) - 0.022

	// subionospheric latitude/longitude (semi-circle)
	phi := pos.Lat/PI + psi*math.Cos(azel[0])
	if phi > 0.416 {
		phi = 0.416
	} else if phi < -0.416 {
		phi = -0.416
	}
	lam := pos.Lon/PI + psi*math.Sin(azel[0])/math.Cos(phi*PI)

	// geomagnetic latitude (semi-circle)
	phi += 0.064 * math.Cos((lam-1.617)*PI)

	// local time (s)
	_, tow := t.Gpst()
	tt := 43200.0*lam + tow
	tt -= math.Floor(tt/86400.0) * 86400.0

	// slant factor
	f := 1.0 + 16.0*math.Pow(0.53-azel[1]/PI, 3.0)

	// ionospheric delay
	amp := ion[0] + phi*(ion[1]+phi*(ion[2]+phi*ion[3]))
	per := ion[4] + phi*(ion[5]+phi*(ion[6]+phi*ion[7]))
	if amp < 0 {
		amp = 0
	}
	if per < 72000.0 {
		per = 72000.0
	}
	x := 2.0 * PI * (tt - 50400.0) / per
	if math.Abs(x) < 1.57 {
		return C * f * (5e-9 + amp*(1.0+x*x*(-0.5+x*x/24.0)))
	}
	return C * f * 5e-9
}

// IonMapf returns the single-layer ionospheric mapping function at elevation
// el for a thin shell at 350 km.
func IonMapf(pos PosLLH, el float64) float64 {
	const hion = 350e3
	if pos.Hei >= hion {
		return 1.0
	}
	return 1.0 / math.Cos(math.Asin((Re+pos.Hei)/(Re+hion)*math.Cos(el)))
}

// StecCache holds the last external slant-TEC field queried from the
// correction feed. It is owned by the session so independent sessions never
// share correction state.
type StecCache struct {
	Time  GTime
	Corr  StecCorr
	Valid bool
}

// field returns the cached STEC field, refreshing it from the feed when the
// epoch changed. The filter iterates several times per epoch; the cache keeps
// that to one feed query.
func (c *StecCache) field(t GTime, pos PosLLH, feed CorrectionFeed) (*StecCorr, bool) {
	if feed == nil {
		return nil, false
	}
	if c.Time.Diff(t) != 0 || !c.Valid {
		corr, ok := feed.Stec(t, pos)
		if !ok {
			return nil, false
		}
		c.Time = t
		c.Corr = corr
		c.Valid = true
	}
	return &c.Corr, true
}

// lookup returns the cached slant delay of a satellite.
func (c *StecCache) lookup(t GTime, pos PosLLH, sat SatID, feed CorrectionFeed) (delay, std float64, ok bool) {
	corr, got := c.field(t, pos, feed)
	if !got || int(sat) >= len(corr.Iono) || corr.Iono[sat] == 0 {
		return 0, 0, false
	}
	return corr.Iono[sat], corr.Std[sat], true
}
