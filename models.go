// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

import "math"

// tropModelPrec evaluates the precise troposphere model: hydrostatic part
// from Saastamoinen with zero humidity, wet part scaled by the estimated
// zenith delay trp[0] and, with gradients, by trp[1]/trp[2]. dtdx receives
// the partials with respect to the troposphere states.
func tropModelPrec(t GTime, pos PosLLH, azel [2]float64, trp [3]float64,
	grad bool, dtdx *[3]float64) (dtrp, variance float64) {

	zhd := TropModel(pos, PI/2.0, 0.0)
	mh, mw := TropMapf(t, pos, azel[1])
	if grad && azel[1] > 0 {
		cotz := 1.0 / math.Tan(azel[1])
		gradN := mw * cotz * math.Cos(azel[0])
		gradE := mw * cotz * math.Sin(azel[0])
		mw += gradN*trp[1] + gradE*trp[2]
		dtdx[1] = gradN * (trp[0] - zhd)
		dtdx[2] = gradE * (trp[0] - zhd)
	}
	dtdx[0] = mw
	return mh*zhd + mw*(trp[0]-zhd), SQ(0.01)
}

// modelTrop returns the tropospheric delay of one path under the configured
// policy, with the partials of the estimated states in dtdx.
func (s *Session) modelTrop(t GTime, pos PosLLH, azel [2]float64,
	nav *NavContext, dtdx *[3]float64) (dtrp, variance float64, ok bool) {

	opt := s.Opt
	switch opt.TropModel {
	case TropSaas:
		return TropModel(pos, azel[1], RelHumidity), SQ(ErrSaas), true

	case TropSBAS:
		d, v := TropSBASCorr(t, pos, azel)
		return d, v, true

	case TropEst, TropEstG:
		var trp [3]float64
		it := s.L.IT()
		trp[0] = s.Float.X.AtVec(it)
		if opt.TropModel == TropEstG {
			trp[1] = s.Float.X.AtVec(it + 1)
			trp[2] = s.Float.X.AtVec(it + 2)
		}
		d, v := tropModelPrec(t, pos, azel, trp, opt.TropModel == TropEstG, dtdx)
		return d, v, true

	case TropZTD:
		if nav.Corr == nil {
			return 0, 0, false
		}
		corr, got := nav.Corr.Trop(t, pos)
		if !got || corr.Std[0] == 0 {
			return 0, 0, false
		}
		d, _ := tropModelPrec(t, pos, azel, corr.Trp, corr.Std[1] != 0, dtdx)
		return d, SQ(dtdx[0] * corr.Std[0]), true
	}
	return 0, 0, false
}

// modelIono returns the L1 ionospheric delay of one path under the configured
// policy. For IonoEst the delay is the estimated state and the variance zero;
// the measurement noise carries the uncertainty.
func (s *Session) modelIono(t GTime, pos PosLLH, azel [2]float64, sat SatID,
	nav *NavContext) (dion, variance float64, ok bool) {

	switch s.Opt.IonoModel {
	case IonoSBAS:
		if nav.Iono == nil {
			return 0, 0, false
		}
		d, v, got := nav.Iono.Delay(t, pos, azel)
		return d, v, got

	case IonoBrdc:
		d := IonModel(t, nav.IonParam, pos, azel)
		return d, SQ(d * ErrBrdcIono), true

	case IonoEst:
		return s.Float.X.AtVec(s.L.II(sat)), 0.0, true

	case IonoIFLC:
		return 0, 0, true

	case IonoSTEC:
		d, std, got := s.Stec.lookup(t, pos, sat, nav.Corr)
		if !got {
			return 0, 0, false
		}
		return d, SQ(std), true
	}
	return 0, 0, false
}
