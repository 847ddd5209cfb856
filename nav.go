// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

// SatPV is one satellite's position, velocity and clock for one epoch, as
// evaluated by an ephemeris service.
type SatPV struct {
	Pos    PosXYZ     // ECEF position at signal transmission [m]
	Vel    [3]float64 // ECEF velocity [m/s]
	Dts    float64    // Satellite clock bias [s]
	Ddts   float64    // Satellite clock drift [s/s]
	Var    float64    // Variance of position/clock (URA) [m^2]
	Health int        // 0 if healthy
}

// EphemerisSource evaluates satellite positions and clocks for one epoch.
// Implementations interpolate broadcast or precise products; the estimation
// core treats them as opaque.
type EphemerisSource interface {
	Positions(t GTime, obs []ObsD) []SatPV
}

// TideModel returns the ECEF site displacement (solid tides, ocean loading,
// pole tide) for a receiver position.
type TideModel interface {
	Disp(t GTime, rr PosXYZ) [3]float64
}

// TropCorr is a zenith troposphere correction with per-component quality.
type TropCorr struct {
	Trp [3]float64 // Zenith total delay + N/E gradients [m]
	Std [3]float64 // Standard deviations [m], 0 marks a missing component
}

// StecCorr is a slant ionosphere correction field, indexed by SatID.
type StecCorr struct {
	Iono []float64 // Slant delay per satellite [m], index 1..MaxSat, 0 = none
	Std  []float64 // Standard deviations [m]
}

// CorrectionFeed supplies external atmospheric corrections used both as model
// values and as soft constraints on the estimated states.
type CorrectionFeed interface {
	Trop(t GTime, pos PosLLH) (TropCorr, bool)
	Stec(t GTime, pos PosLLH) (StecCorr, bool)
}

// IonoSource evaluates an ionospheric delay model (SBAS, TEC grid) at L1.
type IonoSource interface {
	Delay(t GTime, pos PosLLH, azel [2]float64) (delay, variance float64, ok bool)
}

// NavContext bundles the per-epoch navigation inputs of the estimation core.
// All fields other than Lam may be nil/zero; the affected corrections are
// then skipped or fall back to their defaults.
type NavContext struct {
	Eph  EphemerisSource
	Tide TideModel
	Corr CorrectionFeed
	Iono IonoSource // SBAS/TEC evaluator for IonoSBAS

	IonParam [8]float64 // Broadcast (Klobuchar) parameters for IonoBrdc

	Lam [MaxSat + 1][NFREQ]float64 // Carrier wavelengths [m], index by SatID

	CBias   [MaxSat + 1][2]float64 // C1->P1, C2->P2 code bias corrections [m]
	RBias   [2]float64             // Receiver P2 DCB per GPS/GLONASS [m]
	SatPCV  [MaxSat + 1]*PCV       // Satellite antenna models
	SatType [MaxSat + 1]string     // Satellite block/type strings
}

// DefaultWavelengths fills Lam with the nominal carrier wavelengths of each
// system (GLONASS at the band center; replace with per-channel values when
// the decoder provides them).
func (nav *NavContext) DefaultWavelengths() {
	freq := map[SysType][NFREQ]float64{
		'G': {L1, L2, L5},
		'R': {G1, G2, 0},
		'E': {L1, 0, L5},
		'C': {B1, B2, B3},
	}
	for sat := SatID(1); sat <= MaxSat; sat++ {
		f := freq[sat.Sys()]
		for i := 0; i < NFREQ; i++ {
			if f[i] > 0 {
				nav.Lam[sat][i] = C / f[i]
			}
		}
	}
}

// pairIdx returns the frequency index paired with L1 in the dual-frequency
// combinations: L1/L5 for Galileo and BeiDou style signals, L1/L2 otherwise.
func pairIdx(sys SysType) int {
	if sys == 'E' || sys == 'C' {
		return 2
	}
	return 1
}
