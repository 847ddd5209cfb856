// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

const (
	PI = 3.1415926535897932  // Pi
	C  = 2.99792458e8        // Speed of light [m/s]
	Re = 6378137.0           // Earth's radius [m]
	Fe = 1.0 / 298.257223563 // Earth's flattening
	We = 7.2921151467e-5     // Earth's angular velocity [rad/s]

	L1 = 1575420000.0 // L1/E1/B1C frequency [Hz]
	L2 = 1227600000.0 // L2 frequency [Hz]
	L5 = 1176450000.0 // L5/E5a frequency [Hz]
	G1 = 1602000000.0 // G1 center frequency of Glonass [Hz]
	G2 = 1246000000.0 // G2 center frequency of Glonass [Hz]

	G1d = 562500.0 // G1 channel spacing of Glonass [Hz]
	G2d = 437500.0 // G2 channel spacing of Glonass [Hz]
	B1 = 1561098000.0 // B1 frequency of Beidou [Hz]
	B2 = 1207140000.0 // B2 frequency of Beidou [Hz]
	B3 = 1268520000.0 // B3 frequency of Beidou [Hz]
)

// Satellite numbering: PRN ranges are packed into one linear id space so that
// per-satellite records can live in fixed arrays indexed by SatID.
const (
	NSatGPS = 32
	NSatGLO = 27
	NSatGAL = 36
	NSatBDS = 46
	MaxSat  = NSatGPS + NSatGLO + NSatGAL + NSatBDS

	NSys  = 4 // G, R, E, C (QZSS shares the GPS clock slot)
	NFREQ = 3 // Number of carrier frequencies
)

// Filter iteration and quality-control limits.
const (
	MaxIter     = 8    // Max number of measurement-update iterations per epoch
	MaxStdFix   = 0.15 // Max 3D std-dev to accept a fixed solution [m]
	MinNSatSol  = 4    // Min number of satellites for a solution
	ThresReject = 4.0  // Post-fit residual rejection threshold [sigma]
	MWGapMax    = 5.0  // Absolute MW slip ceiling [m]
	MWArcMax    = 100  // Averaging weight cap of the MW running mean
	MWCsMin     = 0.8  // Lower clamp of the adaptive MW threshold [m]
	MWArcMinFit = 4    // Min arc length before the adaptive threshold applies
	GapResIono  = 120  // Default outage gap to reset iono states [epochs]
	EFactGPSL5  = 10.0 // Error factor of GPS/QZS L5
	ErrSaas     = 0.3  // Saastamoinen model error std [m]
	ErrBrdcIono = 0.5  // Broadcast iono model error factor
	RelHumidity = 0.7  // Relative humidity for the Saastamoinen model
)

// Initial state variances [m^2].
const (
	VarPos    = 60.0 * 60.0
	VarVel    = 10.0 * 10.0
	VarAcc    = 10.0 * 10.0
	VarClk    = 60.0 * 60.0
	VarZtd    = 0.6 * 0.6
	VarGrad   = 0.01 * 0.01
	VarDcb    = 30.0 * 30.0
	VarBias   = 60.0 * 60.0
	VarIono   = 60.0 * 60.0
	VarGloIFB = 0.6 * 0.6
)
