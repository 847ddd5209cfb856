// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

// Positioning mode
type PosMode int

const (
	ModeKinematic PosMode = iota // Kinematic receiver
	ModeStatic                   // Static receiver
	ModeFixed                    // Receiver pinned to known coordinates
)

// Tropospheric delay handling
type TropOpt int

const (
	TropOff  TropOpt = iota
	TropSaas         // Saastamoinen model
	TropSBAS         // SBAS tropospheric model
	TropEst          // Estimate zenith wet delay
	TropEstG         // Estimate zenith wet delay + horizontal gradients
	TropZTD          // External zenith delay correction
)

// Ionospheric delay handling
type IonoOpt int

const (
	IonoOff  IonoOpt = iota
	IonoBrdc         // Broadcast (Klobuchar) model
	IonoSBAS         // SBAS ionospheric corrections
	IonoIFLC         // Dual-frequency iono-free linear combination
	IonoEst          // Estimate slant delay per satellite
	IonoSTEC         // External slant TEC corrections
)

// Ambiguity resolution mode
type ARMode int

const (
	AROff     ARMode = iota
	ARCont           // Continuous
	ARInst           // Instantaneous (ambiguities reset every epoch)
	ARFixHold        // Continuous with fix-and-hold
)

// Observation weighting mode
type WeightMode int

const (
	WeightElev WeightMode = iota // Elevation dependent
	WeightSNR                    // Signal-strength dependent
)

// PPPOpt contains the processing options of a PPP session.
// The state layout is a pure function of these fields (see StateLayout).
type PPPOpt struct {
	Mode     PosMode
	NumFreq  int  // Number of frequencies used (1..NFREQ)
	Dynamics bool // Estimate velocity/acceleration

	TropModel TropOpt
	IonoModel IonoOpt
	ARMode    ARMode

	WeightMode WeightMode
	ElMask     float64 // Elevation mask [rad]
	CnMask     float64 // Signal strength mask [dB-Hz], 0 to disable
	ErrA       float64 // Carrier phase error base term [m]
	ErrB       float64 // Carrier phase error elevation term [m]
	ERatio     [2]float64
	SnrMax     float64 // Reference signal strength for SNR weighting [dB-Hz]

	MaxInno    float64 // Pre-fit innovation ceiling [m], 0 to disable
	MaxOut     int     // Ambiguity outage cap [epochs]
	MinFix     int     // Min continuously fixed epochs before hold
	GapResIono int     // Outage gap to reset iono states [epochs]
	ThresSlip  float64 // Geometry-free slip threshold [m]
	RatioThres float64 // Ambiguity validation ratio threshold
	MaxVarURA  float64 // Max ephemeris variance to accept a satellite [m^2]

	// Process noise standard deviations.
	PrnBias float64 // Carrier ambiguity [m/sqrt(s)]
	PrnIono float64 // Vertical ionospheric delay [m/sqrt(s)]
	PrnTrop float64 // Zenith tropospheric delay [m/sqrt(s)]
	PrnAccH float64 // Horizontal acceleration [m/s^2/sqrt(s)]
	PrnAccV float64 // Vertical acceleration [m/s^2/sqrt(s)]
	PrnPos  float64 // Position (static mode) [m/sqrt(s)]

	FixedPos PosXYZ // Known receiver coordinates (ModeFixed)
	AntDel   PosENU // Receiver antenna delta (height in U)
	RecPCV   *PCV   // Receiver antenna model, nil to disable

	SatPCVCorr  bool // Apply satellite antenna phase center variation
	PhaseWindup bool // Apply phase windup correction
	RejEclipse  bool // Exclude satellites in eclipse maneuver (block IIA)
	TideCorr    bool // Apply earth tide displacement
	ClkJumpRep  bool // Repair day-boundary satellite clock jumps
}

// NewPPPOpt creates processing options with defaults tuned for
// dual-frequency kinematic PPP.
func NewPPPOpt() *PPPOpt {
	return &PPPOpt{
		Mode:       ModeKinematic,
		NumFreq:    2,
		Dynamics:   false,
		TropModel:  TropEst,
		IonoModel:  IonoIFLC,
		ARMode:     AROff,
		WeightMode: WeightElev,
		ElMask:     ToRad(10),
		CnMask:     0,
		ErrA:       0.003,
		ErrB:       0.003,
		ERatio:     [2]float64{100, 100},
		SnrMax:     52,
		MaxInno:    30,
		MaxOut:     5,
		MinFix:     10,
		GapResIono: GapResIono,
		ThresSlip:  0.05,
		RatioThres: 3.0,
		MaxVarURA:  SQ(30.0),
		PrnBias:    1e-4,
		PrnIono:    1e-3,
		PrnTrop:    1e-4,
		PrnAccH:    1e-1,
		PrnAccV:    1e-2,
		PrnPos:     0,
	}
}
