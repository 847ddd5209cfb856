// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"gonum.org/v1/gonum/mat"
)

// Solution quality, in degradation order.
type SolStat int

const (
	SolNone SolStat = iota
	SolSingle
	SolFloat
	SolFixed
)

func (s SolStat) String() string {
	switch s {
	case SolSingle:
		return "single"
	case SolFloat:
		return "float"
	case SolFixed:
		return "fixed"
	}
	return "none"
}

// Solution is the per-epoch output record. Before the first processed epoch
// the caller seeds Pos and Dtr with a standalone fix.
type Solution struct {
	Time GTime
	Stat SolStat
	Pos  PosXYZ         // Receiver position (ECEF) [m]
	Vel  [3]float64     // Receiver velocity (ECEF) [m/s]
	QR   [6]float64     // Position covariance summary {xx,yy,zz,xy,yz,zx} [m^2]
	Dtr  [NSys]float64  // Receiver clock bias per system [s], relative for s>0
	NS   int            // Number of valid satellites
}

// SatStatus is the per-satellite tracking record persisting across epochs.
type SatStatus struct {
	VS   bool           // Valid satellite this epoch
	Azel [2]float64     // Azimuth/elevation [rad]
	Vsat [NFREQ]bool    // Valid observation per frequency
	SNR  [NFREQ]float64 // Signal strength [dB-Hz]

	Slip   [NFREQ]bool // Slip flagged this epoch (any detector)
	SlipLL [NFREQ]bool // ... by loss-of-lock indicator
	SlipGF [NFREQ]bool // ... by geometry-free jump
	SlipMW [NFREQ]bool // ... by Melbourne-Wubbena jump

	Lock  [NFREQ]int // Continuous lock count [epochs]
	Outc  [NFREQ]int // Outage count [epochs]
	Slipc [NFREQ]int // Cycle-slip count
	Rejc  [2]int     // Rejection count (phase, code)

	GF     float64 // Previous geometry-free phase [m]
	MW     float64 // Previous Melbourne-Wubbena value [m]
	MWMean float64 // Running arc mean of MW [m]
	MWVar  float64 // Running arc mean of squared MW deviation [m^2]
	MWArc  int     // MW arc length [epochs]

	Phw  float64        // Phase windup [cycle]
	Fix  [NFREQ]uint8   // Ambiguity state (0: none, 1: float, 2: fixed)
	Resc [NFREQ]float64 // Last phase residuals [m]
	Resp [NFREQ]float64 // Last code residuals [m]

	Dion float64 // Last modeled ionospheric delay [m]
	Vari float64 // Its variance [m^2]
}

// AmbPair records the fix continuity of one satellite against all others:
// Flags[j] is true iff this satellite and j have been jointly fixed
// continuously since the last reset of either ambiguity.
type AmbPair struct {
	Flags [MaxSat + 1]bool
}

// Estimate is one owned (state, covariance) pair. The float and the fixed
// solutions of a session are two independent Estimates; they are copied as
// wholes, never index-juggled.
type Estimate struct {
	X *mat.VecDense
	P *mat.Dense
}

func NewEstimate(nx int) Estimate {
	return Estimate{
		X: mat.NewVecDense(nx, nil),
		P: mat.NewDense(nx, nx, nil),
	}
}

// CopyFrom overwrites e with the contents of o.
func (e *Estimate) CopyFrom(o Estimate) {
	e.X.CopyVec(o.X)
	e.P.Copy(o.P)
}

// Clone returns an independent copy of e.
func (e Estimate) Clone() Estimate {
	n := e.X.Len()
	c := NewEstimate(n)
	c.CopyFrom(e)
	return c
}

// Init sets state i to x0 with variance v and zeroes its covariance row and
// column. A slot with value 0 and variance 0 is "uninitialized".
func (e *Estimate) Init(i int, x0, v float64) {
	e.X.SetVec(i, x0)
	n := e.X.Len()
	for j := 0; j < n; j++ {
		e.P.Set(i, j, 0)
		e.P.Set(j, i, 0)
	}
	e.P.Set(i, i, v)
}

// Initialized reports whether state i holds a valid estimate. The filter
// compresses to initialized states, so the predicate must match the
// convention of the update code: a zero value marks a dead slot even when
// stale variance remains.
func (e *Estimate) Initialized(i int) bool {
	return e.X.AtVec(i) != 0 && e.P.At(i, i) > 0
}

// Session is the state of one PPP receiver session. It is not safe for
// concurrent use; callers process one epoch at a time.
type Session struct {
	Opt *PPPOpt
	L   StateLayout

	Float Estimate // Float solution states
	Fixed Estimate // Fixed solution snapshot

	Sat [MaxSat + 1]SatStatus // Tracking records, indexed by SatID
	Amb [MaxSat + 1]AmbPair   // Ambiguity pair continuity, indexed by SatID

	NFix int     // Continuously fixed epoch count (fix-and-hold)
	TT   float64 // Time difference from the previous epoch [s]

	Sol Solution

	Stec StecCache // Per-session cache of the external STEC field

	Filter FilterFunc  // Measurement update kernel
	AR     AmbResolver // Ambiguity fixer, nil to disable

	prevTime GTime
	prevSpp  PosXYZ // Previous standalone position, for velocity differencing
}

// NewSession creates a session for the given options. The layout, and with it
// the dimension of both estimates, is fixed for the session's lifetime.
func NewSession(opt *PPPOpt) *Session {
	l := NewStateLayout(opt)
	s := &Session{
		Opt:    opt,
		L:      l,
		Float:  NewEstimate(l.NX),
		Fixed:  NewEstimate(l.NX),
		Filter: KalmanUpdate,
	}
	if opt.ARMode != AROff {
		s.AR = &LambdaResolver{RatioThres: opt.RatioThres}
	}
	return s
}

// initx initializes float state i, mirroring the RTKLIB helper.
func (s *Session) initx(x0, v float64, i int) {
	s.Float.Init(i, x0, v)
}
