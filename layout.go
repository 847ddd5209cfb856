// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

// StateLayout describes the block structure of the filter state vector. It is
// computed once per configuration and reused; block order is fixed:
// position, receiver clocks, troposphere, ionosphere, inter-frequency bias,
// carrier ambiguities.
type StateLayout struct {
	NF int // Ambiguity frequencies (1 for the iono-free combination)
	NP int // Position states (3, or 9 with velocity/acceleration)
	NC int // Receiver clock states (one per system)
	NT int // Troposphere states (0, 1 zenith, or 1 zenith + 2 gradients)
	NI int // Ionosphere states (MaxSat or 0)
	ND int // Inter-frequency bias states (1 with >= 3 frequencies)
	NR int // Non-ambiguity states
	NX int // Total states
}

// NewStateLayout derives the layout from the processing options.
// It is deterministic: equal options always produce the equal layout.
func NewStateLayout(opt *PPPOpt) StateLayout {
	var l StateLayout
	if opt.IonoModel == IonoIFLC {
		l.NF = 1
	} else {
		l.NF = opt.NumFreq
	}
	l.NP = 3
	if opt.Dynamics {
		l.NP = 9
	}
	l.NC = NSys
	switch {
	case opt.TropModel == TropEstG:
		l.NT = 3
	case opt.TropModel >= TropEst:
		l.NT = 1
	}
	if opt.IonoModel == IonoEst {
		l.NI = MaxSat
	}
	if opt.NumFreq >= 3 {
		l.ND = 1
	}
	l.NR = l.NP + l.NC + l.NT + l.NI + l.ND
	l.NX = l.NR + l.NF*MaxSat
	return l
}

// PPPNX returns the filter state dimension for the given options.
func PPPNX(opt *PPPOpt) int {
	return NewStateLayout(opt).NX
}

// IC returns the clock state index of system slot s (0..NSys-1).
func (l StateLayout) IC(s int) int {
	return l.NP + s
}

// IT returns the index of the zenith troposphere state.
func (l StateLayout) IT() int {
	return l.NP + l.NC
}

// II returns the ionosphere state index of a satellite.
func (l StateLayout) II(sat SatID) int {
	return l.NP + l.NC + l.NT + int(sat) - 1
}

// ID returns the index of the receiver inter-frequency bias state.
func (l StateLayout) ID() int {
	return l.NP + l.NC + l.NT + l.NI
}

// IB returns the ambiguity state index of a satellite and frequency.
func (l StateLayout) IB(sat SatID, f int) int {
	return l.NR + MaxSat*f + int(sat) - 1
}
