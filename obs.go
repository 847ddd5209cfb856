// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import "fmt"

// Type representing satellite system like 'G'
type SysType byte

// Check validity of satellite system
func (p SysType) IsValid() bool {
	return p == 'G' || p == 'R' || p == 'E' || p == 'C'
}

// SatID is a linear satellite id in [1, MaxSat] packing the PRN ranges of all
// systems, so per-satellite records can live in fixed arrays indexed by id.
type SatID int

// SatNo converts a system letter and a PRN into a SatID (0 if out of range).
func SatNo(sys SysType, prn int) SatID {
	switch sys {
	case 'G':
		if prn >= 1 && prn <= NSatGPS {
			return SatID(prn)
		}
	case 'R':
		if prn >= 1 && prn <= NSatGLO {
			return SatID(NSatGPS + prn)
		}
	case 'E':
		if prn >= 1 && prn <= NSatGAL {
			return SatID(NSatGPS + NSatGLO + prn)
		}
	case 'C':
		if prn >= 1 && prn <= NSatBDS {
			return SatID(NSatGPS + NSatGLO + NSatGAL + prn)
		}
	}
	return 0
}

// Sys returns the system letter of the satellite.
func (s SatID) Sys() SysType {
	switch {
	case s >= 1 && s <= NSatGPS:
		return 'G'
	case s <= NSatGPS+NSatGLO:
		return 'R'
	case s <= NSatGPS+NSatGLO+NSatGAL:
		return 'E'
	case s <= MaxSat:
		return 'C'
	}
	return 0
}

// Prn returns the PRN within the satellite's own system.
func (s SatID) Prn() int {
	switch s.Sys() {
	case 'G':
		return int(s)
	case 'R':
		return int(s) - NSatGPS
	case 'E':
		return int(s) - NSatGPS - NSatGLO
	case 'C':
		return int(s) - NSatGPS - NSatGLO - NSatGAL
	}
	return 0
}

// SysIndex returns the receiver clock slot of the satellite's system.
func (s SatID) SysIndex() int {
	switch s.Sys() {
	case 'R':
		return 1
	case 'E':
		return 2
	case 'C':
		return 3
	}
	return 0
}

// String renders the RINEX-style satellite name like "G10".
func (s SatID) String() string {
	sys := s.Sys()
	if sys == 0 {
		return "???"
	}
	return fmt.Sprintf("%c%02d", sys, s.Prn())
}

// ObsD holds the raw measurements of one satellite for one epoch.
type ObsD struct {
	Sat SatID
	P   [NFREQ]float64 // Pseudorange [m]
	L   [NFREQ]float64 // Carrier phase [cycle]
	SNR [NFREQ]float64 // Signal strength [dB-Hz]
	LLI [NFREQ]uint8   // Loss-of-lock indicator (bit 0: slip, bit 1: half-cycle)
}

// ObsE is one epoch's observation batch. The engine never keeps a reference
// to it past the epoch boundary.
type ObsE struct {
	Time GTime
	Data []ObsD
}

// Sats returns the satellites present in the batch.
func (p *ObsE) Sats() []SatID {
	s := make([]SatID, 0, len(p.Data))
	for i := range p.Data {
		s = append(s, p.Data[i].Sat)
	}
	return s
}
