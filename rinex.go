// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

// Implements reading of RINEX 3 observation and navigation files.

package goppp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// RINEX 3.04 specification
// https://files.igs.org/pub/data/format/rinex304.pdf

// Obs holds the observation epochs of one receiver, sorted by time, plus the
// approximate marker position of the file header.
type Obs struct {
	DatE      []*ObsE
	ApproxPos PosXYZ
}

// Observation code like "1C" (band + attribute, without the C/L/D/S type).
type codeNA string

// Priority and frequency slot of the observation codes used per system.
// Lower priority value wins when two codes map to the same slot.
var codeAssigns = map[SysType]map[codeNA]struct {
	priority int
	freqIdx  int
}{
	'G': {
		"1C": {0, 0}, "1P": {1, 0}, "1Y": {2, 0}, "1W": {3, 0}, "1M": {4, 0},
		"1N": {5, 0}, "1S": {6, 0}, "1L": {7, 0}, "1X": {8, 0},
		"2C": {0, 1}, "2P": {1, 1}, "2Y": {2, 1}, "2W": {3, 1}, "2M": {4, 1},
		"2N": {5, 1}, "2D": {6, 1}, "2L": {7, 1}, "2S": {8, 1}, "2X": {9, 1},
		"5I": {0, 2}, "5Q": {1, 2}, "5X": {2, 2},
	},
	'R': {
		"1C": {0, 0}, "1P": {1, 0},
		"2C": {0, 1}, "2P": {1, 1},
	},
	'E': {
		"1C": {0, 0}, "1B": {1, 0}, "1X": {2, 0}, "1Z": {3, 0},
		"7X": {0, 1}, "7I": {1, 1}, "7Q": {2, 1},
		"5X": {0, 2}, "5I": {1, 2}, "5Q": {2, 2},
	},
	'C': {
		"2I": {0, 0}, "2Q": {1, 0}, "2X": {2, 0},
		"1D": {3, 0}, "1P": {4, 0}, "1X": {5, 0},
		"7I": {0, 1}, "7Q": {1, 1}, "7X": {2, 1}, "7D": {3, 1}, "7P": {4, 1},
		"6I": {0, 2}, "6Q": {1, 2}, "6X": {2, 2}, "6A": {3, 2},
	},
}

// Extract the HEADER LABEL string of a header line.
func getHeaderLabel(l string) string {
	if len(l) < 60 {
		return ""
	}
	return strings.TrimSpace(l[60:])
}

// Fix BeiDou B1 observation codes of RINEX 3.02: {C|L|D|S}1{I|Q|X} became
// {C|L|D|S}2{I|Q|X} in 3.04.
func fixRnx302BeidouCode(la []string) []string {
	la2 := make([]string, 0, len(la))
	for _, a := range la {
		if a[1:3] == "1I" || a[1:3] == "1Q" || a[1:3] == "1X" {
			la2 = append(la2, a[:1]+"2"+a[2:3])
		} else {
			la2 = append(la2, a)
		}
	}
	return la2
}

// Read the date and the satellite count from an observation epoch line.
func getObsTime(l string) (gt GTime, ns int, err error) {
	la := strings.Fields(l)
	if len(la) <= 8 {
		return gt, 0, fmt.Errorf("not enough fields in epoch line: %s (%d)", l, len(la))
	}
	var v [5]int64
	for i := 0; i < 5; i++ {
		if v[i], err = strconv.ParseInt(la[1+i], 10, 0); err != nil {
			return gt, 0, err
		}
	}
	la2 := strings.Split(la[6], ".")
	if len(la2) != 2 {
		return gt, 0, fmt.Errorf("invalid format in epoch line: %s (%s)", l, la[6])
	}
	sec, err := strconv.ParseInt(la2[0], 10, 0)
	if err != nil {
		return gt, 0, err
	}
	nsec, err := strconv.ParseInt(la2[1], 10, 0)
	if err != nil {
		return gt, 0, err
	}
	n, err := strconv.ParseInt(la[8], 10, 0)
	if err != nil {
		return gt, 0, err
	}
	gt = *NewGTime(time.Date(int(v[0]), time.Month(v[1]), int(v[2]),
		int(v[3]), int(v[4]), int(sec), int(nsec)*100, time.UTC))
	return gt, int(n), nil
}

// obsFill is one satellite's measurements plus the priority of the code that
// produced each slot, so higher priority signals can overwrite.
type obsFill struct {
	d    ObsD
	prio [NFREQ][4]int // Per slot, per type (C,L,D,S); -1 = empty
}

func newObsFill(sat SatID) *obsFill {
	o := &obsFill{d: ObsD{Sat: sat}}
	for i := range o.prio {
		for j := range o.prio[i] {
			o.prio[i][j] = -1
		}
	}
	return o
}

// Store one observation value according to its code and type.
func (o *obsFill) set(val float64, lli uint8, sys SysType, typ byte, code codeNA) {
	a, ok := codeAssigns[sys][code]
	if !ok || a.freqIdx >= NFREQ || val == 0 {
		return
	}
	ti := strings.IndexByte("CLDS", typ)
	if ti < 0 {
		return
	}
	if p := o.prio[a.freqIdx][ti]; p >= 0 && a.priority > p {
		return
	}
	o.prio[a.freqIdx][ti] = a.priority
	switch typ {
	case 'C':
		o.d.P[a.freqIdx] = val
	case 'L':
		o.d.L[a.freqIdx] = val
		if lli > 0 {
			o.d.LLI[a.freqIdx] = lli & 3
		}
	case 'S':
		o.d.SNR[a.freqIdx] = val
	}
}

// Read one satellite's observation line.
func getObsData(l string, oc map[SysType][]string) (*obsFill, error) {
	if len(l) < 3 {
		return nil, fmt.Errorf("can't read data. the given line is too short")
	}
	sys := SysType(l[0])
	num, _ := strconv.Atoi(strings.TrimSpace(l[1:3]))
	sat := SatNo(sys, num)
	if sat == 0 {
		return nil, fmt.Errorf("unsupported satellite, '%c%02d'", sys, num)
	}
	n := len(oc[sys])
	if len(l) < n*16+3 { // Fill in trailing blanks if omitted
		l = l + strings.Repeat(" ", n*16+3-len(l))
	}
	of := newObsFill(sat)
	for i, code := range oc[sys] {
		j := 3 + 16*i
		v, err := strconv.ParseFloat(strings.TrimSpace(l[j:j+14]), 64)
		if err != nil {
			continue
		}
		lli, err := strconv.ParseUint(strings.TrimSpace(l[j+14:j+15]), 10, 8)
		if err != nil {
			lli = 0
		}
		of.set(v, uint8(lli), sys, code[0], codeNA(code[1:]))
	}
	return of, nil
}

// ReadObs reads a RINEX 3 observation file.
func ReadObs(r io.Reader) (*Obs, error) {
	headerDone := false
	var ver string

	// Observation code lists and approximate position of the header.
	oc := map[SysType][]string{}
	var obsApprox PosXYZ

	// Current epoch under assembly, and all epochs keyed by time to
	// eliminate duplicates.
	var et GTime
	epoch := map[SatID]*obsFill{}
	me := map[GTime]map[SatID]*obsFill{}

	flush := func() {
		if len(epoch) > 0 {
			me[et] = epoch
		}
	}

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if !headerDone {
			switch getHeaderLabel(line) {
			case "RINEX VERSION / TYPE":
				ver = line[5:9]
				if ver != "3.02" && ver != "3.04" {
					return nil, fmt.Errorf("unsupported RINEX version. RINEX version must be ether 3.02 or 3.04 (ver=%s)", ver)
				}
				if typ := line[20:21]; typ != "O" {
					return nil, fmt.Errorf("not an observation data file (typ=%s)", typ)
				}
			case "SYS / # / OBS TYPES":
				sys := SysType(line[0])
				la := strings.Fields(line[6:60])
				nc, err := strconv.ParseInt(strings.TrimSpace(line[1:6]), 10, 0)
				for err == nil && int64(len(la)) < nc && s.Scan() { // Codes spanning lines
					line = s.Text()
					la = append(la, strings.Fields(line[6:60])...)
				}
				if ver == "3.02" && sys == 'C' {
					la = fixRnx302BeidouCode(la)
				}
				oc[sys] = la
			case "APPROX POSITION XYZ":
				obsApprox.X = parseFloat(line[0:14])
				obsApprox.Y = parseFloat(line[14:28])
				obsApprox.Z = parseFloat(line[28:42])
			case "END OF HEADER":
				headerDone = true
			}
			continue
		}
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '>':
			flush()
			t, ns, err := getObsTime(line)
			if err != nil {
				PrintD(2, "getObsTime() failed. err=%s", err.Error())
				continue
			}
			et = t
			epoch = make(map[SatID]*obsFill, ns)
		default:
			of, err := getObsData(line, oc)
			if err != nil {
				PrintD(3, "getObsData() failed. err=%s\n", err.Error())
				continue
			}
			epoch[of.d.Sat] = of
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	flush()

	// Sort epochs by time and satellites by id.
	ts := make([]GTime, 0, len(me))
	for k := range me {
		ts = append(ts, k)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Less(ts[j], false) })

	obs := &Obs{DatE: make([]*ObsE, 0, len(me)), ApproxPos: obsApprox}
	for _, t := range ts {
		e := &ObsE{Time: t, Data: make([]ObsD, 0, len(me[t]))}
		sats := make([]SatID, 0, len(me[t]))
		for sat := range me[t] {
			sats = append(sats, sat)
		}
		slices.Sort(sats)
		for _, sat := range sats {
			e.Data = append(e.Data, me[t][sat].d)
		}
		obs.DatE = append(obs.DatE, e)
	}
	return obs, nil
}

// Read the satellite and time of clock from a navigation epoch line.
func getNavTime(l string) (gt GTime, sat SatID, err error) {
	m := regexp.MustCompile(`^([GJERCS])([0-9 ][0-9]) (\d{4}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2})`)
	ms := m.FindAllStringSubmatch(l, -1)
	if ms == nil {
		return gt, 0, fmt.Errorf("regexp match failed. l=%s", l)
	}
	sys := SysType(ms[0][1][0])
	num, err := strconv.ParseInt(strings.TrimSpace(ms[0][2]), 10, 0)
	if err != nil {
		return gt, 0, err
	}
	sat = SatNo(sys, int(num))
	if sat == 0 {
		return gt, 0, fmt.Errorf("unsupported satellite, '%c%02d'", sys, num)
	}
	var v [6]int64
	for i := 0; i < 6; i++ {
		if v[i], err = strconv.ParseInt(strings.TrimSpace(ms[0][3+i]), 10, 0); err != nil {
			return gt, 0, err
		}
	}
	if sys == 'C' {
		v[5] += 14 // BDT -> GPST
	}
	gt = *NewGTime(time.Date(int(v[0]), time.Month(v[1]), int(v[2]),
		int(v[3]), int(v[4]), int(v[5]), 0, time.UTC))
	return gt, sat, nil
}

// ReadNav reads a RINEX 3 navigation file into a broadcast ephemeris source.
func ReadNav(r io.Reader) (*BrdcNav, error) {
	headerDone := false
	var ver string
	nav := &BrdcNav{}

	var eph *Ephe
	var sys SysType
	lineCount := 0

	bodyLine := regexp.MustCompile(`[- +\d]{2}\.\d{12}[DE][-+]\d{2}`)

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if !headerDone {
			switch getHeaderLabel(line) {
			case "RINEX VERSION / TYPE":
				ver = line[5:9]
				if ver != "3.02" && ver != "3.04" {
					return nil, fmt.Errorf("unsupported RINEX version. RINEX version must be ether 3.02 or 3.04 (ver=%s)", ver)
				}
				if typ := line[20:21]; typ != "N" {
					return nil, fmt.Errorf("not a navigation message file (typ=%s)", typ)
				}
			case "IONOSPHERIC CORR":
				if len(line) >= 53 {
					switch strings.TrimSpace(line[:4]) {
					case "GPSA":
						for i := 0; i < 4; i++ {
							nav.IonParam[i] = parseFloat(line[5+12*i : 17+12*i])
						}
					case "GPSB":
						for i := 0; i < 4; i++ {
							nav.IonParam[4+i] = parseFloat(line[5+12*i : 17+12*i])
						}
					}
				}
			case "END OF HEADER":
				headerDone = true
			}
			continue
		}
		if !bodyLine.MatchString(line) {
			continue
		}
		switch line[0] {
		case 'G', 'E', 'C', 'R':
			if len(line) < 80 {
				continue
			}
			sys = SysType(line[0])
			eph = &Ephe{}
			var err error
			eph.Toc, eph.Sat, err = getNavTime(line)
			if err != nil {
				return nil, fmt.Errorf("failed to read time of clock in navigation message. err=%s", err.Error())
			}
			switch sys {
			case 'G', 'E', 'C':
				eph.Af0 = parseFloat(line[23:42])
				eph.Af1 = parseFloat(line[42:61])
				eph.Af2 = parseFloat(line[61:80])
			case 'R':
				eph.TauN = -parseFloat(line[23:42])
				eph.GammaN = parseFloat(line[42:61])
				// Glonass ToC is in UTC, rounded to 15 min, shifted to GPST.
				toc15 := GTime{Week: eph.Toc.Week, Sec: math.Floor((eph.Toc.Sec+450)/900) * 900}
				dow := math.Floor(eph.Toc.Sec / 86400.0)
				tod := math.Mod(parseFloat(line[61:80]), 86400)
				eph.Tot = GTime{Week: eph.Toc.Week, Sec: tod + dow*86400}
				if eph.Tot.Sec-toc15.Sec < -43200 {
					eph.Tot.Sec += 86400
				} else if eph.Tot.Sec-toc15.Sec > 43200 {
					eph.Tot.Sec -= 86400
				}
				eph.Toe = GTime{Week: toc15.Week, Sec: toc15.Sec + gpsUTCLeap}
				eph.Tot.Sec += gpsUTCLeap
				eph.Iode = int(math.Mod(eph.Toc.Sec+10800.0, 86400.0)/900.0 + 0.5)
			}
			lineCount = 0
		case 'J', 'S':
			sys = 0 // Out of scope; skip the record's continuation lines
		case ' ':
			if sys == 0 || eph == nil {
				continue
			}
			if len(line) < 80 {
				line = line + strings.Repeat(" ", 80-len(line))
			}
			v0 := parseFloat(line[4:23])
			v1 := parseFloat(line[23:42])
			v2 := parseFloat(line[42:61])
			v3 := parseFloat(line[61:80])
			lineCount++
			switch sys {
			case 'G', 'E', 'C':
				switch lineCount {
				case 1:
					eph.Iode = int(v0)
					eph.Crs = v1
					eph.DeltaN = v2
					eph.M0 = v3
				case 2:
					eph.Cuc = v0
					eph.Ecc = v1
					eph.Cus = v2
					eph.SqrtA = v3
				case 3:
					// Week is filled on line 5.
					if sys == 'C' {
						eph.Toe = GTime{Week: eph.Toc.Week, Sec: v0 + 14}
					} else {
						eph.Toe = GTime{Week: eph.Toc.Week, Sec: v0}
					}
					eph.Cic = v1
					eph.Omega0 = v2
					eph.Cis = v3
				case 4:
					eph.I0 = v0
					eph.Crc = v1
					eph.Omega = v2
					eph.OmegaD = v3
				case 5:
					eph.Idot = v0
					eph.Week = int(v2)
					if sys == 'C' {
						eph.Week += 1356 // BDT Week -> GPS Week
					}
					eph.Toe.Week = eph.Week
					if eph.Toe.Sec-eph.Toc.Sec < -302400 {
						eph.Toe.Sec += 604800
					} else if eph.Toe.Sec-eph.Toc.Sec > 302400 {
						eph.Toe.Sec -= 604800
					}
				case 6:
					if sys == 'E' {
						eph.Sva = getSISAIndex(v0)
					} else {
						eph.Sva = getURAIndex(v0)
					}
					eph.Svh = int(v1)
					eph.Tgd = v2
					eph.Iodc = int(v3)
					eph.Tgd2 = v3
				case 7:
					if sys == 'C' {
						eph.Tot = GTime{Week: eph.Week, Sec: v0 + 14}
					} else {
						eph.Tot = GTime{Week: eph.Week, Sec: v0}
					}
					if eph.Tot.Sec-eph.Toc.Sec < -302400 {
						eph.Tot.Sec += 604800
					} else if eph.Tot.Sec-eph.Toc.Sec > 302400 {
						eph.Tot.Sec -= 604800
					}
					switch sys {
					case 'G':
						eph.Fit = v1
					case 'C':
						eph.Iodc = int(v1)
					}
					nav.Ephs[eph.Sat] = append(nav.Ephs[eph.Sat], eph)
				}
			case 'R':
				switch lineCount {
				case 1:
					eph.Pos[0] = v0 * 1000
					eph.Vel[0] = v1 * 1000
					eph.Acc[0] = v2 * 1000
					eph.Svh = int(v3)
				case 2:
					eph.Pos[1] = v0 * 1000
					eph.Vel[1] = v1 * 1000
					eph.Acc[1] = v2 * 1000
					eph.FreqN = int(v3)
					if eph.FreqN > 128 {
						eph.FreqN -= 256
					}
				case 3:
					eph.Pos[2] = v0 * 1000
					eph.Vel[2] = v1 * 1000
					eph.Acc[2] = v2 * 1000
					eph.Age = int(v3)
					nav.Ephs[eph.Sat] = append(nav.Ephs[eph.Sat], eph)
				}
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	// Sort by transmission time.
	for k := range nav.Ephs {
		if len(nav.Ephs[k]) > 1 {
			sort.Slice(nav.Ephs[k], func(i, j int) bool {
				return nav.Ephs[k][i].Tot.Less(nav.Ephs[k][j].Tot, false)
			})
		}
	}
	return nav, nil
}

// Read real values absorbing the exponent letter variations of RINEX files.
func parseFloat(str string) float64 {
	s := strings.TrimSpace(str)
	if strings.ContainsAny(s, "Dd") {
		s = strings.Replace(s, "D", "E", 1)
		s = strings.Replace(s, "d", "e", 1)
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Return the URA index for a URA value in meters.
func getURAIndex(x float64) int {
	ura := [...]float64{2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0,
		96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0}
	for i, v := range ura {
		if x > 0 && x <= v {
			return i
		}
	}
	return 15
}

// Return the Galileo SISA index for a SISA value in meters.
func getSISAIndex(x float64) int {
	switch {
	case x >= 0 && x <= 0.5:
		return int(x / 0.01)
	case x > 0.5 && x <= 1.0:
		return int((x-0.5)/0.02) + 50
	case x > 1.0 && x <= 2.0:
		return int((x-1.0)/0.04) + 75
	case x > 2.0 && x <= 6.0:
		return int((x-2.0)/0.16) + 100
	default:
		return 255
	}
}
