// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hdrLine(content, label string) string {
	return fmt.Sprintf("%-60s%s\n", content, label)
}

// obsField renders one 16-column observation field (value, LLI, strength).
func obsField(v float64, lli int) string {
	l := " "
	if lli > 0 {
		l = fmt.Sprintf("%d", lli)
	}
	return fmt.Sprintf("%14.3f%s ", v, l)
}

func testObsFile() string {
	var b strings.Builder
	b.WriteString(hdrLine("     3.04           OBSERVATION DATA    M", "RINEX VERSION / TYPE"))
	b.WriteString(hdrLine("G    5 C1W C1C L1C C2W L2W", "SYS / # / OBS TYPES"))
	b.WriteString(hdrLine("E    4 C1X L1X C5X L5X", "SYS / # / OBS TYPES"))
	b.WriteString(hdrLine(fmt.Sprintf("%14.4f%14.4f%14.4f", -3961904.0, 3348993.0, 3698212.0),
		"APPROX POSITION XYZ"))
	b.WriteString(hdrLine("", "END OF HEADER"))

	// Second epoch written first: the reader must sort.
	b.WriteString("> 2024 01 02 00 00 30.0000000  0  1\n")
	b.WriteString("G05" + obsField(24567990.123, 0) + obsField(24567990.500, 0) +
		obsField(129123556.789, 0) + obsField(24567990.456, 0) + obsField(100612345.678, 0) + "\n")

	b.WriteString("> 2024 01 02 00 00 00.0000000  0  3\n")
	// C1W (priority 3) then C1C (priority 0): the C1C value must win slot 0.
	b.WriteString("G05" + obsField(24567890.999, 0) + obsField(24567890.123, 0) +
		obsField(129123456.789, 1) + obsField(24567890.456, 0) + obsField(100612245.678, 0) + "\n")
	b.WriteString("G12" + obsField(22123456.789, 0) + obsField(22123456.111, 0) +
		obsField(116273846.100, 0) + strings.Repeat(" ", 32) + "\n")
	b.WriteString("E11" + obsField(25883456.789, 0) + obsField(136023846.100, 0) +
		obsField(25883460.123, 0) + obsField(101558846.200, 0) + "\n")
	return b.String()
}

func TestReadObs(t *testing.T) {
	obs, err := ReadObs(strings.NewReader(testObsFile()))
	require.NoError(t, err)

	assert.InDelta(t, -3961904.0, obs.ApproxPos.X, 1e-4)
	assert.InDelta(t, 3348993.0, obs.ApproxPos.Y, 1e-4)
	assert.InDelta(t, 3698212.0, obs.ApproxPos.Z, 1e-4)

	require.Len(t, obs.DatE, 2)
	e0, e1 := obs.DatE[0], obs.DatE[1]
	assert.InDelta(t, 30.0, e1.Time.Diff(e0.Time), 1e-9, "epochs sorted by time")

	// Satellites sorted by id: G05, G12, E11.
	require.Len(t, e0.Data, 3)
	assert.Equal(t, SatNo('G', 5), e0.Data[0].Sat)
	assert.Equal(t, SatNo('G', 12), e0.Data[1].Sat)
	assert.Equal(t, SatNo('E', 11), e0.Data[2].Sat)

	g05 := e0.Data[0]
	assert.InDelta(t, 24567890.123, g05.P[0], 1e-6, "higher priority code wins")
	assert.InDelta(t, 129123456.789, g05.L[0], 1e-6)
	assert.InDelta(t, 24567890.456, g05.P[1], 1e-6)
	assert.InDelta(t, 100612245.678, g05.L[1], 1e-6)
	assert.EqualValues(t, 1, g05.LLI[0])
	assert.Zero(t, g05.LLI[1])

	// G12 has no L2/C2 fields on its line.
	g12 := e0.Data[1]
	assert.Zero(t, g12.P[1])
	assert.Zero(t, g12.L[1])

	// Galileo E5a maps to the third frequency slot.
	e11 := e0.Data[2]
	assert.InDelta(t, 25883456.789, e11.P[0], 1e-6)
	assert.InDelta(t, 25883460.123, e11.P[2], 1e-6)
	assert.InDelta(t, 101558846.200, e11.L[2], 1e-6)
	assert.Zero(t, e11.P[1])

	require.Len(t, e1.Data, 1)
	assert.Equal(t, SatNo('G', 5), e1.Data[0].Sat)
}

func TestReadObsRejectsWrongHeader(t *testing.T) {
	_, err := ReadObs(strings.NewReader(
		hdrLine("     2.11           OBSERVATION DATA    M", "RINEX VERSION / TYPE")))
	assert.Error(t, err, "RINEX 2 is out of scope")

	_, err = ReadObs(strings.NewReader(
		hdrLine("     3.04           NAVIGATION DATA     M", "RINEX VERSION / TYPE")))
	assert.Error(t, err, "not an observation file")
}

func navField(v float64) string {
	return fmt.Sprintf("%19.12E", v)
}

func testNavFile() string {
	var b strings.Builder
	b.WriteString(hdrLine("     3.04           N: GNSS NAV DATA    M", "RINEX VERSION / TYPE"))
	b.WriteString(hdrLine(
		"GPSA "+navField2(0.1118e-7)+navField2(-0.7451e-8)+navField2(-0.5961e-7)+navField2(0.1192e-6),
		"IONOSPHERIC CORR"))
	b.WriteString(hdrLine(
		"GPSB "+navField2(0.1167e+6)+navField2(-0.2294e+6)+navField2(-0.1311e+6)+navField2(0.1049e+7),
		"IONOSPHERIC CORR"))
	b.WriteString(hdrLine("", "END OF HEADER"))

	// GPS record, Toc = Toe = 2024/01/02 00:00:00 (week 2295, tow 172800).
	b.WriteString("G01 2024 01 02 00 00 00" +
		navField(1.0e-4) + navField(2.0e-12) + navField(0.0) + "\n")
	b.WriteString("    " + navField(48) + navField(-11.5625) + navField(4.3e-9) + navField(1.0) + "\n")
	b.WriteString("    " + navField(-6.3e-7) + navField(0.0123) + navField(7.9e-6) + navField(5153.7) + "\n")
	b.WriteString("    " + navField(172800) + navField(1.0e-7) + navField(1.5) + navField(-2.0e-7) + "\n")
	b.WriteString("    " + navField(0.96) + navField(210.0) + navField(-1.7) + navField(-8.0e-9) + "\n")
	b.WriteString("    " + navField(-4.8e-10) + navField(1.0) + navField(2295) + navField(0.0) + "\n")
	b.WriteString("    " + navField(2.0) + navField(0.0) + navField(4.6e-9) + navField(48) + "\n")
	b.WriteString("    " + navField(172740) + navField(4.0) + navField(0.0) + navField(0.0) + "\n")

	// GLONASS record with frequency channel -4.
	b.WriteString("R03 2024 01 02 00 15 00" +
		navField(-1.8e-5) + navField(0.0) + navField(173100) + "\n")
	b.WriteString("    " + navField(11234.5678) + navField(-1.234567) + navField(0.0) + navField(0.0) + "\n")
	b.WriteString("    " + navField(-9876.5432) + navField(2.345678) + navField(0.0) + navField(-4.0) + "\n")
	b.WriteString("    " + navField(19123.4567) + navField(0.876543) + navField(9.3e-7) + navField(0.0) + "\n")
	return b.String()
}

// navField2 renders the 12.4 exponent format of the ionosphere header line.
func navField2(v float64) string {
	return fmt.Sprintf("%12.4E", v)
}

func TestReadNav(t *testing.T) {
	nav, err := ReadNav(strings.NewReader(testNavFile()))
	require.NoError(t, err)

	assert.InDelta(t, 0.1118e-7, nav.IonParam[0], 1e-12)
	assert.InDelta(t, 0.1192e-6, nav.IonParam[3], 1e-12)
	assert.InDelta(t, 0.1049e+7, nav.IonParam[7], 1e-1)

	g01 := SatNo('G', 1)
	require.Len(t, nav.Ephs[g01], 1)
	e := nav.Ephs[g01][0]
	assert.Equal(t, 48, e.Iode)
	assert.Equal(t, 48, e.Iodc)
	assert.Equal(t, 2295, e.Week)
	assert.Equal(t, 2295, e.Toe.Week)
	assert.InDelta(t, 172800.0, e.Toe.Sec, 1e-6)
	assert.InDelta(t, 172800.0, e.Toc.Sec, 1e-6)
	assert.InDelta(t, 172740.0, e.Tot.Sec, 1e-6)
	assert.InDelta(t, 5153.7, e.SqrtA, 1e-9)
	assert.InDelta(t, 1.0e-4, e.Af0, 1e-15)
	assert.Equal(t, 0, e.Sva, "2.0 m URA maps to index 0")
	assert.Equal(t, 0, e.Svh)
	assert.InDelta(t, 4.6e-9, e.Tgd, 1e-15)

	r03 := SatNo('R', 3)
	require.Len(t, nav.Ephs[r03], 1)
	g := nav.Ephs[r03][0]
	assert.InDelta(t, 11234567.8, g.Pos[0], 1e-3, "positions scaled from km")
	assert.InDelta(t, -1234.567, g.Vel[0], 1e-6)
	assert.InDelta(t, 1.8e-5, g.TauN, 1e-12, "sign flipped on read")
	assert.Equal(t, -4, g.FreqN)
	assert.Equal(t, 0, g.Svh)

	// GLONASS Toc is shifted from UTC to GPST.
	assert.InDelta(t, gpsUTCLeap, g.Toe.Sec-173700.0, 1e-6)
}

func TestReadNavPositions(t *testing.T) {
	nav, err := ReadNav(strings.NewReader(testNavFile()))
	require.NoError(t, err)

	g01 := SatNo('G', 1)
	t0 := GTime{Week: 2295, Sec: 172830}
	e := nav.Select(g01, t0)
	require.NotNil(t, e)

	obs := []ObsD{{Sat: g01, P: [NFREQ]float64{2.2e7, 0, 0}}}
	pvs := nav.Positions(t0, obs)
	require.Len(t, pvs, 1)
	assert.InDelta(t, 2.656e7, pvs[0].Pos.Norm(), 5e5, "GPS orbital radius")
	assert.InDelta(t, 1.0e-4, pvs[0].Dts, 1e-6, "clock near af0")
	// Finite-difference velocity is an orbital speed.
	v := norm3(pvs[0].Vel)
	assert.Greater(t, v, 2000.0)
	assert.Less(t, v, 5000.0)

	// No ephemeris outside the validity window.
	assert.Nil(t, nav.Select(g01, GTime{Week: 2295, Sec: 172800 + 7201}))

	// Per-channel GLONASS wavelengths.
	ctx := &NavContext{}
	ctx.DefaultWavelengths()
	nav.Wavelengths(ctx)
	r03 := SatNo('R', 3)
	assert.InDelta(t, C/(G1-4*G1d), ctx.Lam[r03][0], 1e-12)
	assert.InDelta(t, C/(G2-4*G2d), ctx.Lam[r03][1], 1e-12)
}
