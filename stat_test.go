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

func TestOutStatEmptyWithoutSolution(t *testing.T) {
	s := NewSession(NewPPPOpt())
	assert.Empty(t, s.OutStat())
}

func TestOutStatRecords(t *testing.T) {
	s := NewSession(NewPPPOpt())
	s.Sol.Stat = SolFloat
	s.Sol.Time = GTime{Week: 2295, Sec: 172830}

	s.Float.Init(0, -3961904.0, 1.0)
	s.Float.Init(1, 3348993.0, 1.0)
	s.Float.Init(2, 3698212.0, 1.0)
	s.Float.Init(s.L.IC(0), C*2e-9, 1.0)
	s.Float.Init(s.L.IT(), 2.45, 0.01)
	sat := SatNo('G', 4)
	s.Float.Init(s.L.IB(sat, 0), 5.1e6, 1.0)

	out := s.OutStat()
	assert.True(t, strings.HasPrefix(out,
		"$POS,2295,172830.000,2,-3961904.0000,3348993.0000,3698212.0000,1.0000,1.0000,1.0000"),
		"got: %s", out)
	// Clock values and standard deviations in ns; only GPS is initialized.
	assert.Contains(t, out,
		"$CLK,2295,172830.000,2,1,2.000,0.000,0.000,0.000,3.336,0.000,0.000,0.000")
	assert.Contains(t, out, "$TROP,2295,172830.000,2,1,2.4500,0.1000")
	assert.Contains(t, out,
		fmt.Sprintf("$AMB,2295,172830.000,2,%s,1,5100000.0000,1.0000", sat))
	assert.NotContains(t, out, "$VELACC", "no dynamics estimated")
	assert.NotContains(t, out, "$ION", "no slant iono states")

	// Pure function of the session state.
	assert.Equal(t, out, s.OutStat())
}

func TestOutStatFixedUsesFixedEstimate(t *testing.T) {
	s := NewSession(NewPPPOpt())
	s.Sol.Stat = SolFixed
	s.Sol.Time = GTime{Week: 2295, Sec: 172830}
	s.Float.Init(0, 100.0, 4.0)
	s.Fixed.Init(0, 200.0, 0.25)

	// The fixed estimate carries the epoch: its value and covariance show up,
	// not the float ones.
	out := s.OutStat()
	assert.True(t, strings.HasPrefix(out,
		"$POS,2295,172830.000,3,200.0000,0.0000,0.0000,0.5000,"), "got: %s", out)
	assert.NotContains(t, out, "100.0000")
}

func TestOutStatScenario(t *testing.T) {
	sc := newPPPScenario()
	s := newPPPSession(sc)
	require.NoError(t, s.ProcessEpoch(sc.observe(GTime{Week: 2295, Sec: 172830}), sc.nav))
	require.Equal(t, SolFloat, s.Sol.Stat)

	out := s.OutStat()
	assert.Contains(t, out, "$POS,")
	assert.Contains(t, out, "$CLK,")
	assert.Contains(t, out, "$TROP,")
	assert.Equal(t, 6, strings.Count(out, "$AMB,"), "one ambiguity per satellite")
	assert.Equal(t, out, s.OutStat())
}
