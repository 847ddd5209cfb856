// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSysTypeIsValid(t *testing.T) {
	for _, sys := range []SysType{'G', 'R', 'E', 'C'} {
		assert.True(t, sys.IsValid(), "system %c", sys)
	}
	assert.False(t, SysType('J').IsValid())
	assert.False(t, SysType('X').IsValid())
	assert.False(t, SysType(0).IsValid())

	// Callable on a plain return value, as the residual loop does.
	assert.True(t, SatNo('G', 1).Sys().IsValid())
	assert.True(t, SatNo('C', 5).Sys().IsValid())
}

func TestSatNoRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		sys SysType
		prn int
	}{{'G', 1}, {'G', 32}, {'R', 7}, {'E', 14}, {'C', 30}} {
		sat := SatNo(tc.sys, tc.prn)
		assert.Equal(t, tc.sys, sat.Sys())
		assert.Equal(t, tc.prn, sat.Prn())
	}
	assert.Zero(t, SatNo('G', 0))
	assert.Zero(t, SatNo('G', NSatGPS+1))
	assert.Zero(t, SatNo('J', 1), "unsupported system")
}
