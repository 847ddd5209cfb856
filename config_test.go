// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

func TestLoadProfileAndOptions(t *testing.T) {
	fn := writeProfile(t, `
mode: static
num_freq: 2
troposphere: est_grad
ionosphere: est
amb_res: fix_and_hold
el_mask: 15
ratio_thres: 2.5
max_inno: 25
thres_slip: 0.08
prn_pos: 0.01
ant_del: [0.1, 0.0, 1.5]
tide_corr: true
phase_windup: true
`)
	prof, err := LoadProfile(fn)
	require.NoError(t, err)
	opt, err := prof.Options()
	require.NoError(t, err)

	assert.Equal(t, ModeStatic, opt.Mode)
	assert.Equal(t, 2, opt.NumFreq)
	assert.Equal(t, TropEstG, opt.TropModel)
	assert.Equal(t, IonoEst, opt.IonoModel)
	assert.Equal(t, ARFixHold, opt.ARMode)
	assert.InDelta(t, ToRad(15), opt.ElMask, 1e-12)
	assert.Equal(t, 2.5, opt.RatioThres)
	assert.Equal(t, 25.0, opt.MaxInno)
	assert.Equal(t, 0.08, opt.ThresSlip)
	assert.Equal(t, 0.01, opt.PrnPos)
	assert.Equal(t, PosENU{E: 0.1, N: 0.0, U: 1.5}, opt.AntDel)
	assert.True(t, opt.TideCorr)
	assert.True(t, opt.PhaseWindup)
}

func TestProfileDefaultsWhenUnset(t *testing.T) {
	fn := writeProfile(t, "mode: kinematic\n")
	prof, err := LoadProfile(fn)
	require.NoError(t, err)
	opt, err := prof.Options()
	require.NoError(t, err)

	def := NewPPPOpt()
	assert.Equal(t, def.NumFreq, opt.NumFreq)
	assert.Equal(t, def.TropModel, opt.TropModel)
	assert.Equal(t, def.IonoModel, opt.IonoModel)
	assert.Equal(t, def.ElMask, opt.ElMask)
	assert.Equal(t, def.MaxOut, opt.MaxOut)
}

func TestProfileValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown mode", "mode: float\n"},
		{"unknown troposphere", "troposphere: niell\n"},
		{"unknown ionosphere", "ionosphere: gim\n"},
		{"unknown amb_res", "amb_res: always\n"},
		{"num_freq out of range", "num_freq: 5\n"},
		{"fixed mode without position", "mode: fixed\n"},
		{"short fixed_pos", "fixed_pos: [1.0, 2.0]\n"},
		{"short ant_del", "ant_del: [1.0]\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prof, err := LoadProfile(writeProfile(t, c.yaml))
			require.NoError(t, err)
			_, err = prof.Options()
			assert.Error(t, err)
		})
	}
}

func TestProfileFixedMode(t *testing.T) {
	fn := writeProfile(t, `
mode: fixed
fixed_pos: [-3961904.0, 3348993.0, 3698212.0]
`)
	prof, err := LoadProfile(fn)
	require.NoError(t, err)
	opt, err := prof.Options()
	require.NoError(t, err)
	assert.Equal(t, ModeFixed, opt.Mode)
	assert.Equal(t, PosXYZ{X: -3961904.0, Y: 3348993.0, Z: 3698212.0}, opt.FixedPos)
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadProfile(writeProfile(t, "mode: [not, a, scalar\n"))
	assert.Error(t, err)
}
