// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

// Implements loading of PPP processing profiles from YAML files.

package goppp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the on-disk processing profile. Every field is optional; unset
// fields keep the defaults of NewPPPOpt. Angles are in degrees, standard
// deviations in meters.
type Profile struct {
	Mode     string `yaml:"mode"` // kinematic, static, fixed
	NumFreq  int    `yaml:"num_freq"`
	Dynamics bool   `yaml:"dynamics"`

	Troposphere string `yaml:"troposphere"` // off, saas, sbas, est, est_grad, ztd
	Ionosphere  string `yaml:"ionosphere"`  // off, brdc, sbas, iflc, est, stec
	AmbRes      string `yaml:"amb_res"`     // off, continuous, instantaneous, fix_and_hold

	ElMaskDeg  float64 `yaml:"el_mask"`
	CnMask     float64 `yaml:"cn_mask"`
	ErrPhase   float64 `yaml:"err_phase"`
	ErrPhaseEl float64 `yaml:"err_phase_el"`
	ERatioL1   float64 `yaml:"eratio_l1"`
	ERatioL2   float64 `yaml:"eratio_l2"`

	MaxInno    float64 `yaml:"max_inno"`
	MaxOut     int     `yaml:"max_out"`
	MinFix     int     `yaml:"min_fix"`
	GapResIono int     `yaml:"gap_res_iono"`
	ThresSlip  float64 `yaml:"thres_slip"`
	RatioThres float64 `yaml:"ratio_thres"`

	PrnBias float64 `yaml:"prn_bias"`
	PrnIono float64 `yaml:"prn_iono"`
	PrnTrop float64 `yaml:"prn_trop"`
	PrnAccH float64 `yaml:"prn_acc_h"`
	PrnAccV float64 `yaml:"prn_acc_v"`
	PrnPos  float64 `yaml:"prn_pos"`

	FixedPos []float64 `yaml:"fixed_pos"` // ECEF [m], mode: fixed
	AntDel   []float64 `yaml:"ant_del"`   // E/N/U [m]

	SatPCV      bool `yaml:"sat_pcv"`
	PhaseWindup bool `yaml:"phase_windup"`
	RejEclipse  bool `yaml:"rej_eclipse"`
	TideCorr    bool `yaml:"tide_corr"`
	ClkJumpRep  bool `yaml:"clk_jump_rep"`
}

// LoadProfile reads and parses a YAML processing profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &p, nil
}

// Options converts the profile into processing options, validating the
// enumerated fields.
func (p *Profile) Options() (*PPPOpt, error) {
	opt := NewPPPOpt()

	switch p.Mode {
	case "", "kinematic":
		opt.Mode = ModeKinematic
	case "static":
		opt.Mode = ModeStatic
	case "fixed":
		opt.Mode = ModeFixed
	default:
		return nil, fmt.Errorf("unknown mode: %q", p.Mode)
	}
	switch p.Troposphere {
	case "":
	case "off":
		opt.TropModel = TropOff
	case "saas":
		opt.TropModel = TropSaas
	case "sbas":
		opt.TropModel = TropSBAS
	case "est":
		opt.TropModel = TropEst
	case "est_grad":
		opt.TropModel = TropEstG
	case "ztd":
		opt.TropModel = TropZTD
	default:
		return nil, fmt.Errorf("unknown troposphere model: %q", p.Troposphere)
	}
	switch p.Ionosphere {
	case "":
	case "off":
		opt.IonoModel = IonoOff
	case "brdc":
		opt.IonoModel = IonoBrdc
	case "sbas":
		opt.IonoModel = IonoSBAS
	case "iflc":
		opt.IonoModel = IonoIFLC
	case "est":
		opt.IonoModel = IonoEst
	case "stec":
		opt.IonoModel = IonoSTEC
	default:
		return nil, fmt.Errorf("unknown ionosphere model: %q", p.Ionosphere)
	}
	switch p.AmbRes {
	case "":
	case "off":
		opt.ARMode = AROff
	case "continuous":
		opt.ARMode = ARCont
	case "instantaneous":
		opt.ARMode = ARInst
	case "fix_and_hold":
		opt.ARMode = ARFixHold
	default:
		return nil, fmt.Errorf("unknown ambiguity resolution mode: %q", p.AmbRes)
	}
	if p.NumFreq != 0 {
		if p.NumFreq < 1 || p.NumFreq > NFREQ {
			return nil, fmt.Errorf("num_freq out of range: %d", p.NumFreq)
		}
		opt.NumFreq = p.NumFreq
	}
	opt.Dynamics = p.Dynamics

	if p.ElMaskDeg != 0 {
		opt.ElMask = ToRad(p.ElMaskDeg)
	}
	if p.CnMask != 0 {
		opt.CnMask = p.CnMask
	}
	if p.ErrPhase != 0 {
		opt.ErrA = p.ErrPhase
	}
	if p.ErrPhaseEl != 0 {
		opt.ErrB = p.ErrPhaseEl
	}
	if p.ERatioL1 != 0 {
		opt.ERatio[0] = p.ERatioL1
	}
	if p.ERatioL2 != 0 {
		opt.ERatio[1] = p.ERatioL2
	}
	if p.MaxInno != 0 {
		opt.MaxInno = p.MaxInno
	}
	if p.MaxOut != 0 {
		opt.MaxOut = p.MaxOut
	}
	if p.MinFix != 0 {
		opt.MinFix = p.MinFix
	}
	if p.GapResIono != 0 {
		opt.GapResIono = p.GapResIono
	}
	if p.ThresSlip != 0 {
		opt.ThresSlip = p.ThresSlip
	}
	if p.RatioThres != 0 {
		opt.RatioThres = p.RatioThres
	}
	if p.PrnBias != 0 {
		opt.PrnBias = p.PrnBias
	}
	if p.PrnIono != 0 {
		opt.PrnIono = p.PrnIono
	}
	if p.PrnTrop != 0 {
		opt.PrnTrop = p.PrnTrop
	}
	if p.PrnAccH != 0 {
		opt.PrnAccH = p.PrnAccH
	}
	if p.PrnAccV != 0 {
		opt.PrnAccV = p.PrnAccV
	}
	if p.PrnPos != 0 {
		opt.PrnPos = p.PrnPos
	}
	if len(p.FixedPos) > 0 {
		if len(p.FixedPos) != 3 {
			return nil, fmt.Errorf("fixed_pos needs 3 components, got %d", len(p.FixedPos))
		}
		opt.FixedPos = PosXYZ{X: p.FixedPos[0], Y: p.FixedPos[1], Z: p.FixedPos[2]}
	}
	if opt.Mode == ModeFixed && opt.FixedPos.Norm() == 0 {
		return nil, fmt.Errorf("mode fixed requires fixed_pos")
	}
	if len(p.AntDel) > 0 {
		if len(p.AntDel) != 3 {
			return nil, fmt.Errorf("ant_del needs 3 components, got %d", len(p.AntDel))
		}
		opt.AntDel = PosENU{E: p.AntDel[0], N: p.AntDel[1], U: p.AntDel[2]}
	}
	opt.SatPCVCorr = p.SatPCV
	opt.PhaseWindup = p.PhaseWindup
	opt.RejEclipse = p.RejEclipse
	opt.TideCorr = p.TideCorr
	opt.ClkJumpRep = p.ClkJumpRep
	return opt, nil
}
