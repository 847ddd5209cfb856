// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	m "github.com/mkhts/goppp"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		m.PrintE(err)
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

// Structure to hold command line argument information
type cmdOpt struct {
	obsFn       string
	navFn       string
	posFn       string
	statFn      string
	profileFn   string
	noPosHeader bool
	aprPos      string
	elMask      float64
	numFreq     int
	ratioThres  float64
	dynamics    bool
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		m.PrintA(`
[Usage]
	%s [Options] rover.obs nav_file.nav

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.StringVar(&a.profileFn, "c", "", "Processing profile (YAML). Omit to use the built-in defaults.")
	flag.StringVar(&a.posFn, "o", "", "Output pos file path. If not specified, output to stdout.")
	flag.StringVar(&a.statFn, "stat", "", "Output estimation status file path. Omit to disable.")
	flag.BoolVar(&a.noPosHeader, "nh", false, "Do not output header section of pos file.")
	flag.StringVar(&a.aprPos, "l", "", "A priori receiver position. Enclose in quotes like -l \"lat lon hei\" [deg, deg, m]. Default: APPROX POSITION XYZ of the observation file.")
	flag.Float64Var(&a.elMask, "m", -1, "Elevation mask [deg]. Overrides the profile when >= 0.")
	flag.IntVar(&a.numFreq, "f", 0, "Number of carrier frequencies. Overrides the profile when > 0.")
	flag.Float64Var(&a.ratioThres, "v", -1, "Ratio test threshold for FIX validation. Overrides the profile when >= 0.")
	flag.BoolVar(&a.dynamics, "dyn", false, "Estimate receiver velocity and acceleration.")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(more detailed), 4(most detailed)")
	flag.Parse()
	if flag.NArg() != 2 {
		return a, fmt.Errorf("too less or many arguments")
	}
	a.obsFn = flag.Arg(0)
	a.navFn = flag.Arg(1)
	m.DBG_ = dbg
	return
}

// Main application processing
func runApplication(args cmdOpt) error {

	// Build processing options
	opt, err := buildOptions(args)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}

	// Load input files
	obs, nav, err := loadInputFiles(args)
	if err != nil {
		return fmt.Errorf("failed to load input files: %w", err)
	}

	// Navigation context shared by all epochs
	navCtx := &m.NavContext{Eph: nav, IonParam: nav.IonParam}
	navCtx.DefaultWavelengths()
	nav.Wavelengths(navCtx)

	// Session with the seed position
	sess := m.NewSession(opt)
	sess.Sol.Pos, err = seedPosition(args, opt, obs)
	if err != nil {
		return err
	}

	// Prepare output files
	pos, err := prepareOutput(args.posFn)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer pos.Close()

	var stat io.WriteCloser
	if len(args.statFn) > 0 {
		if stat, err = prepareOutput(args.statFn); err != nil {
			return fmt.Errorf("failed to prepare status output: %w", err)
		}
		defer stat.Close()
	}

	// Print header
	if !args.noPosHeader {
		printPosHeader(pos, os.Args[0], args, obs, sess.Sol.Pos)
	}

	// Process epochs
	for _, obse := range obs.DatE {
		m.PrintD(2, "\n>>> %s\n", obse.Time.ToTime().UTC())
		if err := sess.ProcessEpoch(obse, navCtx); err != nil {
			m.PrintB(obse.Time, "Error processing epoch: %s\n", err.Error())
			continue
		}
		if sess.Sol.Stat == m.SolNone {
			continue
		}
		printPos(pos, &sess.Sol)
		if stat != nil {
			fmt.Fprint(stat, sess.OutStat())
		}
	}

	return nil
}

// Build the processing options from the profile and the flag overrides
func buildOptions(args cmdOpt) (*m.PPPOpt, error) {
	opt := m.NewPPPOpt()
	if len(args.profileFn) > 0 {
		prof, err := m.LoadProfile(args.profileFn)
		if err != nil {
			return nil, err
		}
		if opt, err = prof.Options(); err != nil {
			return nil, err
		}
	}
	if args.elMask >= 0 {
		opt.ElMask = m.ToRad(args.elMask)
	}
	if args.numFreq > 0 {
		opt.NumFreq = min(args.numFreq, m.NFREQ)
	}
	if args.ratioThres >= 0 {
		opt.RatioThres = args.ratioThres
	}
	if args.dynamics {
		opt.Dynamics = true
	}
	return opt, nil
}

// Load input files
func loadInputFiles(args cmdOpt) (*m.Obs, *m.BrdcNav, error) {

	obsf, err := os.Open(args.obsFn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open observation file: %w", err)
	}
	defer obsf.Close()
	obs, err := m.ReadObs(obsf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read observation file: %w", err)
	}

	navf, err := os.Open(args.navFn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open navigation file: %w", err)
	}
	defer navf.Close()
	nav, err := m.ReadNav(navf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read navigation file: %w", err)
	}

	return obs, nav, nil
}

// Determine the a priori receiver position
func seedPosition(args cmdOpt, opt *m.PPPOpt, obs *m.Obs) (m.PosXYZ, error) {
	if opt.Mode == m.ModeFixed {
		return opt.FixedPos, nil
	}
	if len(args.aprPos) > 0 {
		la := strings.Fields(args.aprPos)
		if len(la) != 3 {
			return m.PosXYZ{}, fmt.Errorf("the a priori position needs 3 components (-l option)")
		}
		var v [3]float64
		for i := range la {
			f, err := strconv.ParseFloat(la[i], 64)
			if err != nil {
				return m.PosXYZ{}, fmt.Errorf("invalid a priori position: %w", err)
			}
			v[i] = f
		}
		llh := m.PosLLH{Lat: m.ToRad(v[0]), Lon: m.ToRad(v[1]), Hei: v[2]}
		return llh.ToXYZ(), nil
	}
	if obs.ApproxPos.Norm() > 0 {
		return obs.ApproxPos, nil
	}
	// The standalone solver converges from an unknown position; the seed only
	// shortens its first epoch.
	return m.PosXYZ{}, nil
}

// Prepare output file
func prepareOutput(fn string) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(fn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	// Create output file
	f, err := os.Create(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Print pos file header
func printPosHeader(pos io.Writer, cmd string, args cmdOpt, obs *m.Obs, apr m.PosXYZ) {
	fmt.Fprintf(pos, "%% program   : %s\n", filepath.Base(cmd))
	fmt.Fprintf(pos, "%% inp file  : %s\n", args.obsFn)
	fmt.Fprintf(pos, "%% inp file  : %s\n", args.navFn)
	if len(args.profileFn) > 0 {
		fmt.Fprintf(pos, "%% profile   : %s\n", args.profileFn)
	}
	if len(obs.DatE) > 0 {
		ts := obs.DatE[0].Time
		te := obs.DatE[len(obs.DatE)-1].Time
		fmt.Fprintf(pos, "%% obs start : %s(UTC) (week%d %7.1fs)(GPST)\n",
			ts.ToTime().UTC().Format("2006/01/02 15:04:05.000"), ts.Week, ts.Sec)
		fmt.Fprintf(pos, "%% obs end   : %s(UTC) (week%d %7.1fs)(GPST)\n",
			te.ToTime().UTC().Format("2006/01/02 15:04:05.000"), te.Week, te.Sec)
	}
	llh := apr.ToLLH()
	fmt.Fprintf(pos, "%% apr pos   : %.8f %.8f %.3f\n", m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei)
	fmt.Fprintf(pos, "%%  GPST                 latitude(deg) longitude(deg)  height(m)   Q  ns    sdx(m)    sdy(m)    sdz(m)      clk_bias(s)      isb(R)(s)      isb(E)(s)      isb(C)(s)\n")
}

// Output one solution line
func printPos(pos io.Writer, sol *m.Solution) {
	llh := sol.Pos.ToLLH()
	q := 0
	switch sol.Stat {
	case m.SolFixed:
		q = 1
	case m.SolFloat:
		q = 2
	case m.SolSingle:
		q = 5
	}
	ts := sol.Time.ToTime().UTC().Format("2006/01/02 15:04:05.000")
	fmt.Fprintf(pos, "%s %13.9f %14.9f %10.4f %3d %3d %9.4f %9.4f %9.4f %16.4e %14.4e %14.4e %14.4e\n",
		ts, m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei, q, sol.NS,
		math.Sqrt(math.Abs(sol.QR[0])), math.Sqrt(math.Abs(sol.QR[1])), math.Sqrt(math.Abs(sol.QR[2])),
		sol.Dtr[0], sol.Dtr[1], sol.Dtr[2], sol.Dtr[3])
}
