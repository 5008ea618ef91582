/*
 * findparticles.go, part of gocistem.
 *
 *
 * Copyright 2025 The gocistem developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 *
 */
//In order to use this part of the library you need the find_particles
//program, distributed with cisTEM. The peak threshold follows Sigworth
//(2004).

package prog

import (
	"os"
	"os/exec"
	"strings"

	cistem "github.com/scipion-em/gocistem"
)

//Background-spectrum selection algorithms of find_particles.
const (
	LowVariance      = 0 //estimate the background from the lowest-variance areas
	VarianceNearMode = 1 //or from areas with local variance near the mode
)

//PickCalc holds the options for a particle picking run. Leaving Refs empty
//selects ab-initio picking with a soft-disc template of the characteristic
//radius; giving a reference stack selects template matching.
type PickCalc struct {
	Mic                 string //input micrograph
	SamplingRate        float64
	Voltage             float64
	SphericalAberration float64
	AmpContrast         float64
	//The picker wants the fitted defocus of the micrograph. A sentinel
	//record is rejected: picking with made-up defocus finds nothing real.
	Ctf          *cistem.Ctf
	Radius       float64 //A, radius enclosing most of the density: ab-initio template
	MaxRadius    float64 //A, largest particle radius, also the minimum pick distance
	HighRes      float64 //A, highest resolution used in the search
	MinDist      int     //px, keep-away band along the micrograph edges
	Threshold    float64 //peak height, in SDs above the expected noise
	AvoidHighVar bool    //skip areas of abnormally high local variance
	AvoidLowMean bool    //skip areas of abnormal local mean
	Algorithm    int     //background selection, one of the constants above
	BgBoxes      int     //number of background areas for the spectrum estimate
	White        bool    //particles are white on a dark background
	Refs         string  //reference stack for template matching, empty for ab-initio
	RadialAvg    bool    //rotationally average the references
	RotateRef    int     //in-plane rotations per reference when not averaging
}

func (Q *PickCalc) SetDefaults() {
	Q.Voltage = 300
	Q.SphericalAberration = 2.7
	Q.AmpContrast = 0.07
	Q.Radius = 80.0
	Q.MaxRadius = 120.0
	Q.HighRes = 30.0
	Q.MinDist = 0
	Q.Threshold = 6.0
	Q.AvoidLowMean = true
	Q.Algorithm = LowVariance
	Q.BgBoxes = 30
	Q.RadialAvg = true
}

func (Q *PickCalc) Check() error {
	if Q.Mic == "" {
		return Error{ErrBadOptions, FindParticles, "", "no input micrograph", []string{"Check"}, true}
	}
	if Q.SamplingRate <= 0 {
		return Error{ErrBadOptions, FindParticles, "", "sampling rate must be positive", []string{"Check"}, true}
	}
	if Q.MaxRadius <= 0 {
		return Error{ErrBadOptions, FindParticles, "", "maximum particle radius must be positive", []string{"Check"}, true}
	}
	if Q.Refs == "" && Q.Radius <= 0 {
		return Error{ErrBadOptions, FindParticles, "", "ab-initio picking needs the characteristic radius", []string{"Check"}, true}
	}
	if Q.Ctf == nil {
		return Error{ErrBadOptions, FindParticles, "", "picking needs the CTF estimation of the micrograph", []string{"Check"}, true}
	}
	if Q.Ctf.Wrong() {
		return Error{ErrBadOptions, FindParticles, "", "the micrograph carries the defocus sentinel, not an estimation", []string{"Check"}, true}
	}
	return nil
}

//FindParticlesHandle drives particle picking runs.
type FindParticlesHandle struct {
	command   string
	inputname string
	opts      *PickCalc
	args      string
	outlog    string
	stack     string //cut-out particle stack the program writes
	plt       string //coordinate file, named by the program after the stack
}

func NewFindParticlesHandle(Q *PickCalc) *FindParticlesHandle {
	run := new(FindParticlesHandle)
	run.opts = Q
	run.SetDefaults()
	return run
}

//FindParticlesHandle methods

func (O *FindParticlesHandle) SetName(name string) {
	O.inputname = name
}

func (O *FindParticlesHandle) SetCommand(name string) {
	O.command = name
}

func (O *FindParticlesHandle) SetDefaults() {
	O.command = os.ExpandEnv("$CISTEM_HOME/" + FindParticles)
	if O.command == "/"+FindParticles { //if CISTEM_HOME was not defined
		O.command = FindParticles
	}
}

func (O *FindParticlesHandle) Deck() string {
	return O.args
}

//PltFile returns the name of the coordinate file the program writes,
//one pick per line.
func (O *FindParticlesHandle) PltFile() string {
	return O.plt
}

//BuildInput builds the answer deck for a find_particles run. The branch
//structure of the prompts depends on the picking mode: ab-initio answers NO
//to the template question and gives a radius, template matching answers YES
//and gives the reference stack, plus the rotation prompts when the
//references are not rotationally averaged. All branches share the tail.
func (O *FindParticlesHandle) BuildInput() error {
	if O.inputname == "" {
		O.inputname = "gocistem"
	}
	Q := O.opts
	if Q == nil {
		return Error{ErrBadOptions, FindParticles, O.inputname, "no options given", []string{"BuildInput"}, true}
	}
	if err := Q.Check(); err != nil {
		return errDecorate(err, "BuildInput")
	}
	O.outlog = O.inputname + "_pick.log"
	O.stack = O.inputname + "_ptcls.mrc"
	O.plt = strings.TrimSuffix(O.stack, ".mrc") + ".plt"
	deck := NewDeck(FindParticles)
	deck.Add(` << eof > %(logFn)s
%(micName)s
%(samplingRate)f
%(voltage)f
%(cs)f
%(ampContrast)f
%(phaseShift)f
%(defocusU)f
%(defocusV)f
%(defocusAngle)f`)
	deck.AddIf("blob", `NO
%(radius)f`)
	deck.AddIf("refs", `YES
%(refsFn)s
%(useRadAvg)s`)
	deck.AddIf("rotate", `YES
%(rotateRef)d`)
	deck.AddIf("norotate", `NO`)
	deck.Add(`%(maxradius)f
%(highRes)f
%(outStack)s
%(boxSize)d
%(minDist)d
%(threshold)f
%(avoidHighVar)s
%(avoidLocMean)s
%(algorithm)d
%(bgBoxes)d
%(ptclWhite)s
eof`)
	blob := Q.Refs == ""
	on := map[string]bool{
		"blob":     blob,
		"refs":     !blob,
		"rotate":   !blob && !Q.RadialAvg && Q.RotateRef > 0,
		"norotate": !blob && !Q.RadialAvg && Q.RotateRef <= 0,
	}
	params := map[string]interface{}{
		"logFn":        O.outlog,
		"micName":      Q.Mic,
		"samplingRate": Q.SamplingRate,
		"voltage":      Q.Voltage,
		"cs":           Q.SphericalAberration,
		"ampContrast":  Q.AmpContrast,
		"phaseShift":   Q.Ctf.PhaseShift, //degrees, zero when the record carries none
		"defocusU":     Q.Ctf.DefocusU,
		"defocusV":     Q.Ctf.DefocusV,
		"defocusAngle": Q.Ctf.DefocusAngle,
		"radius":       Q.Radius,
		"refsFn":       Q.Refs,
		"useRadAvg":    YesNo(Q.RadialAvg),
		"rotateRef":    Q.RotateRef,
		"maxradius":    Q.MaxRadius,
		"highRes":      Q.HighRes,
		"outStack":     O.stack,
		"boxSize":      int(Q.MaxRadius / Q.SamplingRate),
		"minDist":      Q.MinDist,
		"threshold":    Q.Threshold,
		"avoidHighVar": YesNo(Q.AvoidHighVar),
		"avoidLocMean": YesNo(Q.AvoidLowMean),
		"algorithm":    Q.Algorithm,
		"bgBoxes":      Q.BgBoxes,
		"ptclWhite":    YesNo(Q.White),
	}
	args, err := deck.Render(on, params)
	if err != nil {
		return errDecorate(err, "BuildInput")
	}
	O.args = args
	return nil
}

//Run runs the command given by the string O.command.
//It waits or not for the result depending on wait.
func (O *FindParticlesHandle) Run(wait bool) (err error) {
	if O.args == "" {
		return Error{ErrNoInput, FindParticles, O.inputname, "", []string{"Run"}, true}
	}
	if wait == true {
		command := exec.Command("sh", "-c", O.command+O.args)
		err = command.Run()
	} else {
		command := exec.Command("sh", "-c", "nohup "+O.command+O.args)
		err = command.Start()
	}
	if err != nil {
		err = Error{ErrNotRunning, FindParticles, O.inputname, err.Error(), []string{"exec.Run", "Run"}, true}
	}
	return err
}

//LogError returns the program's own "Error:" report from the console log of
//this run, or an empty string if there is none.
func (O *FindParticlesHandle) LogError() string {
	return logError(O.outlog)
}

//Coordinates recovers the picks of a previous run. The program writes them
//top-left-origin with swapped axes, so the reader needs the micrograph
//height in pixels to flip them into the bottom-left convention.
func (O *FindParticlesHandle) Coordinates(ydim int) ([]cistem.Coord, error) {
	coords, err := cistem.ReadPlt(O.plt, ydim)
	if err != nil {
		return nil, errDecorate(err, "Coordinates")
	}
	return coords, nil
}
