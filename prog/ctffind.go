/*
 * ctffind.go, part of gocistem.
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
//In order to use this part of the library you need the ctffind program,
//distributed with cisTEM. Please cite Rohou and Grigorieff (2015) if you
//use it.

package prog

import (
	"fmt"
	"log"
	"os"
	"os/exec"

	cistem "github.com/scipion-em/gocistem"
)

//CtfCalc holds the options for a CTF estimation run. Note that the defaults
//are NOT considered part of the API and can change between versions.
type CtfCalc struct {
	Mic                 string  //input micrograph, or tilt-series stack
	SamplingRate        float64 //A/pixel
	Voltage             float64 //kV
	SphericalAberration float64 //mm
	AmpContrast         float64
	WindowSize          int     //pixels, size of the amplitude spectrum to fit
	LowRes              float64 //A, lowest resolution used in the fit
	HighRes             float64 //A
	MinDefocus          float64 //A
	MaxDefocus          float64 //A
	StepDefocus         float64 //A
	SlowSearch          bool    //slower, more exhaustive search
	RestrainAstig       bool
	Astigmatism         float64 //A, tolerated astigmatism when restrained
	PhaseShift          bool    //search for an additional phase shift
	MinPhaseShift       float64 //degrees; the program wants radians, the conversion is ours
	MaxPhaseShift       float64
	StepPhaseShift      float64
	Stack               bool //the input is a stack processed in one run, one result row per image
}

func (Q *CtfCalc) SetDefaults() {
	Q.Voltage = 300
	Q.SphericalAberration = 2.7
	Q.AmpContrast = 0.07
	Q.WindowSize = 512
	Q.LowRes = 30
	Q.HighRes = 5
	Q.MinDefocus = 5000
	Q.MaxDefocus = 50000
	Q.StepDefocus = 100
	Q.Astigmatism = 500.0
	Q.MinPhaseShift = 0
	Q.MaxPhaseShift = 180
	Q.StepPhaseShift = 10
}

//Check validates the options and fixes what can be fixed. The program
//ignores low-resolution limits beyond 50 A, so those are clamped here
//rather than rejected.
func (Q *CtfCalc) Check() error {
	if Q.Mic == "" {
		return Error{ErrBadOptions, Ctffind, "", "no input micrograph", []string{"Check"}, true}
	}
	if Q.SamplingRate <= 0 {
		return Error{ErrBadOptions, Ctffind, "", "sampling rate must be positive", []string{"Check"}, true}
	}
	if Q.LowRes > 50 {
		log.Printf("Lowest resolution %.1f beyond the 50 A the program accepts. 50 A will be used", Q.LowRes)
		Q.LowRes = 50
	}
	if Q.PhaseShift {
		if Q.MinPhaseShift < 0 || Q.MaxPhaseShift > 180 || Q.MinPhaseShift >= Q.MaxPhaseShift {
			return Error{ErrBadOptions, Ctffind, "", "phase-shift window must satisfy 0 <= min < max <= 180", []string{"Check"}, true}
		}
		if Q.StepPhaseShift <= 0 || Q.StepPhaseShift > Q.MaxPhaseShift-Q.MinPhaseShift {
			return Error{ErrBadOptions, Ctffind, "", "phase-shift step must be positive and fit in the window", []string{"Check"}, true}
		}
	}
	return nil
}

//CtffindHandle drives CTF estimation runs.
type CtffindHandle struct {
	command   string
	inputname string
	opts      *CtfCalc
	args      string //the rendered deck, ready to pipe
	outlog    string
	psd       string
	avrot     string
}

func NewCtffindHandle(Q *CtfCalc) *CtffindHandle {
	run := new(CtffindHandle)
	run.opts = Q
	run.SetDefaults()
	return run
}

//CtffindHandle methods

func (O *CtffindHandle) SetName(name string) {
	O.inputname = name
}

func (O *CtffindHandle) SetCommand(name string) {
	O.command = name
}

func (O *CtffindHandle) SetDefaults() {
	O.command = os.ExpandEnv("$CISTEM_HOME/" + Ctffind)
	if O.command == "/"+Ctffind { //if CISTEM_HOME was not defined
		O.command = Ctffind
	}
}

//Deck returns the rendered stdin deck from the last BuildInput, mostly
//for debugging failed runs.
func (O *CtffindHandle) Deck() string {
	return O.args
}

//OutLog returns the name of the program's text result file for this run.
func (O *CtffindHandle) OutLog() string {
	return O.outlog
}

//BuildInput builds the answer deck for a ctffind run. The deck redirects
//the program's console output to the result file name, which ctffind then
//overwrites with its result table; both the plain-text results and the
//diagnostic PSD image names derive from the run name.
func (O *CtffindHandle) BuildInput() error {
	if O.inputname == "" {
		O.inputname = "gocistem"
	}
	Q := O.opts
	if Q == nil {
		return Error{ErrBadOptions, Ctffind, O.inputname, "no options given", []string{"BuildInput"}, true}
	}
	if err := Q.Check(); err != nil {
		return errDecorate(err, "BuildInput")
	}
	O.outlog = O.inputname + "_ctf.txt"
	O.avrot = O.inputname + "_ctf_avrot.txt"
	if Q.Stack {
		O.psd = O.inputname + "_ctf.mrcs"
	} else {
		O.psd = O.inputname + "_ctf.mrc"
	}
	deck := NewDeck(Ctffind)
	deck.Add(`   << eof > %(ctffindOut)s
%(micFn)s
%(ctffindPSD)s
%(samplingRate)f
%(voltage)f
%(sphericalAberration)f
%(ampContrast)f
%(windowSize)d
%(lowRes)f
%(highRes)f
%(minDefocus)f
%(maxDefocus)f
%(stepDefocus)f
no
%(slowSearch)s
%(fixAstig)s`)
	deck.AddIf("fixAstig", `%(astigmatism)f`)
	deck.Add(`%(phaseShift)s`)
	deck.AddIf("phaseShift", `%(minPhaseShift)f
%(maxPhaseShift)f
%(stepPhaseShift)f`)
	deck.Add(`no
eof`)
	on := map[string]bool{"fixAstig": Q.RestrainAstig, "phaseShift": Q.PhaseShift}
	params := map[string]interface{}{
		"ctffindOut":          O.outlog,
		"micFn":               Q.Mic,
		"ctffindPSD":          O.psd,
		"samplingRate":        Q.SamplingRate,
		"voltage":             Q.Voltage,
		"sphericalAberration": Q.SphericalAberration,
		"ampContrast":         Q.AmpContrast,
		"windowSize":          Q.WindowSize,
		"lowRes":              Q.LowRes,
		"highRes":             Q.HighRes,
		"minDefocus":          Q.MinDefocus,
		"maxDefocus":          Q.MaxDefocus,
		"stepDefocus":         Q.StepDefocus,
		"slowSearch":          yesno(Q.SlowSearch),
		"fixAstig":            yesno(Q.RestrainAstig),
		"phaseShift":          yesno(Q.PhaseShift),
		"astigmatism":         Q.Astigmatism,
		"minPhaseShift":       cistem.Deg2Rad(Q.MinPhaseShift),
		"maxPhaseShift":       cistem.Deg2Rad(Q.MaxPhaseShift),
		"stepPhaseShift":      cistem.Deg2Rad(Q.StepPhaseShift),
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
//Not waiting for results works
//only for unix-compatible systems, as it uses bash and nohup.
func (O *CtffindHandle) Run(wait bool) (err error) {
	if O.args == "" {
		return Error{ErrNoInput, Ctffind, O.inputname, "", []string{"Run"}, true}
	}
	if wait == true {
		command := exec.Command("sh", "-c", O.command+O.args)
		err = command.Run()
	} else {
		command := exec.Command("sh", "-c", "nohup "+O.command+O.args)
		err = command.Start()
	}
	if err != nil {
		err = Error{ErrNotRunning, Ctffind, O.inputname, err.Error(), []string{"exec.Run", "Run"}, true}
	}
	return err
}

//LogError returns the program's own "Error:" report from the console log of
//this run, or an empty string if the program did not report one.
func (O *CtffindHandle) LogError() string {
	return logError(O.outlog)
}

//Ctf recovers the estimation from a previous single-micrograph run. A run
//that left no result file yields the sentinel record, not an error, so one
//failed image does not halt a batch; the caller can tell with Wrong(). The
//ice-ring diagnostic and the PSD reference are attached when available.
func (O *CtffindHandle) Ctf() (*cistem.Ctf, error) {
	row, err := cistem.ReadCtffind(O.outlog)
	if err != nil {
		return nil, errDecorate(err, "Ctf")
	}
	ctf := cistem.CtfFromRow(row)
	if _, err := os.Stat(O.psd); err == nil {
		ctf.PsdFile = O.psd
	} else if psd := cistem.FindPsd(O.outlog); psd != "" {
		ctf.PsdFile = psd
	}
	dens, err := cistem.ReadAvrot(O.avrot)
	if err != nil {
		return nil, errDecorate(err, "Ctf")
	}
	if len(dens) > 0 {
		ctf.SetIceRing(dens[0])
	}
	return ctf, nil
}

//CtfStack recovers the estimations from a previous whole-stack run, one
//record per image in stack order. Every record's PSD is a section reference
//into the diagnostic stack, in the n@file notation.
func (O *CtffindHandle) CtfStack() ([]*cistem.Ctf, error) {
	rows, err := cistem.ReadCtffindStack(O.outlog)
	if err != nil {
		return nil, errDecorate(err, "CtfStack")
	}
	if rows == nil {
		return nil, Error{ErrNoOutput, Ctffind, O.inputname, fmt.Sprintf("no result file %s", O.outlog), []string{"CtfStack"}, true}
	}
	dens, err := cistem.ReadAvrot(O.avrot)
	if err != nil {
		return nil, errDecorate(err, "CtfStack")
	}
	ctfs := make([]*cistem.Ctf, 0, len(rows))
	for i, row := range rows {
		ctf := cistem.CtfFromRow(row)
		ctf.PsdFile = cistem.StackRef(i+1, O.psd)
		if i < len(dens) {
			ctf.SetIceRing(dens[i])
		}
		ctfs = append(ctfs, ctf)
	}
	return ctfs, nil
}
