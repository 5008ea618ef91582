/*
 * unblur.go, part of gocistem.
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
//In order to use this part of the library you need the unblur program,
//distributed with cisTEM. Please cite Grant and Grigorieff (2015) if you
//use the exposure filter.

package prog

import (
	"os"
	"os/exec"

	cistem "github.com/scipion-em/gocistem"
)

//AlignCalc holds the options for a whole-frame movie alignment run.
type AlignCalc struct {
	Movie        string  //input movie stack
	Mic          string  //output aligned average
	SamplingRate float64 //A/pixel
	BinFactor    float64
	DoseFilter   bool    //apply the exposure filter to the sum
	Voltage      float64 //kV, the filter needs it
	DosePerFrame float64 //e/A^2
	PreExposure  float64 //e/A^2 received before the first frame
	MinShift     float64 //A, smallest shift of the initial search
	MaxShift     float64 //A, outer radius shift limit per round
	BFactor      float64 //A^2, applied to the reference sum
	VertMask     int     //central cross half-width, pixels
	HoriMask     int
	Threshold    float64 //A, per-round termination shift threshold
	MaxIter      int
	RestoreNoise bool   //high-pass the filtered sum to restore noise power
	Gain         string //gain reference image; empty means the movie comes gain-corrected
	Frame0       int    //first frame to align
	FrameN       int    //last frame to align, 0 takes all
}

func (Q *AlignCalc) SetDefaults() {
	Q.BinFactor = 1
	Q.DoseFilter = true
	Q.Voltage = 300
	Q.MinShift = 2.0
	Q.MaxShift = 40.0
	Q.BFactor = 1500
	Q.VertMask = 1
	Q.HoriMask = 1
	Q.Threshold = 1.0
	Q.MaxIter = 20
	Q.RestoreNoise = true
	Q.Frame0 = 1
	Q.FrameN = 0
}

func (Q *AlignCalc) Check() error {
	if Q.Movie == "" || Q.Mic == "" {
		return Error{ErrBadOptions, Unblur, "", "input movie and output micrograph are both needed", []string{"Check"}, true}
	}
	if Q.SamplingRate <= 0 {
		return Error{ErrBadOptions, Unblur, "", "sampling rate must be positive", []string{"Check"}, true}
	}
	if Q.DoseFilter && Q.DosePerFrame <= 0 {
		return Error{ErrBadOptions, Unblur, "", "the exposure filter needs the dose per frame", []string{"Check"}, true}
	}
	return nil
}

//UnblurHandle drives movie alignment runs.
type UnblurHandle struct {
	command   string
	inputname string
	opts      *AlignCalc
	args      string
	shifts    string
}

func NewUnblurHandle(Q *AlignCalc) *UnblurHandle {
	run := new(UnblurHandle)
	run.opts = Q
	run.SetDefaults()
	return run
}

//UnblurHandle methods

func (O *UnblurHandle) SetName(name string) {
	O.inputname = name
}

func (O *UnblurHandle) SetCommand(name string) {
	O.command = name
}

func (O *UnblurHandle) SetDefaults() {
	O.command = os.ExpandEnv("$CISTEM_HOME/" + Unblur)
	if O.command == "/"+Unblur { //if CISTEM_HOME was not defined
		O.command = Unblur
	}
}

func (O *UnblurHandle) Deck() string {
	return O.args
}

//ShiftsFile returns the name of the console capture holding the per-frame
//shifts for this run.
func (O *UnblurHandle) ShiftsFile() string {
	return O.shifts
}

//BuildInput builds the answer deck for an unblur run. unblur prints the
//refined per-frame shifts on its console, so the deck redirects the console
//to the shifts file; there is no separate result file. Whether the movie
//needs gain correction is inferred from the options: giving a gain
//reference means the movie is raw.
func (O *UnblurHandle) BuildInput() error {
	if O.inputname == "" {
		O.inputname = "gocistem"
	}
	Q := O.opts
	if Q == nil {
		return Error{ErrBadOptions, Unblur, O.inputname, "no options given", []string{"BuildInput"}, true}
	}
	if err := Q.Check(); err != nil {
		return errDecorate(err, "BuildInput")
	}
	O.shifts = O.inputname + "_shifts.txt"
	deck := NewDeck(Unblur)
	deck.Add(` << eof > %(shiftsFn)s
%(movieName)s
%(micName)s
%(samplingRate)f
%(binFactor)f
%(applyDoseFilter)s`)
	deck.AddIf("dose", `%(voltage)f
%(exposurePerFrame)f
%(preExposureAmount)f`)
	deck.Add(`YES
%(minShift)f
%(maxShift)f
%(bfactor)f
%(vertFourMask)d
%(horiFourMask)d
%(threshold)f
%(maxIterations)d`)
	deck.AddIf("dose", `%(restoreNoisePower)s`)
	deck.Add(`%(gainCorrected)s`)
	deck.AddIf("gain", `%(gainFn)s`)
	deck.Add(`%(alignFrame0)d
%(alignFrameN)d
NO
eof`)
	exposure, pre := 0.0, 0.0
	on := map[string]bool{"dose": Q.DoseFilter, "gain": Q.Gain != ""}
	if Q.DoseFilter {
		exposure = Q.DosePerFrame
		pre = Q.PreExposure
	}
	params := map[string]interface{}{
		"shiftsFn":          O.shifts,
		"movieName":         Q.Movie,
		"micName":           Q.Mic,
		"samplingRate":      Q.SamplingRate,
		"binFactor":         Q.BinFactor,
		"applyDoseFilter":   YesNo(Q.DoseFilter),
		"voltage":           Q.Voltage,
		"exposurePerFrame":  exposure,
		"preExposureAmount": pre,
		"minShift":          Q.MinShift,
		"maxShift":          Q.MaxShift,
		"bfactor":           Q.BFactor,
		"vertFourMask":      Q.VertMask,
		"horiFourMask":      Q.HoriMask,
		"threshold":         Q.Threshold,
		"maxIterations":     Q.MaxIter,
		"restoreNoisePower": YesNo(Q.RestoreNoise),
		"gainCorrected":     YesNo(Q.Gain == ""), //a gain reference means the movie is raw
		"gainFn":            Q.Gain,
		"alignFrame0":       Q.Frame0,
		"alignFrameN":       Q.FrameN,
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
func (O *UnblurHandle) Run(wait bool) (err error) {
	if O.args == "" {
		return Error{ErrNoInput, Unblur, O.inputname, "", []string{"Run"}, true}
	}
	if wait == true {
		command := exec.Command("sh", "-c", O.command+O.args)
		err = command.Run()
	} else {
		command := exec.Command("sh", "-c", "nohup "+O.command+O.args)
		err = command.Start()
	}
	if err != nil {
		err = Error{ErrNotRunning, Unblur, O.inputname, err.Error(), []string{"exec.Run", "Run"}, true}
	}
	return err
}

//LogError returns the program's own "Error:" report from the console
//capture of this run, or an empty string if there is none.
func (O *UnblurHandle) LogError() string {
	return logError(O.shifts)
}

//Shifts recovers the per-frame alignment trajectory from a previous run,
//in pixels at the movie sampling rate, one x and one y per frame.
func (O *UnblurHandle) Shifts() ([]float64, []float64, error) {
	xs, ys, err := cistem.ReadShifts(O.shifts, O.opts.SamplingRate)
	if err != nil {
		return nil, nil, errDecorate(err, "Shifts")
	}
	return xs, ys, nil
}
