/*
 * resample.go, part of gocistem.
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

package prog

import (
	"os"
	"os/exec"
)

//ResampleCalc holds the options for a Fourier-cropping resample run, either
//of a reconstructed tomogram (a volume, all three sizes needed) or of a
//tilt-series stack (sizes in X and Y only, each image resampled alone).
type ResampleCalc struct {
	In     string
	Out    string
	Volume bool
	NewX   int //voxels
	NewY   int
	NewZ   int //only read for volumes
}

func (Q *ResampleCalc) Check() error {
	if Q.In == "" || Q.Out == "" {
		return Error{ErrBadOptions, Resample, "", "input and output names are both needed", []string{"Check"}, true}
	}
	if Q.NewX <= 0 || Q.NewY <= 0 {
		return Error{ErrBadOptions, Resample, "", "new sizes must be greater than zero", []string{"Check"}, true}
	}
	if Q.Volume && Q.NewZ <= 0 {
		return Error{ErrBadOptions, Resample, "", "a volume needs a new Z size greater than zero", []string{"Check"}, true}
	}
	return nil
}

//ResampleHandle drives resample runs.
type ResampleHandle struct {
	command   string
	inputname string
	opts      *ResampleCalc
	args      string
}

func NewResampleHandle(Q *ResampleCalc) *ResampleHandle {
	run := new(ResampleHandle)
	run.opts = Q
	run.SetDefaults()
	return run
}

//ResampleHandle methods

func (O *ResampleHandle) SetName(name string) {
	O.inputname = name
}

func (O *ResampleHandle) SetCommand(name string) {
	O.command = name
}

func (O *ResampleHandle) SetDefaults() {
	O.command = os.ExpandEnv("$CISTEM_HOME/" + Resample)
	if O.command == "/"+Resample { //if CISTEM_HOME was not defined
		O.command = Resample
	}
}

func (O *ResampleHandle) Deck() string {
	return O.args
}

//BuildInput builds the answer deck for a resample run. The program asks
//whether the input is a volume; the answer decides how many size prompts
//follow.
func (O *ResampleHandle) BuildInput() error {
	if O.inputname == "" {
		O.inputname = "gocistem"
	}
	Q := O.opts
	if Q == nil {
		return Error{ErrBadOptions, Resample, O.inputname, "no options given", []string{"BuildInput"}, true}
	}
	if err := Q.Check(); err != nil {
		return errDecorate(err, "BuildInput")
	}
	deck := NewDeck(Resample)
	deck.Add(`   << eof
%(inFile)s
%(outFile)s`)
	deck.AddIf("volume", `YES
%(newXsize)d
%(newYsize)d
%(newZsize)d`)
	deck.AddIf("stack", `NO
%(newXsize)d
%(newYsize)d`)
	deck.Add(`eof`)
	on := map[string]bool{"volume": Q.Volume, "stack": !Q.Volume}
	params := map[string]interface{}{
		"inFile":   Q.In,
		"outFile":  Q.Out,
		"newXsize": Q.NewX,
		"newYsize": Q.NewY,
		"newZsize": Q.NewZ,
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
func (O *ResampleHandle) Run(wait bool) (err error) {
	if O.args == "" {
		return Error{ErrNoInput, Resample, O.inputname, "", []string{"Run"}, true}
	}
	if wait == true {
		command := exec.Command("sh", "-c", O.command+O.args)
		err = command.Run()
	} else {
		command := exec.Command("sh", "-c", "nohup "+O.command+O.args)
		err = command.Start()
	}
	if err != nil {
		err = Error{ErrNotRunning, Resample, O.inputname, err.Error(), []string{"exec.Run", "Run"}, true}
	}
	return err
}
