/*
 * prog.go, part of gocistem.
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
	"fmt"
	"os"
	"strings"

	cistem "github.com/scipion-em/gocistem"
)

//Names of the cisTEM programs the handles in this package drive. They are
//also the default command for each handle, overridable with SetCommand.
const (
	Ctffind       = "ctffind"
	Unblur        = "unblur"
	FindParticles = "find_particles"
	Resample      = "resample"
)

//This allows to set up runs of the different cisTEM programs
//without depending on which program will do the work.
type Handle interface {

	//Sets the base name for the run, used to derive input
	//and output file names. The extensions depend on the program.
	SetName(name string)

	//Sets the command used to invoke the program, normally
	//an absolute path to the binary.
	SetCommand(name string)

	//BuildInput assembles and renders the stdin answer deck for the
	//program from the options previously set. Returns only error.
	BuildInput() error

	//Run runs the program with the deck built by BuildInput.
	//It waits or not for the result depending on the value of
	//wait.
	Run(wait bool) (err error)
}

//YesNo returns the token the cisTEM interactive prompts expect
//for a boolean answer. unblur, find_particles and resample take the
//uppercase form.
func YesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

//ctffind is the odd one out, it takes lowercase answers.
func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

//search a file backwards, i.e., starting from the end, for a string. Returns the line that contains the string, or an empty string.
func searchBackwards(str, filename string) string {
	var ini int64 = 0
	var end int64 = 0
	first := true
	buf := make([]byte, 1)
	f, err := os.Open(filename)
	if err != nil {
		return ""
	}
	defer f.Close()
	var i int64 = 1
	for ; ; i++ {
		if _, err := f.Seek(-1*i, 2); err != nil {
			return ""
		}
		if _, err := f.Read(buf); err != nil {
			return ""
		}
		if buf[0] == byte('\n') && first == false {
			first = true
		} else if buf[0] == byte('\n') && end == 0 {
			end = i
		} else if buf[0] == byte('\n') && ini == 0 {
			ini = i
			f.Seek(-1*(ini), 2)
			bufF := make([]byte, ini-end)
			f.Read(bufF)
			if strings.Contains(string(bufF), str) {
				return string(bufF)
			}
			end = 0
			ini = 0
		}

	}
}

//logError returns the last line of a program's console log that carries
//the program's own "Error:" marker, or an empty string if the log has none
//(or cannot be read). The cisTEM programs print a final "Error: ..." line
//before aborting, which is the only machine-usable failure report they give.
func logError(logname string) string {
	return strings.TrimSpace(searchBackwards("Error:", logname))
}

//Errors

//errDecorate is a helper that asserts that the error is of the interface type of the library, and decorates it with the caller's name. If used with an error from outside the library, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(cistem.Error) //I know that is the type returned byt the functions in this library
	err2.Decorate(caller)
	return err2
}

//Error is the default error type for the prog package. It identifies the
//program and the run that failed, and carries whatever the program or the OS
//reported in extra.
type Error struct {
	message   string
	program   string
	inputname string
	extra     string //the underlying error or the program's own report, if any
	deco      []string
	critical  bool
}

func (err Error) Error() string {
	if err.extra != "" {
		return fmt.Sprintf("cistem %s program, run %s, error: %s. %s", err.program, err.inputname, err.message, err.extra)
	}
	return fmt.Sprintf("cistem %s program, run %s, error: %s", err.program, err.inputname, err.message)
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Program returns the name of the program for the run that caused the error.
func (err Error) Program() string {
	return err.program
}

//InputName returns the base name of the run that caused the error.
func (err Error) InputName() string {
	return err.inputname
}

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool {
	return err.critical
}

//errors the programs in this package can return.
const (
	ErrNotRunning     = "Program did not run or did not terminate properly"
	ErrNoInput        = "No input deck has been built for this run"
	ErrCantInput      = "Unable to build the input deck"
	ErrMissingKey     = "Deck references a parameter that was not given"
	ErrBadVerb        = "Deck placeholder carries an unsupported format verb"
	ErrBadValue       = "Deck parameter type does not match its format verb"
	ErrBadPlaceholder = "Malformed placeholder in deck"
	ErrBadOptions     = "Invalid or inconsistent program options"
	ErrNoOutput       = "Could not recover the expected program output"
)
