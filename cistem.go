/*
 * cistem.go, part of gocistem.
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

package cistem

import (
	"fmt"
	"math"
)

// The "wrong defocus" sentinel values. A CTF record carrying them marks a
// per-image estimation that failed (missing output, NaN values, negative
// defocus). The specific constants are part of the exchange contract with
// downstream consumers, which filter on them, so they must not change.
const (
	WrongDefocusU     = -999
	WrongDefocusV     = -1
	WrongDefocusAngle = -999
	WrongFit          = -999
	WrongResolution   = -999
)

// Ctf holds the contrast-transfer-function parameters fitted for one image,
// be it a micrograph or a single tilt in a tilt series.
// DefocusU is not guaranteed to be >= DefocusV; values are stored as parsed,
// and the astigmatism angle refers to whatever axis the external program used.
type Ctf struct {
	DefocusU     float64 //Angstroms
	DefocusV     float64
	DefocusAngle float64 //degrees
	//The phase shift (degrees) is optional: a record where the fitted shift
	//came out exactly 0 after unit conversion carries no phase shift at all,
	//which is not the same as carrying an explicit 0.
	PhaseShift    float64
	HasPhaseShift bool
	FitQuality    float64
	Resolution    float64 //Angstroms
	PsdFile       string  //power-spectrum image, possibly as a "n@stack" reference
	IceRing       float64 //diagnostic band-sum from the rotational average
	HasIceRing    bool
	//Tomography extension, only filled when the result row carries the
	//extra columns.
	TiltAxis  float64
	TiltAngle float64
	Thickness float64
	HasTilt   bool
}

// WrongCtf returns the sentinel record used whenever a per-image CTF
// estimation can not be trusted. The phase shift is absent, not zero.
func WrongCtf() *Ctf {
	ctf := new(Ctf)
	ctf.DefocusU = WrongDefocusU
	ctf.DefocusV = WrongDefocusV
	ctf.DefocusAngle = WrongDefocusAngle
	ctf.FitQuality = WrongFit
	ctf.Resolution = WrongResolution
	return ctf
}

// Wrong returns true if the record is the "wrong defocus" sentinel.
func (C *Ctf) Wrong() bool {
	return C.DefocusU == WrongDefocusU
}

// CtfFromRow builds a CTF record from one numeric result row, columns
// [index, defocus1, defocus2, angle, phaseShiftRad, score, resolution] plus
// the optional [tiltAxis, tiltAngle, thickness] tail. A nil or short row, a
// NaN in any column or a negative defocus yields the sentinel record instead;
// per-image failures degrade, they don't halt a batch. The function performs
// no I/O (reading the rows is ReadCtffind's job) so it can be tested alone.
func CtfFromRow(row []float64) *Ctf {
	if row == nil || len(row) < 7 {
		return WrongCtf()
	}
	for _, r := range row {
		if math.IsNaN(r) {
			return WrongCtf()
		}
	}
	if row[1] < 0 || row[2] < 0 {
		return WrongCtf()
	}
	ctf := new(Ctf)
	ctf.DefocusU = row[1]
	ctf.DefocusV = row[2]
	ctf.DefocusAngle = row[3]
	ctf.FitQuality = row[5]
	ctf.Resolution = row[6]
	//Avoid creation of the phase shift when it converts to exactly 0
	shift := Rad2Deg(row[4])
	if shift != 0 {
		ctf.PhaseShift = shift
		ctf.HasPhaseShift = true
	}
	if len(row) >= 10 {
		ctf.TiltAxis = row[7]
		ctf.TiltAngle = row[8]
		ctf.Thickness = row[9]
		ctf.HasTilt = true
	}
	return ctf
}

// SetIceRing attaches the ice-ring density diagnostic to the record.
func (C *Ctf) SetIceRing(density float64) {
	C.IceRing = density
	C.HasIceRing = true
}

// Alignment is the refined pose of one particle: in-plane and out-of-plane
// Euler angles in degrees, shifts in Angstroms.
type Alignment struct {
	Psi    float64
	Theta  float64
	Phi    float64
	ShiftX float64
	ShiftY float64
}

// Particle ties together the bookkeeping the parameter-file codec needs for
// one particle. Ali is nil when the particle carries no prior alignment.
type Particle struct {
	Index int //1-based, unique within a set
	MicID int //micrograph/film group the particle was picked from
	Ctf   *Ctf
	Ali   *Alignment
}

// SliceSource is the trivial in-memory ParticleSource, used for testing and
// for sets small enough to hold at once.
type SliceSource struct {
	parts    []*Particle
	curr     int
	readable bool
}

func NewSliceSource(parts []*Particle) *SliceSource {
	S := new(SliceSource)
	S.parts = parts
	S.readable = true
	return S
}

func (S *SliceSource) Readable() bool {
	return S.readable
}

func (S *SliceSource) Len() int {
	return len(S.parts)
}

// Next returns the next particle in the slice. The error returned when the
// slice is drained implements LastRowError, so it can be told apart from
// actual failures.
func (S *SliceSource) Next() (*Particle, error) {
	if !S.readable {
		return nil, CError{SourceUnIni, "", "particles", []string{"Next"}, true}
	}
	if S.curr >= len(S.parts) {
		S.readable = false
		return nil, newlastRowError("", "Next")
	}
	p := S.parts[S.curr]
	S.curr++
	return p, nil
}

//Errors

// errDecorate is a helper function that asserts that the error
// implements Error and decorates it with the caller's name before returning it.
// if used with an error from outside the library, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(Error) //I know what the parsing functions return
	err2.Decorate(caller)
	return err2
}

// CError is the concrete error for the root package. It fulfills Error
// and FileError. The name only exists because the interface took "Error".
type CError struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	format   string //which of the exchanged text formats was being handled
	deco     []string
	critical bool
}

func (err CError) Error() string {
	return fmt.Sprintf("cistem %s file %s error: %s", err.format, err.filename, err.message)
}

// Decorate Adds new information to the error
func (E CError) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.

	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

// FileName returns the file associated to the error
func (err CError) FileName() string { return err.filename }

// Format returns the text format that was being parsed or written
func (err CError) Format() string { return err.format }

// Critical returns true if the error is critical, false otherwise
func (err CError) Critical() bool { return err.critical }

const (
	UnableToOpen   = "Unable to open file"
	WrongFormat    = "Wrong format in file or line"
	SourceUnIni    = "Particle source uninitialized or drained"
	NilAlignment   = "Given nil alignment"
	SingularMatrix = "Transform matrix could not be inverted"
)

// lastRowError implements LastRowError
type lastRowError struct {
	deco     []string
	fileName string
}

// NormalLastRowTermination does nothing
func (E lastRowError) NormalLastRowTermination() {}

func (E lastRowError) FileName() string { return E.fileName }

func (E lastRowError) Error() string { return "EOF" }

func (E lastRowError) Critical() bool { return false }

func (E lastRowError) Format() string { return "particles" }

func (E lastRowError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastRowError(filename string, caller string) *lastRowError {
	e := new(lastRowError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
