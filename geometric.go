/*
 * geometric.go, part of gocistem
 *
 * Copyright 2025 The gocistem developers
 *
    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU Lesser General Public License as published by
    the Free Software Foundation, either version 2.1 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU Lesser General Public License
    along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 *
*/

package cistem

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const appzero float64 = 0.0000001 //used to decide whether a sine is zero

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// EulerMatrixZYZ returns the 4x4 homogeneous rotation matrix for the given
// Euler angles (radians) in the static-frame z-y-z convention used by the
// external refinement programs. The sign handling reproduces the reference
// decomposition exactly, so matrices round-trip through EulerFromMatrixZYZ.
func EulerMatrixZYZ(ai, aj, ak float64) *mat.Dense {
	//the convention carries a parity flip for zyz
	ai, aj, ak = -ai, -aj, -ak
	si, sj, sk := math.Sin(ai), math.Sin(aj), math.Sin(ak)
	ci, cj, ck := math.Cos(ai), math.Cos(aj), math.Cos(ak)
	cc, cs := ci*ck, ci*sk
	sc, ss := si*ck, si*sk
	M := mat.NewDense(4, 4, nil)
	M.Set(0, 0, cj*cc-ss)
	M.Set(0, 1, cj*sc+cs)
	M.Set(0, 2, -sj*ck)
	M.Set(1, 0, -cj*cs-sc)
	M.Set(1, 1, -cj*ss+cc)
	M.Set(1, 2, sj*sk)
	M.Set(2, 0, sj*ci)
	M.Set(2, 1, sj*si)
	M.Set(2, 2, cj)
	M.Set(3, 3, 1)
	return M
}

// EulerFromMatrixZYZ recovers the z-y-z Euler angles (radians) from a 4x4
// homogeneous transform built by EulerMatrixZYZ. When the middle angle is
// zero the decomposition is degenerate and the whole in-plane rotation is
// reported in the first angle, with the third set to 0.
func EulerFromMatrixZYZ(M *mat.Dense) (float64, float64, float64) {
	var ax, ay, az float64
	sy := math.Sqrt(M.At(2, 1)*M.At(2, 1) + M.At(2, 0)*M.At(2, 0))
	if sy > appzero {
		ax = math.Atan2(M.At(2, 1), M.At(2, 0))
		ay = math.Atan2(sy, M.At(2, 2))
		az = math.Atan2(M.At(1, 2), -M.At(0, 2))
	} else {
		ax = math.Atan2(-M.At(1, 0), M.At(1, 1))
		ay = math.Atan2(sy, M.At(2, 2))
		az = 0.0
	}
	//undo the parity flip
	return -ax, -ay, -az
}

// TransformFromAlignment builds the 4x4 projection transform for a particle
// pose. Angles are negated and the shifts (converted from Angstroms to
// pixels with pixSize) enter with a minus sign before the whole matrix is
// inverted; this is the external tool's convention and
// AlignmentFromTransform undoes it exactly.
func TransformFromAlignment(a *Alignment, pixSize float64) (*mat.Dense, error) {
	if a == nil {
		return nil, CError{NilAlignment, "", "par", []string{"TransformFromAlignment"}, true}
	}
	M := EulerMatrixZYZ(-Deg2Rad(a.Psi), -Deg2Rad(a.Theta), -Deg2Rad(a.Phi))
	M.Set(0, 3, -a.ShiftX/pixSize)
	M.Set(1, 3, -a.ShiftY/pixSize)
	inv := mat.NewDense(4, 4, nil)
	if err := inv.Inverse(M); err != nil {
		return nil, CError{SingularMatrix + ": " + err.Error(), "", "par", []string{"mat.Inverse", "TransformFromAlignment"}, true}
	}
	return inv, nil
}

// AlignmentFromTransform recovers the pose from a projection transform,
// with shifts scaled back to Angstroms. It is the inverse of
// TransformFromAlignment up to the degeneracy noted in EulerFromMatrixZYZ.
func AlignmentFromTransform(M *mat.Dense, pixSize float64) (*Alignment, error) {
	inv := mat.NewDense(4, 4, nil)
	if err := inv.Inverse(M); err != nil {
		return nil, CError{SingularMatrix + ": " + err.Error(), "", "par", []string{"mat.Inverse", "AlignmentFromTransform"}, true}
	}
	ax, ay, az := EulerFromMatrixZYZ(inv)
	a := new(Alignment)
	a.Psi = -Rad2Deg(ax)
	a.Theta = -Rad2Deg(ay)
	a.Phi = -Rad2Deg(az)
	a.ShiftX = -inv.At(0, 3) * pixSize
	a.ShiftY = -inv.At(1, 3) * pixSize
	return a, nil
}
