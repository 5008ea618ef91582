/*
 * cistem_test.go, part of gocistem.
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
 */

package cistem

import (
	"fmt"
	"math"
	"testing"
)

// TestWrongCtf checks the failed-estimation record against the values
// downstream consumers filter on. These are frozen.
func TestWrongCtf(Te *testing.T) {
	ctf := WrongCtf()
	if ctf.DefocusU != -999 || ctf.DefocusV != -1 || ctf.DefocusAngle != -999 {
		Te.Error("wrong defocus sentinel values", ctf.DefocusU, ctf.DefocusV, ctf.DefocusAngle)
	}
	if ctf.FitQuality != -999 || ctf.Resolution != -999 {
		Te.Error("wrong fit/resolution sentinel values", ctf.FitQuality, ctf.Resolution)
	}
	if ctf.HasPhaseShift {
		Te.Error("the sentinel record must not carry a phase shift")
	}
	if !ctf.Wrong() {
		Te.Error("the sentinel record doesn't recognize itself")
	}
	fmt.Println("Sentinel CTF:", *ctf)
}

func TestCtfFromRow(Te *testing.T) {
	row := []float64{1, 11922.40, 11496.41, -42.42, 0.0, 0.012268, 4.576}
	ctf := CtfFromRow(row)
	if ctf.Wrong() {
		Te.Error("a good row gave the sentinel record")
	}
	if ctf.DefocusU != 11922.40 || ctf.DefocusV != 11496.41 || ctf.DefocusAngle != -42.42 {
		Te.Error("defocus not taken from the row", *ctf)
	}
	if ctf.FitQuality != 0.012268 || ctf.Resolution != 4.576 {
		Te.Error("fit/resolution not taken from the row", *ctf)
	}
	//A fitted shift of exactly 0 means "no phase plate", not "a shift of 0".
	if ctf.HasPhaseShift {
		Te.Error("phase shift created from a 0.0 column")
	}
	row[4] = 0.698132 //40 degrees
	ctf = CtfFromRow(row)
	if !ctf.HasPhaseShift || math.Abs(ctf.PhaseShift-40.0) > 1e-3 {
		Te.Error("phase shift not converted to degrees:", ctf.PhaseShift)
	}
	fmt.Println("Phase shift (deg):", ctf.PhaseShift)
}

func TestCtfFromRowDegraded(Te *testing.T) {
	//All of these are per-image failures, so they degrade to the sentinel
	//instead of returning an error.
	if !CtfFromRow(nil).Wrong() {
		Te.Error("nil row didn't degrade to the sentinel")
	}
	if !CtfFromRow([]float64{1, 2, 3}).Wrong() {
		Te.Error("short row didn't degrade to the sentinel")
	}
	bad := []float64{1, 11922.40, math.NaN(), -42.42, 0.0, 0.012, 4.57}
	if !CtfFromRow(bad).Wrong() {
		Te.Error("NaN row didn't degrade to the sentinel")
	}
	neg := []float64{1, -11922.40, 11496.41, -42.42, 0.0, 0.012, 4.57}
	if !CtfFromRow(neg).Wrong() {
		Te.Error("negative defocus didn't degrade to the sentinel")
	}
}

func TestCtfFromRowTilt(Te *testing.T) {
	row := []float64{1, 30501.2, 30121.1, -12.2, 0.0, 0.021, 6.22, 178.4, -30.0, 1500.0}
	ctf := CtfFromRow(row)
	if !ctf.HasTilt {
		Te.Error("ten-column row didn't fill the tilt extension")
	}
	if ctf.TiltAxis != 178.4 || ctf.TiltAngle != -30.0 || ctf.Thickness != 1500.0 {
		Te.Error("tilt extension values:", ctf.TiltAxis, ctf.TiltAngle, ctf.Thickness)
	}
	short := CtfFromRow([]float64{1, 30501.2, 30121.1, -12.2, 0.0, 0.021, 6.22})
	if short.HasTilt {
		Te.Error("seven-column row filled the tilt extension")
	}
}

func TestSliceSource(Te *testing.T) {
	parts := []*Particle{
		{Index: 1, MicID: 1, Ctf: WrongCtf()},
		{Index: 2, MicID: 1, Ctf: WrongCtf()},
		{Index: 3, MicID: 2, Ctf: WrongCtf()},
	}
	src := NewSliceSource(parts)
	if src.Len() != 3 || !src.Readable() {
		Te.Error("source not ready after creation")
	}
	i := 0
	for ; ; i++ {
		p, err := src.Next()
		if err != nil {
			if _, ok := err.(LastRowError); ok {
				break
			}
			Te.Error(err)
			break
		}
		if p.Index != i+1 {
			Te.Error("particles out of order:", p.Index, i+1)
		}
	}
	if i != 3 {
		Te.Error("read", i, "particles, wanted 3")
	}
	if src.Readable() {
		Te.Error("source still readable after draining")
	}
	//a drained source fails loudly, not with the end-of-data error
	_, err := src.Next()
	if err == nil {
		Te.Error("reading past the end succeeded")
	} else if _, ok := err.(LastRowError); ok {
		Te.Error("reading past the end gave the end-of-data error again")
	}
	fmt.Println("Particles read:", i)
}
