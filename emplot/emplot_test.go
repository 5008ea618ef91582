/*
 * emplot_test.go, part of gocistem.
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
 */

/*These tests draw the plots from the fixture result files, as a run on real
 * data would.*/

package emplot

import (
	"fmt"
	"testing"

	cistem "github.com/scipion-em/gocistem"
)

func TestCtfFitPlot(Te *testing.T) {
	freq, amp, fit, quality, err := cistem.ReadAvrotCurves("../test/mic_001_ctffind4_ctf_avrot.txt")
	if err != nil {
		Te.Fatal(err)
	}
	row, err := cistem.ReadCtffind("../test/mic_001_ctffind4_ctf.txt")
	if err != nil {
		Te.Fatal(err)
	}
	ctf := cistem.CtfFromRow(row)
	err = CtfFit(freq, amp, fit, quality, Subtitle(ctf), "../test/ctf_fit")
	if err != nil {
		Te.Error(err)
	}
	fmt.Println("CTF fit plot:", Subtitle(ctf))
}

func TestDriftPlot(Te *testing.T) {
	xs, ys, err := cistem.ReadShifts("../test/movie_001_shifts.txt", 1.0)
	if err != nil {
		Te.Fatal(err)
	}
	if err := Drift(xs, ys, "movie_001 drift", "../test/drift"); err != nil {
		Te.Error(err)
	}
	//mismatched trajectories must be refused before anything is drawn
	if err := Drift(xs, ys[:1], "bad", "../test/bad_drift"); err == nil {
		Te.Error("a mismatched trajectory was accepted")
	}
	if err := Drift([]float64{}, []float64{}, "bad", "../test/bad_drift"); err == nil {
		Te.Error("an empty trajectory was accepted")
	}
}

func TestSubtitle(Te *testing.T) {
	ctf := &cistem.Ctf{DefocusU: 11922.4, DefocusV: 11496.6, DefocusAngle: -42.42,
		Resolution: 4.2, FitQuality: 0.153}
	want := "Def1: 11922 Å | Def2: 11496 Å | Angle: -42.4° | Fit: 4.2 Å | Score: 0.153"
	if s := Subtitle(ctf); s != want {
		Te.Error("subtitle:", s, "wanted:", want)
	}
	ctf.PhaseShift = 40.5
	ctf.HasPhaseShift = true
	want = "Def1: 11922 Å | Def2: 11496 Å | Angle: -42.4° | " +
		"Phase shift: 40.50 ° | Fit: 4.2 Å | Score: 0.153"
	if s := Subtitle(ctf); s != want {
		Te.Error("subtitle with phase shift:", s, "wanted:", want)
	}
}
