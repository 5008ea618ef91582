/*
 * refine2d_test.go, part of gocistem.
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

package refine2d

import (
	"fmt"
	"os"
	"strings"
	"testing"

	cistem "github.com/scipion-em/gocistem"
	"github.com/scipion-em/gocistem/par"
)

var rootdirtest string = "../test"

func TestPercentUsed(Te *testing.T) {
	//manual mode is a passthrough
	if v := PercentUsed(25, 5, 5, 50000, 77, false); v != 77 {
		Te.Error("manual percent:", v)
	}
	//short runs take everything from the first iteration
	if v := PercentUsed(5, 0, 1, 300, 10, true); v != 100.0 {
		Te.Error("short run percent:", v)
	}
	//a big dataset in the middle iterations gets the 30% floor
	if v := PercentUsed(25, 5, 5, 50000, 10, true); v != 30.0 {
		Te.Error("middle iteration percent:", v)
	}
	//the manual value still floors the early subset
	if v := PercentUsed(25, 2, 5, 50000, 10, true); v != 10 {
		Te.Error("early percent under the manual floor:", v)
	}
	//the last 5 iterations always take everything
	if v := PercentUsed(25, 22, 5, 50000, 10, true); v != 100 {
		Te.Error("final iteration percent:", v)
	}
	//runs of 30 or more iterations keep the small subset for 10 of them
	if v := PercentUsed(30, 9, 5, 6000, 0, true); v != 25 {
		Te.Error("long run early percent:", v)
	}
	if v := PercentUsed(20, 9, 5, 6000, 0, true); v != 30 {
		Te.Error("short run at the same iteration should be past the subset:", v)
	}
	//plenty of classes for few particles caps at the whole dataset
	if v := PercentUsed(25, 10, 100, 6000, 0, true); v != 100 {
		Te.Error("capped percent:", v)
	}
}

func TestHighResLimit(Te *testing.T) {
	//a single iteration goes straight to the end limit
	if v := HighResLimit(1, 1, 40, 8); v != 8 {
		Te.Error("single iteration limit:", v)
	}
	//40 iterations ramp over the first 30
	if v := HighResLimit(40, 1, 40, 8); v != 40 {
		Te.Error("ramp start:", v)
	}
	if v := HighResLimit(40, 30, 40, 8); v != 8 {
		Te.Error("end of the ramp:", v)
	}
	if v := HighResLimit(40, 35, 40, 8); v != 8 {
		Te.Error("past the ramp:", v)
	}
	prev := HighResLimit(40, 1, 40, 8)
	for d := 2; d < 30; d++ {
		v := HighResLimit(40, d, 40, 8)
		if v >= prev {
			Te.Error("the ramp went back up at iteration", d, ":", v, "after", prev)
		}
		if v <= 8 || v >= 40 {
			Te.Error("ramp value out of range at iteration", d, ":", v)
		}
		prev = v
	}
	//tiny runs ramp over all their iterations
	if v := HighResLimit(3, 2, 40, 8); v != 24 {
		Te.Error("3-iteration midpoint:", v)
	}
	if v := HighResLimit(3, 3, 40, 8); v != 8 {
		Te.Error("3-iteration end:", v)
	}
}

func TestRunNaming(Te *testing.T) {
	R := NewRun(rootdirtest+"/run2d", 4, 20, 8)
	if R.ID == "" {
		Te.Error("the run got no id")
	}
	if !strings.HasSuffix(R.BlockPar(3, 2), "classification_iter003_par_block02.par") {
		Te.Error("block file name:", R.BlockPar(3, 2))
	}
	if !strings.HasSuffix(R.IterPar(0), "classification_iter000.par") {
		Te.Error("seed file name:", R.IterPar(0))
	}
	if err := R.Check(); err != nil {
		Te.Error(err)
	}
	bad := NewRun("", 4, 20, 8)
	if err := bad.Check(); err == nil {
		Te.Error("a run without a directory passed the check")
	}
	bad = NewRun(rootdirtest+"/run2d", 4, 20, 0)
	if err := bad.Check(); err == nil {
		Te.Error("a run without blocks passed the check")
	}
	if err := bad.SeedPar(cistem.NewSliceSource(nil)); err == nil {
		Te.Error("seeding a broken run succeeded")
	}
}

func runParticles(n int) []*cistem.Particle {
	ps := make([]*cistem.Particle, 0, n)
	for i := 0; i < n; i++ {
		ps = append(ps, &cistem.Particle{MicID: i/3 + 1,
			Ctf: &cistem.Ctf{DefocusU: 12000, DefocusV: 11500, DefocusAngle: 30}})
	}
	return ps
}

func writeBlock(Te *testing.T, name string, first, n int) {
	W, err := par.NewWriter(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer W.Close()
	for i := 0; i < n; i++ {
		p := &cistem.Particle{Index: first + i, MicID: 1,
			Ctf: &cistem.Ctf{DefocusU: 12000, DefocusV: 11500, DefocusAngle: 30},
			Ali: &cistem.Alignment{Psi: float64(first + i)}}
		if err := W.WNext(p); err != nil {
			Te.Error(err)
		}
	}
}

func TestRunCycle(Te *testing.T) {
	R := NewRun(rootdirtest+"/run2d", 2, 12, 3)
	if err := R.SeedPar(cistem.NewSliceSource(runParticles(9))); err != nil {
		Te.Fatal(err)
	}
	if R.Particles != 9 {
		Te.Error("seeded particles:", R.Particles)
	}
	rows, err := par.ReadAll(R.IterPar(0))
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 9 || rows[0].Occ() != 100 {
		Te.Error("seed file:", len(rows), "rows, first occupancy", rows[0].Occ())
	}
	//2 classes on 9 particles: every iteration sees the whole set
	if v := R.PercentUsed(1); v != 100 {
		Te.Error("tiny dataset percent:", v)
	}
	//iteration 1, refined in 3 blocks written out of order
	writeBlock(Te, R.BlockPar(1, 3), 7, 3)
	writeBlock(Te, R.BlockPar(1, 1), 1, 3)
	writeBlock(Te, R.BlockPar(1, 2), 4, 3)
	if err := R.MergeIteration(1); err != nil {
		Te.Fatal(err)
	}
	rows, err = par.ReadAll(R.IterPar(1))
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 9 {
		Te.Fatal("merged rows:", len(rows))
	}
	for i, r := range rows {
		if r.Index() != i+1 {
			Te.Error("merged order broken:", r.Index(), "at", i)
		}
	}
	//the last iteration feeds FinalAssignments
	writeBlock(Te, R.BlockPar(12, 1), 1, 4)
	writeBlock(Te, R.BlockPar(12, 2), 5, 3)
	writeBlock(Te, R.BlockPar(12, 3), 8, 2)
	if err := R.MergeIteration(12); err != nil {
		Te.Fatal(err)
	}
	final, err := R.FinalAssignments()
	if err != nil {
		Te.Fatal(err)
	}
	if len(final) != 9 {
		Te.Fatal("final rows:", len(final))
	}
	if a := final[2].Alignment(); a.Psi != 3 {
		Te.Error("final pose of the third particle:", a.Psi)
	}
	fmt.Println("classification cycle done:", len(final), "particles")
}

func TestRunMergeMissing(Te *testing.T) {
	R := NewRun(rootdirtest+"/run2d", 2, 12, 3)
	if err := os.MkdirAll(R.Dir, 0755); err != nil {
		Te.Fatal(err)
	}
	//only two of the three blocks of iteration 2 exist
	writeBlock(Te, R.BlockPar(2, 1), 1, 3)
	writeBlock(Te, R.BlockPar(2, 3), 7, 3)
	err := R.MergeIteration(2)
	if err == nil {
		Te.Fatal("merging a half-finished iteration succeeded")
	}
	if !strings.Contains(err.Error(), R.BlockPar(2, 2)) {
		Te.Error("the error should name the missing block:", err)
	}
	fmt.Println("expected merge failure:", err)
}
