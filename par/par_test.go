/*
 * par_test.go, part of gocistem.
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

package par

import (
	"fmt"
	"os"
	"strings"
	"testing"

	cistem "github.com/scipion-em/gocistem"
)

var rootdirtest string = "../test"

func testParticles() []*cistem.Particle {
	return []*cistem.Particle{
		{MicID: 1,
			Ctf: &cistem.Ctf{DefocusU: 11922.4, DefocusV: 11496.4, DefocusAngle: -42.42},
			Ali: &cistem.Alignment{Psi: 10.5, Theta: 20.25, Phi: -30.75, ShiftX: 5.5, ShiftY: -3.25}},
		{MicID: 1,
			Ctf: &cistem.Ctf{DefocusU: 21309.1, DefocusV: 20882.2, DefocusAngle: 78.78, PhaseShift: 40.5, HasPhaseShift: true}},
		{MicID: 2, Ctf: nil}, //estimation failed for this one
	}
}

func TestParWriteRead(Te *testing.T) {
	name := rootdirtest + "/seed.par"
	W, err := NewWriter(name)
	if err != nil {
		Te.Fatal(err)
	}
	for _, p := range testParticles() {
		if err := W.WNext(p); err != nil {
			Te.Error(err)
		}
	}
	if W.Len() != 3 {
		Te.Error("rows written:", W.Len())
	}
	W.Close()
	rows, err := ReadAll(name)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 3 {
		Te.Fatal("rows read:", len(rows))
	}
	for i, r := range rows {
		if r.Index() != i+1 {
			Te.Error("row index:", r.Index(), "want", i+1)
		}
	}
	ali := rows[0].Alignment()
	if ali.Psi != 10.5 || ali.Theta != 20.25 || ali.Phi != -30.75 || ali.ShiftX != 5.5 || ali.ShiftY != -3.25 {
		Te.Error("pose of the first row:", *ali)
	}
	df1, df2, angast := rows[0].Defocus()
	if df1 != 11922.4 || df2 != 11496.4 || angast != -42.42 {
		Te.Error("defocus of the first row:", df1, df2, angast)
	}
	if rows[0].Film() != 1 || rows[2].Film() != 2 {
		Te.Error("film numbers:", rows[0].Film(), rows[2].Film())
	}
	if rows[0].Occ() != 100 || rows[0].Score() != 0 {
		Te.Error("starting bookkeeping values:", rows[0].Occ(), rows[0].Score())
	}
	if s, ok := rows[0].PhaseShift(); !ok || s != 0 {
		Te.Error("phase shift of the first row:", s, ok)
	}
	if s, ok := rows[1].PhaseShift(); !ok || s != 40.5 {
		Te.Error("phase shift of the second row:", s, ok)
	}
	//the failed estimation still got a row, with the sentinel values
	df1, df2, angast = rows[2].Defocus()
	if df1 != -999 || df2 != -1 || angast != -999 {
		Te.Error("sentinel row defocus:", df1, df2, angast)
	}
	fmt.Println("par file round trip done:", len(rows), "rows")
}

//TestParPrecision checks that the fixed-width columns keep their full
//precision through a round trip: two decimals for the angles, one for the
//defocus.
func TestParPrecision(Te *testing.T) {
	name := rootdirtest + "/precision.par"
	W, err := NewWriter(name)
	if err != nil {
		Te.Fatal(err)
	}
	p := &cistem.Particle{MicID: 1,
		Ctf: &cistem.Ctf{DefocusU: 20000.0, DefocusV: 19500.0, DefocusAngle: 45.0,
			PhaseShift: 10.0, HasPhaseShift: true},
		Ali: &cistem.Alignment{Psi: 12.34}}
	if err := W.WNext(p); err != nil {
		Te.Fatal(err)
	}
	W.Close()
	rows, err := ReadAll(name)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 1 {
		Te.Fatal("rows read:", len(rows))
	}
	ali := rows[0].Alignment()
	if ali.Psi != 12.34 || ali.Theta != 0 || ali.Phi != 0 || ali.ShiftX != 0 || ali.ShiftY != 0 {
		Te.Error("pose did not survive the round trip:", *ali)
	}
	df1, df2, angast := rows[0].Defocus()
	if df1 != 20000.0 || df2 != 19500.0 || angast != 45.0 {
		Te.Error("defocus did not survive the round trip:", df1, df2, angast)
	}
	if s, ok := rows[0].PhaseShift(); !ok || s != 10.0 {
		Te.Error("phase shift did not survive the round trip:", s, ok)
	}
}

func TestParWriteInitial(Te *testing.T) {
	name := rootdirtest + "/initial.par"
	src := cistem.NewSliceSource(testParticles())
	n, err := WriteInitial(name, src)
	if err != nil {
		Te.Fatal(err)
	}
	if n != 3 {
		Te.Error("particles seeded:", n)
	}
	rows, err := ReadAll(name)
	if err != nil {
		Te.Fatal(err)
	}
	for i, r := range rows {
		if r.Index() != i+1 {
			Te.Error("seeded index:", r.Index(), "want", i+1)
		}
		if r.Occ() != 100 {
			Te.Error("seeded occupancy:", r.Occ())
		}
	}
	//a drained source can't seed another file
	if _, err = WriteInitial(rootdirtest+"/initial2.par", src); err == nil {
		Te.Error("a drained source was accepted")
	}
}

func TestParLegacy(Te *testing.T) {
	name := rootdirtest + "/legacy.par"
	W, err := NewWriter(name, Legacy)
	if err != nil {
		Te.Fatal(err)
	}
	for _, p := range testParticles() {
		if err := W.WNext(p); err != nil {
			Te.Error(err)
		}
	}
	W.Close()
	rows, err := ReadAll(name)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 3 {
		Te.Fatal("legacy rows read:", len(rows))
	}
	if _, ok := rows[0].PhaseShift(); ok {
		Te.Error("legacy dialect grew a phase shift column")
	}
	//the -LogP spelling is looked up without the sign
	if v, ok := rows[0].Get("LogP"); !ok || v != 0 {
		Te.Error("legacy LogP:", v, ok)
	}
	if _, err := NewWriter(rootdirtest+"/bad.par", 15); err == nil {
		Te.Error("an unknown dialect was accepted")
	}
	fmt.Println("legacy dialect done")
}

func TestParCompressed(Te *testing.T) {
	for _, name := range []string{rootdirtest + "/seed.par.zst", rootdirtest + "/seed.par.gz"} {
		W, err := NewWriter(name)
		if err != nil {
			Te.Fatal(err)
		}
		for _, p := range testParticles() {
			if err := W.WNext(p); err != nil {
				Te.Error(err)
			}
		}
		W.Close()
		rows, err := ReadAll(name)
		if err != nil {
			Te.Fatal(err)
		}
		if len(rows) != 3 {
			Te.Error(name, "rows read:", len(rows))
		}
		df1, _, _ := rows[0].Defocus()
		if df1 != 11922.4 {
			Te.Error(name, "first defocus:", df1)
		}
		fmt.Println("compressed round trip done:", name)
	}
}

func TestParRewrite(Te *testing.T) {
	rows, err := ReadAll(rootdirtest + "/seed.par")
	if err != nil {
		Te.Fatal(err)
	}
	name := rootdirtest + "/rewritten.par"
	W, err := NewWriter(name)
	if err != nil {
		Te.Fatal(err)
	}
	for _, r := range rows {
		if err := W.WNextRow(r); err != nil {
			Te.Error(err)
		}
	}
	W.Close()
	rows2, err := ReadAll(name)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows2) != len(rows) {
		Te.Fatal("rewritten rows:", len(rows2))
	}
	for i := range rows {
		for j := range rows[i].vals {
			if rows[i].vals[j] != rows2[i].vals[j] {
				Te.Error("row", i, "column", j, "changed:", rows[i].vals[j], rows2[i].vals[j])
			}
		}
	}
	//a legacy writer must reject current-dialect rows
	W, err = NewWriter(rootdirtest+"/mismatch.par", Legacy)
	if err != nil {
		Te.Fatal(err)
	}
	if err := W.WNextRow(rows[0]); err == nil {
		Te.Error("a 17-column row was accepted by a 16-column writer")
	}
	W.Close()
}

func writeBlock(Te *testing.T, name string, first, n int) {
	W, err := NewWriter(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer W.Close()
	for i := 0; i < n; i++ {
		p := &cistem.Particle{Index: first + i, MicID: 1,
			Ctf: &cistem.Ctf{DefocusU: 10000, DefocusV: 9500, DefocusAngle: 15.5}}
		if err := W.WNext(p); err != nil {
			Te.Error(err)
		}
	}
}

func TestMerge(Te *testing.T) {
	b1 := rootdirtest + "/block01.par"
	b2 := rootdirtest + "/block02.par"
	b3 := rootdirtest + "/block03.par"
	//written in an order a directory listing would not give: the merge
	//must follow the caller's block order, never the filesystem's
	writeBlock(Te, b3, 21, 10)
	writeBlock(Te, b1, 1, 10)
	writeBlock(Te, b2, 11, 10)
	out := rootdirtest + "/merged.par"
	if err := Merge(out, b1, b2, b3); err != nil {
		Te.Fatal(err)
	}
	rows, err := ReadAll(out)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 30 {
		Te.Fatal("merged rows:", len(rows))
	}
	for i, r := range rows {
		if r.Index() != i+1 {
			Te.Error("merged order broken:", r.Index(), "at", i)
		}
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		Te.Fatal(err)
	}
	headers := 0
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "C") {
			headers++
		}
	}
	if headers != 1 {
		Te.Error("a merged file must carry exactly one header, found", headers)
	}
	if _, err := os.Stat(out + ".tmp"); err == nil {
		Te.Error("the temporary merge file was left behind")
	}
	fmt.Println("merged rows:", len(rows))
}

func TestMergeSingle(Te *testing.T) {
	b := rootdirtest + "/block_single.par"
	writeBlock(Te, b, 1, 2)
	out := rootdirtest + "/merged_single.par"
	if err := Merge(out, b); err != nil {
		Te.Fatal(err)
	}
	if _, err := os.Stat(b); err == nil {
		Te.Error("the single block was copied instead of moved")
	}
	rows, err := ReadAll(out)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 2 {
		Te.Error("moved rows:", len(rows))
	}
}

func TestMergeMissing(Te *testing.T) {
	//blocks 1 and 3 are left behind by TestMerge; block 2 of 3 is absent
	b1 := rootdirtest + "/block01.par"
	b3 := rootdirtest + "/block03.par"
	missing := rootdirtest + "/no_such_block.par"
	err := Merge(rootdirtest+"/should_not_appear.par", b1, missing, b3)
	if err == nil {
		Te.Fatal("merging with a missing block succeeded")
	}
	if !strings.Contains(err.Error(), missing) {
		Te.Error("the error should name the missing block:", err)
	}
	fmt.Println("expected merge failure:", err)
	if _, serr := os.Stat(rootdirtest + "/should_not_appear.par"); serr == nil {
		Te.Error("a failed merge left an output file")
	}
}

func TestParNoHeader(Te *testing.T) {
	name := rootdirtest + "/noheader.par"
	f, err := os.Create(name)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Fprintf(f, rowCurrent, 1, 10.5, 0.0, 0.0, 0.0, 0.0, 0, 1, 10000.0, 9500.0, 15.5, 0.0, 100.0, 0, 10.0, 0.0, 0.0)
	fmt.Fprintf(f, rowCurrent, 2, -10.5, 0.0, 0.0, 0.0, 0.0, 0, 1, 10000.0, 9500.0, 15.5, 0.0, 100.0, 0, 10.0, 0.0, 0.0)
	f.Close()
	rows, err := ReadAll(name)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 2 {
		Te.Fatal("headerless rows read:", len(rows))
	}
	if s, ok := rows[0].PhaseShift(); !ok || s != 0 {
		Te.Error("headerless dialect not inferred:", s, ok)
	}
}

func benchParticle(i int) *cistem.Particle {
	return &cistem.Particle{Index: i + 1, MicID: i/100 + 1,
		Ctf: &cistem.Ctf{DefocusU: 15000 + float64(i), DefocusV: 14500 + float64(i), DefocusAngle: 30.5},
		Ali: &cistem.Alignment{Psi: float64(i % 360)}}
}

func BenchmarkWritePar(B *testing.B) {
	fmt.Println("par write bench!")
	W, err := NewWriter(rootdirtest + "/bench.par")
	if err != nil {
		B.Error(err)
	}
	for i := 0; i < 10000; i++ {
		if err := W.WNext(benchParticle(i)); err != nil {
			B.Error(err)
			break
		}
	}
	W.Close()
}

func BenchmarkWriteParZst(B *testing.B) {
	fmt.Println("compressed par write bench!")
	W, err := NewWriter(rootdirtest + "/bench.par.zst")
	if err != nil {
		B.Error(err)
	}
	for i := 0; i < 10000; i++ {
		if err := W.WNext(benchParticle(i)); err != nil {
			B.Error(err)
			break
		}
	}
	W.Close()
}
