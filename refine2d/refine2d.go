/*
 * refine2d.go, part of gocistem.
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

//Package refine2d schedules iterative 2D classification runs: how much of
//the dataset each iteration should see, how the resolution limit ramps up
//over the run, and where the per-block parameter files of each iteration
//live until they are merged. The classification itself is the external
//program's job; this package only does the bookkeeping around it.
package refine2d

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	cistem "github.com/scipion-em/gocistem"
	"github.com/scipion-em/gocistem/par"
)

//PercentUsed returns the percentage of the dataset iteration iterDone of a
//run of iterTotal iterations should classify. In manual mode that is just
//manualPercent. In auto mode the schedule starts every class on about 300
//particles, moves to at least 30% for the middle iterations, and takes the
//whole dataset for the last 5 iterations; short runs of fewer than 10
//iterations always take everything. The result never goes below
//manualPercent. Both numClasses and numParticles must be positive in auto
//mode.
func PercentUsed(iterTotal, iterDone, numClasses, numParticles int, manualPercent float64, auto bool) float64 {
	if !auto {
		return manualPercent
	}
	early := math.Min(100, float64(numClasses*300)/float64(numParticles)*100)
	var r float64
	switch {
	case iterTotal < 10:
		r = 100
	case iterDone < earlyCutoff(iterTotal):
		r = early
	case iterDone < iterTotal-5:
		r = math.Max(30, early)
	default:
		r = 100
	}
	return math.Max(r, manualPercent)
}

//earlyCutoff is how many initial iterations run on the small
//300-per-class subset.
func earlyCutoff(iterTotal int) int {
	if iterTotal < 30 {
		return 5
	}
	return 10
}

//HighResLimit returns the high-resolution limit, in Angstroms, for
//iteration iterDone of a run of iterTotal iterations. The limit ramps
//linearly from startLimit down to endLimit over the first three quarters of
//the run and stays at endLimit for the rest, so the early iterations
//cannot overfit high-frequency noise. Single-iteration runs go straight to
//endLimit.
func HighResLimit(iterTotal, iterDone int, startLimit, endLimit float64) float64 {
	if iterTotal <= 1 {
		return endLimit
	}
	rampCycle := iterTotal
	if iterTotal >= 4 {
		rampCycle = int(math.Round(3.0 * float64(iterTotal) / 4.0))
	}
	if iterDone >= rampCycle {
		return endLimit
	}
	return startLimit + float64(iterDone-1)*(endLimit-startLimit)/float64(rampCycle-1)
}

//Run is the bookkeeping for one classification run: its identity, its
//working directory and the naming of the parameter files the refinement
//blocks write there. The blocks themselves run in parallel outside this
//package; the merge of an iteration is the sequential barrier between
//them and the next iteration.
type Run struct {
	ID        string //assigned on creation, names nothing on disk but tags logs and errors
	Dir       string
	Classes   int
	Iters     int
	Blocks    int     //refinement sub-jobs per iteration, each writing its own block file
	Particles int     //set when the run is seeded
	StartRes  float64 //A, resolution ramp start
	EndRes    float64 //A, resolution ramp end
	Manual    float64 //percent floor, see PercentUsed
	Auto      bool
}

//NewRun returns the bookkeeping for a fresh classification run. Nothing is
//created on disk until the run is seeded.
func NewRun(dir string, classes, iters, blocks int) *Run {
	R := new(Run)
	R.ID = uuid.New().String()
	R.Dir = dir
	R.Classes = classes
	R.Iters = iters
	R.Blocks = blocks
	R.Auto = true
	return R
}

func (R *Run) Check() error {
	if R.Dir == "" {
		return Error{"the run needs a working directory", R.ID, []string{"Check"}, true}
	}
	if R.Classes < 1 || R.Iters < 1 || R.Blocks < 1 {
		return Error{"classes, iterations and blocks must all be at least 1", R.ID, []string{"Check"}, true}
	}
	return nil
}

//BlockPar returns the name of the parameter file block b (1-based) of
//iteration iter writes.
func (R *Run) BlockPar(iter, block int) string {
	return filepath.Join(R.Dir, fmt.Sprintf("classification_iter%03d_par_block%02d.par", iter, block))
}

//IterPar returns the name of the merged parameter file of an iteration.
//Iteration 0 is the seed the first iteration reads.
func (R *Run) IterPar(iter int) string {
	return filepath.Join(R.Dir, fmt.Sprintf("classification_iter%03d.par", iter))
}

//PercentUsed returns the percentage of the dataset an iteration of this
//run should classify. Before seeding the run has no particle count, so
//call it after SeedPar in auto mode.
func (R *Run) PercentUsed(iterDone int) float64 {
	return PercentUsed(R.Iters, iterDone, R.Classes, R.Particles, R.Manual, R.Auto)
}

//HighResLimit returns the resolution limit for an iteration of this run.
func (R *Run) HighResLimit(iterDone int) float64 {
	return HighResLimit(R.Iters, iterDone, R.StartRes, R.EndRes)
}

//SeedPar creates the run's working directory and writes the seed parameter
//file for the first iteration from the particle source, remembering the
//dataset size for the percent-used schedule.
func (R *Run) SeedPar(src cistem.ParticleSource) error {
	if err := R.Check(); err != nil {
		return errDecorate(err, "SeedPar")
	}
	if src == nil {
		return Error{"no particle source", R.ID, []string{"SeedPar"}, true}
	}
	if err := os.MkdirAll(R.Dir, 0755); err != nil {
		return Error{err.Error(), R.ID, []string{"os.MkdirAll", "SeedPar"}, true}
	}
	n, err := par.WriteInitial(R.IterPar(0), src)
	if err != nil {
		return errDecorate(err, "SeedPar")
	}
	R.Particles = n
	return nil
}

//MergeIteration merges the block parameter files of an iteration, in
//ascending block order, into the iteration's merged file. All blocks must
//exist: a missing block means a refinement sub-job has not finished or has
//failed, and merging around it would silently drop its particles.
func (R *Run) MergeIteration(iter int) error {
	if err := R.Check(); err != nil {
		return errDecorate(err, "MergeIteration")
	}
	blocks := make([]string, 0, R.Blocks)
	for b := 1; b <= R.Blocks; b++ {
		blocks = append(blocks, R.BlockPar(iter, b))
	}
	if err := par.Merge(R.IterPar(iter), blocks...); err != nil {
		return errDecorate(err, "MergeIteration")
	}
	return nil
}

//FinalAssignments reads back the merged parameter file of the last
//iteration. The returned rows carry the refined pose of every particle
//plus the bookkeeping columns (occupancy, score) of the final pass.
func (R *Run) FinalAssignments() ([]*par.Row, error) {
	rows, err := par.ReadAll(R.IterPar(R.Iters))
	if err != nil {
		return nil, errDecorate(err, "FinalAssignments")
	}
	return rows, nil
}

//Errors

//errDecorate is a helper that asserts that the error is of the interface type of the library, and decorates it with the caller's name. If used with an error from outside the library, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(cistem.Error) //I know that is the type returned byt the functions in this library
	err2.Decorate(caller)
	return err2
}

//Error is the default error type for the classification bookkeeping.
type Error struct {
	message  string
	runid    string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("cistem refine2d run %s error: %s", err.runid, err.message)
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//RunID returns the id of the run that caused the error.
func (err Error) RunID() string {
	return err.runid
}

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool {
	return err.critical
}
