/*
 * main.go, part of gocistem.
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

//gocistem inspects and prepares cisTEM runs from the command line: parsing
//result files, merging refinement blocks, planning classification schedules
//and debugging the stdin decks the handles pipe to the programs.
package main

import (
	"fmt"
	"os"
	"strings"

	cistem "github.com/scipion-em/gocistem"
	"github.com/scipion-em/gocistem/config"
	"github.com/scipion-em/gocistem/emplot"
	"github.com/scipion-em/gocistem/par"
	"github.com/scipion-em/gocistem/prog"
	"github.com/scipion-em/gocistem/refine2d"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gocistem",
	Short: "Inspect and prepare cisTEM runs",
	Long: `
gocistem works on the text files exchanged with the cisTEM programs: it
parses CTF estimation results, merges the per-block parameter files of a
classification iteration, prints the schedule of a planned run and shows
the stdin decks the programs would receive.
`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

//describe gives the one-line summary of a record, with whatever
//diagnostics it carries.
func describe(ctf *cistem.Ctf) string {
	if ctf.Wrong() {
		return "estimation FAILED"
	}
	s := emplot.Subtitle(ctf)
	if ctf.HasIceRing {
		s += fmt.Sprintf(" | Ice: %0.2f", ctf.IceRing)
	}
	if ctf.HasTilt {
		s += fmt.Sprintf(" | Tilt: %0.1f%s at axis %0.1f%s", ctf.TiltAngle, "°", ctf.TiltAxis, "°")
	}
	return s
}

func runCtf(file string, stack bool, avrot, plotname string) error {
	var dens []float64
	var err error
	if avrot != "" {
		if dens, err = cistem.ReadAvrot(avrot); err != nil {
			return err
		}
	}
	if stack {
		rows, err := cistem.ReadCtffindStack(file)
		if err != nil {
			return err
		}
		if rows == nil {
			return fmt.Errorf("no results at %s", file)
		}
		for i, row := range rows {
			ctf := cistem.CtfFromRow(row)
			if i < len(dens) {
				ctf.SetIceRing(dens[i])
			}
			fmt.Printf("%3d: %s\n", i+1, describe(ctf))
		}
		return nil
	}
	row, err := cistem.ReadCtffind(file)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("no results at %s", file)
	}
	ctf := cistem.CtfFromRow(row)
	if len(dens) > 0 {
		ctf.SetIceRing(dens[0])
	}
	fmt.Println(describe(ctf))
	if plotname != "" {
		if avrot == "" {
			avrot = strings.TrimSuffix(file, ".txt") + "_avrot.txt"
		}
		freq, amp, fit, quality, err := cistem.ReadAvrotCurves(avrot)
		if err != nil {
			return err
		}
		if freq == nil {
			return fmt.Errorf("no rotational average at %s, nothing to plot", avrot)
		}
		if err := emplot.CtfFit(freq, amp, fit, quality, emplot.Subtitle(ctf), plotname); err != nil {
			return err
		}
		fmt.Println("fit plot written to", plotname+".png")
	}
	return nil
}

func runRender(name, program, conf string, pixsize, dose float64, mic, movie, refs string, size int) error {
	cfg, err := config.Load(conf)
	if err != nil {
		return err
	}
	var H prog.Handle
	switch program {
	case prog.Ctffind:
		Q := new(prog.CtfCalc)
		Q.SetDefaults()
		cfg.ApplyCtf(Q)
		Q.Mic = mic
		Q.SamplingRate = pixsize
		H = prog.NewCtffindHandle(Q)
	case prog.Unblur:
		Q := new(prog.AlignCalc)
		Q.SetDefaults()
		Q.Movie = movie
		Q.Mic = name + "_aligned.mrc"
		Q.SamplingRate = pixsize
		if dose > 0 {
			Q.DosePerFrame = dose
		} else {
			Q.DoseFilter = false
		}
		H = prog.NewUnblurHandle(Q)
	case prog.FindParticles:
		Q := new(prog.PickCalc)
		Q.SetDefaults()
		Q.Mic = mic
		Q.SamplingRate = pixsize
		Q.Refs = refs
		//a nominal defocus, the deck is only for inspection
		Q.Ctf = &cistem.Ctf{DefocusU: 15000, DefocusV: 14500}
		H = prog.NewFindParticlesHandle(Q)
	case prog.Resample:
		Q := &prog.ResampleCalc{In: mic, Out: name + "_resampled.mrc",
			Volume: true, NewX: size, NewY: size, NewZ: size}
		H = prog.NewResampleHandle(Q)
	default:
		return fmt.Errorf("unknown program %q, want one of %s, %s, %s or %s",
			program, prog.Ctffind, prog.Unblur, prog.FindParticles, prog.Resample)
	}
	cfg.ApplyProgram(H, program)
	H.SetName(name)
	if err := H.BuildInput(); err != nil {
		return err
	}
	switch O := H.(type) {
	case *prog.CtffindHandle:
		fmt.Print(O.Deck())
	case *prog.UnblurHandle:
		fmt.Print(O.Deck())
	case *prog.FindParticlesHandle:
		fmt.Print(O.Deck())
	case *prog.ResampleHandle:
		fmt.Print(O.Deck())
	}
	return nil
}

//init adds all the sub-commands.
func init() {
	var stack bool
	var avrot, plotname string
	ctfCmd := &cobra.Command{
		Use:   "ctf result_file",
		Short: "Parse and summarize CTF estimation results",
		Long: `
Parses a ctffind result file and prints one summary line per image, with
the failed estimations flagged. With --avrot the companion rotational
average file contributes the ice-ring densities, and with --plot the
amplitude, fit and quality curves are drawn to a png.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCtf(args[0], stack, avrot, plotname)
		},
	}
	ctfCmd.Flags().BoolVarP(&stack, "stack", "", false, "the file holds one result row per image of a stack")
	ctfCmd.Flags().StringVarP(&avrot, "avrot", "", "", "companion _avrot file, for the ice-ring densities")
	ctfCmd.Flags().StringVarP(&plotname, "plot", "", "", "write the fit plot to this base name (single image only)")

	mergeCmd := &cobra.Command{
		Use:   "merge out.par block.par ...",
		Short: "Merge per-block parameter files into one",
		Long: `
Concatenates the parameter files the refinement blocks of an iteration
wrote, in the given order, into a single file with one header. All blocks
must exist; a missing one aborts the merge with nothing written.
`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := par.Merge(args[0], args[1:]...); err != nil {
				return err
			}
			fmt.Println("merged", len(args)-1, "blocks into", args[0])
			return nil
		},
	}

	var iters, classes, particles int
	var manual, startRes, endRes float64
	var noauto bool
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the schedule of a planned classification run",
		Long: `
Prints, for every iteration of a planned 2D classification, the percent of
the dataset that would be classified and the high-resolution limit in
effect, so a run can be sized before anything is launched.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iters < 1 || classes < 1 || particles < 1 {
				return fmt.Errorf("iterations, classes and particles must all be positive")
			}
			fmt.Println("iter   %used   highres(A)")
			for i := 1; i <= iters; i++ {
				p := refine2d.PercentUsed(iters, i, classes, particles, manual, !noauto)
				r := refine2d.HighResLimit(iters, i, startRes, endRes)
				fmt.Printf("%4d   %5.1f   %10.2f\n", i, p, r)
			}
			return nil
		},
	}
	scheduleCmd.Flags().IntVarP(&iters, "iters", "", 20, "number of iterations")
	scheduleCmd.Flags().IntVarP(&classes, "classes", "", 50, "number of classes")
	scheduleCmd.Flags().IntVarP(&particles, "particles", "", 0, "number of particles in the dataset")
	scheduleCmd.Flags().Float64VarP(&manual, "manual", "", 0, "manual percent, floors the automatic schedule")
	scheduleCmd.Flags().BoolVarP(&noauto, "no-auto", "", false, "disable the automatic schedule, use the manual percent as is")
	scheduleCmd.Flags().Float64VarP(&startRes, "start-res", "", 40, "resolution limit of the first iteration, Angstroms")
	scheduleCmd.Flags().Float64VarP(&endRes, "end-res", "", 8, "final resolution limit, Angstroms")

	var program, conf, mic, movie, refs string
	var pixsize, dose float64
	var size int
	renderCmd := &cobra.Command{
		Use:   "render run_name",
		Short: "Print the stdin deck a program run would receive",
		Long: `
Builds the stdin answer deck for a run named run_name, exactly as it would
be piped to the program, and prints it. Useful to check what a site
configuration does to a run before burning GPU hours on it.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(args[0], program, conf, pixsize, dose, mic, movie, refs, size)
		},
	}
	renderCmd.Flags().StringVarP(&program, "program", "", prog.Ctffind, "which deck: ctffind, unblur, find_particles or resample")
	renderCmd.Flags().StringVarP(&conf, "config", "", "", "YAML site configuration priming the options")
	renderCmd.Flags().StringVarP(&mic, "mic", "", "mic.mrc", "input micrograph, stack or volume")
	renderCmd.Flags().StringVarP(&movie, "movie", "", "movie.mrcs", "input movie (unblur)")
	renderCmd.Flags().StringVarP(&refs, "refs", "", "", "reference stack for template picking, empty for ab-initio")
	renderCmd.Flags().Float64VarP(&pixsize, "pixel-size", "", 1.0, "pixel size, Angstroms")
	renderCmd.Flags().Float64VarP(&dose, "dose", "", 0, "exposure per frame, e/A^2; 0 renders without the dose filter")
	renderCmd.Flags().IntVarP(&size, "size", "", 256, "new cubic size for resample, voxels")

	rootCmd.AddCommand(ctfCmd, mergeCmd, scheduleCmd, renderCmd)
}
