/*
 * ctffind.go, part of gocistem.
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
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
)

// The diagnostic frequency band (1/Angstroms) whose summed amplitude flags
// contaminating ice. 0.25-0.28 covers the 3.6 A ice reflection.
const (
	iceFreqMin = 0.25
	iceFreqMax = 0.28
)

// ReadCtffind reads a single-micrograph CTFFIND result file and returns the
// numeric result row: [index, defocus1, defocus2, angle, phaseShiftRad,
// score, resolution], plus [tiltAxis, tiltAngle, thickness] when the program
// version emits them. Lines starting with "#" are comments. Only the first
// data line is taken; some program versions append diagnostic lines after it,
// which are ignored. A missing file is not an error: the function logs a
// warning and returns a nil row, so one failed image doesn't halt a batch.
// A file that exists but doesn't parse is corruption, and that is an error.
func ReadCtffind(filename string) ([]float64, error) {
	rows, err := readCtffind(filename, true)
	if err != nil {
		return nil, errDecorate(err, "ReadCtffind")
	}
	if rows == nil {
		return nil, nil
	}
	return rows[0], nil
}

// ReadCtffindStack reads the result file of a whole-stack run (one tilt
// series processed at once): every data line is one image, in the order of
// the images in the stack. Missing-file and corruption policies are those of
// ReadCtffind.
func ReadCtffindStack(filename string) ([][]float64, error) {
	rows, err := readCtffind(filename, false)
	if err != nil {
		return nil, errDecorate(err, "ReadCtffindStack")
	}
	return rows, nil
}

func readCtffind(filename string, single bool) ([][]float64, error) {
	fin, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Warning: Missing file: %s", filename)
			return nil, nil
		}
		return nil, CError{UnableToOpen, filename, "ctffind", []string{"readCtffind"}, true}
	}
	defer fin.Close()
	var rows [][]float64
	sc := bufio.NewScanner(fin)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			row[i], err = strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, CError{WrongFormat + ": " + err.Error(), filename, "ctffind", []string{"strconv.ParseFloat", "readCtffind"}, true}
			}
		}
		rows = append(rows, row)
		if single {
			break //whatever follows the first data line is not a result
		}
	}
	if err := sc.Err(); err != nil {
		return nil, CError{err.Error(), filename, "ctffind", []string{"readCtffind"}, true}
	}
	return rows, nil
}

// ReadAvrot reads the rotational-average diagnostics companion the program
// writes next to its result file (the "_avrot" file) and returns one
// ice-ring density per image. The file repeats a 6-line block per image;
// the first line of each block is the spatial frequency axis and the second
// the amplitude curve. The density is the sum of absolute amplitudes over
// the bins falling in the diagnostic band. As with ReadCtffind, a missing
// file gives a nil slice and a warning, not an error.
func ReadAvrot(filename string) ([]float64, error) {
	lines, err := readAvrotLines(filename)
	if err != nil {
		return nil, errDecorate(err, "ReadAvrot")
	}
	if lines == nil {
		return nil, nil
	}
	var densities []float64
	for i := 0; i < len(lines); i += 6 {
		if i+1 >= len(lines) {
			return nil, CError{WrongFormat + ": truncated rotational-average block", filename, "avrot", []string{"ReadAvrot"}, true}
		}
		densities = append(densities, iceRingDensity(lines[i], lines[i+1]))
	}
	return densities, nil
}

// ReadAvrotCurves returns the plottable curves of the first image in an
// "_avrot" file: spatial frequency, amplitude spectrum, CTF fit and quality
// of fit. The astigmatism-free average (second line of the block) and the
// noise 2-sigma line are skipped, as in the usual result plots.
// Missing-file policy as in ReadCtffind.
func ReadAvrotCurves(filename string) (freq, amp, fit, quality []float64, err error) {
	lines, err := readAvrotLines(filename)
	if err != nil {
		return nil, nil, nil, nil, errDecorate(err, "ReadAvrotCurves")
	}
	if lines == nil {
		return nil, nil, nil, nil, nil
	}
	if len(lines) < 5 {
		return nil, nil, nil, nil, CError{WrongFormat + ": truncated rotational-average block", filename, "avrot", []string{"ReadAvrotCurves"}, true}
	}
	return lines[0], lines[2], lines[3], lines[4], nil
}

func readAvrotLines(filename string) ([][]float64, error) {
	fin, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Warning: Missing file: %s", filename)
			return nil, nil
		}
		return nil, CError{UnableToOpen, filename, "avrot", []string{"readAvrotLines"}, true}
	}
	defer fin.Close()
	var lines [][]float64
	sc := bufio.NewScanner(fin)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024) //amplitude lines can be long
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			vals[i], err = strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, CError{WrongFormat + ": " + err.Error(), filename, "avrot", []string{"strconv.ParseFloat", "readAvrotLines"}, true}
			}
		}
		lines = append(lines, vals)
	}
	if err := sc.Err(); err != nil {
		return nil, CError{err.Error(), filename, "avrot", []string{"readAvrotLines"}, true}
	}
	return lines, nil
}

func iceRingDensity(freq, amp []float64) float64 {
	sum := 0.0
	for i := 0; i < len(freq) && i < len(amp); i++ {
		if freq[i] >= iceFreqMin && freq[i] <= iceFreqMax {
			if amp[i] < 0 {
				sum -= amp[i]
			} else {
				sum += amp[i]
			}
		}
	}
	return sum
}
