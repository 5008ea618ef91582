/*
 * files.go, part of gocistem.
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
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// FindPsd looks for the power-spectrum image that belongs to the given
// CTF result file, trying the naming conventions the external programs and
// their wrappers have used over time. Suffixes are tried in order of
// preference, and for each suffix both the plain base name and the base name
// without a "_ctffind4" tag. A hit on the bare ".ctf" extension gets ":mrc"
// appended so image readers treat it as MRC data. Returns the empty string
// when nothing matches.
func FindPsd(filename string) string {
	base := filename
	if dot := strings.LastIndex(base, "."); dot > strings.LastIndex(base, "/") {
		base = base[:dot]
	}
	for _, suffix := range []string{"_psd.mrc", ".mrc", "_ctf.mrcs", ".mrcs", ".ctf"} {
		for _, prefix := range []string{base, strings.Replace(base, "_ctffind4", "", 1)} {
			psd := prefix + suffix
			if _, err := os.Stat(psd); err == nil {
				if strings.HasSuffix(psd, ".ctf") {
					psd += ":mrc"
				}
				return psd
			}
		}
	}
	return ""
}

// StackRef builds the "n@path" reference to the nth image (1-based) inside
// an image stack file.
func StackRef(n int, path string) string {
	return fmt.Sprintf("%d@%s", n, path)
}

// ReadShifts parses the per-frame shift file written by the movie-alignment
// program. Only lines starting with "image #" carry data; on them, the
// second-to-last whitespace token is the X shift (with a trailing comma on
// some versions) and the last one the Y shift, both in Angstroms. They are
// returned divided by pixSize, i.e. in pixels.
func ReadShifts(filename string, pixSize float64) ([]float64, []float64, error) {
	if pixSize <= 0 {
		return nil, nil, CError{fmt.Sprintf("non-positive pixel size %v", pixSize), filename, "shifts", []string{"ReadShifts"}, true}
	}
	fin, err := os.Open(filename)
	if err != nil {
		return nil, nil, CError{UnableToOpen, filename, "shifts", []string{"ReadShifts"}, true}
	}
	defer fin.Close()
	var xshifts, yshifts []float64
	sc := bufio.NewScanner(fin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "image #") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, nil, CError{WrongFormat, filename, "shifts", []string{"ReadShifts"}, true}
		}
		x, err := strconv.ParseFloat(strings.TrimRight(parts[len(parts)-2], ","), 64)
		if err != nil {
			return nil, nil, CError{WrongFormat + ": " + err.Error(), filename, "shifts", []string{"strconv.ParseFloat", "ReadShifts"}, true}
		}
		y, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			return nil, nil, CError{WrongFormat + ": " + err.Error(), filename, "shifts", []string{"strconv.ParseFloat", "ReadShifts"}, true}
		}
		xshifts = append(xshifts, x/pixSize)
		yshifts = append(yshifts, y/pixSize)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, CError{err.Error(), filename, "shifts", []string{"ReadShifts"}, true}
	}
	return xshifts, yshifts, nil
}

// Coord is one picked particle position on a micrograph, in pixels.
type Coord struct {
	X float64
	Y float64
}

// ReadPlt reads the coordinate file written by the picking program. The
// format is Imagic-style: each line holds two numbers where the first is the
// vertical position counted from the top of the image and the second the
// horizontal one, so our x is the second token and our y is the micrograph
// height minus the first. ydim is that height, in pixels. A missing file
// means the picker found nothing there, which is not an error.
func ReadPlt(filename string, ydim int) ([]Coord, error) {
	fin, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Warning: Missing file: %s", filename)
			return nil, nil
		}
		return nil, CError{UnableToOpen, filename, "plt", []string{"ReadPlt"}, true}
	}
	defer fin.Close()
	var coords []Coord
	sc := bufio.NewScanner(fin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, CError{WrongFormat, filename, "plt", []string{"ReadPlt"}, true}
		}
		row, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, CError{WrongFormat + ": " + err.Error(), filename, "plt", []string{"strconv.ParseFloat", "ReadPlt"}, true}
		}
		col, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, CError{WrongFormat + ": " + err.Error(), filename, "plt", []string{"strconv.ParseFloat", "ReadPlt"}, true}
		}
		coords = append(coords, Coord{X: col, Y: float64(ydim) - row})
	}
	if err := sc.Err(); err != nil {
		return nil, CError{err.Error(), filename, "plt", []string{"ReadPlt"}, true}
	}
	return coords, nil
}
