/*
 * doc.go, part of gocistem.
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

/*Package cistem is the main package of the gocistem library. It provides CTF and
particle-alignment structures, facilities for reading and writing the text files
produced and consumed by the cisTEM suite of cryo-EM programs, and functions for
converting between alignment parameters and transformation matrices.



	**gocistem Capabilities**


    Reads CTF estimation results from ctffind diagnostic text output, both
	single-micrograph and tilt-series/stack variants.

    Reads the rotational average profiles (_avrot files) written next to the
	diagnostic output, and estimates ice contamination from the equiphase
	average in the 0.25-0.28 1/A band.

    Reads and writes alignment parameter (.par) files, row by row or in full,
	with transparent compression support, and merges per-block .par files
	produced by parallel refinement jobs.

    Locates the power spectrum file matching a micrograph among the several
	naming conventions the different program versions use.

    Reads per-frame shift trajectories from movie alignment logs and particle
	coordinates from .plt picking files.

    Converts between Euler angles plus shifts and 4x4 projection matrices,
	using the zyz convention, in both directions.

    Generates input decks for, runs, and recovers results from ctffind,
	unblur, find_particles and resample (which must be obtained independently
	from their distributor). Interfacing gocistem to other programs of the
	suite is fairly simple.

    Schedules the particle subsets and resolution limits used along a 2D
	classification run.



The alignment conventions follow the cisTEM/Frealign ones: rotations are given
as Psi, Theta and Phi in degrees, shifts in Angstroms, and the matrices built
here transform reference projections into particle images. Defocus follows the
underfocus-positive convention, in Angstroms.*/
package cistem
