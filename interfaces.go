/*
 * interfaces.go, part of gocistem.
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

// ParticleSource is an ordered source of particles, normally backed by the
// enclosing workflow system's object store. The order of iteration is part of
// the contract: particles must come out sorted by (micrograph id, item id),
// ascending, since alignment parameter files are zipped against it line by line.
type ParticleSource interface {

	//Is the source ready to be read?
	Readable() bool

	//Next returns the next particle, or an error implementing LastRowError
	//once the source is drained.
	Next() (*Particle, error)

	//Returns the total number of particles the source will yield.
	Len() int
}

//Errors

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //Allows to add information when the error is passed up. Each call also returns the "decoration" slice of strings resulting from the current call. If passed an empty string, it should just return the current value, not add the empty string to the slice.
	//The decorate slice should contain a list of functions in the calling stack, plus, for each function any relevant information, or nothing. If information is to be added to an element of the slice, it should be in this format: "FunctionName: Extra info"
}

// FileError is the interface for errors tied to one of the text files
// exchanged with the external programs.
type FileError interface {
	Error
	Critical() bool
	FileName() string
	Format() string
}

// LastRowError has a useless function to distinguish the harmless errors (i.e. end of file,
// source drained) so they can be filtered in a typeswitch that looks for this interface.
type LastRowError interface {
	FileError
	NormalLastRowTermination() //does nothing, just to separate this interface from other FileError's

}
