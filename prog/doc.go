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
 *
 * */

//Package prog drives the interactive cisTEM command-line programs
//(ctffind, unblur, find_particles, resample). These programs take their
//parameters as an answer deck on standard input, one answer per line, so
//each handle assembles the deck for its program, pipes it through a shell
//heredoc, and reads the program's text output back into cistem records.
//The deck text is kept as close as possible to what the programs document,
//so that a failed run can be reproduced by hand.

package prog
