/*
 * compressed.go, part of gocistem
 *
 * Copyright 2025 The gocistem developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License  as published by
 * the Free Software Foundation; either version 2.1 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston,
 * MA 02110-1301, USA.
 */

package par

import (
	"bufio"
	"compress/gzip"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

//zstd's Decoder doesn't implement io.ReadCloser, as its Close returns
//nothing, so it gets wrapped.
type zstdql struct {
	closeql func()
	*zstd.Decoder
}

//Close Closes the object. It can not be used after this call
func (z zstdql) Close() error {
	z.closeql()
	return nil
}

//prepSource takes a filename, opens the file and returns an object that will
//read data from it, either 'as is' or decompressing first, depending on the
//file extension. Extensions supported are .par (plain text), .gz (gzip) and
//.zst (zstandard). Any other extension gets a logged message and the plain
//text format assumed, so prepSource only returns an error if the file can't
//be opened or its compression header is broken.
func (P *ParR) prepSource(fname string) (io.ReadCloser, error) {
	var err error
	temp := strings.Split(fname, ".")
	fk := strings.ToLower(temp[len(temp)-1])
	P.filename = fname
	P.f, err = os.Open(fname)
	if err != nil {
		return nil, Error{err.Error(), P.filename, []string{"os.Open", "prepSource"}, true}
	}
	reader := bufio.NewReader(P.f)

	switch fk {

	case "par":
		return P.f, nil
	case "gz":
		r, err := gzip.NewReader(reader)
		if err != nil {
			return nil, Error{err.Error(), P.filename, []string{"gzip.NewReader", "prepSource"}, true}
		}
		return r, nil
	case "zst":
		r, err := zstd.NewReader(reader)
		if err != nil {
			return nil, Error{err.Error(), P.filename, []string{"zstd.NewReader", "prepSource"}, true}
		}
		return zstdql{r.Close, r}, nil
	default:
		log.Printf("Format string %s not supported. %s will be assumed to be a plain text parameter file", fk, P.filename)
		return P.f, nil
	}
}

//prepTarget creates the named file and returns an object that will write
//data to it, crude or compressed, depending on the file extension, with the
//same conventions as prepSource.
func (P *ParW) prepTarget(fname string) (io.WriteCloser, error) {
	var err error
	temp := strings.Split(fname, ".")
	fk := strings.ToLower(temp[len(temp)-1])
	P.filename = fname
	P.f, err = os.Create(fname)
	if err != nil {
		return nil, Error{err.Error(), P.filename, []string{"os.Create", "prepTarget"}, true}
	}

	switch fk {

	case "par":
		return P.f, nil
	case "gz":
		return gzip.NewWriter(P.f), nil
	case "zst":
		w, err := zstd.NewWriter(P.f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, Error{err.Error(), P.filename, []string{"zstd.NewWriter", "prepTarget"}, true}
		}
		return w, nil
	default:
		log.Printf("Format string %s not supported. %s will be written as a plain text parameter file", fk, P.filename)
		return P.f, nil
	}
}
