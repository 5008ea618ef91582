//Package par reads, writes and merges the fixed-width text parameter files
//the refinement programs use to exchange per-particle alignments.
package par

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	cistem "github.com/scipion-em/gocistem"
)

//The two parameter-file dialects, named by their column count. The current
//one carries a PSHIFT column between ANGAST and OCC, the legacy one doesn't.
const (
	Current = 17
	Legacy  = 16
)

const (
	headerCurrent = "C           PSI   THETA     PHI       SHX       SHY     MAG  FILM      DF1      DF2  ANGAST  PSHIFT     OCC      LogP      SIGMA   SCORE  CHANGE"
	headerLegacy  = "C           PSI   THETA     PHI       SHX       SHY     MAG  FILM      DF1      DF2  ANGAST     OCC     -LogP      SIGMA   SCORE  CHANGE"
	rowCurrent    = "%7d%8.2f%8.2f%8.2f%10.2f%10.2f%8d%6d%9.1f%9.1f%8.2f%8.2f%8.2f%10d%11.4f%8.2f%8.2f\n"
	rowLegacy     = "%7d%8.2f%8.2f%8.2f%10.2f%10.2f%8d%6d%9.1f%9.1f%8.2f%8.2f%10d%11.4f%8.2f%8.2f\n"
)

//The data columns after the leading particle index, in file order.
var colsCurrent = []string{"PSI", "THETA", "PHI", "SHX", "SHY", "MAG", "FILM", "DF1", "DF2", "ANGAST", "PSHIFT", "OCC", "LogP", "SIGMA", "SCORE", "CHANGE"}
var colsLegacy = []string{"PSI", "THETA", "PHI", "SHX", "SHY", "MAG", "FILM", "DF1", "DF2", "ANGAST", "OCC", "LogP", "SIGMA", "SCORE", "CHANGE"}

//Write!

//ParW writes a parameter file row by row. The output is compressed or not
//depending on the file extension (see prepTarget).
type ParW struct {
	f         *os.File
	h         io.WriteCloser
	filename  string
	version   int
	writeable bool
	nrows     int
}

//NewWriter creates a parameter file and writes its header line. The optional
//argument selects the dialect, Current (the default) or Legacy.
func NewWriter(name string, version ...int) (*ParW, error) {
	P := new(ParW)
	P.version = Current
	if len(version) > 0 {
		if version[0] != Current && version[0] != Legacy {
			return nil, Error{fmt.Sprintf("unsupported parameter-file dialect %d", version[0]), name, []string{"NewWriter"}, true}
		}
		P.version = version[0]
	}
	var err error
	P.h, err = P.prepTarget(name)
	if err != nil {
		return nil, errDecorate(err, "NewWriter")
	}
	header := headerCurrent
	if P.version == Legacy {
		header = headerLegacy
	}
	if _, err := P.h.Write([]byte(header + "\n")); err != nil {
		return nil, Error{err.Error(), P.filename, []string{"NewWriter"}, true}
	}
	P.writeable = true
	return P, nil
}

//WNext writes the row for one particle, filling the refinement bookkeeping
//columns with their starting values (OCC 100, SIGMA 10, everything else 0).
//A particle without a positive Index gets the next row number. A nil CTF is
//replaced by the failed-estimation record, so the row count of a set is
//preserved no matter how many of its images failed estimation.
func (P *ParW) WNext(p *cistem.Particle) error {
	if !P.writeable {
		return Error{ParUnIniWrite, P.filename, []string{"WNext"}, true}
	}
	if p == nil {
		return Error{NilParticle, P.filename, []string{"WNext"}, true}
	}
	ctf := p.Ctf
	if ctf == nil {
		ctf = cistem.WrongCtf()
	}
	ali := p.Ali
	if ali == nil {
		ali = new(cistem.Alignment)
	}
	index := p.Index
	if index <= 0 {
		index = P.nrows + 1
	}
	var shift float64
	if ctf.HasPhaseShift {
		shift = ctf.PhaseShift
	}
	var err error
	if P.version == Legacy {
		_, err = fmt.Fprintf(P.h, rowLegacy, index, ali.Psi, ali.Theta, ali.Phi, ali.ShiftX, ali.ShiftY,
			0, p.MicID, ctf.DefocusU, ctf.DefocusV, ctf.DefocusAngle, 100.0, 0, 10.0, 0.0, 0.0)
	} else {
		_, err = fmt.Fprintf(P.h, rowCurrent, index, ali.Psi, ali.Theta, ali.Phi, ali.ShiftX, ali.ShiftY,
			0, p.MicID, ctf.DefocusU, ctf.DefocusV, ctf.DefocusAngle, shift, 100.0, 0, 10.0, 0.0, 0.0)
	}
	if err != nil {
		return Error{err.Error(), P.filename, []string{"WNext"}, true}
	}
	P.nrows++
	return nil
}

//WNextRow writes back a previously parsed row, so files can be filtered or
//rewritten without losing columns. The row must come from a file of the same
//dialect the writer was created with.
func (P *ParW) WNextRow(r *Row) error {
	if !P.writeable {
		return Error{ParUnIniWrite, P.filename, []string{"WNextRow"}, true}
	}
	if r == nil || len(r.vals) != P.version {
		return Error{fmt.Sprintf("row with %d columns given to a %d-column writer", len(r.vals), P.version), P.filename, []string{"WNextRow"}, true}
	}
	v := r.vals
	var err error
	if P.version == Legacy {
		_, err = fmt.Fprintf(P.h, rowLegacy, int(v[0]), v[1], v[2], v[3], v[4], v[5],
			int(v[6]), int(v[7]), v[8], v[9], v[10], v[11], int(v[12]), v[13], v[14], v[15])
	} else {
		_, err = fmt.Fprintf(P.h, rowCurrent, int(v[0]), v[1], v[2], v[3], v[4], v[5],
			int(v[6]), int(v[7]), v[8], v[9], v[10], v[11], v[12], int(v[13]), v[14], v[15], v[16])
	}
	if err != nil {
		return Error{err.Error(), P.filename, []string{"WNextRow"}, true}
	}
	P.nrows++
	return nil
}

//Len returns the number of rows written so far.
func (P *ParW) Len() int {
	return P.nrows
}

//Close flushes and closes the file. The writer can not be used after this call.
func (P *ParW) Close() {
	if P == nil || !P.writeable {
		return
	}
	P.h.Close()
	P.f.Close()
	P.writeable = false
}

//WriteInitial drains a particle source into a new parameter file, numbering
//the rows sequentially from 1 in the order the source yields them. It returns
//the number of rows written. The optional argument selects the dialect, as in
//NewWriter.
func WriteInitial(name string, src cistem.ParticleSource, version ...int) (int, error) {
	if src == nil || !src.Readable() {
		return 0, Error{SourceNotReadable, name, []string{"WriteInitial"}, true}
	}
	W, err := NewWriter(name, version...)
	if err != nil {
		return 0, errDecorate(err, "WriteInitial")
	}
	defer W.Close()
	n := 0
	for {
		p, err := src.Next()
		if err != nil {
			if _, ok := err.(cistem.LastRowError); ok {
				break
			}
			return n, errDecorate(err, "WriteInitial")
		}
		q := *p
		q.Index = n + 1
		if err := W.WNext(&q); err != nil {
			return n, errDecorate(err, "WriteInitial")
		}
		n++
	}
	return n, nil
}

//Read!

//ParR reads a parameter file row by row. Comment lines (leading "C") are
//skipped; the header among them fixes the dialect. A file with no header at
//all is taken to be of the dialect matching its field count.
type ParR struct {
	f        *os.File
	zip      io.ReadCloser
	h        *bufio.Reader
	filename string
	cols     []string
	readable bool
}

//New opens a parameter file for reading.
func New(name string) (*ParR, error) {
	P := new(ParR)
	P.filename = name
	var err error
	P.zip, err = P.prepSource(name)
	if err != nil {
		return nil, errDecorate(err, "New")
	}
	P.h = bufio.NewReader(P.zip)
	P.readable = true
	return P, nil
}

//Readable returns true if it is possible to call Next on the handle.
func (P *ParR) Readable() bool {
	return P.readable
}

//Columns returns the data column names of the file, in file order, without
//the leading index column. It returns nil before the first row or header has
//been read.
func (P *ParR) Columns() []string {
	return P.cols
}

//Next returns the next data row. The error returned past the last row
//implements cistem.LastRowError, so it can be told apart from actual
//failures.
func (P *ParR) Next() (*Row, error) {
	if !P.readable {
		return nil, Error{ParUnIniRead, P.filename, []string{"Next"}, true}
	}
	for {
		line, err := P.h.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				//a last line without the newline still counts
				r, perr := P.parseRow(line)
				if perr != nil {
					return nil, errDecorate(perr, "Next")
				}
				if r != nil {
					return r, nil
				}
				P.Close()
				return nil, newlastRowError(P.filename, "Next")
			}
			return nil, Error{err.Error(), P.filename, []string{"Next"}, true}
		}
		r, perr := P.parseRow(line)
		if perr != nil {
			return nil, errDecorate(perr, "Next")
		}
		if r == nil {
			continue //comment, header or blank line
		}
		return r, nil
	}
}

func (P *ParR) parseRow(line string) (*Row, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, "C") {
		if P.cols == nil && strings.Contains(line, "PSI") {
			tokens := strings.Fields(line)
			P.cols = make([]string, 0, len(tokens)-1)
			for _, t := range tokens[1:] {
				P.cols = append(P.cols, strings.TrimPrefix(t, "-"))
			}
		}
		return nil, nil
	}
	fields := strings.Fields(line)
	if P.cols == nil {
		switch len(fields) {
		case Current:
			P.cols = colsCurrent
		case Legacy:
			P.cols = colsLegacy
		default:
			return nil, Error{fmt.Sprintf("%s: headerless row with %d fields", WrongFormat, len(fields)), P.filename, []string{"parseRow"}, true}
		}
		log.Printf("No header line in %s. The %d-column dialect will be assumed", P.filename, len(fields))
	}
	if len(fields) != len(P.cols)+1 {
		return nil, Error{fmt.Sprintf("%s: row with %d fields, want %d", WrongFormat, len(fields), len(P.cols)+1), P.filename, []string{"parseRow"}, true}
	}
	vals := make([]float64, len(fields))
	var err error
	for i, f := range fields {
		vals[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, Error{fmt.Sprintf("%s: %s", WrongFormat, err.Error()), P.filename, []string{"strconv.ParseFloat", "parseRow"}, true}
		}
	}
	return &Row{vals: vals, cols: P.cols}, nil
}

//Close closes the handle, and marks it as unreadable.
func (P *ParR) Close() {
	if !P.readable {
		return
	}
	P.zip.Close()
	P.f.Close()
	P.readable = false
}

//ReadAll opens a parameter file and returns all its data rows.
func ReadAll(name string) ([]*Row, error) {
	R, err := New(name)
	if err != nil {
		return nil, errDecorate(err, "ReadAll")
	}
	defer R.Close()
	var rows []*Row
	for {
		r, err := R.Next()
		if err != nil {
			if _, ok := err.(cistem.LastRowError); ok {
				break
			}
			return nil, errDecorate(err, "ReadAll")
		}
		rows = append(rows, r)
	}
	return rows, nil
}

//Row is one parsed parameter-file row.
type Row struct {
	vals []float64
	cols []string
}

//Index returns the leading particle index, 1-based.
func (R *Row) Index() int {
	return int(R.vals[0])
}

//Get returns the value of the named column, and whether the file has that
//column at all. The legacy "-LogP" spelling is looked up as "LogP".
func (R *Row) Get(name string) (float64, bool) {
	name = strings.TrimPrefix(name, "-")
	for i, c := range R.cols {
		if c == name {
			return R.vals[i+1], true
		}
	}
	return 0, false
}

//Film returns the film/micrograph group number of the row.
func (R *Row) Film() int {
	f, _ := R.Get("FILM")
	return int(f)
}

//Occ returns the occupancy of the row, in percent.
func (R *Row) Occ() float64 {
	o, _ := R.Get("OCC")
	return o
}

//Score returns the refinement score of the row.
func (R *Row) Score() float64 {
	s, _ := R.Get("SCORE")
	return s
}

//Defocus returns the defocus pair (Angstroms) and astigmatism angle
//(degrees) of the row.
func (R *Row) Defocus() (float64, float64, float64) {
	df1, _ := R.Get("DF1")
	df2, _ := R.Get("DF2")
	angast, _ := R.Get("ANGAST")
	return df1, df2, angast
}

//PhaseShift returns the phase shift column (degrees) and whether the dialect
//carries one.
func (R *Row) PhaseShift() (float64, bool) {
	return R.Get("PSHIFT")
}

//Alignment returns the pose stored in the row.
func (R *Row) Alignment() *cistem.Alignment {
	a := new(cistem.Alignment)
	a.Psi, _ = R.Get("PSI")
	a.Theta, _ = R.Get("THETA")
	a.Phi, _ = R.Get("PHI")
	a.ShiftX, _ = R.Get("SHX")
	a.ShiftY, _ = R.Get("SHY")
	return a
}

//Merge!

//Merge concatenates per-block parameter files, in the given order, into one
//file with a single header. All blocks must exist; a missing one aborts the
//merge before anything is written. The output appears atomically: it is
//assembled in a temporary file first and renamed over the target at the end.
//With a single block the file is simply moved. Blocks are expected to be
//plain text, as the refinement programs write them.
func Merge(out string, blocks ...string) error {
	if len(blocks) == 0 {
		return Error{"no parameter blocks to merge", out, []string{"Merge"}, true}
	}
	for _, b := range blocks {
		if _, err := os.Stat(b); err != nil {
			return Error{fmt.Sprintf("block file %s does not exist", b), out, []string{"Merge"}, true}
		}
	}
	if len(blocks) == 1 {
		if err := move(blocks[0], out); err != nil {
			return errDecorate(err, "Merge")
		}
		return nil
	}
	header, err := sniffDialect(blocks[0])
	if err != nil {
		return errDecorate(err, "Merge")
	}
	tmp := out + ".tmp"
	fout, err := os.Create(tmp)
	if err != nil {
		return Error{err.Error(), tmp, []string{"os.Create", "Merge"}, true}
	}
	w := bufio.NewWriter(fout)
	w.WriteString(header + "\n")
	for _, b := range blocks {
		fin, err := os.Open(b)
		if err != nil {
			fout.Close()
			os.Remove(tmp)
			return Error{err.Error(), b, []string{"os.Open", "Merge"}, true}
		}
		sc := bufio.NewScanner(fin)
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "C") || strings.TrimSpace(line) == "" {
				continue
			}
			w.WriteString(line + "\n")
		}
		serr := sc.Err()
		fin.Close()
		if serr != nil {
			fout.Close()
			os.Remove(tmp)
			return Error{serr.Error(), b, []string{"Merge"}, true}
		}
	}
	if err := w.Flush(); err != nil {
		fout.Close()
		os.Remove(tmp)
		return Error{err.Error(), tmp, []string{"Merge"}, true}
	}
	if err := fout.Close(); err != nil {
		os.Remove(tmp)
		return Error{err.Error(), tmp, []string{"Merge"}, true}
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return Error{err.Error(), out, []string{"os.Rename", "Merge"}, true}
	}
	return nil
}

//sniffDialect returns the header line matching the dialect of the given
//block, from its own header if it has one, from the field count of its first
//data row otherwise. An empty block counts as the current dialect.
func sniffDialect(fname string) (string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return "", Error{err.Error(), fname, []string{"os.Open", "sniffDialect"}, true}
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "C") {
			if strings.Contains(line, "PSI") {
				if strings.Contains(line, "PSHIFT") {
					return headerCurrent, nil
				}
				return headerLegacy, nil
			}
			continue
		}
		if len(strings.Fields(line)) == Legacy {
			return headerLegacy, nil
		}
		return headerCurrent, nil
	}
	if err := sc.Err(); err != nil {
		return "", Error{err.Error(), fname, []string{"sniffDialect"}, true}
	}
	return headerCurrent, nil
}

//move renames src to dst, falling back to a copy-and-delete when the rename
//fails (e.g. across filesystems).
func move(src, dst string) error {
	if os.Rename(src, dst) == nil {
		return nil
	}
	fin, err := os.Open(src)
	if err != nil {
		return Error{err.Error(), src, []string{"os.Open", "move"}, true}
	}
	defer fin.Close()
	fout, err := os.Create(dst)
	if err != nil {
		return Error{err.Error(), dst, []string{"os.Create", "move"}, true}
	}
	if _, err := io.Copy(fout, fin); err != nil {
		fout.Close()
		return Error{err.Error(), dst, []string{"io.Copy", "move"}, true}
	}
	if err := fout.Close(); err != nil {
		return Error{err.Error(), dst, []string{"move"}, true}
	}
	os.Remove(src)
	return nil
}

//Errors

//errDecorate is a helper function that asserts that the error implements
//cistem.Error and decorates it with the caller's name before returning it.
//if used with an error from outside the library, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(cistem.Error) //I know what the parsing functions return
	err2.Decorate(caller)
	return err2
}

//Error is the general structure for parameter-file errors. It fulfills
//cistem.Error and cistem.FileError.
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("par file %s error: %s", err.filename, err.message)
}

//Decorate Adds new information to the error
func (E Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.

	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing handle was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file associated to the error
func (err Error) Format() string { return "par" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	ParUnIniRead      = "Parameter file uninitialized to read"
	ParUnIniWrite     = "Parameter file uninitialized to write"
	UnableToOpen      = "Unable to open file"
	WrongFormat       = "Wrong format in parameter file"
	NilParticle       = "Given nil particle"
	SourceNotReadable = "Particle source not readable"
)

//lastRowError implements cistem.LastRowError
type lastRowError struct {
	deco     []string
	fileName string
}

//NormalLastRowTermination does nothing
func (E lastRowError) NormalLastRowTermination() {}

func (E lastRowError) FileName() string { return E.fileName }

func (E lastRowError) Error() string { return "EOF" }

func (E lastRowError) Critical() bool { return false }

func (E lastRowError) Format() string { return "par" }

func (E lastRowError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastRowError(filename string, caller string) *lastRowError {
	e := new(lastRowError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
