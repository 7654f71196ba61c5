package profile

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	separator = "#"
	// absent is how a missing real frequency is written to disk.
	absent = "-1"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write outputs the profile one term per line as term#observed#real.
func (p *Profile) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range p.entries {
		r := absent
		if e.HasReal {
			r = formatFloat(e.Real)
		}
		if _, err := fmt.Fprintf(bw, "%s%s%s%s%s\n", e.Term, separator, formatFloat(e.Observed), separator, r); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the profile to a file, replacing any existing contents.
func (p *Profile) WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0664)
	if err != nil {
		return errors.Wrapf(err, "could not create profile %s", path)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "could not write profile %s", path)
	}
	return f.Close()
}

// parseFrequency reads a numeric field. NaN and negative values become zero; infinities are rejected.
func parseFrequency(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, errors.Errorf("infinite frequency %q", s)
	}
	return clamp(v), nil
}

// parseLine splits a line on its last two separators, so that a term may itself contain the separator.
func parseLine(line string) (term, observed, real string, ok bool) {
	j := strings.LastIndex(line, separator)
	if j < 0 {
		return
	}
	i := strings.LastIndex(line[:j], separator)
	if i <= 0 {
		return
	}
	return line[:i], line[i+1 : j], line[j+1:], true
}

// maxRow is the longest row that is parsed; longer rows are dropped.
const maxRow = 1024 * 1024

// Read loads a profile written by Write. Rows that cannot be parsed, or that are longer than maxRow, are dropped and
// do not stop the load.
func Read(r io.Reader) (*Profile, error) {
	p := New()
	br := bufio.NewReader(r)
	n := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "could not read profile")
		}
		if len(line) > 0 {
			n++
			p.parseRow(n, line)
		}
		if err == io.EOF {
			return p, nil
		}
	}
}

func (p *Profile) parseRow(n int, line string) {
	if len(line) > maxRow {
		log.Printf("dropping profile row %d: longer than %d bytes\n", n, maxRow)
		return
	}
	line = strings.TrimRight(line, "\r\n")
	if len(strings.TrimSpace(line)) == 0 {
		return
	}
	term, o, rf, ok := parseLine(line)
	if !ok {
		log.Printf("dropping malformed profile row %d: %q\n", n, line)
		return
	}
	observed, err := parseFrequency(o)
	if err != nil {
		log.Printf("dropping profile row %d: %v\n", n, err)
		return
	}
	var real float64
	hasReal := strings.TrimSpace(rf) != absent
	if hasReal {
		real, err = parseFrequency(rf)
		if err != nil {
			log.Printf("dropping profile row %d: %v\n", n, err)
			return
		}
	}
	p.SetObserved(term, observed)
	if hasReal {
		p.SetReal(term, real)
	}
}

// Load reads a profile from a file.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open profile %s", path)
	}
	defer f.Close()
	return Read(f)
}
