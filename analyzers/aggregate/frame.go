package aggregate

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// frame is a tool output table read as strings.
type frame struct {
	path string
	df   *dataframe.DataFrame
}

// readFrame loads a delimited table with a header row. Tab or comma is picked
// from the header line. A file with no data rows gives an empty frame.
func readFrame(path string) (frame, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return frame{}, err
	}

	var header string
	rows := 0
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if rows == 0 {
			header = line
		}
		rows++
	}
	if rows < 2 {
		return frame{path: path}, nil
	}

	delim := ','
	if strings.Contains(header, "\t") {
		delim = '\t'
	}
	df := dataframe.ReadCSV(bytes.NewReader(b),
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String))
	if df.Err != nil {
		return frame{}, fmt.Errorf("read %s: %w", path, df.Err)
	}
	return frame{path: path, df: &df}, nil
}

func (f frame) Len() int {
	if f.df == nil {
		return 0
	}
	return f.df.Nrow()
}

// col returns the first of names present in the header, or nil.
func (f frame) col(names ...string) []string {
	if f.df == nil {
		return nil
	}
	header := f.df.Names()
	for _, want := range names {
		for _, n := range header {
			if strings.TrimSpace(n) == want {
				return cells(f.df.Col(n).Records())
			}
		}
	}
	return nil
}

func (f frame) require(names ...string) ([]string, error) {
	if f.df == nil {
		return nil, nil
	}
	if c := f.col(names...); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%s: missing column %q", f.path, names[0])
}

// cells replaces gota's NaN marker with an empty cell.
func cells(in []string) []string {
	for i, v := range in {
		if v == "NaN" {
			in[i] = ""
		}
		in[i] = strings.TrimSpace(in[i])
	}
	return in
}

func at(col []string, i int) string {
	if i < len(col) {
		return col[i]
	}
	return ""
}

// atoi accepts integral and decimal lengths. Empty is zero.
func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a length: %q", s)
	}
	return int(f), nil
}
