package blastsort

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"virome-runner/outputs"
)

var columns = []string{"query_id", "hit_id", "e_val", "query_length", "alignment_length", "start", "end"}

// ReadHits loads a parsed BLAST table with a header naming columns. Tab or
// comma delimiters are accepted.
func ReadHits(path string) ([]Hit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, nil
	}
	header := lines[0]
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
		return nil, fmt.Errorf("read %s: %w", path, df.Err)
	}

	present := map[string]bool{}
	for _, n := range df.Names() {
		present[n] = true
	}
	cols := make(map[string][]string, len(columns))
	for _, c := range columns {
		if !present[c] {
			return nil, fmt.Errorf("%s: missing column %q", path, c)
		}
		cols[c] = df.Col(c).Records()
	}

	hits := make([]Hit, df.Nrow())
	for i := range hits {
		h := Hit{QueryID: cols["query_id"][i], HitID: cols["hit_id"][i]}
		if h.EValue, err = strconv.ParseFloat(cols["e_val"][i], 64); err != nil {
			return nil, fmt.Errorf("%s row %d: e_val: %w", path, i+1, err)
		}
		for name, dst := range map[string]*int{
			"query_length":     &h.QueryLength,
			"alignment_length": &h.AlignmentLength,
			"start":            &h.Start,
			"end":              &h.End,
		} {
			if *dst, err = strconv.Atoi(cols[name][i]); err != nil {
				return nil, fmt.Errorf("%s row %d: %s: %w", path, i+1, name, err)
			}
		}
		hits[i] = h
	}
	return hits, nil
}

// WriteCSV writes assignments with an origin column appended.
func WriteCSV(assignments []Assignment, path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append(append([]string(nil), columns...), "origin")); err != nil {
		return err
	}
	for _, a := range assignments {
		rec := []string{
			a.QueryID,
			a.HitID,
			strconv.FormatFloat(a.EValue, 'g', -1, 64),
			strconv.Itoa(a.QueryLength),
			strconv.Itoa(a.AlignmentLength),
			strconv.Itoa(a.Start),
			strconv.Itoa(a.End),
			string(a.Origin),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return outputs.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
