package aggregate

import (
	"math"
	"strconv"

	"virome-runner/tools"
)

// Row is one contig with one prediction column per tool.
type Row struct {
	Sample      string
	Record      string
	Length      int
	Predictions []string
	ViralVotes  int
	Called      int
	Confidence  float64
}

// Table is the combined classification table. Calls holds the formatted
// per-tool calls it was built from.
type Table struct {
	Tools []tools.ID
	Rows  []Row
	Calls []Call
}

// Pivot lays contigs out with columns in cols order. Confidence is the share
// of calling tools that predicted a viral class, rounded to three decimals.
func Pivot(contigs []Contig, cols []tools.ID) (Table, error) {
	index := make(map[tools.ID]int, len(cols))
	for i, id := range cols {
		index[id] = i
	}

	t := Table{Tools: append([]tools.ID(nil), cols...), Rows: make([]Row, 0, len(contigs))}
	for _, c := range contigs {
		row := Row{
			Sample:      c.Sample,
			Record:      c.Record,
			Length:      c.Length,
			Predictions: make([]string, len(cols)),
		}
		for _, call := range c.Calls {
			i, ok := index[call.Tool]
			if !ok {
				continue
			}
			row.Predictions[i] = call.Prediction
			row.Called++
			if call.Viral() {
				row.ViralVotes++
			}
		}
		if row.Called == 0 {
			continue
		}
		row.Confidence = math.Round(float64(row.ViralVotes)/float64(row.Called)*1000) / 1000
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Header is the CSV header of t.
func (t Table) Header() []string {
	h := []string{"sample", "record", "length"}
	for _, id := range t.Tools {
		h = append(h, id.String())
	}
	return append(h, "viral_votes", "called", "confidence")
}

// Records renders every row as CSV cells, header excluded.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := []string{r.Sample, r.Record, strconv.Itoa(r.Length)}
		rec = append(rec, r.Predictions...)
		rec = append(rec,
			strconv.Itoa(r.ViralVotes),
			strconv.Itoa(r.Called),
			strconv.FormatFloat(r.Confidence, 'f', 3, 64),
		)
		out = append(out, rec)
	}
	return out
}
