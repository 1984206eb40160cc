package aggregate

import (
	"fmt"
	"sort"

	"github.com/ahmetb/go-linq"
)

// Contig is the union of calls made for one (sample, record) pair, one call
// per tool at most, in tool order.
type Contig struct {
	Sample string
	Record string
	Length int
	Calls  []Call
}

type contigKey struct {
	Sample string
	Record string
}

// Combine groups calls per contig. A contig's length is the largest length any
// tool reported, or the FASTA length from opts.Contigs when no tool did.
func Combine(calls []Call, opts Options) ([]Contig, error) {
	sorted := append([]Call(nil), calls...)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	var groups []linq.Group
	linq.From(sorted).GroupByT(
		func(c Call) contigKey { return contigKey{Sample: c.Sample, Record: c.Record} },
		func(c Call) Call { return c },
	).ToSlice(&groups)

	lengths := map[string]map[string]int{}
	contigs := make([]Contig, 0, len(groups))
	for _, g := range groups {
		key := g.Key.(contigKey)
		c := Contig{Sample: key.Sample, Record: key.Record}
		for _, item := range g.Group {
			call := item.(Call)
			if n := len(c.Calls); n > 0 && c.Calls[n-1].Tool == call.Tool {
				continue
			}
			c.Calls = append(c.Calls, call)
			if call.Length > c.Length {
				c.Length = call.Length
			}
		}
		if c.Length == 0 {
			n, err := fastaLength(lengths, opts.Contigs, c.Sample, c.Record)
			if err != nil {
				return nil, err
			}
			c.Length = n
		}
		contigs = append(contigs, c)
	}

	sort.Slice(contigs, func(i, j int) bool {
		if contigs[i].Sample != contigs[j].Sample {
			return contigs[i].Sample < contigs[j].Sample
		}
		return contigs[i].Record < contigs[j].Record
	})
	return contigs, nil
}

func fastaLength(cache map[string]map[string]int, paths map[string]string, sample, record string) (int, error) {
	path, ok := paths[sample]
	if !ok || path == "" {
		return 0, nil
	}
	if _, loaded := cache[sample]; !loaded {
		m, err := ContigLengths(path)
		if err != nil {
			return 0, fmt.Errorf("contig lengths for %s: %w", sample, err)
		}
		cache[sample] = m
	}
	return cache[sample][record], nil
}
