// Package blastsort assigns each BLAST query contig the hit, or the set of
// hits, that best explains it.
package blastsort

import (
	"sort"

	"github.com/ahmetb/go-linq"
)

type Origin string

const (
	OriginSingle  Origin = "single"
	OriginChimera Origin = "chimera"
)

// Hit is one BLAST alignment of a query contig against a reference.
type Hit struct {
	QueryID         string
	HitID           string
	EValue          float64
	QueryLength     int
	AlignmentLength int
	Start           int
	End             int
}

type Assignment struct {
	Hit
	Origin Origin
}

// Region is a closed interval of query positions covered by hits.
type Region struct {
	Start int
	End   int
}

// Coverages merges hit intervals into covered regions. Intervals are taken in
// the given order, so callers pass them sorted by start. The scan is seeded
// with the region (1,1), which is dropped from the result if no hit extended
// it.
func Coverages(starts, ends []int) []Region {
	regions := []Region{{Start: 1, End: 1}}
	for i, start := range starts {
		end := ends[i]
		merged := false
		for j, r := range regions {
			if r.Start <= start && start <= r.End {
				if end > r.End {
					regions[j].End = end
				}
				merged = true
				break
			}
		}
		if !merged {
			regions = append(regions, Region{Start: start, End: end})
		}
	}

	out := regions[:0]
	for _, r := range regions {
		if r != (Region{Start: 1, End: 1}) {
			out = append(out, r)
		}
	}
	return out
}

// AssignContig picks the assignment for the hits of one query:
//  1. a lone hit;
//  2. the full-length hit with the lowest e-value;
//  3. the first hit, by e-value, longer than the query;
//  4. when the hits cover one region, the best by e-value then alignment length;
//  5. otherwise the best hit of each covered region, labelled chimera.
func AssignContig(hits []Hit) []Assignment {
	switch len(hits) {
	case 0:
		return nil
	case 1:
		return []Assignment{{Hit: hits[0], Origin: OriginSingle}}
	}

	byEValue := append([]Hit(nil), hits...)
	sort.SliceStable(byEValue, func(i, j int) bool { return byEValue[i].EValue < byEValue[j].EValue })

	for _, h := range byEValue {
		if h.QueryLength == h.AlignmentLength {
			return []Assignment{{Hit: h, Origin: OriginSingle}}
		}
	}
	for _, h := range byEValue {
		if h.QueryLength < h.AlignmentLength {
			return []Assignment{{Hit: h, Origin: OriginSingle}}
		}
	}

	byStart := append([]Hit(nil), byEValue...)
	sort.SliceStable(byStart, func(i, j int) bool { return byStart[i].Start < byStart[j].Start })
	starts := make([]int, len(byStart))
	ends := make([]int, len(byStart))
	for i, h := range byStart {
		starts[i], ends[i] = h.Start, h.End
	}
	regions := Coverages(starts, ends)

	if len(regions) == 1 {
		return []Assignment{{Hit: best(byEValue), Origin: OriginSingle}}
	}

	var out []Assignment
	for _, r := range regions {
		var inside []Hit
		linq.From(byEValue).WhereT(func(h Hit) bool {
			return h.Start >= r.Start && h.End <= r.End
		}).ToSlice(&inside)
		if len(inside) == 0 {
			continue
		}
		out = append(out, Assignment{Hit: best(inside), Origin: OriginChimera})
	}
	return out
}

// best is the hit with the lowest e-value, ties going to the longer
// alignment, then to input order.
func best(hits []Hit) Hit {
	sorted := append([]Hit(nil), hits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EValue != sorted[j].EValue {
			return sorted[i].EValue < sorted[j].EValue
		}
		return sorted[i].AlignmentLength > sorted[j].AlignmentLength
	})
	return sorted[0]
}

// Assign groups hits by query and assigns each query, in query ID order.
func Assign(hits []Hit) []Assignment {
	var groups []linq.Group
	linq.From(hits).GroupByT(
		func(h Hit) string { return h.QueryID },
		func(h Hit) Hit { return h },
	).ToSlice(&groups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key.(string) < groups[j].Key.(string) })

	var out []Assignment
	for _, g := range groups {
		query := make([]Hit, 0, len(g.Group))
		for _, item := range g.Group {
			query = append(query, item.(Hit))
		}
		out = append(out, AssignContig(query)...)
	}
	return out
}
