package aggregate

import "github.com/ahmetb/go-linq"

// Filter drops rows shorter than MinLength or less confident than
// MinConfidence. Rows whose length is unknown are kept.
func Filter(t Table, opts Options) (Table, error) {
	var rows []Row
	linq.From(t.Rows).WhereT(func(r Row) bool {
		if opts.MinLength > 0 && r.Length > 0 && r.Length < opts.MinLength {
			return false
		}
		return r.Confidence >= opts.MinConfidence
	}).ToSlice(&rows)

	out := t
	out.Rows = rows
	return out, nil
}
