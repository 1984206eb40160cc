package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"virome-runner/jobs"
	"virome-runner/tools"
)

type Stage string

const (
	StageBarrier  Stage = "barrier"
	StageReformat Stage = "reformat"
	StageCombine  Stage = "combine"
	StagePivot    Stage = "pivot"
	StageFilter   Stage = "filter"
	StageWrite    Stage = "write"
)

// Order is the fixed order stages run in.
var Order = []Stage{StageReformat, StageCombine, StagePivot, StageFilter, StageWrite}

var ErrIncomplete = errors.New("samples still running")

// Error reports the stage that failed, and for reformat the result it
// failed on.
type Error struct {
	Stage  Stage
	Sample string
	Tool   tools.ID
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "aggregation stage %s", e.Stage)
	if e.Sample != "" {
		fmt.Fprintf(&b, " sample=%s", e.Sample)
	}
	if e.Tool.Valid() {
		fmt.Fprintf(&b, " tool=%s", e.Tool)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// StageOf returns the stage named by err, or "" when err is not an *Error.
func StageOf(err error) Stage {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}

type Options struct {
	MinLength     int
	MinConfidence float64
	// Tools fixes the table columns. Empty means every tool seen in the results.
	Tools []tools.ID
	// Contigs maps sample to its FASTA, used for lengths no tool reported.
	Contigs map[string]string
}

// Stages are the transformations Aggregate applies, in Order.
type Stages struct {
	Reformat func(jobs.Result) ([]Call, error)
	Combine  func([]Call, Options) ([]Contig, error)
	Pivot    func([]Contig, []tools.ID) (Table, error)
	Filter   func(Table, Options) (Table, error)
}

func DefaultStages() Stages {
	return Stages{
		Reformat: Reformat,
		Combine:  Combine,
		Pivot:    Pivot,
		Filter:   Filter,
	}
}

func (s Stages) withDefaults() Stages {
	d := DefaultStages()
	if s.Reformat == nil {
		s.Reformat = d.Reformat
	}
	if s.Combine == nil {
		s.Combine = d.Combine
	}
	if s.Pivot == nil {
		s.Pivot = d.Pivot
	}
	if s.Filter == nil {
		s.Filter = d.Filter
	}
	return s
}

// Aggregate runs every stage over a complete result set.
func Aggregate(results []jobs.Result, stages Stages, opts Options) (Table, error) {
	expected := map[string]int{}
	for _, r := range results {
		expected[r.Sample]++
	}
	a := NewAggregator(expected, stages, opts)
	for _, r := range results {
		if err := a.Add(r); err != nil {
			return Table{}, err
		}
	}
	return a.Finish()
}

// Aggregator consumes results as they arrive. A sample is reformatted only once
// the barrier releases it; Finish runs the remaining stages.
type Aggregator struct {
	stages  Stages
	opts    Options
	barrier *Barrier

	mu    sync.Mutex
	calls []Call
	seen  map[tools.ID]bool
	err   error
}

func NewAggregator(expected map[string]int, stages Stages, opts Options) *Aggregator {
	return &Aggregator{
		stages:  stages.withDefaults(),
		opts:    opts,
		barrier: NewBarrier(expected),
		seen:    map[tools.ID]bool{},
	}
}

// Add feeds one terminal result. After a reformat failure every call returns
// that failure.
func (a *Aggregator) Add(r jobs.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if r.Tool.Valid() {
		a.seen[r.Tool] = true
	}

	released, ok := a.barrier.Add(r)
	if !ok {
		return nil
	}
	for _, res := range released {
		var calls []Call
		err := guard(StageReformat, func() error {
			var err error
			calls, err = a.stages.Reformat(res)
			return err
		})
		if err != nil {
			a.err = &Error{Stage: StageReformat, Sample: res.Sample, Tool: res.Tool, Err: errors.Unwrap(err)}
			return a.err
		}
		a.calls = append(a.calls, calls...)
	}
	return nil
}

// Finish runs combine, pivot and filter over every released sample.
func (a *Aggregator) Finish() (Table, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return Table{}, a.err
	}
	if pending := a.barrier.Pending(); len(pending) > 0 {
		return Table{}, &Error{Stage: StageBarrier, Err: fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(pending, ","))}
	}

	cols := a.columns()
	calls := append([]Call(nil), a.calls...)
	sort.SliceStable(calls, func(i, j int) bool { return less(calls[i], calls[j]) })

	var (
		contigs []Contig
		table   Table
	)
	if err := guard(StageCombine, func() (err error) {
		contigs, err = a.stages.Combine(calls, a.opts)
		return err
	}); err != nil {
		return Table{}, err
	}
	if err := guard(StagePivot, func() (err error) {
		table, err = a.stages.Pivot(contigs, cols)
		return err
	}); err != nil {
		return Table{}, err
	}
	if err := guard(StageFilter, func() (err error) {
		table, err = a.stages.Filter(table, a.opts)
		return err
	}); err != nil {
		return Table{}, err
	}
	table.Calls = calls
	return table, nil
}

func (a *Aggregator) columns() []tools.ID {
	if len(a.opts.Tools) > 0 {
		return append([]tools.ID(nil), a.opts.Tools...)
	}
	cols := make([]tools.ID, 0, len(a.seen))
	for id := range a.seen {
		cols = append(cols, id)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	return cols
}

// guard runs f, turning an error or a panic into an *Error for stage.
func guard(stage Stage, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := f(); err != nil {
		return &Error{Stage: stage, Err: err}
	}
	return nil
}
