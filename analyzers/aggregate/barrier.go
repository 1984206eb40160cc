package aggregate

import (
	"sort"
	"sync"

	"virome-runner/jobs"
)

// Barrier holds each sample's results until every job of that sample, skipped
// ones included, has reported a terminal result.
type Barrier struct {
	mu       sync.Mutex
	expected map[string]int
	held     map[string][]jobs.Result
	released map[string]bool
}

// NewBarrier takes the number of terminal results expected per sample.
func NewBarrier(expected map[string]int) *Barrier {
	b := &Barrier{
		expected: make(map[string]int, len(expected)),
		held:     map[string][]jobs.Result{},
		released: map[string]bool{},
	}
	for k, v := range expected {
		b.expected[k] = v
	}
	return b
}

// Add records r. When r completes its sample, the sample's results are
// returned together with true. Non-terminal results and results for samples
// already released are ignored.
func (b *Barrier) Add(r jobs.Result) ([]jobs.Result, bool) {
	if !r.Status.Terminal() {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released[r.Sample] {
		return nil, false
	}
	b.held[r.Sample] = append(b.held[r.Sample], r)
	want, ok := b.expected[r.Sample]
	if !ok {
		want = 1
	}
	if len(b.held[r.Sample]) < want {
		return nil, false
	}

	out := b.held[r.Sample]
	delete(b.held, r.Sample)
	b.released[r.Sample] = true
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out, true
}

func (b *Barrier) Released(sample string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released[sample]
}

// Pending lists samples that are expected but not yet released, sorted.
func (b *Barrier) Pending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for s, n := range b.expected {
		if n > 0 && !b.released[s] {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
