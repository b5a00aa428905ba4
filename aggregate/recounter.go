package aggregate

import (
	"context"
	"sync"

	"github.com/civicmap/requestmap/pkg/region"
)

// Recounter keeps the counts for the latest filter and type set and only
// recomputes when either changes by value.
type Recounter struct {
	counter Counter

	mu       sync.Mutex
	primed   bool
	filter   region.Filter
	selected TypeSet
	counts   Counts
	runs     int
}

// NewRecounter creates a recounter over counter.
func NewRecounter(counter Counter) *Recounter {
	return &Recounter{counter: counter}
}

// Update returns the counts for filter and selected. recomputed is false
// when the inputs equal the previous successful call. On error the previous
// inputs and counts are kept, so repeating the call retries.
func (r *Recounter) Update(ctx context.Context, filter region.Filter, selected TypeSet) (counts Counts, recomputed bool, err error) {
	if filter == nil {
		filter = region.NoFilter{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.primed && region.Equal(r.filter, filter) && r.selected.Equal(selected) {
		return r.counts, false, nil
	}

	r.runs++
	counts, err = r.counter.CountByType(ctx, filter, selected)
	if err != nil {
		return nil, true, err
	}

	r.primed = true
	r.filter = filter
	r.selected = selected
	r.counts = counts
	return counts, true, nil
}

// Counts returns the last computed counts.
func (r *Recounter) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

// Runs returns how many times the counter was invoked.
func (r *Recounter) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// Invalidate forces the next Update to recompute.
func (r *Recounter) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primed = false
}
