package engine

import (
	"sync"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// accumulator is the single merge point shared across harvester tasks.
// Records arrive in completion order, not submission order. Every mutation
// is mutex-guarded; nothing here relies on incidental append safety.
//
// No deduplication by frame id happens: a frame fetched twice (overlapping
// intervals after a bisection) is emitted twice.
type accumulator struct {
	mu       sync.Mutex
	records  []model.FlatRecord
	attrs    map[string]struct{}
	failures []Failure
}

func newAccumulator() *accumulator {
	return &accumulator{attrs: make(map[string]struct{})}
}

// add merges one completed frame record and unions its attribute names into
// the running set.
func (a *accumulator) add(rec model.FlatRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	for name := range rec.Attributes {
		a.attrs[name] = struct{}{}
	}
}

// fail records one absorbed transient failure.
func (a *accumulator) fail(stage Stage, ref string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, Failure{Stage: stage, Ref: ref, Err: err})
}

// snapshot hands the accumulated state to a Result. Only called after every
// worker has finished.
func (a *accumulator) snapshot() ([]model.FlatRecord, map[string]struct{}, []Failure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records, a.attrs, a.failures
}
