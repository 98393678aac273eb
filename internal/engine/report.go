package engine

import (
	"sort"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// Stage identifies where in the fetch pipeline a transient failure happened.
type Stage string

const (
	StageFrameList     Stage = "frame-list"
	StageAttrDirectory Stage = "attribute-directory"
	StageAttrValue     Stage = "attribute-value"
)

// Failure is one absorbed transient fetch failure. The run continues past
// it; the failure is kept for caller visibility.
type Failure struct {
	Stage Stage
	Ref   string // interval, frame name, or frame/attribute path
	Err   error
}

// Report summarizes one engine run alongside its records. A run with
// failures still completes; incomplete data is deliberate (availability over
// completeness).
type Report struct {
	Frames      int // records emitted
	OpenSkipped int // frames dropped for carrying the open-frame sentinel
	Splits      int // interval bisections performed
	Failures    []Failure
}

// Result is everything one Fetch hands to the caller.
type Result struct {
	Records []model.FlatRecord
	// AttrNames is the union of attribute names seen across the whole run.
	// Sinks use it to know which sparse columns exist.
	AttrNames map[string]struct{}
	Report    Report
}

// SortedAttrNames returns the attribute-name set in stable order.
func (r *Result) SortedAttrNames() []string {
	names := make([]string, 0, len(r.AttrNames))
	for n := range r.AttrNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
