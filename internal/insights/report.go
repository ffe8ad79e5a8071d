package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/period"
)

// ResourceDeltas is the resources result: overall mean CPU delta and relative
// memory delta between the two periods. nil fields are undefined.
type ResourceDeltas struct {
	CPUIncrease    *float64 `json:"cpu_increase" yaml:"cpu_increase"`
	MemoryIncrease *float64 `json:"memory_increase" yaml:"memory_increase"`
}

// Section is one category slot of a report: a comparison, resource deltas, or
// the error that stopped the category.
type Section struct {
	Comparison *period.Comparison
	Resources  *ResourceDeltas
	Err        error

	// CurrentBucket and PreviousBucket are the periods that were compared.
	CurrentBucket  time.Time
	PreviousBucket time.Time
}

type sectionError struct {
	Error string `json:"error" yaml:"error"`
}

func (s *Section) value() interface{} {
	switch {
	case s.Err != nil:
		return sectionError{Error: s.Err.Error()}
	case s.Resources != nil:
		return s.Resources
	default:
		return s.Comparison
	}
}

// MarshalJSON renders the section as its result object, or {"error": "..."}.
func (s *Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value())
}

// MarshalYAML mirrors MarshalJSON.
func (s *Section) MarshalYAML() (interface{}, error) {
	return s.value(), nil
}

// Report maps each requested category to its section.
type Report struct {
	ProjectID int64                 `json:"project_id" yaml:"project_id"`
	Start     time.Time             `json:"start" yaml:"start"`
	End       time.Time             `json:"end" yaml:"end"`
	Step      bucket.TimeStep       `json:"step" yaml:"step"`
	Insights  map[Category]*Section `json:"insights" yaml:"insights"`
}

// Section returns the slot of category c.
func (r *Report) Section(c Category) (*Section, bool) {
	s, ok := r.Insights[c]
	return s, ok
}

// Failed lists categories whose computation failed, in build order.
func (r *Report) Failed() []Category {
	var out []Category
	for _, c := range Categories {
		if s, ok := r.Insights[c]; ok && s.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Err joins the per-category errors; nil when every category succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, c := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", c, r.Insights[c].Err))
	}
	return errors.Join(errs...)
}
