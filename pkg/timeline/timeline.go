// Package timeline defines the discrete monthly period grid and the
// fixed-length decimal rows aligned to it.
package timeline

import (
	"fmt"

	"github.com/iwvelando/project-feasibility/pkg/datetime"
)

// Timeline is an immutable sequence of monthly periods 0..Periods-1. StartDate
// is optional and only drives period labels.
type Timeline struct {
	Periods   int    `json:"periods"`
	StartDate string `json:"start_date,omitempty"`
}

// New validates the period count and start date and returns the Timeline.
func New(periods int, startDate string) (Timeline, error) {
	if periods <= 0 {
		return Timeline{}, fmt.Errorf("timeline periods must be positive, got %d", periods)
	}
	if startDate != "" {
		if _, err := datetime.OffsetDate(startDate, datetime.DateTimeLayout, 0); err != nil {
			return Timeline{}, fmt.Errorf("invalid timeline start date %q: %w", startDate, err)
		}
	}
	return Timeline{Periods: periods, StartDate: startDate}, nil
}

// Len returns the number of periods.
func (t Timeline) Len() int {
	return t.Periods
}

// Contains reports whether p is a valid period index.
func (t Timeline) Contains(p int) bool {
	return p >= 0 && p < t.Periods
}

// Label returns the YYYY-MM label of period p, or "P<p>" without a start date.
func (t Timeline) Label(p int) string {
	if t.StartDate == "" {
		return fmt.Sprintf("P%d", p)
	}
	label, err := datetime.OffsetDate(t.StartDate, datetime.DateTimeLayout, p)
	if err != nil {
		return fmt.Sprintf("P%d", p)
	}
	return label
}

// Labels returns the label of every period in order.
func (t Timeline) Labels() []string {
	labels := make([]string, t.Periods)
	for p := range labels {
		labels[p] = t.Label(p)
	}
	return labels
}

