// Package scheduler assigns merge point arrival slots: aircraft are
// ordered by estimated arrival and pushed back just enough to hold
// the configured time spacing between consecutive arrivals.
package scheduler

import (
	"sort"

	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/tracker"
)

// Slot is one assigned arrival slot at the merge point
type Slot struct {
	Callsign      string  `json:"callsign"`
	ETAMin        float64 `json:"eta_min"`
	AssignedMin   float64 `json:"assigned_min"`
	AdjustmentMin float64 `json:"adjustment_min"` // assigned minus estimate, never negative
}

// Scheduler spaces arrivals at the merge point
type Scheduler struct {
	spacingMin float64
}

// New creates a scheduler with the configured slot spacing
func New(cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{spacingMin: float64(cfg.SpacingSeconds) / 60}
}

// Assign orders the given aircraft by ETA (callsign breaks ties, so
// the sequence is deterministic) and assigns each a slot no earlier
// than its estimate and no closer than the spacing to the slot ahead.
// Aircraft with the unreachable ETA sentinel still get slots at the
// back of the sequence; they keep their relative order and spacing.
func (s *Scheduler) Assign(states []*tracker.State) []Slot {
	ordered := make([]*tracker.State, len(states))
	copy(ordered, states)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ETAMin != ordered[j].ETAMin {
			return ordered[i].ETAMin < ordered[j].ETAMin
		}
		return ordered[i].Callsign < ordered[j].Callsign
	})

	slots := make([]Slot, 0, len(ordered))
	prev := 0.0
	for i, st := range ordered {
		assigned := st.ETAMin
		if i > 0 && assigned < prev+s.spacingMin {
			assigned = prev + s.spacingMin
		}
		slots = append(slots, Slot{
			Callsign:      st.Callsign,
			ETAMin:        st.ETAMin,
			AssignedMin:   assigned,
			AdjustmentMin: assigned - st.ETAMin,
		})
		prev = assigned
	}
	return slots
}

// Lookup returns the slot for a callsign
func Lookup(slots []Slot, callsign string) (Slot, bool) {
	for _, sl := range slots {
		if sl.Callsign == callsign {
			return sl, true
		}
	}
	return Slot{}, false
}
