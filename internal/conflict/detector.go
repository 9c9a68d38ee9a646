// Package conflict compares predicted trajectories pairwise and flags
// losses of separation before they happen.
package conflict

import (
	"sort"

	"github.com/yegors/mp-director/internal/atmos"
	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/trajectory"
)

// Kind classifies which separation minimum a predicted loss breaches
type Kind string

const (
	KindHorizontal Kind = "horizontal"
	KindVertical   Kind = "vertical"
	KindBoth       Kind = "both"
)

// Event is one predicted loss of separation between a pair of
// aircraft, reported at the point of closest horizontal approach
type Event struct {
	Callsign1    string  `json:"callsign1"`
	Callsign2    string  `json:"callsign2"`
	OffsetSec    int     `json:"offset_sec"`
	HorizontalNM float64 `json:"horizontal_nm"`
	VerticalFt   float64 `json:"vertical_ft"`
	Kind         Kind    `json:"kind"`
}

// Detector checks trajectory pairs against the separation minima
type Detector struct {
	cfg config.SeparationConfig
}

// NewDetector creates a detector with the given minima
func NewDetector(cfg config.SeparationConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect walks every trajectory pair step by step and reports at most
// one event per pair, taken at the step of minimum horizontal
// distance. An event is raised whenever the horizontal minimum is
// breached; its kind is "both" when the vertical minimum is also
// breached at that step. Output order is deterministic: pairs sorted
// by callsign.
func (d *Detector) Detect(trajectories map[string][]trajectory.Point) []Event {
	callsigns := make([]string, 0, len(trajectories))
	for cs := range trajectories {
		callsigns = append(callsigns, cs)
	}
	sort.Strings(callsigns)

	var events []Event
	for i := 0; i < len(callsigns); i++ {
		for j := i + 1; j < len(callsigns); j++ {
			if ev, ok := d.checkPair(callsigns[i], callsigns[j],
				trajectories[callsigns[i]], trajectories[callsigns[j]]); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

// checkPair compares two trajectories at matching time offsets
func (d *Detector) checkPair(cs1, cs2 string, t1, t2 []trajectory.Point) (Event, bool) {
	n := len(t1)
	if len(t2) < n {
		n = len(t2)
	}

	minIdx := -1
	minHorizontal := 0.0
	for k := 0; k < n; k++ {
		h := atmos.GreatCircleNM(t1[k].Lat, t1[k].Lon, t2[k].Lat, t2[k].Lon)
		if minIdx < 0 || h < minHorizontal {
			minIdx = k
			minHorizontal = h
		}
	}
	if minIdx < 0 || minHorizontal >= d.cfg.HorizontalNM {
		return Event{}, false
	}

	vertical := t1[minIdx].AltitudeFt - t2[minIdx].AltitudeFt
	if vertical < 0 {
		vertical = -vertical
	}

	kind := KindHorizontal
	if vertical < d.cfg.VerticalFt {
		kind = KindBoth
	}

	return Event{
		Callsign1:    cs1,
		Callsign2:    cs2,
		OffsetSec:    t1[minIdx].OffsetSec,
		HorizontalNM: minHorizontal,
		VerticalFt:   vertical,
		Kind:         kind,
	}, true
}

// Involves reports whether the callsign is a party to the event
func (e Event) Involves(callsign string) bool {
	return e.Callsign1 == callsign || e.Callsign2 == callsign
}
