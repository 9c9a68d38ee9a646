// Package tracker maintains the per-aircraft state map: it takes raw
// telemetry snapshots and derives winds-corrected speeds, distance and
// ETA to the merge point, and the fields that persist between ticks.
package tracker

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yegors/mp-director/internal/atmos"
	"github.com/yegors/mp-director/internal/descent"
	"github.com/yegors/mp-director/internal/refdata"
	"github.com/yegors/mp-director/pkg/logger"
)

// latestETAFactor stretches the direct ETA to the latest achievable
// arrival over the longest available path
const latestETAFactor = 1.3

// Tracker derives and stores aircraft state between ticks
type Tracker struct {
	ref    *refdata.Data
	logger *logger.Logger

	mu     sync.RWMutex
	states map[string]*State
}

// New creates a tracker backed by the given reference data
func New(ref *refdata.Data, log *logger.Logger) *Tracker {
	return &Tracker{
		ref:    ref,
		logger: log.Named("tracker"),
		states: make(map[string]*State),
	}
}

// Update ingests one snapshot and returns the refreshed state map.
// Aircraft absent from the snapshot are dropped; records without a
// callsign are skipped. The returned map is the tracker's own store
// and must not be mutated by callers after the next Update.
func (t *Tracker) Update(snap Snapshot) map[string]*State {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]*State, len(snap.Aircraft))
	for _, rec := range snap.Aircraft {
		if rec.Callsign == "" {
			t.logger.Debug("Dropping telemetry record without callsign")
			continue
		}

		st := t.derive(rec, snap)
		if prev, ok := t.states[rec.Callsign]; ok {
			st.Phase = prev.Phase
			st.LastAdvisory = prev.LastAdvisory
		}
		next[rec.Callsign] = st
	}

	for cs := range t.states {
		if _, ok := next[cs]; !ok {
			t.logger.Debug("Aircraft left coverage", logger.String("callsign", cs))
		}
	}

	t.states = next
	return next
}

// derive computes the full state for one record
func (t *Tracker) derive(rec Record, snap Snapshot) *State {
	st := &State{
		Record: rec,
		Time:   snap.Time,
	}

	if !finite(rec.Lat, rec.Lon, rec.AltitudeFt, rec.IASKt, rec.HeadingDeg, rec.VerticalSpeedFpm) {
		st.Degraded = true
		st.ETAMin = ETAUnreachableMin
		st.EarliestETAMin = ETAUnreachableMin
		st.LatestETAMin = ETAUnreachableMin
		t.logger.Warn("Non-finite telemetry, state degraded", logger.String("callsign", rec.Callsign))
		return st
	}

	st.Wind = atmos.WindAt(rec.AltitudeFt, t.ref.WindLayers)
	st.TASKt = atmos.IASToTAS(rec.IASKt, rec.AltitudeFt, st.Wind.TempC)

	gv := atmos.GroundSpeedAndTrack(st.TASKt, rec.HeadingDeg, st.Wind.DirectionDeg, st.Wind.SpeedKt)
	st.GroundSpeedKt = gv.SpeedKt
	st.TrackDeg = gv.TrackDeg
	st.WindCorrectionDeg = gv.WindCorrectionDeg

	mp := t.ref.MergePoint()
	st.DistanceToMPNM = atmos.GreatCircleNM(rec.Lat, rec.Lon, mp.Latitude, mp.Longitude)
	st.Priority = 1000 - st.DistanceToMPNM

	_, st.Flexible = t.ref.Zone(rec.Route)

	if st.GroundSpeedKt > 0 {
		st.ETAMin = st.DistanceToMPNM / st.GroundSpeedKt * 60
		st.EarliestETAMin = st.ETAMin
		st.LatestETAMin = st.ETAMin
		if st.Flexible {
			// full arc through the flexible zone, estimated at a
			// 30% longer path
			st.LatestETAMin = st.ETAMin * latestETAFactor
		}
		st.WindowMin = st.LatestETAMin - st.EarliestETAMin
	} else {
		st.ETAMin = ETAUnreachableMin
		st.EarliestETAMin = ETAUnreachableMin
		st.LatestETAMin = ETAUnreachableMin
	}
	return st
}

// Commit records the evaluated flight phase, and the advisory issue
// time when one was issued, so both carry into the next tick
func (t *Tracker) Commit(callsign string, phase descent.Phase, advisedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[callsign]
	if !ok {
		return
	}
	st.Phase = phase
	if !advisedAt.IsZero() {
		st.LastAdvisory = advisedAt
	}
}

// Get returns a copy of the current state for one aircraft. Copies keep
// readers safe from Commit writing to the live map between ticks.
func (t *Tracker) Get(callsign string) (*State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.states[callsign]
	if !ok {
		return nil, false
	}
	cp := *st
	return &cp, true
}

// States returns a copied snapshot of all tracked aircraft sorted by
// callsign
func (t *Tracker) States() []*State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*State, 0, len(t.states))
	for _, st := range t.states {
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Callsign < out[j].Callsign })
	return out
}

// IsArrival reports whether a state belongs to arriving traffic
func (s *State) IsArrival() bool {
	return s.FlightType == "ARRIVAL" || strings.Contains(s.Route, "Arrival")
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
