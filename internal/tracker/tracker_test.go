package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/yegors/mp-director/internal/atmos"
	"github.com/yegors/mp-director/internal/descent"
	"github.com/yegors/mp-director/internal/refdata"
	"github.com/yegors/mp-director/pkg/logger"
)

func newTestRefData(t *testing.T) *refdata.Data {
	t.Helper()
	ref, err := refdata.New(
		[]refdata.Waypoint{
			{Name: "MP", Latitude: 40.0, Longitude: -75.0},
			{Name: "ALPHA", Latitude: 41.0, Longitude: -75.0},
		},
		nil,
		map[string][]string{"NorthArrival": {"ALPHA", "MP"}},
		map[string]refdata.FlexibleZone{"NorthArrival": {Start: "ALPHA", End: "MP", Kind: "inner"}},
		"MP",
	)
	if err != nil {
		t.Fatalf("refdata.New: %v", err)
	}
	return ref
}

func record(callsign string) Record {
	return Record{
		Callsign:   callsign,
		Lat:        41.0, // one degree north of the merge point
		Lon:        -75.0,
		AltitudeFt: 0,
		IASKt:      120,
		HeadingDeg: 180,
		Route:      "NorthArrival",
		FlightType: "ARRIVAL",
	}
}

func TestUpdateDerivesState(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())
	now := time.Now()

	states := tr.Update(Snapshot{Time: now, Aircraft: []Record{record("UAL123")}})
	st, ok := states["UAL123"]
	if !ok {
		t.Fatal("aircraft missing from state map")
	}

	// At sea level with no wind table, TAS equals IAS and ground
	// speed follows.
	if math.Abs(st.TASKt-120) > 0.1 {
		t.Errorf("TAS = %.2f, want 120", st.TASKt)
	}
	if math.Abs(st.GroundSpeedKt-120) > 0.1 {
		t.Errorf("ground speed = %.2f, want 120", st.GroundSpeedKt)
	}

	// One degree of latitude is close to 60 nm
	if math.Abs(st.DistanceToMPNM-60) > 0.2 {
		t.Errorf("distance = %.2f nm, want ~60", st.DistanceToMPNM)
	}

	// 60 nm at 120 kt is 30 minutes
	if math.Abs(st.ETAMin-30) > 0.2 {
		t.Errorf("ETA = %.2f min, want ~30", st.ETAMin)
	}
	if math.Abs(st.LatestETAMin-st.ETAMin*1.3) > 1e-9 {
		t.Errorf("latest ETA = %.2f, want %.2f", st.LatestETAMin, st.ETAMin*1.3)
	}
	if st.WindowMin <= 0 {
		t.Errorf("window = %.2f, want positive", st.WindowMin)
	}

	if !st.Flexible {
		t.Error("route with flexible zone should mark state flexible")
	}
	if !st.IsArrival() {
		t.Error("ARRIVAL flight type should classify as arrival")
	}
	if got := st.Priority; math.Abs(got-(1000-st.DistanceToMPNM)) > 1e-9 {
		t.Errorf("priority = %.2f", got)
	}
}

func TestUpdateFixedRouteHasNoWindow(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())

	rec := record("UAL123")
	rec.Route = "FixedArrival" // no flexible zone registered

	states := tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{rec}})
	st := states["UAL123"]
	if st.Flexible {
		t.Error("route without a zone should not be flexible")
	}
	if st.WindowMin != 0 {
		t.Errorf("fixed route window = %.2f, want 0", st.WindowMin)
	}
	if st.LatestETAMin != st.EarliestETAMin {
		t.Errorf("fixed route ETA range = [%.2f, %.2f], want collapsed",
			st.EarliestETAMin, st.LatestETAMin)
	}
}

func TestUpdateStoppedAircraftGetsSentinelETA(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())

	rec := record("UAL123")
	rec.IASKt = 0

	states := tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{rec}})
	st := states["UAL123"]
	if st.ETAMin != ETAUnreachableMin {
		t.Errorf("ETA = %.1f, want sentinel %.1f", st.ETAMin, ETAUnreachableMin)
	}
	if st.Degraded {
		t.Error("stopped aircraft is not degraded, just unreachable")
	}
}

func TestUpdateDropsRecordWithoutCallsign(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())

	rec := record("")
	states := tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{rec}})
	if len(states) != 0 {
		t.Errorf("state map has %d entries, want 0", len(states))
	}
}

func TestUpdateFlagsNonFiniteTelemetry(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())

	rec := record("UAL123")
	rec.AltitudeFt = math.NaN()

	states := tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{rec}})
	st := states["UAL123"]
	if !st.Degraded {
		t.Error("NaN altitude should degrade the state")
	}
	if st.ETAMin != ETAUnreachableMin {
		t.Errorf("degraded ETA = %.1f, want sentinel", st.ETAMin)
	}
}

func TestUpdateDropsStaleAircraft(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())

	tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{record("UAL123"), record("DAL456")}})
	states := tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{record("UAL123")}})

	if _, ok := states["DAL456"]; ok {
		t.Error("aircraft absent from snapshot should be dropped")
	}
	if _, ok := tr.Get("DAL456"); ok {
		t.Error("dropped aircraft still retrievable")
	}
}

func TestPhaseAndAdvisoryCarryAcrossTicks(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())
	now := time.Now()

	tr.Update(Snapshot{Time: now, Aircraft: []Record{record("UAL123")}})
	tr.Commit("UAL123", descent.PhaseInitialDescent, now)

	states := tr.Update(Snapshot{Time: now.Add(5 * time.Second), Aircraft: []Record{record("UAL123")}})
	st := states["UAL123"]
	if st.Phase != descent.PhaseInitialDescent {
		t.Errorf("phase = %s, want %s", st.Phase, descent.PhaseInitialDescent)
	}
	if !st.LastAdvisory.Equal(now) {
		t.Errorf("last advisory = %v, want %v", st.LastAdvisory, now)
	}
}

func TestCommitKeepsAdvisoryTimeWhenNoneIssued(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())
	now := time.Now()

	tr.Update(Snapshot{Time: now, Aircraft: []Record{record("UAL123")}})
	tr.Commit("UAL123", descent.PhaseCruise, now)
	tr.Commit("UAL123", descent.PhaseInitialDescent, time.Time{})

	st, _ := tr.Get("UAL123")
	if !st.LastAdvisory.Equal(now) {
		t.Errorf("last advisory = %v, want %v preserved", st.LastAdvisory, now)
	}
	if st.Phase != descent.PhaseInitialDescent {
		t.Errorf("phase = %s, want %s", st.Phase, descent.PhaseInitialDescent)
	}
}

func TestGetAndStatesReturnCopies(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())
	now := time.Now()

	tr.Update(Snapshot{Time: now, Aircraft: []Record{record("UAL123")}})

	got, _ := tr.Get("UAL123")
	all := tr.States()

	// A Commit after the read must not reach into states already handed
	// out; readers encode them outside the lock.
	tr.Commit("UAL123", descent.PhaseFinalApproach, now)

	if got.Phase == descent.PhaseFinalApproach {
		t.Error("Get returned a live pointer, Commit leaked into it")
	}
	if all[0].Phase == descent.PhaseFinalApproach {
		t.Error("States returned live pointers, Commit leaked into them")
	}

	cur, _ := tr.Get("UAL123")
	if cur.Phase != descent.PhaseFinalApproach {
		t.Errorf("fresh Get phase = %s, want %s", cur.Phase, descent.PhaseFinalApproach)
	}
}

func TestStatesSortedByCallsign(t *testing.T) {
	tr := New(newTestRefData(t), logger.Nop())

	tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{
		record("UAL999"), record("AAL111"), record("DAL555"),
	}})

	states := tr.States()
	if len(states) != 3 {
		t.Fatalf("got %d states, want 3", len(states))
	}
	want := []string{"AAL111", "DAL555", "UAL999"}
	for i, cs := range want {
		if states[i].Callsign != cs {
			t.Errorf("states[%d] = %s, want %s", i, states[i].Callsign, cs)
		}
	}
}

func TestWindAffectsGroundSpeed(t *testing.T) {
	ref, err := refdata.New(
		[]refdata.Waypoint{{Name: "MP", Latitude: 40.0, Longitude: -75.0}},
		[]atmos.Layer{{AltitudeFt: 0, DirectionDeg: 180, SpeedKt: 20, TempC: 15}},
		nil, nil, "MP",
	)
	if err != nil {
		t.Fatalf("refdata.New: %v", err)
	}
	tr := New(ref, logger.Nop())

	// Heading south into a wind from the south: 20 kt headwind
	states := tr.Update(Snapshot{Time: time.Now(), Aircraft: []Record{record("UAL123")}})
	st := states["UAL123"]
	if math.Abs(st.GroundSpeedKt-100) > 0.5 {
		t.Errorf("ground speed into headwind = %.2f, want ~100", st.GroundSpeedKt)
	}
}
