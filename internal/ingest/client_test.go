package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/pkg/logger"
)

func testConfig(url string) config.IngestConfig {
	return config.IngestConfig{URL: url, IntervalSeconds: 1, TimeoutSeconds: 2}
}

func TestFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"time": "2026-08-30T12:00:00Z",
			"aircraft": [
				{"callsign": "UAL123", "lat": 41.0, "lon": -75.0, "altitude_ft": 12000,
				 "ias_kt": 250, "heading_deg": 180, "route": "A Arrival", "flight_type": "ARRIVAL"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, logger.Nop())
	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if len(snap.Aircraft) != 1 || snap.Aircraft[0].Callsign != "UAL123" {
		t.Errorf("snapshot = %+v", snap)
	}
	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if !snap.Time.Equal(want) {
		t.Errorf("time = %v, want %v", snap.Time, want)
	}
}

func TestFetchSnapshotStampsMissingTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"aircraft": []}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, logger.Nop())
	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if snap.Time.IsZero() {
		t.Error("missing feed time should be stamped with the fetch time")
	}
}

func TestFetchSnapshotErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, logger.Nop())
	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Error("expected an error on non-200 status")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer bad.Close()

	c = NewClient(testConfig(bad.URL), nil, logger.Nop())
	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Error("expected an error on malformed JSON")
	}
}

func TestPollLoopDeliversAndSurvivesFailures(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			fail = false
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"aircraft": [{"callsign": "UAL123", "lat": 41, "lon": -75}]}`))
	}))
	defer srv.Close()

	received := make(chan tracker.Snapshot, 4)
	c := NewClient(testConfig(srv.URL), func(snap tracker.Snapshot) { received <- snap }, logger.Nop())

	c.Start(context.Background())
	defer c.Stop()

	select {
	case snap := <-received:
		if len(snap.Aircraft) != 1 {
			t.Errorf("snapshot = %+v", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop never delivered a snapshot after the failed fetch")
	}
}
