package tracker

import (
	"time"

	"github.com/yegors/mp-director/internal/atmos"
	"github.com/yegors/mp-director/internal/descent"
)

// ETAUnreachableMin is reported when an arrival time cannot be
// estimated (stopped or taxiing traffic, missing ground speed)
const ETAUnreachableMin = 999.0

// Record is one raw telemetry report for a single aircraft
type Record struct {
	Callsign         string  `json:"callsign"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	AltitudeFt       float64 `json:"altitude_ft"`
	IASKt            float64 `json:"ias_kt"`
	HeadingDeg       float64 `json:"heading_deg"`
	VerticalSpeedFpm float64 `json:"vertical_speed_fpm"`
	Route            string  `json:"route"`
	FlightType       string  `json:"flight_type"`
}

// Snapshot is one complete telemetry frame
type Snapshot struct {
	Time     time.Time `json:"time"`
	Aircraft []Record  `json:"aircraft"`
}

// State is the tracked, derived picture of one aircraft. It carries
// the raw record plus everything computed from it and the fields that
// persist across ticks (phase and last advisory time).
type State struct {
	Record

	TASKt             float64       `json:"tas_kt"`
	GroundSpeedKt     float64       `json:"ground_speed_kt"`
	TrackDeg          float64       `json:"track_deg"`
	WindCorrectionDeg float64       `json:"wind_correction_deg"`
	Wind              atmos.Wind    `json:"wind"`
	DistanceToMPNM    float64       `json:"distance_to_mp_nm"`
	ETAMin            float64       `json:"eta_min"`
	EarliestETAMin    float64       `json:"earliest_eta_min"`
	LatestETAMin      float64       `json:"latest_eta_min"`
	WindowMin         float64       `json:"window_min"`
	Flexible          bool          `json:"flexible"`
	Phase             descent.Phase `json:"phase"`
	Priority          float64       `json:"priority"`
	Degraded          bool          `json:"degraded"`
	Time              time.Time     `json:"time"`

	// LastAdvisory is zero until the first advisory is issued
	LastAdvisory time.Time `json:"last_advisory,omitempty"`
}
