package sqlite

import "time"

// AdvisoryRecord is one persisted advisory row
type AdvisoryRecord struct {
	ID               int64     `json:"id"`
	Callsign         string    `json:"callsign"`
	TargetAltitudeFt *float64  `json:"target_altitude_ft,omitempty"`
	TargetSpeedKt    *float64  `json:"target_speed_kt,omitempty"`
	VerticalRateFpm  *float64  `json:"vertical_rate_fpm,omitempty"`
	Route            string    `json:"route,omitempty"` // waypoint names, comma separated
	Reason           string    `json:"reason,omitempty"`
	IssuedAt         time.Time `json:"issued_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// SlotRecord is one persisted schedule slot row
type SlotRecord struct {
	ID            int64     `json:"id"`
	TickTime      time.Time `json:"tick_time"`
	Callsign      string    `json:"callsign"`
	ETAMin        float64   `json:"eta_min"`
	AssignedMin   float64   `json:"assigned_min"`
	AdjustmentMin float64   `json:"adjustment_min"`
	CreatedAt     time.Time `json:"created_at"`
}
