package advisory

import (
	"time"

	"github.com/yegors/mp-director/internal/refdata"
)

// Advisory is one set of control suggestions for a single aircraft.
// Every field except the callsign is optional; a nil field means no
// change is being suggested on that axis.
type Advisory struct {
	Callsign         string             `json:"callsign"`
	TargetAltitudeFt *float64           `json:"target_altitude_ft,omitempty"`
	VerticalRateFpm  *float64           `json:"vertical_rate_fpm,omitempty"`
	TargetSpeedKt    *float64           `json:"target_speed_kt,omitempty"`
	HeadingDeg       *float64           `json:"heading_deg,omitempty"`
	Route            []refdata.Waypoint `json:"route,omitempty"`
	Reason           string             `json:"reason,omitempty"`
	IssuedAt         time.Time          `json:"issued_at"`
}

// Empty reports whether the advisory carries no suggestion at all
func (a *Advisory) Empty() bool {
	return a.TargetAltitudeFt == nil && a.VerticalRateFpm == nil &&
		a.TargetSpeedKt == nil && a.HeadingDeg == nil && len(a.Route) == 0
}

func ptr(v float64) *float64 { return &v }
