// Package trajectory extrapolates aircraft positions toward the merge
// point over a fixed horizon, recomputing wind, true airspeed and
// ground speed at each step as the aircraft descends through the wind
// table.
package trajectory

import (
	"github.com/yegors/mp-director/internal/atmos"
	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/refdata"
	"github.com/yegors/mp-director/internal/tracker"
)

// Point is one predicted position
type Point struct {
	OffsetSec      int     `json:"offset_sec"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AltitudeFt     float64 `json:"altitude_ft"`
	SpeedKt        float64 `json:"speed_kt"` // ground speed at the point
	DistanceToMPNM float64 `json:"distance_to_mp_nm"`
}

// Predictor extrapolates tracked aircraft along the direct course to
// the merge point
type Predictor struct {
	ref *refdata.Data
	cfg config.PredictionConfig
}

// NewPredictor creates a predictor using the given reference data and
// prediction bounds
func NewPredictor(ref *refdata.Data, cfg config.PredictionConfig) *Predictor {
	return &Predictor{ref: ref, cfg: cfg}
}

// Predict returns the trajectory for one aircraft, one point per step
// up to the horizon. The first point is the current position at offset
// zero. Prediction stops once the aircraft enters the arrival gate
// ring around the merge point, and immediately for degraded or
// stationary states.
func (p *Predictor) Predict(st *tracker.State) []Point {
	mp := p.ref.MergePoint()

	steps := p.cfg.HorizonSeconds / p.cfg.StepSeconds
	points := make([]Point, 0, steps+1)
	points = append(points, Point{
		OffsetSec:      0,
		Lat:            st.Lat,
		Lon:            st.Lon,
		AltitudeFt:     st.AltitudeFt,
		SpeedKt:        st.GroundSpeedKt,
		DistanceToMPNM: st.DistanceToMPNM,
	})

	if st.Degraded || st.GroundSpeedKt <= 0 {
		return points
	}

	lat, lon, alt := st.Lat, st.Lon, st.AltitudeFt
	ias := st.IASKt
	stepSec := float64(p.cfg.StepSeconds)

	for offset := p.cfg.StepSeconds; offset <= p.cfg.HorizonSeconds; offset += p.cfg.StepSeconds {
		dist := atmos.GreatCircleNM(lat, lon, mp.Latitude, mp.Longitude)
		if dist < p.cfg.ArrivalGateNM {
			break
		}

		wind := atmos.WindAt(alt, p.ref.WindLayers)
		tas := atmos.IASToTAS(ias, alt, wind.TempC)
		course := atmos.Bearing(lat, lon, mp.Latitude, mp.Longitude)
		gv := atmos.GroundSpeedAndTrack(tas, course, wind.DirectionDeg, wind.SpeedKt)
		if gv.SpeedKt <= 0 {
			break
		}

		travelNM := gv.SpeedKt * stepSec / 3600
		if travelNM > dist {
			travelNM = dist
		}
		lat, lon = atmos.Displace(lat, lon, course, travelNM)

		alt += st.VerticalSpeedFpm * stepSec / 60
		if alt < 0 {
			alt = 0
		}

		points = append(points, Point{
			OffsetSec:      offset,
			Lat:            lat,
			Lon:            lon,
			AltitudeFt:     alt,
			SpeedKt:        gv.SpeedKt,
			DistanceToMPNM: atmos.GreatCircleNM(lat, lon, mp.Latitude, mp.Longitude),
		})
	}

	return points
}
