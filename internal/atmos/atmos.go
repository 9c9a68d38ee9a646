// Package atmos provides the atmospheric and geodesic primitives the
// sequencing engine is built on: wind-layer interpolation, indicated to
// true airspeed conversion, wind-corrected ground vectors and
// great-circle geometry. Everything here is a pure function over its
// inputs.
package atmos

import "math"

const (
	// EarthRadiusNM is the mean Earth radius in nautical miles
	EarthRadiusNM = 3440.065

	// Standard atmosphere constants for the IAS/TAS conversion
	seaLevelStdTempK = 288.15
	lapseRateKPerM   = 0.0065
	metersPerFoot    = 0.3048
)

// Layer is one entry of the ordered wind table: conditions measured at
// a given altitude. Tables are sorted ascending by altitude.
type Layer struct {
	AltitudeFt   float64 `json:"alt"`
	DirectionDeg float64 `json:"dir"` // direction the wind blows from, degrees true
	SpeedKt      float64 `json:"speed"`
	TempC        float64 `json:"temp"`
}

// Wind is the interpolated wind condition at a specific altitude
type Wind struct {
	DirectionDeg float64 `json:"direction"`
	SpeedKt      float64 `json:"speed"`
	TempC        float64 `json:"temp"`
}

// GroundVector is the wind-corrected motion over the ground
type GroundVector struct {
	SpeedKt           float64 `json:"speed"`
	TrackDeg          float64 `json:"track"`
	WindCorrectionDeg float64 `json:"wind_correction"`
}

// WindAt linearly interpolates the wind table at the given altitude.
// Altitudes below the first layer or above the last clamp to that
// layer. Direction interpolation takes the shorter angular path so a
// 350°-to-10° table segment passes through north, not south.
func WindAt(altitudeFt float64, layers []Layer) Wind {
	if len(layers) == 0 {
		// ISA sea-level temperature, calm
		return Wind{DirectionDeg: 0, SpeedKt: 0, TempC: 15}
	}

	if altitudeFt <= layers[0].AltitudeFt {
		first := layers[0]
		return Wind{DirectionDeg: first.DirectionDeg, SpeedKt: first.SpeedKt, TempC: first.TempC}
	}
	if altitudeFt >= layers[len(layers)-1].AltitudeFt {
		last := layers[len(layers)-1]
		return Wind{DirectionDeg: last.DirectionDeg, SpeedKt: last.SpeedKt, TempC: last.TempC}
	}

	lower := layers[0]
	upper := layers[len(layers)-1]
	for i := 0; i < len(layers)-1; i++ {
		if altitudeFt >= layers[i].AltitudeFt && altitudeFt <= layers[i+1].AltitudeFt {
			lower = layers[i]
			upper = layers[i+1]
			break
		}
	}

	ratio := (altitudeFt - lower.AltitudeFt) / (upper.AltitudeFt - lower.AltitudeFt)

	dirDiff := upper.DirectionDeg - lower.DirectionDeg
	if dirDiff > 180 {
		dirDiff -= 360
	}
	if dirDiff < -180 {
		dirDiff += 360
	}

	dir := lower.DirectionDeg + dirDiff*ratio
	if dir < 0 {
		dir += 360
	}
	if dir >= 360 {
		dir -= 360
	}

	return Wind{
		DirectionDeg: dir,
		SpeedKt:      lower.SpeedKt + (upper.SpeedKt-lower.SpeedKt)*ratio,
		TempC:        lower.TempC + (upper.TempC-lower.TempC)*ratio,
	}
}

// IASToTAS converts indicated airspeed to true airspeed using the
// standard-atmosphere lapse-rate correction at the given altitude and
// outside air temperature. Inputs are assumed physically valid; callers
// own range checking.
func IASToTAS(iasKt, altitudeFt, tempC float64) float64 {
	altitudeM := altitudeFt * metersPerFoot
	actualTempK := tempC + 273.15
	stdTempAtAlt := seaLevelStdTempK - lapseRateKPerM*altitudeM

	tempRatio := math.Sqrt(actualTempK / stdTempAtAlt)
	altRatio := math.Sqrt(seaLevelStdTempK / (seaLevelStdTempK - lapseRateKPerM*altitudeM))

	return iasKt * altRatio * tempRatio
}

// GroundSpeedAndTrack computes the ground vector as the sum of the
// true-airspeed vector on the aircraft heading and the wind vector. The
// wind direction names where the wind blows from, so its velocity
// vector is offset 180°.
func GroundSpeedAndTrack(tasKt, headingDeg, windDirDeg, windSpeedKt float64) GroundVector {
	headingRad := headingDeg * math.Pi / 180
	acVx := tasKt * math.Sin(headingRad)
	acVy := tasKt * math.Cos(headingRad)

	windToRad := (windDirDeg + 180) * math.Pi / 180
	windVx := windSpeedKt * math.Sin(windToRad)
	windVy := windSpeedKt * math.Cos(windToRad)

	gsVx := acVx + windVx
	gsVy := acVy + windVy

	groundSpeed := math.Sqrt(gsVx*gsVx + gsVy*gsVy)
	track := math.Atan2(gsVx, gsVy) * 180 / math.Pi
	if track < 0 {
		track += 360
	}

	return GroundVector{
		SpeedKt:           groundSpeed,
		TrackDeg:          track,
		WindCorrectionDeg: track - headingDeg,
	}
}

// GreatCircleNM calculates the great-circle distance in nautical miles
// between two lat/lon points using the haversine formula.
func GreatCircleNM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusNM * c
}

// Bearing calculates the initial great-circle bearing in degrees from
// point 1 to point 2, normalized to [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	y := math.Sin(lon2Rad-lon1Rad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lon2Rad-lon1Rad)
	bearing := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(bearing+360, 360)
}

// Displace moves a lat/lon point the given distance along a bearing and
// returns the new position. Used by the trajectory predictor to step an
// aircraft toward the merge point.
func Displace(lat, lon, bearingDeg, distanceNM float64) (float64, float64) {
	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	brgRad := bearingDeg * math.Pi / 180
	angular := distanceNM / EarthRadiusNM

	newLat := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(brgRad))
	newLon := lonRad + math.Atan2(
		math.Sin(brgRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(newLat),
	)

	return newLat * 180 / math.Pi, newLon * 180 / math.Pi
}
