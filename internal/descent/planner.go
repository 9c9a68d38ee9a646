// Package descent implements the per-aircraft descent and speed phase
// state machine: given the current altitude, ground speed and distance
// to the runway it selects the flight phase, a descent rate, a target
// speed and a configuration setting for the arrival profile.
package descent

import (
	"math"

	"github.com/yegors/mp-director/internal/config"
)

// Phase is a discrete stage of the standard arrival profile
type Phase string

const (
	PhaseCruise              Phase = "cruise"
	PhaseInitialDescent      Phase = "initial_descent"
	PhaseSpeedReduction250   Phase = "speed_reduction_250"
	PhaseIntermediateDescent Phase = "intermediate_descent"
	PhaseFinalApproachPrep   Phase = "final_approach_prep"
	PhaseFinalApproach       Phase = "final_approach"
	PhaseLanding             Phase = "landing" // terminal
)

// Policy names which descent-rate selection produced the final value
type Policy string

const (
	// PolicyStandard is the table-based selection covering the normal,
	// majority case.
	PolicyStandard Policy = "standard"
	// PolicyGroundSpeed is the ground-speed-halved fallback that
	// overrides the table when the two diverge too far.
	PolicyGroundSpeed Policy = "ground_speed"
)

const feetPerNM = 6076.12

// Input is the flight state the planner evaluates
type Input struct {
	AltitudeFt      float64
	GroundSpeedKt   float64
	DistanceNM      float64 // along-track distance to the runway/merge point
	CurrentRateFpm  float64 // current vertical rate, negative when descending
	Phase           Phase   // phase carried from the previous evaluation
}

// Command is the planner output for one aircraft
type Command struct {
	TargetAltitudeFt    float64 `json:"target_altitude_ft"`
	DescentRateFpm      float64 `json:"descent_rate_fpm"` // signed, negative for descent
	TargetSpeedKt       float64 `json:"target_speed_kt"`
	FlapSetting         int     `json:"flap_setting"`
	Phase               Phase   `json:"phase"`
	Policy              Policy  `json:"policy"`
	SafetyMarginNM      float64 `json:"safety_margin_nm"`
	AvailableDistanceNM float64 `json:"available_distance_nm"`
	DescentStartNM      float64 `json:"descent_start_nm"` // distance at which the descent should begin
}

// Progress is the profile-monitoring result
type Progress struct {
	AltitudeToLoseFt float64 `json:"altitude_to_lose_ft"`
	TimeRemainingMin float64 `json:"time_remaining_min"`
	MarginRatio      float64 `json:"margin_ratio"`
	OnProfile        bool    `json:"on_profile"`
}

// Planner evaluates the descent state machine. It is stateless; phase
// continuity is the caller's responsibility via Input.Phase.
type Planner struct {
	cfg config.ProfileConfig
}

// NewPlanner creates a planner with the given profile configuration
func NewPlanner(cfg config.ProfileConfig) *Planner {
	return &Planner{cfg: cfg}
}

// NextPhase advances the phase state machine from the current phase
// given altitude and distance. Thresholds only ever move the phase
// forward along the profile; when no rule matches the phase is
// unchanged. Regression on a climb-back is deliberately not prevented.
func (p *Planner) NextPhase(current Phase, altitudeFt, distanceNM float64) Phase {
	switch {
	case altitudeFt > 15000 && current == PhaseCruise:
		return PhaseInitialDescent
	case altitudeFt > 10000 && altitudeFt <= 15000:
		return PhaseSpeedReduction250
	case altitudeFt <= 10000 && distanceNM > 15:
		return PhaseIntermediateDescent
	case distanceNM <= 15 && distanceNM > 10:
		return PhaseFinalApproachPrep
	case distanceNM <= 10:
		return PhaseFinalApproach
	default:
		return current
	}
}

// Plan computes the full descent command for one aircraft
func (p *Planner) Plan(in Input) Command {
	phase := p.NextPhase(in.Phase, in.AltitudeFt, in.DistanceNM)

	targetAlt := p.targetAltitude(in.AltitudeFt, in.DistanceNM)
	margin := p.safetyMargin(in.AltitudeFt)
	available := in.DistanceNM - margin

	standard := p.tableRate(in.AltitudeFt, targetAlt, in.GroundSpeedKt, in.DistanceNM)
	bySpeed := groundSpeedRate(in.GroundSpeedKt)

	rate := standard
	policy := PolicyStandard
	if math.Abs(float64(standard-bySpeed)) >= p.cfg.PolicyToleranceFpm {
		rate = bySpeed
		policy = PolicyGroundSpeed
	}

	return Command{
		TargetAltitudeFt:    targetAlt,
		DescentRateFpm:      -float64(rate),
		TargetSpeedKt:       p.targetSpeed(in),
		FlapSetting:         p.flapSetting(in.DistanceNM),
		Phase:               phase,
		Policy:              policy,
		SafetyMarginNM:      margin,
		AvailableDistanceNM: available,
		DescentStartNM:      p.requiredDistanceNM(in.AltitudeFt-p.cfg.FinalAltitudeFt) + margin,
	}
}

// Monitor estimates how the descent is tracking against the 3° profile.
// Progress is measured to the final crossing altitude, not the current
// step-down target: the question is whether the whole remaining descent
// still fits in the remaining distance.
func (p *Planner) Monitor(in Input) Progress {
	toLose := math.Max(in.AltitudeFt-p.cfg.FinalAltitudeFt, 0)

	timeRemaining := 999.0
	if rate := math.Abs(in.CurrentRateFpm); rate > 0 {
		timeRemaining = toLose / rate
	}

	ratio := marginRatio(in.DistanceNM, p.requiredDistanceNM(toLose))

	return Progress{
		AltitudeToLoseFt: toLose,
		TimeRemainingMin: timeRemaining,
		MarginRatio:      ratio,
		OnProfile:        ratio > 0.9 && ratio < 1.3,
	}
}

// requiredDistanceNM is the along-track distance needed to lose the
// given altitude on the configured glide slope
func (p *Planner) requiredDistanceNM(altitudeToLoseFt float64) float64 {
	if altitudeToLoseFt <= 0 {
		return 0
	}
	return altitudeToLoseFt / math.Tan(p.cfg.GlideSlopeDeg*math.Pi/180) / feetPerNM
}

func marginRatio(distanceNM, requiredNM float64) float64 {
	if requiredNM <= 0 {
		return 999
	}
	return distanceNM / requiredNM
}

// targetAltitude steps the cleared altitude down by distance band so
// the aircraft converges on the final crossing altitude
func (p *Planner) targetAltitude(altitudeFt, distanceNM float64) float64 {
	switch {
	case distanceNM > 50:
		return math.Min(altitudeFt, 15000)
	case distanceNM > 30:
		return math.Min(altitudeFt, 10000)
	case distanceNM > 15:
		return math.Min(altitudeFt, 6000)
	default:
		return p.cfg.FinalAltitudeFt
	}
}

// safetyMargin scales with altitude band: high and fast needs more
// distance held in reserve than low and slow
func (p *Planner) safetyMargin(altitudeFt float64) float64 {
	switch {
	case altitudeFt > 20000:
		return p.cfg.MarginHighNM
	case altitudeFt > 10000:
		return p.cfg.MarginMidNM
	default:
		return p.cfg.MarginLowNM
	}
}

// tableRate picks a descent rate from the standard table by comparing
// the distance available against the distance the glide slope requires
func (p *Planner) tableRate(altitudeFt, targetAltFt, groundSpeedKt, distanceNM float64) int {
	ratio := marginRatio(distanceNM, p.requiredDistanceNM(altitudeFt-targetAltFt))

	switch {
	case ratio > 1.5:
		if groundSpeedKt > 350 {
			return 1000
		}
		return 500
	case ratio > 1.2:
		return 1000
	case ratio > 1.0:
		return 1500
	default:
		return 2000
	}
}

// groundSpeedRate is the secondary policy: half the ground speed, in
// feet per minute
func groundSpeedRate(groundSpeedKt float64) int {
	return int(groundSpeedKt / 2)
}

func (p *Planner) targetSpeed(in Input) float64 {
	if in.AltitudeFt > p.cfg.SpeedLimitAltFt {
		return math.Min(in.GroundSpeedKt, p.cfg.HighAltSpeedCapKt)
	}
	if in.DistanceNM > 10 {
		return p.cfg.SpeedLimitKt
	}
	return p.cfg.FinalApproachSpeedKt
}

// flapSetting by distance band. The FAF band is checked first so it is
// reachable inside the wider flap-5 band.
func (p *Planner) flapSetting(distanceNM float64) int {
	switch {
	case distanceNM <= p.cfg.FAFDistanceNM:
		return 15
	case distanceNM <= p.cfg.Flap5DistanceNM:
		return 5
	default:
		return 0
	}
}
