// Package advisory turns the per-aircraft planning results into
// concrete control suggestions: altitudes, rates, speeds and route
// changes, rate limited per aircraft.
package advisory

import (
	"math"
	"time"

	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/descent"
	"github.com/yegors/mp-director/internal/refdata"
	"github.com/yegors/mp-director/internal/scheduler"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/pkg/logger"
)

// Synthesizer builds advisories from tracked state, assigned slots and
// descent commands
type Synthesizer struct {
	cfg     config.AdvisoryConfig
	profile config.ProfileConfig
	ref     *refdata.Data
	logger  *logger.Logger

	cooldown time.Duration
}

// NewSynthesizer creates an advisory synthesizer
func NewSynthesizer(cfg config.AdvisoryConfig, profile config.ProfileConfig, ref *refdata.Data, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		cfg:      cfg,
		profile:  profile,
		ref:      ref,
		logger:   log.Named("advisory"),
		cooldown: time.Duration(cfg.CooldownSeconds) * time.Second,
	}
}

// Build produces the advisory for one aircraft, or nil when nothing
// needs suggesting. A recent advisory suppresses new ones for the
// cooldown period; an aircraft that has never been advised is exempt.
func (s *Synthesizer) Build(st *tracker.State, slot scheduler.Slot, cmd descent.Command, conflicted bool, now time.Time) *Advisory {
	if !st.LastAdvisory.IsZero() && now.Sub(st.LastAdvisory) < s.cooldown {
		return nil
	}

	adv := &Advisory{Callsign: st.Callsign, IssuedAt: now}

	s.addAltitude(adv, st, cmd)
	s.addSpeed(adv, st, cmd, conflicted)
	s.addRoute(adv, st, slot, conflicted)

	if adv.Empty() {
		return nil
	}
	return adv
}

// addAltitude suggests a descent once the aircraft is inside the
// profile start distance and meaningfully above its target altitude
func (s *Synthesizer) addAltitude(adv *Advisory, st *tracker.State, cmd descent.Command) {
	if st.DistanceToMPNM > cmd.DescentStartNM || st.AltitudeFt <= s.profile.FinalAltitudeFt {
		return
	}
	if math.Abs(st.AltitudeFt-cmd.TargetAltitudeFt) <= s.cfg.AltitudeDeadbandFt {
		return
	}
	adv.TargetAltitudeFt = ptr(cmd.TargetAltitudeFt)
	adv.VerticalRateFpm = ptr(cmd.DescentRateFpm)
}

// addSpeed suggests the planned speed, reduced for conflicting
// aircraft and clamped to the regulatory limit at low altitude. The
// clamp applies to the altitude this advisory sends the aircraft to,
// not just the altitude it is at: a descent clearance below the limit
// altitude must never come paired with a speed above the limit.
func (s *Synthesizer) addSpeed(adv *Advisory, st *tracker.State, cmd descent.Command, conflicted bool) {
	target := cmd.TargetSpeedKt
	if conflicted {
		target = math.Max(target-s.cfg.ConflictSpeedDecrementKt, s.profile.FinalSpeedKt)
	}
	clampAlt := st.AltitudeFt
	if adv.TargetAltitudeFt != nil {
		clampAlt = math.Min(clampAlt, *adv.TargetAltitudeFt)
	}
	if clampAlt < s.profile.SpeedLimitAltFt {
		target = math.Min(target, s.profile.SpeedLimitKt)
	}
	if math.Abs(st.IASKt-target) <= s.cfg.SpeedDeadbandKt {
		return
	}
	adv.TargetSpeedKt = ptr(target)
}

// addRoute resolves conflicts with an arc through the flexible zone
// when the ETA window allows, and otherwise trades route length
// against the slot adjustment
func (s *Synthesizer) addRoute(adv *Advisory, st *tracker.State, slot scheduler.Slot, conflicted bool) {
	if !st.Flexible {
		return
	}

	if conflicted && st.WindowMin > s.cfg.ArcWindowMin {
		adv.Route = s.arcRoute(st.Route)
		adv.Reason = "conflict resolution arc"
		return
	}

	if slot.AdjustmentMin > s.cfg.DelayRouteThresholdMin {
		adv.Route = s.arcRoute(st.Route)
		adv.Reason = "sequencing delay"
		return
	}
	if slot.AdjustmentMin < -s.cfg.AdvanceRouteThresholdMin {
		adv.Route = []refdata.Waypoint{s.ref.MergePoint()}
		adv.Reason = "direct to merge point"
	}
}

// arcRoute is the delaying path: out to the far edge of the flexible
// zone, then to the merge point
func (s *Synthesizer) arcRoute(routeName string) []refdata.Waypoint {
	var wps []refdata.Waypoint
	if zone, ok := s.ref.Zone(routeName); ok {
		if wp, ok := s.ref.Waypoint(zone.End); ok {
			wps = append(wps, wp)
		}
	}
	return append(wps, s.ref.MergePoint())
}
