// Package limits implements the Limit Monitor (spec §4.8, §8): each tick it
// compares raw axis degrees against the configured travel windows and
// horizon/meridian rules.
package limits

import "github.com/draco-mount/alpaca-mount/internal/coord"

const hysteresisDeg = 1.0 / 3600.0 // 1 arcsec, spec §4.8/§3

// Config is the subset of mount.Config the monitor needs, passed in directly
// rather than importing the mount package (which imports this one), avoiding
// a cycle.
type Config struct {
	AxisLimitX      float64
	AxisUpperLimitY float64
	AxisLowerLimitY float64
	HzTrackingLimit float64
	PolarSide       coord.PolarMode
	Alignment       coord.AlignmentMode
}

// Status is the four-boolean limit snapshot (spec §3 LimitStatus).
type Status struct {
	AtLowerX bool
	AtUpperX bool
	AtLowerY bool
	AtUpperY bool
}

func (s Status) Breached() bool {
	return s.AtLowerX || s.AtUpperX || s.AtLowerY || s.AtUpperY
}

// Check computes the limit status for the given raw (mount-frame) axis
// degrees, per spec §4.8. For Polar-Left mounts the Y window is mirrored
// around 180 degrees.
func Check(rawX, rawY float64, cfg Config) Status {
	upperY := cfg.AxisUpperLimitY
	lowerY := cfg.AxisLowerLimitY
	if cfg.Alignment == coord.Polar && cfg.PolarSide == coord.PolarLeft {
		upperY = 180 - cfg.AxisUpperLimitY
		lowerY = 180 - cfg.AxisLowerLimitY
	}

	return Status{
		AtLowerX: rawX <= -cfg.AxisLimitX-hysteresisDeg,
		AtUpperX: rawX >= cfg.AxisLimitX+hysteresisDeg,
		AtLowerY: rawY <= lowerY-hysteresisDeg,
		AtUpperY: rawY >= upperY+hysteresisDeg,
	}
}

// HorizonBreached reports whether altDeg has dropped to or below the
// configured horizon tracking limit. Applies in AltAz and Polar modes (spec
// §4.8 "Horizon limits (hz_*) apply additionally in AltAz and Polar modes").
func HorizonBreached(altDeg float64, cfg Config) bool {
	if cfg.Alignment != coord.AltAz && cfg.Alignment != coord.Polar {
		return false
	}
	return altDeg <= cfg.HzTrackingLimit
}

// MeridianViolation reports whether slewing/syncing to haHours would push the
// mount across the meridian, for no_sync_past_meridian enforcement (spec §4.8).
// A sync request is a meridian violation if the requested hour angle has the
// opposite sign from the current one (a flip) and no_sync_past_meridian holds.
func MeridianViolation(currentHA, requestedHA float64, noSyncPastMeridian bool) bool {
	if !noSyncPastMeridian {
		return false
	}
	return (currentHA < 0) != (requestedHA < 0)
}
