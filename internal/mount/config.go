// Package mount is the façade (spec §4.7, §4.9): Controller composes the
// driver, queue, coordinate engine, axis state, slew engine, tracking engine
// and limit monitor behind the public contract external adapters (the Alpaca
// REST layer) call into.
package mount

import (
	"math"

	"github.com/draco-mount/alpaca-mount/internal/coord"
)

// MountKind selects which Driver backs a Config.
type MountKind int

const (
	KindSimulator MountKind = iota
	KindSkyWatcher
)

// ParkPosition is a named resting position (spec §3 "named list of park positions").
type ParkPosition struct {
	Name      string
	AxisX     float64
	AxisY     float64
}

// Config is an immutable snapshot of mount settings (spec §3 MountConfig).
// Mutation creates a new snapshot; Controller swaps its pointer atomically
// rather than mutating one in place (spec §5, §9 "SkySettingsInstance ...
// canonical").
type Config struct {
	// Connection
	MountKind MountKind
	Port      string
	BaudRate  int

	// Site
	Latitude  float64
	Longitude float64
	Elevation float64

	// Geometry
	Alignment  coord.AlignmentMode
	PolarSide  coord.PolarMode
	Hemisphere coord.Hemisphere

	// Home/Park
	HomeAxisX     float64
	HomeAxisY     float64
	ParkAxes      [2]float64
	ParkNamed     []ParkPosition
	ParkLimitName string

	// Limits
	AxisLimitX         float64
	AxisUpperLimitY    float64
	AxisLowerLimitY    float64
	HzTrackingLimit    float64
	HourAngleLimit     float64
	LimitTracking      bool
	LimitPark          bool
	HzLimitTracking    bool
	NoSyncPastMeridian bool

	// Rates
	SiderealRate float64 // arcsec/s, constant
	LunarRate    float64
	SolarRate    float64
	KingRate     float64
	MaxSlewRate  float64
	slewSpeeds   [8]float64 // private; exposed only via SlewSpeeds()

	// Guiding
	MinPulseRA    float64
	MinPulseDec   float64
	St4GuideRate  float64
	GotoPrecision float64 // degrees

	// Loop periods
	DisplayIntervalMs       int
	AltAzTrackingIntervalMs int

	// Custom gearing
	CustomGearingEnabled bool
	CustomStepsPerRevX   int64
	CustomStepsPerRevY   int64
	CustomGearingOffset  int64

	// Capabilities
	CanSlew        bool
	CanPark        bool
	CanPulseGuide  bool
	CanFindHome    bool
	CanSync        bool
	CanSetPierSide bool
	CanPPec        bool

	// Slew settle time, seconds, applied between the coarse and precision
	// phases (spec §4.5 step 4).
	SlewSettleTimeSec float64
}

// slewSpeedFractions are the eight discrete multipliers of MaxSlewRate spec §3
// defines for the hand-controller speed steps.
var slewSpeedFractions = [8]float64{0.0034, 0.0068, 0.047, 0.068, 0.2, 0.4, 0.8, 1.0}

// DefaultConfig returns a Config with the spec's documented defaults (§3):
// sidereal rate constant, 200ms display tick, 2.5s AltAz predictor tick,
// GermanPolar alignment, all capabilities enabled for the simulator backend.
func DefaultConfig() Config {
	c := Config{
		MountKind: KindSimulator,
		Port:      "",
		BaudRate:  9600,

		Latitude:  34.0522,
		Longitude: -118.2437,
		Elevation: 100,

		Alignment: coord.GermanPolar,
		PolarSide: coord.PolarRight,

		HomeAxisX:     0,
		HomeAxisY:     90,
		ParkAxes:      [2]float64{180, 90},
		ParkNamed:     []ParkPosition{{Name: "default", AxisX: 180, AxisY: 90}},
		ParkLimitName: "default",

		AxisLimitX:      90,
		AxisUpperLimitY: 90,
		AxisLowerLimitY: -90,
		HzTrackingLimit: 0,
		HourAngleLimit:  12,
		LimitTracking:   true,
		LimitPark:       false,
		HzLimitTracking: false,

		SiderealRate: coord.SiderealRate,
		LunarRate:    14.511945,
		SolarRate:    15.0,
		KingRate:     15.0369,
		MaxSlewRate:  4.0,

		MinPulseRA:    20,
		MinPulseDec:   20,
		St4GuideRate:  0.5,
		GotoPrecision: 0.01,

		DisplayIntervalMs:       200,
		AltAzTrackingIntervalMs: 2500,

		CanSlew:        true,
		CanPark:        true,
		CanPulseGuide:  true,
		CanFindHome:    true,
		CanSync:        true,
		CanSetPierSide: true,
		CanPPec:        true,

		SlewSettleTimeSec: 0,
	}
	c.Hemisphere = coord.HemisphereOf(c.Latitude)
	for i, f := range slewSpeedFractions {
		c.slewSpeeds[i] = math.Round(c.MaxSlewRate*f*1000) / 1000
	}
	return c
}

// WithLatitude returns a copy of c with Latitude (and derived Hemisphere) set.
// Config mutation always goes through a copy-then-swap like this (spec §5
// "MountConfig is treated as immutable: mutation creates a new snapshot").
func (c Config) WithLatitude(lat float64) Config {
	c.Latitude = lat
	c.Hemisphere = coord.HemisphereOf(lat)
	return c
}

// SlewSpeeds returns the eight discrete hand-controller slew speeds, derived
// from MaxSlewRate as round(max*{...}, 3) (spec §3). Kept private on Config
// per spec §9's "SlewSpeedEight" redesign note: exposed only via this accessor.
func (c Config) SlewSpeeds() [8]float64 {
	return c.slewSpeeds
}

// WithMaxSlewRate returns a copy of c with MaxSlewRate (and the derived eight
// slew speeds) recomputed.
func (c Config) WithMaxSlewRate(rate float64) Config {
	c.MaxSlewRate = rate
	for i, f := range slewSpeedFractions {
		c.slewSpeeds[i] = math.Round(rate*f*1000) / 1000
	}
	return c
}

// CoordContext builds the coord.Context this config implies.
func (c Config) CoordContext() coord.Context {
	return coord.Context{
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		Elevation:   c.Elevation,
		Alignment:   c.Alignment,
		PolarSide:   c.PolarSide,
		Hemisphere:  c.Hemisphere,
		HomeOffsetX: c.HomeAxisX,
		HomeOffsetY: c.HomeAxisY,
	}
}

// ParkPositionByName looks up a named park position. An empty name returns
// the legacy ParkAxes pair; an unknown name returns false.
func (c Config) ParkPositionByName(name string) (ParkPosition, bool) {
	if name == "" {
		return ParkPosition{Name: "", AxisX: c.ParkAxes[0], AxisY: c.ParkAxes[1]}, true
	}
	for _, p := range c.ParkNamed {
		if p.Name == name {
			return p, true
		}
	}
	return ParkPosition{}, false
}
