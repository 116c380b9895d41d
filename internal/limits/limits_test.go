package limits

import (
	"testing"

	"github.com/draco-mount/alpaca-mount/internal/coord"
	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{
		AxisLimitX:      90,
		AxisUpperLimitY: 90,
		AxisLowerLimitY: -90,
		HzTrackingLimit: 0,
		PolarSide:       coord.PolarRight,
		Alignment:       coord.GermanPolar,
	}
}

func TestCheckWithinLimits(t *testing.T) {
	t.Parallel()
	got := Check(45, 45, baseConfig())
	assert.False(t, got.Breached())
}

func TestCheckHysteresisBoundary(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()

	// exactly at the limit, within hysteresis, should not trip
	got := Check(90, 0, cfg)
	assert.False(t, got.AtUpperX)

	// past the limit by more than hysteresis should trip
	got = Check(90.01, 0, cfg)
	assert.True(t, got.AtUpperX)
}

func TestCheckLowerXBreach(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	got := Check(-90.01, 0, cfg)
	assert.True(t, got.AtLowerX)
	assert.True(t, got.Breached())
}

func TestCheckYBreach(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()

	got := Check(0, 90.01, cfg)
	assert.True(t, got.AtUpperY)

	got = Check(0, -90.01, cfg)
	assert.True(t, got.AtLowerY)
}

func TestCheckPolarLeftMirrorsYWindow(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Alignment = coord.Polar
	cfg.PolarSide = coord.PolarLeft
	cfg.AxisUpperLimitY = 90
	cfg.AxisLowerLimitY = -90

	// mirrored window: upperY = 180-90=90, lowerY = 180-(-90)=270
	got := Check(0, 50, cfg)
	assert.False(t, got.AtUpperY, "50 is below the mirrored upper threshold of 90")

	got = Check(0, 95, cfg)
	assert.True(t, got.AtUpperY, "95 has crossed the mirrored upper threshold of 90")

	got = Check(0, 280, cfg)
	assert.False(t, got.AtLowerY, "280 is above the mirrored lower threshold of 270")
}

func TestHorizonBreached(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Alignment = coord.AltAz
	cfg.HzTrackingLimit = 10

	assert.True(t, HorizonBreached(5, cfg))
	assert.False(t, HorizonBreached(15, cfg))
}

func TestHorizonBreachedOnlyAppliesToAltAzAndPolar(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Alignment = coord.GermanPolar
	cfg.HzTrackingLimit = 50

	assert.False(t, HorizonBreached(0, cfg), "GermanPolar mounts don't enforce horizon limits")
}

func TestMeridianViolation(t *testing.T) {
	t.Parallel()

	assert.False(t, MeridianViolation(-2, 3, false), "disabled flag never reports a violation")
	assert.True(t, MeridianViolation(-2, 3, true), "opposite-sign hour angles are a flip")
	assert.False(t, MeridianViolation(-2, -5, true), "same-sign hour angles are not a flip")
}
