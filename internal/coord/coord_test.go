package coord

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange180(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"boundary positive", 180, 180},
		{"boundary negative", -180, 180},
		{"wraps past 360", 370, 10},
		{"wraps past -360", -370, -10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Range180(tt.in), 1e-9)
		})
	}
}

func TestRange360(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, Range360(360), 1e-9)
	assert.InDelta(t, 350.0, Range360(-10), 1e-9)
	assert.InDelta(t, 10.0, Range360(370), 1e-9)
}

func TestWrapHours(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, WrapHours(24), 1e-9)
	assert.InDelta(t, 23.0, WrapHours(-1), 1e-9)
	assert.InDelta(t, 1.0, WrapHours(25), 1e-9)
}

func TestHemisphereOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Northern, HemisphereOf(0))
	assert.Equal(t, Northern, HemisphereOf(34))
	assert.Equal(t, Southern, HemisphereOf(-34))
}

func TestRaToHA(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, RaToHA(6, 6), 1e-9)
	assert.InDelta(t, -1.0, RaToHA(7, 6), 1e-9)
	// LST wraps across midnight: RA=23, LST=1 -> HA should land in [-12, 12)
	ha := RaToHA(23, 1)
	assert.True(t, ha >= -12 && ha < 12)
}

func TestRadecAxesRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := Context{Latitude: 34.05, Longitude: -118.24, Alignment: GermanPolar, Hemisphere: Northern}
	lst := 10.0

	tests := []struct {
		name string
		ra   float64
		dec  float64
	}{
		{"near zenith-ish", 9.5, 40},
		{"west of meridian", 6.0, -10},
		{"east of meridian", 14.0, 20},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x, y := RadecToAxesXY(tt.ra, tt.dec, lst, ctx)
			gotRA, gotDec := AxesXYToRadec(x, y, lst, ctx)
			assert.InDelta(t, tt.ra, gotRA, 1e-6)
			assert.InDelta(t, tt.dec, gotDec, 1e-6)
		})
	}
}

func TestAxesAppMountRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := Context{Alignment: GermanPolar, Hemisphere: Northern, HomeOffsetX: 12, HomeOffsetY: -4}
	mx, my := AxesAppToMount(30, 50, ctx)
	x, y := AxesMountToApp(mx, my, ctx)
	assert.InDelta(t, 30.0, x, 1e-9)
	assert.InDelta(t, 50.0, y, 1e-9)
}

func TestAxesAppMountPolarSouthernOffset(t *testing.T) {
	t.Parallel()

	ctx := Context{Alignment: Polar, Hemisphere: Southern}
	mx, _ := AxesAppToMount(90, 0, ctx)
	assert.InDelta(t, -90.0, mx, 1e-9)
}

func TestEquatorialHorizontalRoundTrip(t *testing.T) {
	t.Parallel()

	lat := 34.05
	lst := 8.0
	ra, dec := 9.0, 30.0

	az, alt := EquatorialToHorizontal(ra, dec, lat, lst)
	require.True(t, alt > -90 && alt <= 90)

	gotRA, gotDec := HorizontalToEquatorial(az, alt, lat, lst)
	assert.InDelta(t, ra, gotRA, 1e-4)
	assert.InDelta(t, dec, gotDec, 1e-4)
}

func TestJulianDateKnownEpoch(t *testing.T) {
	t.Parallel()

	j2000Noon := time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, J2000, JulianDate(j2000Noon), 1e-6)
}

func TestLSTMonotonicWithinDay(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.July, 29, 0, 0, 0, 0, time.UTC)
	prev := LST(base, -118.0)
	for i := 1; i <= 6; i++ {
		cur := LST(base.Add(time.Duration(i)*time.Hour), -118.0)
		diff := cur - prev
		if diff < 0 {
			diff += 24
		}
		assert.True(t, diff > 0 && diff < 2, "LST should advance roughly an hour per hour, got delta %v", diff)
		prev = cur
	}
}

func TestLSTWrapsWithinRange(t *testing.T) {
	t.Parallel()

	for lon := -180.0; lon <= 180.0; lon += 45 {
		lst := LST(time.Now().UTC(), lon)
		assert.True(t, lst >= 0 && lst < 24)
	}
}

func TestAzAltAxesXYIdentity(t *testing.T) {
	t.Parallel()

	ctx := Context{Alignment: AltAz}
	x, y := AzAltToAxesXY(370, 45, ctx)
	assert.InDelta(t, 10.0, x, 1e-9)
	assert.InDelta(t, 45.0, y, 1e-9)

	az, alt := AxesXYToAzAlt(x, y, ctx)
	assert.InDelta(t, 10.0, az, 1e-9)
	assert.InDelta(t, 45.0, alt, 1e-9)
}

func TestEquatorialToHorizontalClampsNearPole(t *testing.T) {
	t.Parallel()

	// Exercise the acos/asin clamping paths near the boundary of domain.
	az, alt := EquatorialToHorizontal(0, 90, 90, 0)
	assert.False(t, math.IsNaN(az))
	assert.False(t, math.IsNaN(alt))
}
