// Package coord implements the pure coordinate transforms shared by the rest of
// the mount core: equatorial <-> horizontal <-> mount-axis <-> app-frame degrees.
// Every function here is stateless and takes a Context rather than reading global
// settings, so the transforms are trivially testable (spec §4.3, §8 S5).
package coord

import "math"

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi

	// J2000 is the Julian Date of the J2000.0 epoch.
	J2000 = 2451545.0

	// SiderealRate is the angular rate of the stars, arcsec/s.
	SiderealRate = 15.0410671786691
)

// AlignmentMode is the mount's geometric arrangement.
type AlignmentMode int

const (
	GermanPolar AlignmentMode = iota
	Polar
	AltAz
)

// PolarMode distinguishes which side of a fork/polar mount the tube rides on.
type PolarMode int

const (
	PolarLeft PolarMode = iota
	PolarRight
)

// Hemisphere is derived from site latitude.
type Hemisphere int

const (
	Northern Hemisphere = iota
	Southern
)

// HemisphereOf returns Northern for latitude >= 0, Southern otherwise.
func HemisphereOf(latitudeDeg float64) Hemisphere {
	if latitudeDeg < 0 {
		return Southern
	}
	return Northern
}

// Context carries everything the transforms need about the site and mount
// geometry. It is a plain value: construct one per request/tick, never mutate
// one shared across goroutines.
type Context struct {
	Latitude  float64 // degrees, +N
	Longitude float64 // degrees, +E
	Elevation float64 // meters, unused by the trig but carried for completeness

	Alignment  AlignmentMode
	PolarSide  PolarMode
	Hemisphere Hemisphere

	// HomeOffsetX/Y are added in mount frame when mapping app -> mount axes
	// (spec §4.3 "Home and park offsets are applied in mount frame").
	HomeOffsetX float64
	HomeOffsetY float64
}

// NewContext builds a Context from site latitude/longitude/elevation and mount
// geometry, deriving Hemisphere from latitude the way spec §3 requires.
func NewContext(lat, lon, elev float64, alignment AlignmentMode, polarSide PolarMode) Context {
	return Context{
		Latitude:   lat,
		Longitude:  lon,
		Elevation:  elev,
		Alignment:  alignment,
		PolarSide:  polarSide,
		Hemisphere: HemisphereOf(lat),
	}
}

// Range180 normalizes an angle in degrees to (-180, 180], matching spec §8
// boundary behaviors: Range180(180) == 180, Range180(-180) == 180.
func Range180(x float64) float64 {
	x = math.Mod(x, 360.0)
	if x <= -180 {
		x += 360
	}
	if x > 180 {
		x -= 360
	}
	return x
}

// Range360 normalizes an angle in degrees to [0, 360).
func Range360(x float64) float64 {
	x = math.Mod(x, 360.0)
	if x < 0 {
		x += 360
	}
	return x
}

// WrapHours normalizes an hour value to [0, 24).
func WrapHours(h float64) float64 {
	h = math.Mod(h, 24.0)
	if h < 0 {
		h += 24
	}
	return h
}

// clampDec clamps a declination to [-90, 90]. Values strictly outside this by
// more than a tenth of a millidegree are the caller's responsibility to reject
// as OutOfRange before calling into this package (spec §8: +-90 accepted,
// +-90.0001 is OutOfRange) - this package only normalizes what it is handed.
func clampDec(dec float64) float64 {
	if dec > 90 {
		return 90
	}
	if dec < -90 {
		return -90
	}
	return dec
}

// RaToHA converts right ascension (hours) and LST (hours) to local hour angle
// in [-12, 12), per the GLOSSARY definition LHA = LST - RA.
func RaToHA(raHours, lstHours float64) float64 {
	ha := lstHours - raHours
	for ha < -12 {
		ha += 24
	}
	for ha >= 12 {
		ha -= 24
	}
	return ha
}

// RadecToAxesXY maps equatorial coordinates to mount axis (x=primary, y=secondary)
// degrees in the *app* frame (before the home/park mount-frame offset is applied).
// For GermanPolar/Polar the primary axis tracks hour angle and the secondary axis
// tracks declination folded by pier side; for AltAz the coordinates are first
// converted to horizontal and then treated as an AltAz pair.
func RadecToAxesXY(raHours, decDeg float64, lstHours float64, ctx Context) (x, y float64) {
	decDeg = clampDec(decDeg)
	if ctx.Alignment == AltAz {
		az, alt := EquatorialToHorizontal(raHours, decDeg, ctx.Latitude, lstHours)
		return AzAltToAxesXY(az, alt, ctx)
	}

	ha := RaToHA(raHours, lstHours)
	x = ha * 15.0 // hour angle, hours -> degrees
	y = decDeg

	// East of meridian (ha < 0) the tube is on the pier's east side in the
	// conventional GEM layout; the secondary axis folds across 90 deg when the
	// optical tube flips to the opposite pier side, matching the teacher's
	// buildStatus pier-side derivation generalized across both GEM sides.
	if ha >= 0 {
		x += 180
		y = 180 - y
	}
	return x, y
}

// AxesXYToRadec is the inverse of RadecToAxesXY.
func AxesXYToRadec(x, y float64, lstHours float64, ctx Context) (raHours, decDeg float64) {
	if ctx.Alignment == AltAz {
		az, alt := AxesXYToAzAlt(x, y, ctx)
		return HorizontalToEquatorial(az, alt, ctx.Latitude, lstHours)
	}

	ha := x
	dec := y
	if ha >= 180 {
		ha -= 180
		dec = 180 - dec
	}
	ha = Range180(ha) / 15.0 // degrees -> hours, folded to (-12, 12]
	ra := WrapHours(lstHours - ha)
	return ra, clampDec(dec)
}

// AzAltToAxesXY maps horizontal coordinates to mount axis degrees for AltAz
// mounts: x=azimuth [0,360), y=altitude [-90,90].
func AzAltToAxesXY(azDeg, altDeg float64, ctx Context) (x, y float64) {
	return Range360(azDeg), altDeg
}

// AxesXYToAzAlt is the inverse of AzAltToAxesXY.
func AxesXYToAzAlt(x, y float64, ctx Context) (azDeg, altDeg float64) {
	return Range360(x), y
}

// AxesAppToMount converts app-frame axis degrees (as computed by RadecToAxesXY/
// AzAltToAxesXY) into mount-frame degrees by applying the home offset and, for
// Polar alignment in the southern hemisphere, subtracting 180 deg from the
// primary axis per spec §4.3.
func AxesAppToMount(x, y float64, ctx Context) (mx, my float64) {
	mx = x + ctx.HomeOffsetX
	my = y + ctx.HomeOffsetY
	if ctx.Alignment == Polar && ctx.Hemisphere == Southern {
		mx -= 180
	}
	return mx, my
}

// AxesMountToApp is the inverse of AxesAppToMount.
func AxesMountToApp(mx, my float64, ctx Context) (x, y float64) {
	x = mx - ctx.HomeOffsetX
	y = my - ctx.HomeOffsetY
	if ctx.Alignment == Polar && ctx.Hemisphere == Southern {
		x += 180
	}
	return x, y
}

// CoordTypeToInternal handles topocentric-vs-J2000 selection for a coordinate
// pair. The core does not implement precession/nutation/refraction (out of
// scope - no pointing-model fitting per spec Non-goals); this is the seam a
// future alignment/pointing model would hook into. Today it is identity.
func CoordTypeToInternal(raHours, decDeg float64) (raInternal, decInternal float64) {
	return raHours, decDeg
}

// EquatorialToHorizontal converts RA (hours)/Dec (degrees) to Alt/Az (degrees)
// given latitude (degrees) and LST (hours). Ported from the teacher's
// mount.Simulator.buildStatus / catalog.EquatorialToHorizontal and generalized
// into this package's pure-function style.
func EquatorialToHorizontal(raHours, decDeg, latDeg, lstHours float64) (az, alt float64) {
	haRad := RaToHA(raHours, lstHours) * 15.0 * deg2rad
	decRad := decDeg * deg2rad
	latRad := latDeg * deg2rad

	sinAlt := math.Sin(decRad)*math.Sin(latRad) + math.Cos(decRad)*math.Cos(latRad)*math.Cos(haRad)
	sinAlt = math.Max(-1, math.Min(1, sinAlt))
	altRad := math.Asin(sinAlt)

	cosAz := (math.Sin(decRad) - math.Sin(altRad)*math.Sin(latRad)) / (math.Cos(altRad) * math.Cos(latRad))
	cosAz = math.Max(-1, math.Min(1, cosAz))
	azRad := math.Acos(cosAz)

	azDeg := azRad * rad2deg
	if math.Sin(haRad) > 0 {
		azDeg = 360.0 - azDeg
	}

	return Range360(azDeg), altRad * rad2deg
}

// HorizontalToEquatorial is the inverse of EquatorialToHorizontal.
func HorizontalToEquatorial(azDeg, altDeg, latDeg, lstHours float64) (raHours, decDeg float64) {
	azRad := azDeg * deg2rad
	altRad := altDeg * deg2rad
	latRad := latDeg * deg2rad

	sinDec := math.Sin(altRad)*math.Sin(latRad) + math.Cos(altRad)*math.Cos(latRad)*math.Cos(azRad)
	sinDec = math.Max(-1, math.Min(1, sinDec))
	decRad := math.Asin(sinDec)

	cosHA := (math.Sin(altRad) - math.Sin(decRad)*math.Sin(latRad)) / (math.Cos(decRad) * math.Cos(latRad))
	cosHA = math.Max(-1, math.Min(1, cosHA))
	haRad := math.Acos(cosHA)
	haHours := haRad * rad2deg / 15.0
	if math.Sin(azRad) > 0 {
		haHours = -haHours
	}

	ra := WrapHours(lstHours - haHours)
	return ra, decRad * rad2deg
}
