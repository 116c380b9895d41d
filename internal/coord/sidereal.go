package coord

import (
	"math"
	"time"
)

// JulianDate computes the Julian Date for a given time. Ported from the
// teacher's catalog.JulianDate (same algorithm, UTC-based civil calendar to JD).
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y, m, d := t.Date()
	year, month := y, int(m)
	if month <= 2 {
		year--
		month += 12
	}
	a := year / 100
	b := 2 - a + a/4

	dayFrac := float64(d) + (float64(t.Hour())+float64(t.Minute())/60.0+float64(t.Second())/3600.0)/24.0

	jd := math.Floor(365.25*float64(year+4716)) +
		math.Floor(30.6001*float64(month+1)) +
		dayFrac + float64(b) - 1524.5
	return jd
}

// LST computes local sidereal time in hours for a given UTC instant and
// observer longitude (degrees, +E). Ported from the teacher's
// catalog.LocalSiderealTime / mount.Simulator.computeLST, unified into one
// implementation the Coordinate Engine owns (spec §4.3 lst(utc_now, longitude)).
func LST(utc time.Time, longitudeDeg float64) float64 {
	jd := JulianDate(utc)
	t := (jd - J2000) / 36525.0

	gmstDeg := 280.46061837 + 360.98564736629*(jd-J2000) + 0.000387933*t*t - t*t*t/38710000.0
	gmstDeg = Range360(gmstDeg)

	lstDeg := Range360(gmstDeg + longitudeDeg)
	return lstDeg / 15.0
}
