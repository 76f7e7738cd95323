// Package coords holds the frame and time conversions shared by the
// position pipeline: equatorial to ecliptic, obliquity, Julian days.
package coords

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/unit"
)

// J2000Obliquity is the mean obliquity of the ecliptic at J2000.0, in degrees.
const J2000Obliquity = 23.43929111

// Frame selects which obliquity is used for a conversion.
type Frame int

const (
	FrameOfDate Frame = iota // true obliquity at the observation time
	FrameJ2000               // fixed J2000 mean obliquity
)

// Normalize reduces an angle in degrees into [0,360). NaN and infinities
// come back as NaN.
func Normalize(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return math.NaN()
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	// -1e-17 + 360 rounds to 360.
	if r >= 360 {
		r = 0
	}
	return r
}

// ToEcliptic converts right ascension and declination (degrees) observed at
// t into ecliptic longitude and latitude using the true obliquity of date.
func ToEcliptic(raDeg, decDeg float64, t time.Time) (lonDeg, latDeg float64) {
	return ToEclipticWith(raDeg, decDeg, TrueObliquity(TerrestrialJD(t)))
}

// ToEclipticFrame is ToEcliptic with an explicit frame choice.
func ToEclipticFrame(raDeg, decDeg float64, t time.Time, frame Frame) (lonDeg, latDeg float64) {
	if frame == FrameJ2000 {
		return ToEclipticWith(raDeg, decDeg, J2000Obliquity)
	}
	return ToEcliptic(raDeg, decDeg, t)
}

// FromJ2000 converts catalogue (J2000) right ascension and declination to
// ecliptic coordinates of the equinox of date at t.
func FromJ2000(raDeg, decDeg float64, t time.Time) (lonDeg, latDeg float64) {
	lon, lat := ToEclipticWith(raDeg, decDeg, J2000Obliquity)
	if math.IsNaN(lon) {
		return lon, lat
	}
	return PrecessLongitude(lon, TerrestrialJD(t)), lat
}

// ToEclipticWith converts with a caller-supplied obliquity in degrees.
func ToEclipticWith(raDeg, decDeg, oblDeg float64) (lonDeg, latDeg float64) {
	sε, cε := math.Sincos(oblDeg * math.Pi / 180)
	λ, β := coord.EqToEcl(unit.RAFromDeg(raDeg), unit.AngleFromDeg(decDeg), sε, cε)
	return Normalize(λ.Deg()), β.Deg()
}

// ToEquatorialWith is the inverse of ToEclipticWith. Right ascension is
// returned in degrees in [0,360).
func ToEquatorialWith(lonDeg, latDeg, oblDeg float64) (raDeg, decDeg float64) {
	sε, cε := math.Sincos(oblDeg * math.Pi / 180)
	α, δ := coord.EclToEq(unit.AngleFromDeg(lonDeg), unit.AngleFromDeg(latDeg), sε, cε)
	return Normalize(α.Deg()), δ.Deg()
}

// TrueObliquity returns mean obliquity plus nutation in obliquity at the
// given Julian ephemeris day, in degrees.
func TrueObliquity(jde float64) float64 {
	ε0 := nutation.MeanObliquity(jde)
	_, Δε := nutation.Nutation(jde)
	return (ε0 + Δε).Deg()
}

// NutationInLongitude returns Δψ in degrees.
func NutationInLongitude(jde float64) float64 {
	Δψ, _ := nutation.Nutation(jde)
	return Δψ.Deg()
}

// PrecessLongitude carries a J2000 ecliptic longitude forward to the
// equinox of date using the general precession in longitude.
func PrecessLongitude(lonDeg, jde float64) float64 {
	T := base.J2000Century(jde)
	p := (5029.0966*T + 1.11113*T*T) / 3600
	return Normalize(lonDeg + p)
}

// JulianDay returns the Julian day (UT) of t.
func JulianDay(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// TerrestrialJD returns the Julian ephemeris day for t, JD(UT) + ΔT.
func TerrestrialJD(t time.Time) float64 {
	return JulianDay(t) + DeltaT(t)/86400
}

// DeltaT returns TT − UT in seconds using the Espenak–Meeus polynomials for
// the modern era and the long-term parabola outside it.
func DeltaT(t time.Time) float64 {
	y := float64(t.Year()) + (float64(t.YearDay())-0.5)/365.25
	switch {
	case y >= 1986 && y < 2005:
		u := y - 2000
		return 63.86 + 0.3345*u - 0.060374*u*u + 0.0017275*u*u*u +
			0.000651814*u*u*u*u + 0.00002373599*u*u*u*u*u
	case y >= 2005 && y < 2050:
		u := y - 2000
		return 62.92 + 0.32217*u + 0.005589*u*u
	case y >= 2050 && y < 2150:
		return -20 + 32*math.Pow((y-1820)/100, 2) - 0.5628*(2150-y)
	case y >= 1961 && y < 1986:
		u := y - 1975
		return 45.45 + 1.067*u - u*u/260 - u*u*u/718
	case y >= 1941 && y < 1961:
		u := y - 1950
		return 29.07 + 0.407*u - u*u/233 + u*u*u/2547
	default:
		u := (y - 1820) / 100
		return -20 + 32*u*u
	}
}
