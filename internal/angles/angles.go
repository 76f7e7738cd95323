// Package angles derives the horizon and meridian points of an observer
// site and classifies a moment as a day or night chart.
package angles

import (
	"time"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/geo"
)

// AngleSet holds the four angles and, when requested, the house cusps.
type AngleSet struct {
	Ascendant   float64   `json:"ascendant"`
	Midheaven   float64   `json:"midheaven"`
	Descendant  float64   `json:"descendant"`
	ImumCoeli   float64   `json:"imum_coeli"`
	HouseSystem string    `json:"house_system"`
	Cusps       []float64 `json:"cusps,omitempty"`
}

// NewAngleSet derives Descendant and Imum Coeli from the Ascendant and
// Midheaven. Every AngleSet should be built through it.
func NewAngleSet(asc, mc float64) AngleSet {
	asc = coords.Normalize(asc)
	mc = coords.Normalize(mc)
	return AngleSet{
		Ascendant:  asc,
		Midheaven:  mc,
		Descendant: coords.Normalize(asc + 180),
		ImumCoeli:  coords.Normalize(mc + 180),
	}
}

// Lookup returns an angle by its conventional abbreviation.
func (a AngleSet) Lookup(name string) (float64, bool) {
	switch name {
	case "ASC":
		return a.Ascendant, true
	case "MC":
		return a.Midheaven, true
	case "DSC", "DESC":
		return a.Descendant, true
	case "IC":
		return a.ImumCoeli, true
	}
	return 0, false
}

// HouseRoutine is the shape of ephemeris.HouseCusps.
type HouseRoutine func(jd, lat, lon float64, system byte) (ephemeris.Houses, error)

// Calculator computes AngleSets with a fixed house routine.
type Calculator struct {
	houses    HouseRoutine
	withCusps bool
}

// NewCalculator returns a Calculator backed by the local ephemeris house
// routine. Cusps are included when withCusps is set.
func NewCalculator(withCusps bool) *Calculator {
	return &Calculator{houses: ephemeris.HouseCusps, withCusps: withCusps}
}

// ComputeAngles returns the angles for site at t. Errors from the house
// routine are returned unchanged and wrap ephemeris.ErrHouseUnavailable.
func (c *Calculator) ComputeAngles(site geo.Site, t time.Time, system byte) (AngleSet, error) {
	h, err := c.houses(coords.JulianDay(t), site.Latitude, site.Longitude, system)
	if err != nil {
		return AngleSet{}, err
	}

	set := NewAngleSet(h.Ascendant, h.Midheaven)
	set.HouseSystem = ephemeris.HouseSystemName(system)
	if c.withCusps {
		set.Cusps = make([]float64, len(h.Cusps))
		for i, v := range h.Cusps {
			set.Cusps[i] = coords.Normalize(v)
		}
	}
	return set, nil
}

// ComputeAngles is Calculator.ComputeAngles with cusps and the default
// house routine.
func ComputeAngles(site geo.Site, t time.Time, system byte) (AngleSet, error) {
	return NewCalculator(true).ComputeAngles(site, t, system)
}

// Branch is the day or night classification of a chart.
type Branch string

const (
	Day   Branch = "day"
	Night Branch = "night"
)

// SunAltitude returns the Sun's geometric altitude in degrees at site and t.
func SunAltitude(site geo.Site, t time.Time) float64 {
	α, δ := solar.ApparentEquatorial(coords.TerrestrialJD(t))
	// Longitude is taken west-positive here.
	_, h := coord.EqToHz(α, δ,
		unit.AngleFromDeg(site.Latitude),
		unit.AngleFromDeg(-site.Longitude),
		sidereal.Apparent(coords.JulianDay(t)))
	return h.Deg()
}

// IsDaytime reports whether the Sun is strictly above the horizon.
func IsDaytime(site geo.Site, t time.Time) bool {
	return SunAltitude(site, t) > 0
}

// BranchFor classifies an altitude. Exactly 0° is night.
func BranchFor(altitude float64) Branch {
	if altitude > 0 {
		return Day
	}
	return Night
}

// DayNight returns the Branch for site at t.
func DayNight(site geo.Site, t time.Time) Branch {
	return BranchFor(SunAltitude(site, t))
}
