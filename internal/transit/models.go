package transit

import (
	"fmt"
	"strings"
)

// Category groups bodies that share a default source chain.
type Category string

const (
	CategoryMajor     Category = "major"
	CategoryAsteroid  Category = "asteroid"
	CategoryTNO       Category = "tno"
	CategoryFixedStar Category = "fixed-star"
	CategorySymbolic  Category = "symbolic"
)

// Categories lists every valid category.
var Categories = []Category{CategoryMajor, CategoryAsteroid, CategoryTNO, CategoryFixedStar, CategorySymbolic}

func (c Category) String() string { return string(c) }

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown body category %q", s)
	}
	return c, nil
}

// Equatorial is a catalogue position in degrees, J2000.
type Equatorial struct {
	RA  float64 `json:"ra_deg"`
	Dec float64 `json:"dec_deg"`
}

// Body identifies a tracked object. Bodies are read from configuration
// once and not modified afterwards.
type Body struct {
	Name     string
	Category Category

	// RemoteID is the Horizons COMMAND value, MiriadeID the Miriade
	// -name value. Either may be empty.
	RemoteID  string
	MiriadeID string
	// LocalCode addresses the body in the local ephemeris calculator.
	LocalCode *int
	// Equatorial is set for fixed stars.
	Equatorial *Equatorial

	// Chain overrides the category's source order when non-empty.
	Chain []string
}

// ID is the stable identifier used in feed output.
func (b Body) ID() string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(b.Name), " ", "_"))
}

// Auxiliary carries optional values some remote sources report. They are
// passed through to the feed and never required.
type Auxiliary struct {
	RA            *float64 `json:"ra_deg,omitempty"`
	Dec           *float64 `json:"dec_deg,omitempty"`
	Delta         *float64 `json:"delta_au,omitempty"`
	R             *float64 `json:"r_au,omitempty"`
	Elongation    *float64 `json:"elong_deg,omitempty"`
	PhaseAngle    *float64 `json:"phase_angle_deg,omitempty"`
	Constellation string   `json:"constellation,omitempty"`
}

// Empty reports whether no auxiliary value is set.
func (a *Auxiliary) Empty() bool {
	return a == nil || (a.RA == nil && a.Dec == nil && a.Delta == nil && a.R == nil &&
		a.Elongation == nil && a.PhaseAngle == nil && a.Constellation == "")
}

// Coordinates is what a Source returns: a geocentric ecliptic position
// of date in degrees, longitude in [0,360).
type Coordinates struct {
	Lon float64
	Lat float64
	Aux *Auxiliary
}

// Provenance names the source that produced a value.
type Provenance string

const (
	// ProvenanceMissing marks a value no source could produce.
	ProvenanceMissing Provenance = "missing"
	// ProvenanceCalculatedFallback marks a placeholder value.
	ProvenanceCalculatedFallback Provenance = "calculated-fallback"
)

// Position is a resolved body. Longitude and Latitude are both set or both
// nil; they are nil exactly when Provenance is ProvenanceMissing.
type Position struct {
	Body       Body
	Longitude  *float64
	Latitude   *float64
	Provenance Provenance
	Aux        *Auxiliary
	// Attempts records each source's failure, in chain order.
	Attempts []string
}

// Resolved reports whether the position carries coordinates.
func (p Position) Resolved() bool {
	return p.Provenance != ProvenanceMissing && p.Longitude != nil
}

func missing(b Body, attempts []string) Position {
	return Position{Body: b, Provenance: ProvenanceMissing, Attempts: attempts}
}

func resolved(b Body, c Coordinates, prov Provenance, attempts []string) Position {
	lon, lat := c.Lon, c.Lat
	return Position{
		Body:       b,
		Longitude:  &lon,
		Latitude:   &lat,
		Provenance: prov,
		Aux:        c.Aux,
		Attempts:   attempts,
	}
}
