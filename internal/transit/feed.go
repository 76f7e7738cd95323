package transit

import (
	"strings"
	"time"

	"github.com/i474232898/transit-feed/internal/angles"
	"github.com/i474232898/transit-feed/internal/feed"
	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/parts"
)

// Observer describes the point of view of a feed.
type Observer struct {
	Description string   `json:"description"`
	Frame       string   `json:"frame"`
	Site        geo.Site `json:"site"`
}

// BodyEntry is one body in the output feed.
type BodyEntry struct {
	ID         string     `json:"id"`
	Name       string     `json:"targetname"`
	Category   Category   `json:"category"`
	Longitude  *float64   `json:"ecl_lon_deg"`
	Latitude   *float64   `json:"ecl_lat_deg"`
	Zodiac     string     `json:"zodiac,omitempty"`
	Provenance Provenance `json:"source"`
	*Auxiliary
	Error string `json:"error,omitempty"`
}

// AngleBlock is the angle section of a feed. Values is nil when the house
// routine failed, and Error says why.
type AngleBlock struct {
	Values      *angles.AngleSet `json:"values"`
	Branch      angles.Branch    `json:"branch"`
	SunAltitude float64          `json:"sun_altitude_deg"`
	Provenance  Provenance       `json:"source"`
	Error       string           `json:"error,omitempty"`
}

// Feed is one generated snapshot.
type Feed struct {
	ID          string                `json:"id"`
	GeneratedAt time.Time             `json:"generated_at_utc"`
	Epoch       time.Time             `json:"epoch_utc"`
	JulianDay   float64               `json:"julian_day_ut"`
	Observer    Observer              `json:"observer"`
	SourceOrder map[Category][]string `json:"source_order"`
	Objects     []BodyEntry           `json:"objects"`
	Angles      AngleBlock            `json:"angles"`
	FormulaSet  string                `json:"formula_set"`
	Points      []parts.Result        `json:"symbolic_points"`
	Harmonics   []parts.HarmonicEntry `json:"harmonics,omitempty"`
	Overlays    []ChartOverlay        `json:"natal_overlays,omitempty"`
	Summary     map[Provenance]int    `json:"summary"`
}

// RangeFeed is a sequence of snapshots for one site.
type RangeFeed struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generated_at_utc"`
	Observer    Observer       `json:"observer"`
	From        time.Time      `json:"from_utc"`
	To          time.Time      `json:"to_utc"`
	Step        string         `json:"step"`
	Snapshots   []Feed         `json:"snapshots"`
	Overlays    []ChartOverlay `json:"natal_overlays,omitempty"`
}

// NewBodyEntry renders a position for output.
func NewBodyEntry(p Position) BodyEntry {
	e := BodyEntry{
		ID:         p.Body.ID(),
		Name:       p.Body.Name,
		Category:   p.Body.Category,
		Longitude:  p.Longitude,
		Latitude:   p.Latitude,
		Zodiac:     feed.Zodiac(p.Longitude),
		Provenance: p.Provenance,
	}
	if !p.Aux.Empty() {
		e.Auxiliary = p.Aux
	}
	if p.Provenance == ProvenanceMissing || p.Provenance == ProvenanceCalculatedFallback {
		e.Error = strings.Join(p.Attempts, "; ")
		if e.Error == "" {
			e.Error = "no source configured"
		}
	}
	return e
}

// usable reports whether a position may feed derived values. Placeholder
// positions keep the pipeline alive but are not real data.
func (p Position) usable() bool {
	return p.Resolved() && p.Provenance != ProvenanceCalculatedFallback
}
