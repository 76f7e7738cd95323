package transit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/parts"
)

// NatalChart is a birth record. Positions, when present, are precomputed
// natal longitudes keyed by body name.
type NatalChart struct {
	Name      string             `json:"name"`
	Birth     time.Time          `json:"birth"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Positions map[string]float64 `json:"positions,omitempty"`
}

// Site returns the birth place as an observer site.
func (c NatalChart) Site() geo.Site {
	return geo.Site{Name: c.Name, Latitude: c.Latitude, Longitude: c.Longitude}
}

// Validate checks the required fields.
func (c NatalChart) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("natal chart has no name")
	}
	if c.Birth.IsZero() {
		return fmt.Errorf("natal chart %q has no birth time", c.Name)
	}
	return c.Site().Validate()
}

// LoadNatalChart reads a chart from a JSON file.
func LoadNatalChart(path string) (NatalChart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NatalChart{}, fmt.Errorf("reading natal chart: %w", err)
	}
	var c NatalChart
	if err := json.Unmarshal(data, &c); err != nil {
		return NatalChart{}, fmt.Errorf("parsing natal chart %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return NatalChart{}, fmt.Errorf("natal chart %s: %w", path, err)
	}
	return c, nil
}

// ChartOverlay holds the natal angles and points of one chart.
type ChartOverlay struct {
	Name      string         `json:"name"`
	Birth     time.Time      `json:"birth_utc"`
	Site      geo.Site       `json:"site"`
	Positions string         `json:"positions_source"`
	Angles    AngleBlock     `json:"angles"`
	Points    []parts.Result `json:"symbolic_points"`
}

const (
	natalPrecomputed = "precomputed"
	natalResolved    = "resolved"
)
