// Package geo describes observer sites and resolves them from place names.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

var (
	// ErrInvalidSite is returned for coordinates outside the valid ranges.
	ErrInvalidSite = errors.New("invalid observer site")
	// ErrNoAPIKey is returned when a place lookup is attempted without a key.
	ErrNoAPIKey = errors.New("geocoder api key not configured")
)

// Site is a geographic observer position. Longitude is east-positive.
type Site struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation_m,omitempty"`
}

// Key returns a stable identifier used for storage lookups.
func (s Site) Key() string {
	if s.Name != "" {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s.Name), " ", "-"))
	}
	return fmt.Sprintf("%.4f,%.4f", s.Latitude, s.Longitude)
}

// Validate checks coordinate ranges.
func (s Site) Validate() error {
	if math.IsNaN(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidSite, s.Latitude)
	}
	if math.IsNaN(s.Longitude) || s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidSite, s.Longitude)
	}
	return nil
}

// Place is a postal description used when a site is configured by name.
type Place struct {
	City    string
	State   string
	Country string
}

func (p Place) String() string {
	parts := make([]string, 0, 3)
	for _, v := range []string{p.City, p.State, p.Country} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// Geocoder resolves places to coordinates.
type Geocoder interface {
	Lookup(p Place) (lat, lon float64, err error)
}

// GoogleGeocoder looks places up through the Google geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

// the geocoder package keeps its key in a package variable.
var keyMu sync.Mutex

func (g *GoogleGeocoder) Lookup(p Place) (float64, float64, error) {
	if g.apiKey == "" {
		return 0, 0, ErrNoAPIKey
	}

	keyMu.Lock()
	defer keyMu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    p.City,
		State:   p.State,
		Country: p.Country,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding %q: %w", p.String(), err)
	}
	return loc.Latitude, loc.Longitude, nil
}

// Resolve builds a Site for a place, filling coordinates from g.
func Resolve(g Geocoder, name string, p Place, elevation float64) (Site, error) {
	lat, lon, err := g.Lookup(p)
	if err != nil {
		return Site{}, err
	}
	if name == "" {
		name = p.String()
	}
	s := Site{Name: name, Latitude: lat, Longitude: lon, Elevation: elevation}
	if err := s.Validate(); err != nil {
		return Site{}, err
	}
	return s, nil
}
