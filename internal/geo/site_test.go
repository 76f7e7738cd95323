package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	lat, lon float64
	err      error
	calls    int
}

func (s *stubGeocoder) Lookup(Place) (float64, float64, error) {
	s.calls++
	return s.lat, s.lon, s.err
}

func TestSiteValidate(t *testing.T) {
	assert.NoError(t, Site{Latitude: 51.5, Longitude: -0.1}.Validate())
	assert.NoError(t, Site{Latitude: -90, Longitude: 180}.Validate())
	assert.ErrorIs(t, Site{Latitude: 91}.Validate(), ErrInvalidSite)
	assert.ErrorIs(t, Site{Longitude: -181}.Validate(), ErrInvalidSite)
	assert.ErrorIs(t, Site{Latitude: math.NaN()}.Validate(), ErrInvalidSite)
}

func TestSiteKey(t *testing.T) {
	assert.Equal(t, "new-york", Site{Name: " New York "}.Key())
	assert.Equal(t, "10.5000,-20.2500", Site{Latitude: 10.5, Longitude: -20.25}.Key())
}

func TestResolve(t *testing.T) {
	g := &stubGeocoder{lat: 48.8566, lon: 2.3522}
	s, err := Resolve(g, "", Place{City: "Paris", Country: "France"}, 35)
	require.NoError(t, err)
	assert.Equal(t, "Paris, France", s.Name)
	assert.Equal(t, 48.8566, s.Latitude)
	assert.Equal(t, 35.0, s.Elevation)
	assert.Equal(t, 1, g.calls)

	g = &stubGeocoder{err: errors.New("zero results")}
	_, err = Resolve(g, "x", Place{City: "Nowhere"}, 0)
	assert.Error(t, err)

	g = &stubGeocoder{lat: 123}
	_, err = Resolve(g, "x", Place{City: "Broken"}, 0)
	assert.ErrorIs(t, err, ErrInvalidSite)
}

func TestGoogleGeocoderRequiresKey(t *testing.T) {
	_, _, err := NewGoogleGeocoder("").Lookup(Place{City: "Paris"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
