package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/transit"
)

const sample = `
output:
  path: out/feed.json
workers: 2
houses:
  system: r
parts:
  set: modern
  harmonics: [5, 7]
chains:
  tno: [flat-fallback, local-file]
force_fallback: [symbolic]
sites:
  - name: Greenwich
    latitude: 51.4769
    longitude: 0
  - name: Lisbon
    city: Lisbon
    country: PT
bodies:
  - name: Sun
    category: major
    remote_id: "10"
    local_code: 0
  - name: Regulus
    category: fixed-star
    ra: 152.0929625
    dec: 11.9672083
  - name: Varuna
    category: TNO
    remote_id: "20000;"
    chain: [flat-fallback]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "transitfeed.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

type stubGeocoder struct{}

func (stubGeocoder) Lookup(geo.Place) (float64, float64, error) { return 38.72, -9.14, nil }

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "out/feed.json", cfg.Output.Path)
	assert.Equal(t, 60, cfg.Output.RangeDays)
	assert.Equal(t, 24*time.Hour, cfg.Output.RangeStep)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 2, cfg.Remote.MaxRetries)
	assert.Equal(t, 2, cfg.HTTPClientConfig().Backoff.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, byte('R'), cfg.HouseSystem())
	assert.Equal(t, []int{5, 7}, cfg.Parts.Harmonics)

	bodies, err := cfg.TransitBodies()
	require.NoError(t, err)
	require.Len(t, bodies, 3)
	assert.Equal(t, transit.CategoryMajor, bodies[0].Category)
	require.NotNil(t, bodies[0].LocalCode)
	assert.Equal(t, 0, *bodies[0].LocalCode)
	require.NotNil(t, bodies[1].Equatorial)
	assert.InDelta(t, 152.0929625, bodies[1].Equatorial.RA, 1e-9)
	assert.Equal(t, transit.CategoryTNO, bodies[2].Category)
	assert.Equal(t, []string{"flat-fallback"}, bodies[2].Chain)

	opts := cfg.ResolverOptions()
	assert.Equal(t, []string{"flat-fallback", "local-file"}, opts.Chains[transit.CategoryTNO])
	assert.True(t, opts.ForceFallback[transit.CategorySymbolic])
	assert.False(t, opts.ForceFallback[transit.CategoryMajor])

	sites, err := cfg.ResolveSites(stubGeocoder{})
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, 51.4769, sites[0].Latitude)
	assert.Equal(t, 38.72, sites[1].Latitude)

	_, err = cfg.ResolveSites(nil)
	assert.ErrorIs(t, err, geo.ErrNoAPIKey)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRANSITFEED_WORKERS", "8")
	t.Setenv("TRANSITFEED_OUTPUT_PATH", "elsewhere.json")
	t.Setenv("GEOCODER_API_KEY", "k")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "elsewhere.json", cfg.Output.Path)
	assert.Equal(t, "k", cfg.GeocoderAPIKey)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := map[string]string{
		"no bodies":      "workers: 2\n",
		"bad category":   "bodies:\n  - {name: X, category: comet}\n",
		"bad chain":      "bodies:\n  - {name: X, category: major, chain: [oracle]}\n",
		"bad house":      "houses: {system: K}\nbodies:\n  - {name: X, category: major}\n",
		"duplicate body": "bodies:\n  - {name: X, category: major}\n  - {name: x, category: major}\n",
		"bad workers":    "workers: 0\nbodies:\n  - {name: X, category: major}\n",
		"bad site":       "sites:\n  - {name: S, latitude: 95, longitude: 0}\nbodies:\n  - {name: X, category: major}\n",
		"bad fallback":   "force_fallback: [planets]\nbodies:\n  - {name: X, category: major}\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFixedStarNeedsCoordinates(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bodies:\n  - {name: Spica, category: fixed-star}\n"))
	require.NoError(t, err)
	_, err = cfg.TransitBodies()
	assert.Error(t, err)
}

func TestLoadCharts(t *testing.T) {
	dir := t.TempDir()
	chart := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(chart, []byte(`{"name":"A","birth":"1990-05-01T14:30:00Z","latitude":1,"longitude":2}`), 0o644))

	cfg := &AppConfig{Natal: []string{chart}}
	charts, err := cfg.LoadCharts()
	require.NoError(t, err)
	require.Len(t, charts, 1)

	cfg.Natal = []string{chart, chart}
	_, err = cfg.LoadCharts()
	assert.Error(t, err)
}

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "transitfeed.yaml"))
	require.NoError(t, err)

	bodies, err := cfg.TransitBodies()
	require.NoError(t, err)
	assert.Len(t, bodies, len(cfg.Bodies))
	assert.Equal(t, []int{5, 7, 9}, cfg.Parts.Harmonics)

	sites, err := cfg.ResolveSites(stubGeocoder{})
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "greenwich", sites[0].Name)
}

func TestLoadRejectsUnsupportedHouseSystem(t *testing.T) {
	for _, sys := range []string{"K", "z", "B"} {
		_, err := Load(writeConfig(t, "houses: {system: "+sys+"}\nbodies:\n  - {name: X, category: major}\n"))
		assert.ErrorIs(t, err, ephemeris.ErrUnsupportedHouseSystem, sys)
	}

	cfg, err := Load(writeConfig(t, "houses: {system: w}\nbodies:\n  - {name: X, category: major}\n"))
	require.NoError(t, err)
	assert.Equal(t, byte(ephemeris.WholeSign), cfg.HouseSystem())
}
