package transit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/transit-feed/internal/angles"
	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/parts"
)

type stubAngles struct {
	set angles.AngleSet
	err error
}

func (s stubAngles) ComputeAngles(geo.Site, time.Time, byte) (angles.AngleSet, error) {
	return s.set, s.err
}

type stubFormulas struct{ set *parts.FormulaSet }

func (s stubFormulas) Current() *parts.FormulaSet { return s.set }

type memStore struct {
	mu    sync.Mutex
	feeds []Feed
}

func (m *memStore) SaveFeed(_ geo.Site, f Feed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds = append(m.feeds, f)
}

func (m *memStore) GetLatest(geo.Site) (Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.feeds) == 0 {
		return Feed{}, errors.New("none")
	}
	return m.feeds[len(m.feeds)-1], nil
}

func (m *memStore) GetRange(geo.Site, time.Time, time.Time) ([]Feed, error) {
	return nil, nil
}

var (
	london  = geo.Site{Name: "London", Latitude: 51.5, Longitude: -0.13}
	testSet = &parts.FormulaSet{Name: "test", Parts: []parts.Definition{
		{Name: "Fortune", Day: "ASC + Moon - Sun", Night: "ASC + Sun - Moon"},
		{Name: "Eros", Day: "ASC + Venus - Spirit"},
		{Name: "Solar", Day: "Sun + Venus"},
	}}
	testBodies = []Body{
		{Name: "Sun", Category: CategoryMajor},
		{Name: "Moon", Category: CategoryMajor},
		{Name: "Venus", Category: CategoryMajor},
	}
)

func newTestService(t *testing.T, src Source, ac AngleComputer, store Store, opts Options) *Service {
	t.Helper()
	r, err := NewResolver([]Source{src}, ResolverOptions{
		Chains: map[Category][]string{CategoryMajor: {src.Name()}},
	})
	require.NoError(t, err)
	if opts.Bodies == nil {
		opts.Bodies = testBodies
	}
	s, err := NewService(r, ac, stubFormulas{testSet}, store, opts)
	require.NoError(t, err)
	s.sunAltitude = func(geo.Site, time.Time) float64 { return 12 }
	return s
}

func TestNewServiceRequiresBodies(t *testing.T) {
	r, err := NewResolver(nil, ResolverOptions{})
	require.NoError(t, err)
	_, err = NewService(r, stubAngles{}, stubFormulas{testSet}, nil, Options{})
	assert.ErrorIs(t, err, ErrNoBodies)
}

func TestResolveAllKeepsOrder(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{
		"Sun": {Lon: 10}, "Moon": {Lon: 20}, "Venus": {Lon: 30},
	})
	s := newTestService(t, src, stubAngles{}, nil, Options{Workers: 2})

	got := s.ResolveAll(context.Background(), epoch)
	require.Len(t, got, 3)
	for i, b := range testBodies {
		assert.Equal(t, b.Name, got[i].Body.Name)
	}
	assert.Equal(t, 30.0, *got[2].Longitude)
}

func TestBuildMissingMoonMakesDependentPointUnavailable(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{
		"Sun": {Lon: 100}, "Venus": {Lon: 50},
	})
	s := newTestService(t, src, stubAngles{set: angles.NewAngleSet(10, 280)}, nil, Options{Harmonics: []int{2}})

	f := s.Build(context.Background(), london, epoch)
	require.Len(t, f.Objects, 3)
	assert.Equal(t, ProvenanceMissing, f.Objects[1].Provenance)
	assert.Nil(t, f.Objects[1].Longitude)
	assert.NotEmpty(t, f.Objects[1].Error)
	assert.Equal(t, 1, f.Summary[ProvenanceMissing])
	assert.Equal(t, 2, f.Summary[Provenance("local-file")])

	require.Len(t, f.Points, 3)
	assert.False(t, f.Points[0].Available(), "Fortune depends on Moon")
	assert.False(t, f.Points[1].Available(), "Eros references an undefined point")
	require.True(t, f.Points[2].Available())
	assert.InDelta(t, 150, *f.Points[2].Longitude, 1e-9)

	assert.Equal(t, angles.Day, f.Angles.Branch)
	require.NotNil(t, f.Angles.Values)
	assert.Equal(t, 190.0, f.Angles.Values.Descendant)
	assert.Equal(t, "test", f.FormulaSet)
	assert.NotEmpty(t, f.ID)
	assert.NotEmpty(t, f.Harmonics)
}

func TestBuildAngleFailureIsReported(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{
		"Sun": {Lon: 100}, "Moon": {Lon: 200}, "Venus": {Lon: 50},
	})
	s := newTestService(t, src, stubAngles{err: errors.New("polar circle")}, nil, Options{})

	f := s.Build(context.Background(), london, epoch)
	assert.Nil(t, f.Angles.Values)
	assert.Equal(t, ProvenanceMissing, f.Angles.Provenance)
	assert.Contains(t, f.Angles.Error, "polar")
	assert.False(t, f.Points[0].Available())
	assert.True(t, f.Points[2].Available())
}

func TestBuildUsesNightBranch(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{
		"Sun": {Lon: 100}, "Moon": {Lon: 250}, "Venus": {Lon: 50},
	})
	s := newTestService(t, src, stubAngles{set: angles.NewAngleSet(10, 280)}, nil, Options{})
	s.sunAltitude = func(geo.Site, time.Time) float64 { return 0 }

	f := s.Build(context.Background(), london, epoch)
	assert.Equal(t, angles.Night, f.Angles.Branch)
	require.True(t, f.Points[0].Available())
	assert.InDelta(t, 220, *f.Points[0].Longitude, 1e-9)
}

func TestBuildAndStore(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{"Sun": {Lon: 1}})
	store := &memStore{}
	s := newTestService(t, src, stubAngles{}, store, Options{})

	require.NoError(t, s.BuildAndStore(context.Background(), london))
	latest, err := s.GetLatest(london)
	require.NoError(t, err)
	assert.Len(t, latest.Objects, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.BuildAndStore(ctx, london))
	assert.Len(t, store.feeds, 1)
}

func TestBuildRange(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{"Sun": {Lon: 1}})
	s := newTestService(t, src, stubAngles{}, nil, Options{})

	rf, err := s.BuildRange(context.Background(), london, epoch, 3, 12*time.Hour)
	require.NoError(t, err)
	assert.Len(t, rf.Snapshots, 6)
	assert.Equal(t, epoch.Add(12*time.Hour), rf.Snapshots[1].Epoch)

	_, err = s.BuildRange(context.Background(), london, epoch, 0, time.Hour)
	assert.Error(t, err)
}

func TestResolveBody(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{"Venus": {Lon: 77}})
	s := newTestService(t, src, stubAngles{}, nil, Options{})

	p, err := s.ResolveBody(context.Background(), "venus", epoch)
	require.NoError(t, err)
	assert.Equal(t, 77.0, *p.Longitude)

	_, err = s.ResolveBody(context.Background(), "Chiron", epoch)
	assert.ErrorIs(t, err, ErrUnknownBody)
}

func TestOverlaysAreCached(t *testing.T) {
	src := newStub("local-file", map[string]Coordinates{
		"Sun": {Lon: 100}, "Moon": {Lon: 250}, "Venus": {Lon: 50},
	})
	charts := []NatalChart{
		{Name: "precomputed", Birth: epoch, Latitude: 40, Longitude: -74,
			Positions: map[string]float64{"Sun": 370, "Moon": 20, "Venus": 5}},
		{Name: "resolved", Birth: epoch, Latitude: 40, Longitude: -74},
	}
	s := newTestService(t, src, stubAngles{set: angles.NewAngleSet(0, 270)}, nil, Options{Charts: charts})

	first := s.Overlays(context.Background())
	require.Len(t, first, 2)
	assert.Equal(t, natalPrecomputed, first[0].Positions)
	assert.Equal(t, natalResolved, first[1].Positions)
	// 0 + 20 - 10 with the Sun normalised from 370.
	require.True(t, first[0].Points[0].Available())
	assert.InDelta(t, 10, *first[0].Points[0].Longitude, 1e-9)

	calls := src.calls.Load()
	s.Overlays(context.Background())
	assert.Equal(t, calls, src.calls.Load())

	s.ResetOverlays()
	s.Overlays(context.Background())
	assert.Greater(t, src.calls.Load(), calls)
}

func TestLoadNatalChart(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"name":"A","birth":"1990-05-01T14:30:00Z","latitude":48.85,"longitude":2.35}`), 0o644))
	c, err := LoadNatalChart(good)
	require.NoError(t, err)
	assert.Equal(t, "A", c.Name)
	assert.Equal(t, 48.85, c.Site().Latitude)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"B","latitude":48.85}`), 0o644))
	_, err = LoadNatalChart(bad)
	assert.Error(t, err)
}
