package transit

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name   string
	coords map[string]Coordinates
	panics bool
	calls  atomic.Int32
}

func newStub(name string, coords map[string]Coordinates) *stubSource {
	return &stubSource{name: name, coords: coords}
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Resolve(_ context.Context, b Body, _ time.Time) (Coordinates, error) {
	s.calls.Add(1)
	if s.panics {
		panic("boom")
	}
	c, ok := s.coords[b.Name]
	if !ok {
		return Coordinates{}, errors.New("unknown body")
	}
	return c, nil
}

var epoch = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func TestResolvePositionStopsAtFirstSuccess(t *testing.T) {
	a := newStub("a", nil)
	b := newStub("b", map[string]Coordinates{"Mars": {Lon: 42.5, Lat: -1.25}})
	c := newStub("c", map[string]Coordinates{"Mars": {Lon: 1, Lat: 1}})

	r, err := NewResolver([]Source{a, b, c}, ResolverOptions{})
	require.NoError(t, err)

	p := r.ResolvePosition(context.Background(), Body{Name: "Mars"}, epoch, []Source{a, b, c}, false)
	assert.Equal(t, Provenance("b"), p.Provenance)
	assert.Equal(t, 42.5, *p.Longitude)
	assert.Equal(t, -1.25, *p.Latitude)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(0), c.calls.Load())
	assert.Len(t, p.Attempts, 1)
}

func TestResolveEndToEnd(t *testing.T) {
	remote := newStub(SourceHorizons, nil)
	local := newStub(SourceLocalFile, map[string]Coordinates{"Sun": {Lon: 123.45, Lat: 0.0002}})
	flat := newStub(SourceFlatFallback, map[string]Coordinates{"Varuna": {Lon: 310.2}})

	r, err := NewResolver([]Source{remote, local, flat}, ResolverOptions{
		Chains: map[Category][]string{
			CategoryMajor: {SourceHorizons, SourceLocalFile},
			CategoryTNO:   {SourceHorizons, SourceLocalFile, SourceFlatFallback},
		},
	})
	require.NoError(t, err)

	sun := r.Resolve(context.Background(), Body{Name: "Sun", Category: CategoryMajor}, epoch)
	require.True(t, sun.Resolved())
	assert.Equal(t, 123.45, *sun.Longitude)
	assert.Equal(t, 0.0002, *sun.Latitude)
	assert.Equal(t, Provenance(SourceLocalFile), sun.Provenance)

	varuna := r.Resolve(context.Background(), Body{Name: "Varuna", Category: CategoryTNO}, epoch)
	require.True(t, varuna.Resolved())
	assert.Equal(t, 310.2, *varuna.Longitude)
	assert.Equal(t, Provenance(SourceFlatFallback), varuna.Provenance)
	assert.Len(t, varuna.Attempts, 2)
}

func TestFallbackGating(t *testing.T) {
	failing := newStub("a", nil)
	placeholder := newStub(SourcePlaceholder, map[string]Coordinates{"Eris": {Lon: 23.5, Lat: 0}})

	r, err := NewResolver([]Source{failing}, ResolverOptions{Placeholder: placeholder})
	require.NoError(t, err)

	chain := []Source{failing}
	p := r.ResolvePosition(context.Background(), Body{Name: "Eris"}, epoch, chain, false)
	assert.Equal(t, ProvenanceMissing, p.Provenance)
	assert.Nil(t, p.Longitude)
	assert.Nil(t, p.Latitude)
	assert.False(t, p.Resolved())

	p = r.ResolvePosition(context.Background(), Body{Name: "Eris"}, epoch, chain, true)
	assert.Equal(t, ProvenanceCalculatedFallback, p.Provenance)
	require.NotNil(t, p.Longitude)
	assert.Equal(t, 23.5, *p.Longitude)
	assert.False(t, p.usable())
}

func TestForcedFallbackWithoutPlaceholderIsZero(t *testing.T) {
	r, err := NewResolver(nil, ResolverOptions{})
	require.NoError(t, err)

	p := r.ResolvePosition(context.Background(), Body{Name: "Sedna"}, epoch, nil, true)
	assert.Equal(t, ProvenanceCalculatedFallback, p.Provenance)
	assert.Equal(t, 0.0, *p.Longitude)
	assert.Equal(t, 0.0, *p.Latitude)
}

func TestForceFallbackIsPerCategory(t *testing.T) {
	r, err := NewResolver([]Source{newStub(SourceHorizons, nil)}, ResolverOptions{
		ForceFallback: map[Category]bool{CategoryTNO: true},
	})
	require.NoError(t, err)

	p := r.Resolve(context.Background(), Body{Name: "Sun", Category: CategoryMajor}, epoch)
	assert.Equal(t, ProvenanceMissing, p.Provenance)

	p = r.Resolve(context.Background(), Body{Name: "Orcus", Category: CategoryTNO}, epoch)
	assert.Equal(t, ProvenanceCalculatedFallback, p.Provenance)
}

func TestResolverRecoversPanics(t *testing.T) {
	bad := newStub("bad", nil)
	bad.panics = true
	good := newStub("good", map[string]Coordinates{"Moon": {Lon: 200, Lat: 5}})

	r, err := NewResolver([]Source{bad, good}, ResolverOptions{})
	require.NoError(t, err)

	p := r.ResolvePosition(context.Background(), Body{Name: "Moon"}, epoch, []Source{bad, good}, false)
	assert.Equal(t, Provenance("good"), p.Provenance)
	require.Len(t, p.Attempts, 1)
	assert.Contains(t, p.Attempts[0], "panicked")
}

func TestResolverRejectsInvalidCoordinates(t *testing.T) {
	for name, c := range map[string]Coordinates{
		"nan":      {Lon: math.NaN()},
		"inf lat":  {Lon: 10, Lat: math.Inf(1)},
		"negative": {Lon: -1},
		"full":     {Lon: 360},
	} {
		t.Run(name, func(t *testing.T) {
			bad := newStub("bad", map[string]Coordinates{"Venus": c})
			r, err := NewResolver([]Source{bad}, ResolverOptions{})
			require.NoError(t, err)

			p := r.ResolvePosition(context.Background(), Body{Name: "Venus"}, epoch, []Source{bad}, false)
			assert.Equal(t, ProvenanceMissing, p.Provenance)
		})
	}
}

func TestResolverHonoursCancellation(t *testing.T) {
	s := newStub("a", map[string]Coordinates{"Sun": {Lon: 1}})
	r, err := NewResolver([]Source{s}, ResolverOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := r.ResolvePosition(ctx, Body{Name: "Sun"}, epoch, []Source{s}, true)
	assert.Equal(t, ProvenanceMissing, p.Provenance)
	assert.Equal(t, int32(0), s.calls.Load())
}

func TestNewResolverRejectsDuplicates(t *testing.T) {
	_, err := NewResolver([]Source{newStub("a", nil), newStub("a", nil)}, ResolverOptions{})
	assert.Error(t, err)
}

func TestChainForSkipsUnregisteredAndHonoursOverride(t *testing.T) {
	local := newStub(SourceLocalFile, nil)
	flat := newStub(SourceFlatFallback, nil)
	r, err := NewResolver([]Source{local, flat}, ResolverOptions{})
	require.NoError(t, err)

	chain := r.ChainFor(Body{Name: "Jupiter", Category: CategoryMajor})
	require.Len(t, chain, 2)
	assert.Equal(t, SourceLocalFile, chain[0].Name())
	assert.Equal(t, SourceFlatFallback, chain[1].Name())

	chain = r.ChainFor(Body{Name: "Jupiter", Category: CategoryMajor, Chain: []string{SourceFlatFallback}})
	require.Len(t, chain, 1)
	assert.Equal(t, SourceFlatFallback, chain[0].Name())

	order := r.SourceOrder()
	assert.Equal(t, DefaultChains[CategoryTNO], order[CategoryTNO])
}

func TestNewResolverRejectsUnknownChainLabels(t *testing.T) {
	_, err := NewResolver([]Source{newStub(SourceLocalFile, nil)}, ResolverOptions{
		Chains: map[Category][]string{CategoryTNO: {SourceLocalFile, "astroseek"}},
	})
	assert.ErrorContains(t, err, "astroseek")

	// Known but unregistered labels are allowed and skipped.
	r, err := NewResolver([]Source{newStub(SourceLocalFile, nil)}, ResolverOptions{
		Chains: map[Category][]string{CategoryTNO: {SourceHorizons, SourceLocalFile}},
	})
	require.NoError(t, err)
	chain := r.ChainFor(Body{Name: "Varuna", Category: CategoryTNO})
	require.Len(t, chain, 1)
	assert.Equal(t, SourceLocalFile, chain[0].Name())
}
