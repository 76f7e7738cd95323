package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/transit"
)

var at = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func fastConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Client:  &http.Client{},
		Timeout: 2 * time.Second,
		Backoff: BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	}
}

const horizonsResult = `API VERSION: 1.2
*******************************************************************************
 Date_________JDUT, , , R.A._(ICRF), DEC_(ICRF), r, rdot, delta, deldot, S-O-T,/r, S-T-O, Cnst, ObsEcLon, ObsEcLat,
*******************************************************************************
$$SOE
 2460390.000000000, , , 12.345, -5.5, 1.52, 0.1, 2.3, -0.2, 45.6,/T, 20.1, Psc, 15.25, -1.5,
$$EOE
*******************************************************************************`

func TestHorizonsResolve(t *testing.T) {
	var command string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		command = r.URL.Query().Get("COMMAND")
		fmt.Fprintf(w, `{"result": %q}`, horizonsResult)
	}))
	defer srv.Close()

	h := NewHorizons(srv.URL, fastConfig())
	c, err := h.Resolve(context.Background(), transit.Body{Name: "Mars", RemoteID: "499"}, at)
	require.NoError(t, err)
	assert.Equal(t, "'499'", command)
	assert.Equal(t, 15.25, c.Lon)
	assert.Equal(t, -1.5, c.Lat)
	require.NotNil(t, c.Aux)
	assert.Equal(t, 2.3, *c.Aux.Delta)
	assert.Equal(t, 1.52, *c.Aux.R)
	assert.Equal(t, 45.6, *c.Aux.Elongation)
	assert.Equal(t, 20.1, *c.Aux.PhaseAngle)
	assert.Equal(t, "Psc", c.Aux.Constellation)
	assert.Equal(t, 12.345, *c.Aux.RA)
}

func TestParseHorizonsFallsBackToEquatorial(t *testing.T) {
	result := " Date_________JDUT, , , R.A._(ICRF), DEC_(ICRF),\n$$SOE\n 2451545.0, , , 0.0, 0.0,\n$$EOE\n"
	c, err := parseHorizons(result, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 0, c.Lat, 1e-9)
	assert.InDelta(t, 0, c.Lon, 1e-6)
}

func TestParseHorizonsErrors(t *testing.T) {
	_, err := parseHorizons("no table here", at)
	assert.ErrorIs(t, err, transit.ErrNoResult)

	_, err = parseHorizons(" Date, r,\n$$SOE\n 2451545.0, 1.0,\n$$EOE\n", at)
	assert.ErrorIs(t, err, transit.ErrNoResult)
}

func TestHorizonsReportsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "Unknown target"}`)
	}))
	defer srv.Close()

	_, err := NewHorizons(srv.URL, fastConfig()).Resolve(context.Background(), transit.Body{Name: "X", RemoteID: "x"}, at)
	assert.ErrorIs(t, err, transit.ErrNoResult)
}

func TestHorizonsRequiresRemoteID(t *testing.T) {
	_, err := NewHorizons("http://127.0.0.1:1", fastConfig()).Resolve(context.Background(), transit.Body{Name: "Vulcan"}, at)
	assert.ErrorIs(t, err, transit.ErrNoResult)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	body, err := fetchWithResilience(context.Background(), fastConfig(), newBreaker("t"), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fetchWithResilience(context.Background(), fastConfig(), newBreaker("t"), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, errServerError)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDefaultConfigMakesThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultHTTPClientConfig()
	cfg.Backoff.InitialInterval = time.Millisecond
	cfg.Backoff.MaxInterval = time.Millisecond
	_, err := fetchWithResilience(context.Background(), cfg, newBreaker("t"), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetchWithResilience(context.Background(), fastConfig(), newBreaker("t"), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetchWithResilience(ctx, fastConfig(), newBreaker("t"), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMiriadeResolve(t *testing.T) {
	var name string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name = r.URL.Query().Get("-name")
		fmt.Fprint(w, `{"data":[{"Date":"2024-03-20T12:00:00","ELON":"123.5","ELAT":-0.25,"Distance":1.2}]}`)
	}))
	defer srv.Close()

	m := NewMiriade(srv.URL, fastConfig())
	c, err := m.Resolve(context.Background(), transit.Body{Name: "Chiron", Category: transit.CategoryAsteroid}, at)
	require.NoError(t, err)
	assert.Equal(t, "a:Chiron", name)
	assert.Equal(t, 123.5, c.Lon)
	assert.Equal(t, -0.25, c.Lat)
	assert.Equal(t, 1.2, *c.Aux.Delta)
}

func TestParseMiriadeNestedSexagesimal(t *testing.T) {
	doc := `{"result": "{\"data\":[{\"RA\":\"00 00 00.0\",\"DEC\":\"+00 00 00.0\"}]}"}`
	c, err := parseMiriade([]byte(doc), time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 0, c.Lon, 1e-6)
	assert.InDelta(t, 0, c.Lat, 1e-9)

	_, err = parseMiriade([]byte(`{"data":[]}`), at)
	assert.ErrorIs(t, err, transit.ErrNoResult)
}

func TestParseAngle(t *testing.T) {
	v, ok := parseAngle("02 30 00", true)
	require.True(t, ok)
	assert.InDelta(t, 37.5, v, 1e-9)

	v, ok = parseAngle("-10 30 00", false)
	require.True(t, ok)
	assert.InDelta(t, -10.5, v, 1e-9)

	v, ok = parseAngle("12.5°", false)
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = parseAngle("north", false)
	assert.False(t, ok)
}

func TestMiriadeName(t *testing.T) {
	assert.Equal(t, "s:Moon", miriadeName(transit.Body{Name: "Moon", Category: transit.CategoryMajor}))
	assert.Equal(t, "p:Mars", miriadeName(transit.Body{Name: "Mars", Category: transit.CategoryMajor}))
	assert.Equal(t, "dp:Eris", miriadeName(transit.Body{Name: "Eris", Category: transit.CategoryTNO}))
	assert.Equal(t, "a:2060", miriadeName(transit.Body{Name: "Chiron", MiriadeID: "a:2060"}))
}

func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestFlatFileClosestDateAndMerge(t *testing.T) {
	dir := t.TempDir()
	first := writeJSON(t, dir, "a.json", `{
		"2024-03-19": {"Varuna": {"lon": 310.0, "lat": -1.0}},
		"2024-03-21": {"Varuna": "310.2°"}
	}`)
	second := writeJSON(t, dir, "b.json", `{
		"2024-03-21": {"Varuna": 999, "Ixion": 280.5},
		"Quaoar": {"longitude": "5.5"}
	}`)

	f, err := NewFlatFile([]string{first, second}, 0)
	require.NoError(t, err)

	c, err := f.Resolve(context.Background(), transit.Body{Name: "Varuna"}, at.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 310.2, c.Lon)
	assert.Equal(t, 0.0, c.Lat)

	c, err = f.Resolve(context.Background(), transit.Body{Name: "varuna"}, at.Add(-30*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 310.0, c.Lon)
	assert.Equal(t, -1.0, c.Lat)

	c, err = f.Resolve(context.Background(), transit.Body{Name: "Ixion"}, at)
	require.NoError(t, err)
	assert.Equal(t, 280.5, c.Lon)

	c, err = f.Resolve(context.Background(), transit.Body{Name: "Quaoar"}, at)
	require.NoError(t, err)
	assert.Equal(t, 5.5, c.Lon)

	_, err = f.Resolve(context.Background(), transit.Body{Name: "Varuna"}, at.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, transit.ErrNoResult)
}

func TestFlatFileReloadKeepsDataOnError(t *testing.T) {
	dir := t.TempDir()
	p := writeJSON(t, dir, "a.json", `{"2024-03-20": {"Sedna": 60}}`)
	f, err := NewFlatFile([]string{p}, 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte(`{not json`), 0o644))
	assert.Error(t, f.Reload())

	c, err := f.Resolve(context.Background(), transit.Body{Name: "Sedna"}, at)
	require.NoError(t, err)
	assert.Equal(t, 60.0, c.Lon)

	require.NoError(t, os.WriteFile(p, []byte(`{"2024-03-20": {"Sedna": 61}}`), 0o644))
	require.NoError(t, f.Reload())
	c, err = f.Resolve(context.Background(), transit.Body{Name: "Sedna"}, at)
	require.NoError(t, err)
	assert.Equal(t, 61.0, c.Lon)
}

func TestNewFlatFileMissingFile(t *testing.T) {
	_, err := NewFlatFile([]string{filepath.Join(t.TempDir(), "nope.json")}, 0)
	assert.Error(t, err)
}

func TestFixedStar(t *testing.T) {
	var fs FixedStar
	c, err := fs.Resolve(context.Background(), transit.Body{
		Name:       "Regulus",
		Equatorial: &transit.Equatorial{RA: 152.0929625, Dec: 11.9672083},
	}, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 149.83, c.Lon, 0.01)
	assert.InDelta(t, 0.465, c.Lat, 0.01)

	_, err = fs.Resolve(context.Background(), transit.Body{Name: "Nobody"}, at)
	assert.ErrorIs(t, err, transit.ErrNoResult)
}

func TestPlaceholder(t *testing.T) {
	p := NewPlaceholder(-10, 1)
	c, err := p.Resolve(context.Background(), transit.Body{Name: "Any"}, at)
	require.NoError(t, err)
	assert.Equal(t, 350.0, c.Lon)
	assert.Equal(t, 1.0, c.Lat)
}

func TestLocalFile(t *testing.T) {
	l := NewLocalFile(ephemeris.New(t.TempDir()))

	vulcan := ephemeris.Vulcan
	c, err := l.Resolve(context.Background(), transit.Body{Name: "Vulcan", LocalCode: &vulcan}, at)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Lon, 0.0)
	assert.Less(t, c.Lon, 360.0)
	assert.Equal(t, 0.0, c.Lat)

	unknown := 9999
	_, err = l.Resolve(context.Background(), transit.Body{Name: "X", LocalCode: &unknown}, at)
	assert.ErrorIs(t, err, transit.ErrNoResult)

	mars := ephemeris.Mars
	_, err = l.Resolve(context.Background(), transit.Body{Name: "Mars", LocalCode: &mars}, at)
	assert.ErrorIs(t, err, transit.ErrNoResult, "no VSOP87 files in the directory")

	_, err = l.Resolve(context.Background(), transit.Body{Name: "Mars"}, at)
	assert.ErrorIs(t, err, transit.ErrNoResult)
}
