package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/transit-feed/internal/common"
	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/transit"
)

// DefaultMaxDistance is how far the closest dated entry may be from the
// query time.
const DefaultMaxDistance = 72 * time.Hour

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"}

// flatEntry is one dataset value. Datasets without latitude report 0.
type flatEntry struct {
	Lon float64
	Lat float64
}

type flatDay struct {
	date   time.Time
	bodies map[string]flatEntry
}

// FlatFile serves positions from static JSON datasets keyed by date and
// body name. Entries keyed directly by body name apply at any date when
// no dated entry is close enough.
type FlatFile struct {
	paths       []string
	maxDistance time.Duration

	mu      sync.RWMutex
	days    []flatDay
	undated map[string]flatEntry
}

// NewFlatFile loads paths in order. Later files only add dates and bodies
// the earlier ones lack.
func NewFlatFile(paths []string, maxDistance time.Duration) (*FlatFile, error) {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	f := &FlatFile{paths: paths, maxDistance: maxDistance}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FlatFile) Name() string {
	return transit.SourceFlatFallback
}

// Paths returns the dataset files.
func (f *FlatFile) Paths() []string {
	return f.paths
}

// Reload reads every dataset again. On error the loaded data is kept.
func (f *FlatFile) Reload() error {
	byDate := make(map[time.Time]map[string]flatEntry)
	undated := make(map[string]flatEntry)

	for _, p := range f.paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading flat dataset: %w", err)
		}
		if err := mergeDataset(data, byDate, undated); err != nil {
			return fmt.Errorf("flat dataset %s: %w", p, err)
		}
	}

	days := make([]flatDay, 0, len(byDate))
	for d, bodies := range byDate {
		days = append(days, flatDay{date: d, bodies: bodies})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })

	f.mu.Lock()
	f.days = days
	f.undated = undated
	f.mu.Unlock()

	log.Printf("INFO: flat dataset loaded: %d dates, %d undated bodies from %d files", len(days), len(undated), len(f.paths))
	return nil
}

func mergeDataset(data []byte, byDate map[time.Time]map[string]flatEntry, undated map[string]flatEntry) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for key, raw := range doc {
		date, ok := parseDate(key)
		if !ok {
			if e, err := parseEntry(raw); err == nil {
				addEntry(undated, key, e)
			}
			continue
		}

		var bodies map[string]json.RawMessage
		if err := json.Unmarshal(raw, &bodies); err != nil {
			return fmt.Errorf("date %s: %w", key, err)
		}
		day, ok := byDate[date]
		if !ok {
			day = make(map[string]flatEntry, len(bodies))
			byDate[date] = day
		}
		for name, v := range bodies {
			e, err := parseEntry(v)
			if err != nil {
				log.Printf("WARN: flat dataset: skipping %s on %s: %v", name, key, err)
				continue
			}
			addEntry(day, name, e)
		}
	}
	return nil
}

func addEntry(m map[string]flatEntry, name string, e flatEntry) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, exists := m[key]; !exists {
		m[key] = e
	}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseEntry accepts a bare number, a degree string or an object with
// lon/lat fields under any of their usual names.
func parseEntry(raw json.RawMessage) (flatEntry, error) {
	if v, err := degrees(raw); err == nil {
		return flatEntry{Lon: coords.Normalize(v)}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return flatEntry{}, errors.New("not a number, degree string or object")
	}
	var e flatEntry
	lon, ok := firstDegrees(obj, "lon", "longitude", "ecl_lon_deg", "ecl_lon")
	if !ok {
		return flatEntry{}, errors.New("no longitude")
	}
	e.Lon = coords.Normalize(lon)
	if lat, ok := firstDegrees(obj, "lat", "latitude", "ecl_lat_deg", "ecl_lat"); ok {
		e.Lat = lat
	}
	return e, nil
}

func firstDegrees(obj map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			if v, err := degrees(raw); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func degrees(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return common.ParseDegrees(s)
}

func (f *FlatFile) Resolve(_ context.Context, body transit.Body, at time.Time) (transit.Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(body.Name))

	f.mu.RLock()
	defer f.mu.RUnlock()

	var (
		best     flatEntry
		bestDist time.Duration = -1
	)
	for _, d := range f.days {
		e, ok := d.bodies[key]
		if !ok {
			continue
		}
		dist := d.date.Sub(at)
		if dist < 0 {
			dist = -dist
		}
		if dist > f.maxDistance {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = e, dist
		}
	}
	if bestDist >= 0 {
		return transit.Coordinates{Lon: best.Lon, Lat: best.Lat}, nil
	}
	if e, ok := f.undated[key]; ok {
		return transit.Coordinates{Lon: e.Lon, Lat: e.Lat}, nil
	}
	return transit.Coordinates{}, fmt.Errorf("%w: no flat entry for %s within %s", transit.ErrNoResult, body.Name, f.maxDistance)
}
