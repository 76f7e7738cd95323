package transit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/transit-feed/internal/angles"
	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/parts"
)

var (
	// ErrNoBodies is returned when a service is built without bodies.
	ErrNoBodies = errors.New("no bodies configured")
	// ErrUnknownBody is returned for lookups of unconfigured bodies.
	ErrUnknownBody = errors.New("unknown body")
)

// AngleComputer computes the angles of a site.
type AngleComputer interface {
	ComputeAngles(site geo.Site, t time.Time, system byte) (angles.AngleSet, error)
}

// FormulaSource supplies the current symbolic point definitions.
type FormulaSource interface {
	Current() *parts.FormulaSet
}

// Options configures a Service.
type Options struct {
	Bodies      []Body
	HouseSystem byte
	Harmonics   []int
	Workers     int
	Charts      []NatalChart
	Metrics     Recorder
}

// Service assembles feeds from resolved positions, angles and points.
type Service struct {
	resolver *Resolver
	angles   AngleComputer
	formulas FormulaSource
	store    Store
	metrics  Recorder

	bodies    []Body
	system    byte
	harmonics []int
	workers   int
	charts    []NatalChart

	sunAltitude func(geo.Site, time.Time) float64

	overlayMu sync.Mutex
	overlays  map[string]ChartOverlay
}

// NewService creates a new Service. store may be nil for one-shot runs.
func NewService(resolver *Resolver, ac AngleComputer, formulas FormulaSource, store Store, opts Options) (*Service, error) {
	if len(opts.Bodies) == 0 {
		return nil, ErrNoBodies
	}
	if opts.HouseSystem == 0 {
		opts.HouseSystem = ephemeris.Placidus
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	return &Service{
		resolver:    resolver,
		angles:      ac,
		formulas:    formulas,
		store:       store,
		metrics:     opts.Metrics,
		bodies:      opts.Bodies,
		system:      opts.HouseSystem,
		harmonics:   opts.Harmonics,
		workers:     opts.Workers,
		charts:      opts.Charts,
		sunAltitude: angles.SunAltitude,
		overlays:    make(map[string]ChartOverlay),
	}, nil
}

// Bodies returns the configured bodies.
func (s *Service) Bodies() []Body { return s.bodies }

// ResolveAll resolves every configured body at t on a bounded pool of
// workers. Results keep configuration order; one body's failure never
// affects another.
func (s *Service) ResolveAll(ctx context.Context, t time.Time) []Position {
	out := make([]Position, len(s.bodies))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, b := range s.bodies {
		g.Go(func() error {
			out[i] = s.resolver.Resolve(ctx, b, t)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ResolveBody resolves a single configured body by name or id.
func (s *Service) ResolveBody(ctx context.Context, name string, t time.Time) (Position, error) {
	for _, b := range s.bodies {
		if strings.EqualFold(b.Name, name) || b.ID() == strings.ToLower(name) {
			return s.resolver.Resolve(ctx, b, t), nil
		}
	}
	return Position{}, fmt.Errorf("%w: %s", ErrUnknownBody, name)
}

// Build assembles the feed for site at t. It always returns a feed;
// failures are recorded in the feed itself.
func (s *Service) Build(ctx context.Context, site geo.Site, t time.Time) Feed {
	f := s.snapshot(ctx, site, t)
	f.Overlays = s.Overlays(ctx)
	return f
}

func (s *Service) snapshot(ctx context.Context, site geo.Site, t time.Time) Feed {
	start := time.Now()
	t = t.UTC()

	f := Feed{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Epoch:       t,
		JulianDay:   coords.JulianDay(t),
		Observer:    observerFor(site),
		SourceOrder: s.resolver.SourceOrder(),
		Summary:     make(map[Provenance]int),
	}

	positions := s.ResolveAll(ctx, t)
	longitudes := make(map[string]*float64, len(positions))
	names := make([]string, 0, len(positions)+2)
	for _, p := range positions {
		f.Objects = append(f.Objects, NewBodyEntry(p))
		f.Summary[p.Provenance]++
		names = append(names, p.Body.Name)
		if p.usable() {
			longitudes[p.Body.Name] = p.Longitude
		} else {
			longitudes[p.Body.Name] = nil
		}
	}

	var set *angles.AngleSet
	f.Angles, set = s.angleBlock(site, t)

	f.Points = s.evaluate(longitudes, set, f.Angles.Branch)
	if fs := s.formulas.Current(); fs != nil {
		f.FormulaSet = fs.Name
	}

	if len(s.harmonics) > 0 {
		if set != nil {
			longitudes["ASC"] = &set.Ascendant
			longitudes["MC"] = &set.Midheaven
		}
		f.Harmonics = parts.Harmonics(append(names, "ASC", "MC"), longitudes, s.harmonics)
	}

	status := "ok"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	s.metrics.ObserveFeed(status, time.Since(start))
	log.Printf("INFO: feed %s for %s at %s: %d bodies (%s), %d points", f.ID, site.Key(),
		t.Format(time.RFC3339), len(f.Objects), summarize(f.Summary), len(f.Points))
	return f
}

func (s *Service) angleBlock(site geo.Site, t time.Time) (AngleBlock, *angles.AngleSet) {
	alt := s.sunAltitude(site, t)
	block := AngleBlock{
		Branch:      angles.BranchFor(alt),
		SunAltitude: alt,
		Provenance:  SourceLocalFile,
	}
	set, err := s.angles.ComputeAngles(site, t, s.system)
	if err != nil {
		log.Printf("ERROR: angles for %s at %s: %v", site.Key(), t.Format(time.RFC3339), err)
		block.Provenance = ProvenanceMissing
		block.Error = err.Error()
		return block, nil
	}
	block.Values = &set
	return block, &set
}

func (s *Service) evaluate(longitudes map[string]*float64, set *angles.AngleSet, branch angles.Branch) []parts.Result {
	fs := s.formulas.Current()
	if fs == nil {
		return nil
	}
	results := parts.Evaluate(fs.Parts, longitudes, set, branch)
	for _, r := range results {
		s.metrics.ObservePoint(r.Available())
		if !r.Available() {
			log.Printf("WARN: point %s unavailable: %s", r.Name, r.Error)
		}
	}
	return results
}

// BuildRange produces snapshots every step from from for days days.
func (s *Service) BuildRange(ctx context.Context, site geo.Site, from time.Time, days int, step time.Duration) (RangeFeed, error) {
	if days <= 0 {
		return RangeFeed{}, fmt.Errorf("days must be greater than zero")
	}
	if step <= 0 {
		step = 24 * time.Hour
	}

	from = from.UTC()
	to := from.Add(time.Duration(days) * 24 * time.Hour)
	rf := RangeFeed{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Observer:    observerFor(site),
		From:        from,
		To:          to,
		Step:        step.String(),
	}
	for t := from; t.Before(to); t = t.Add(step) {
		if err := ctx.Err(); err != nil {
			return rf, err
		}
		rf.Snapshots = append(rf.Snapshots, s.snapshot(ctx, site, t))
	}
	rf.Overlays = s.Overlays(ctx)
	return rf, nil
}

// BuildAndStore builds the current feed for site and saves it.
func (s *Service) BuildAndStore(ctx context.Context, site geo.Site) error {
	if s.store == nil {
		return errors.New("no feed store configured")
	}
	f := s.Build(ctx, site, time.Now())
	if err := ctx.Err(); err != nil {
		// A cancelled run may have skipped bodies; keep the last good feed.
		return err
	}
	s.store.SaveFeed(site, f)
	return nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(site geo.Site) (Feed, error) {
	if s.store == nil {
		return Feed{}, errors.New("no feed store configured")
	}
	return s.store.GetLatest(site)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(site geo.Site, from, to time.Time) ([]Feed, error) {
	if s.store == nil {
		return nil, errors.New("no feed store configured")
	}
	return s.store.GetRange(site, from, to)
}

// Overlays returns the natal overlays. They do not depend on the feed
// time and are computed once per chart.
func (s *Service) Overlays(ctx context.Context) []ChartOverlay {
	if len(s.charts) == 0 {
		return nil
	}
	out := make([]ChartOverlay, 0, len(s.charts))
	for _, c := range s.charts {
		out = append(out, s.overlay(ctx, c))
	}
	return out
}

// ResetOverlays drops cached overlays, e.g. after the formula set changed.
func (s *Service) ResetOverlays() {
	s.overlayMu.Lock()
	s.overlays = make(map[string]ChartOverlay)
	s.overlayMu.Unlock()
}

func (s *Service) overlay(ctx context.Context, c NatalChart) ChartOverlay {
	s.overlayMu.Lock()
	cached, ok := s.overlays[c.Name]
	s.overlayMu.Unlock()
	if ok {
		return cached
	}

	o := ChartOverlay{Name: c.Name, Birth: c.Birth.UTC(), Site: c.Site()}
	longitudes := make(map[string]*float64)
	if len(c.Positions) > 0 {
		o.Positions = natalPrecomputed
		for name, v := range c.Positions {
			lon := coords.Normalize(v)
			longitudes[name] = &lon
		}
	} else {
		o.Positions = natalResolved
		for _, p := range s.ResolveAll(ctx, c.Birth) {
			if p.usable() {
				longitudes[p.Body.Name] = p.Longitude
			} else {
				longitudes[p.Body.Name] = nil
			}
		}
	}

	var set *angles.AngleSet
	o.Angles, set = s.angleBlock(c.Site(), c.Birth)
	o.Points = s.evaluate(longitudes, set, o.Angles.Branch)

	if ctx.Err() == nil {
		s.overlayMu.Lock()
		s.overlays[c.Name] = o
		s.overlayMu.Unlock()
	}
	return o
}

func observerFor(site geo.Site) Observer {
	desc := site.Name
	if desc == "" {
		desc = site.Key()
	}
	return Observer{
		Description: fmt.Sprintf("%s (%.4f, %.4f)", desc, site.Latitude, site.Longitude),
		Frame:       "geocentric ecliptic of date; angles topocentric",
		Site:        site,
	}
}

func summarize(m map[Provenance]int) string {
	out := make([]string, 0, len(m))
	for p, n := range m {
		out = append(out, fmt.Sprintf("%s=%d", p, n))
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}
