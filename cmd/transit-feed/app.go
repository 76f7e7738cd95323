package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/i474232898/transit-feed/internal/angles"
	"github.com/i474232898/transit-feed/internal/config"
	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/observability"
	"github.com/i474232898/transit-feed/internal/parts"
	"github.com/i474232898/transit-feed/internal/store"
	"github.com/i474232898/transit-feed/internal/transit"
	"github.com/i474232898/transit-feed/internal/transit/sources"
)

// application holds the wired pipeline.
type application struct {
	cfg      *config.AppConfig
	service  *transit.Service
	store    *store.MemoryStore
	sites    []geo.Site
	flat     *sources.FlatFile
	formulas *parts.Library
	metrics  *observability.Metrics
	calc     *ephemeris.Calculator
}

func newApplication(cfg *config.AppConfig) (*application, error) {
	a := &application{cfg: cfg, metrics: observability.NewMetrics("")}

	a.calc = ephemeris.New(cfg.Ephemeris.VSOP87Dir)
	if cfg.Ephemeris.ElementsFile != "" {
		if err := a.calc.LoadElements(cfg.Ephemeris.ElementsFile); err != nil {
			return nil, err
		}
		log.Printf("INFO: loaded orbital elements for %d minor planets", a.calc.KnownMinorPlanets())
	}

	placeholder := sources.NewPlaceholder(cfg.Placeholder.Longitude, cfg.Placeholder.Latitude)
	srcs := []transit.Source{
		sources.NewLocalFile(a.calc),
		sources.FixedStar{},
		placeholder,
	}
	if cfg.Remote.Disabled {
		log.Printf("INFO: remote sources disabled")
	} else {
		httpCfg := cfg.HTTPClientConfig()
		srcs = append(srcs,
			sources.NewHorizons(cfg.Remote.HorizonsURL, httpCfg),
			sources.NewMiriade(cfg.Remote.MiriadeURL, httpCfg),
		)
	}
	if len(cfg.Fallback.Files) > 0 {
		flat, err := sources.NewFlatFile(cfg.Fallback.Files, cfg.Fallback.MaxDistance)
		if err != nil {
			return nil, err
		}
		a.flat = flat
		srcs = append(srcs, flat)
	}

	opts := cfg.ResolverOptions()
	opts.Placeholder = placeholder
	opts.Metrics = a.metrics
	resolver, err := transit.NewResolver(srcs, opts)
	if err != nil {
		return nil, err
	}

	a.formulas, err = parts.NewLibrary(cfg.Parts.Set)
	if err != nil {
		return nil, err
	}

	bodies, err := cfg.TransitBodies()
	if err != nil {
		return nil, err
	}

	var g geo.Geocoder
	if cfg.GeocoderAPIKey != "" {
		g = geo.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}
	a.sites, err = cfg.ResolveSites(g)
	if err != nil {
		return nil, err
	}

	charts, err := cfg.LoadCharts()
	if err != nil {
		return nil, err
	}

	a.store = store.NewMemoryStore(cfg.Store.MaxHistory, cfg.Store.MaxAge)
	a.service, err = transit.NewService(resolver, angles.NewCalculator(true), a.formulas, a.store, transit.Options{
		Bodies:      bodies,
		HouseSystem: cfg.HouseSystem(),
		Harmonics:   cfg.Parts.Harmonics,
		Workers:     cfg.Workers,
		Charts:      charts,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: %d bodies, %d sites, %d natal charts, formula set %s, houses %s",
		len(bodies), len(a.sites), len(charts), a.formulas.Current().Name, ephemeris.HouseSystemName(cfg.HouseSystem()))
	return a, nil
}

// site returns the named configured site, or the first one when name is empty.
func (a *application) site(name string) (geo.Site, error) {
	if len(a.sites) == 0 {
		return geo.Site{}, fmt.Errorf("no observer sites configured")
	}
	if name == "" {
		return a.sites[0], nil
	}
	for _, s := range a.sites {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return geo.Site{}, fmt.Errorf("unknown site %q", name)
}
