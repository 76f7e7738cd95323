// Package ephemeris is the local ephemeris-file calculator. Major planets
// come from VSOP87B files, minor planets from an orbital-elements file, and
// the Moon, lunar points and hypothetical bodies from closed-form series.
package ephemeris

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/soniakeys/meeus/v3/elliptic"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/pluto"
	"github.com/soniakeys/meeus/v3/solar"

	"github.com/i474232898/transit-feed/internal/coords"
)

const kmPerAU = 149597870.7

var (
	// ErrUnknownCode is returned for body codes the calculator has no model for.
	ErrUnknownCode = errors.New("unknown body code")
	// ErrEphemerisFile is returned when the file backing a body cannot be loaded.
	ErrEphemerisFile = errors.New("ephemeris file unavailable")
)

// Result is a geocentric ecliptic position of date. Dist is in AU and is zero
// when the model does not provide it.
type Result struct {
	Lon  float64
	Lat  float64
	Dist float64
}

// Calculator computes positions from local files. It is safe for concurrent use.
type Calculator struct {
	dir string

	mu      sync.Mutex
	planets map[int]*pp.V87Planet
	failed  map[int]error

	elemMu   sync.RWMutex
	elements map[int]OrbitalElements
}

// New returns a Calculator reading VSOP87B files from dir. Files are loaded
// lazily on first use.
func New(dir string) *Calculator {
	return &Calculator{
		dir:      dir,
		planets:  make(map[int]*pp.V87Planet),
		failed:   make(map[int]error),
		elements: make(map[int]OrbitalElements),
	}
}

// Position returns the position of body code at Julian day jd (UT).
func (c *Calculator) Position(jd float64, code int) (Result, error) {
	jde := jd + coords.DeltaT(julian.JDToTime(jd))/86400
	return c.positionTT(jd, jde, code)
}

func (c *Calculator) positionTT(jd, jde float64, code int) (Result, error) {
	if rate, ok := symbolicRates[code]; ok {
		return Result{Lon: coords.Normalize(jd * rate)}, nil
	}
	if code >= MinorPlanetOffset {
		return c.minorPlanet(jde, code)
	}

	switch code {
	case Sun:
		earth, err := c.planet(pp.Earth)
		if err != nil {
			return Result{}, err
		}
		λ, β, R := solar.ApparentVSOP87(earth, jde)
		return Result{Lon: coords.Normalize(λ.Deg()), Lat: β.Deg(), Dist: R}, nil

	case Moon:
		λ, β, Δ := moonposition.Position(jde)
		lon := coords.Normalize(λ.Deg() + coords.NutationInLongitude(jde))
		return Result{Lon: lon, Lat: β.Deg(), Dist: Δ / kmPerAU}, nil

	case Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune:
		earth, err := c.planet(pp.Earth)
		if err != nil {
			return Result{}, err
		}
		p, err := c.planet(vsopIndex[code])
		if err != nil {
			return Result{}, err
		}
		α, δ := elliptic.Position(p, earth, jde)
		lon, lat := coords.ToEclipticWith(α.Deg(), δ.Deg(), coords.TrueObliquity(jde))
		return Result{Lon: lon, Lat: lat}, nil

	case Pluto:
		earth, err := c.planet(pp.Earth)
		if err != nil {
			return Result{}, err
		}
		α, δ := pluto.Astrometric(jde, earth)
		lon, lat := coords.ToEclipticWith(α.Deg(), δ.Deg(), coords.J2000Obliquity)
		return Result{Lon: coords.PrecessLongitude(lon, jde), Lat: lat}, nil

	case MeanNode:
		return Result{Lon: coords.Normalize(moonposition.Node(jde).Deg())}, nil

	case MeanApogee:
		return Result{Lon: meanApogee(jde)}, nil
	}
	return Result{}, fmt.Errorf("%w: %d", ErrUnknownCode, code)
}

var vsopIndex = map[int]int{
	Mercury: pp.Mercury,
	Venus:   pp.Venus,
	Mars:    pp.Mars,
	Jupiter: pp.Jupiter,
	Saturn:  pp.Saturn,
	Uranus:  pp.Uranus,
	Neptune: pp.Neptune,
}

var vsopFiles = map[int]string{
	pp.Mercury: "VSOP87B.mer",
	pp.Venus:   "VSOP87B.ven",
	pp.Earth:   "VSOP87B.ear",
	pp.Mars:    "VSOP87B.mar",
	pp.Jupiter: "VSOP87B.jup",
	pp.Saturn:  "VSOP87B.sat",
	pp.Uranus:  "VSOP87B.ura",
	pp.Neptune: "VSOP87B.nep",
}

// planet loads a VSOP87 planet once. A failed load is remembered so a
// missing file is not re-read for every body.
func (c *Calculator) planet(ibody int) (*pp.V87Planet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.planets[ibody]; ok {
		return p, nil
	}
	if err, ok := c.failed[ibody]; ok {
		return nil, err
	}
	if c.dir == "" {
		err := fmt.Errorf("%w: no VSOP87 directory configured", ErrEphemerisFile)
		c.failed[ibody] = err
		return nil, err
	}

	p, err := pp.LoadPlanetPath(ibody, c.dir)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrEphemerisFile, filepath.Join(c.dir, vsopFiles[ibody]), err)
		c.failed[ibody] = err
		return nil, err
	}
	c.planets[ibody] = p
	return p, nil
}

// meanApogee is the mean lunar apogee ("Black Moon Lilith"), the mean
// perigee longitude plus 180°.
func meanApogee(jde float64) float64 {
	return coords.Normalize(moonposition.Perigee(jde).Deg() + 180)
}
