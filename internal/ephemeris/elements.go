package ephemeris

import (
	"fmt"
	"math"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/soniakeys/meeus/v3/elliptic"
	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/unit"

	"github.com/i474232898/transit-feed/internal/coords"
)

// gaussK is the Gaussian gravitational constant in degrees per day.
const gaussK = 0.9856076686

// OrbitalElements are heliocentric osculating elements referred to the
// J2000 ecliptic and equinox. Either PerihelionJD or Epoch with
// MeanAnomaly must be set.
type OrbitalElements struct {
	Number       int     `toml:"number"`
	Name         string  `toml:"name"`
	Axis         float64 `toml:"a"`
	Ecc          float64 `toml:"e"`
	Inc          float64 `toml:"i"`
	Node         float64 `toml:"node"`
	ArgPeri      float64 `toml:"peri"`
	Epoch        float64 `toml:"epoch"`
	MeanAnomaly  float64 `toml:"m"`
	PerihelionJD float64 `toml:"tp"`
}

type elementsFile struct {
	Body []OrbitalElements `toml:"body"`
}

func (o OrbitalElements) perihelionTime() float64 {
	if o.PerihelionJD != 0 {
		return o.PerihelionJD
	}
	n := gaussK / math.Pow(o.Axis, 1.5)
	return o.Epoch - o.MeanAnomaly/n
}

func (o OrbitalElements) validate() error {
	if o.Number <= 0 {
		return fmt.Errorf("body %q: number must be positive", o.Name)
	}
	if o.Axis <= 0 || o.Ecc < 0 || o.Ecc >= 1 {
		return fmt.Errorf("body %q: elliptic orbit required (a=%v e=%v)", o.Name, o.Axis, o.Ecc)
	}
	if o.PerihelionJD == 0 && o.Epoch == 0 {
		return fmt.Errorf("body %q: either tp or epoch and m are required", o.Name)
	}
	return nil
}

// LoadElements reads a TOML orbital-elements file and replaces the set of
// minor planets the calculator knows. An empty path clears the set.
func (c *Calculator) LoadElements(path string) error {
	set := make(map[int]OrbitalElements)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading elements file: %w", err)
		}
		var f elementsFile
		if err := toml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parsing elements file %s: %w", path, err)
		}
		for _, b := range f.Body {
			if err := b.validate(); err != nil {
				return fmt.Errorf("elements file %s: %w", path, err)
			}
			set[MinorPlanet(b.Number)] = b
		}
	}

	c.elemMu.Lock()
	c.elements = set
	c.elemMu.Unlock()
	return nil
}

// KnownMinorPlanets returns how many minor planets have elements loaded.
func (c *Calculator) KnownMinorPlanets() int {
	c.elemMu.RLock()
	defer c.elemMu.RUnlock()
	return len(c.elements)
}

func (c *Calculator) minorPlanet(jde float64, code int) (Result, error) {
	c.elemMu.RLock()
	o, ok := c.elements[code]
	c.elemMu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %d has no orbital elements", ErrUnknownCode, code)
	}

	earth, err := c.planet(pp.Earth)
	if err != nil {
		return Result{}, err
	}

	k := &elliptic.Elements{
		Axis:  o.Axis,
		Ecc:   o.Ecc,
		Inc:   unit.AngleFromDeg(o.Inc),
		ArgP:  unit.AngleFromDeg(o.ArgPeri),
		Node:  unit.AngleFromDeg(o.Node),
		TimeP: o.perihelionTime(),
	}
	α, δ, _ := k.Position(jde, earth)
	lon, lat := coords.ToEclipticWith(α.Deg(), δ.Deg(), coords.J2000Obliquity)
	return Result{Lon: coords.PrecessLongitude(lon, jde), Lat: lat}, nil
}
