package ephemeris

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"

	"github.com/i474232898/transit-feed/internal/coords"
)

// House system designators.
const (
	Placidus      byte = 'P'
	Regiomontanus byte = 'R'
	Porphyry      byte = 'O'
	Equal         byte = 'E'
	WholeSign     byte = 'W'
)

var (
	// ErrHouseUnavailable wraps every failure of the house routine.
	ErrHouseUnavailable = errors.New("house computation unavailable")
	// ErrPolarCircle is returned by semi-arc systems inside the polar circles.
	ErrPolarCircle = errors.New("observer inside polar circle")
	// ErrUnsupportedHouseSystem is returned for unknown designators.
	ErrUnsupportedHouseSystem = errors.New("unsupported house system")
	// ErrInvalidLatitude is returned for |latitude| >= 90°.
	ErrInvalidLatitude = errors.New("invalid geographic latitude")
)

// IsHouseSystem reports whether system is a supported designator.
func IsHouseSystem(system byte) bool {
	switch system {
	case Placidus, Regiomontanus, Porphyry, Equal, WholeSign:
		return true
	}
	return false
}

// HouseSystemName returns a display name for a designator.
func HouseSystemName(system byte) string {
	switch system {
	case Placidus:
		return "Placidus"
	case Regiomontanus:
		return "Regiomontanus"
	case Porphyry:
		return "Porphyry"
	case Equal:
		return "Equal"
	case WholeSign:
		return "Whole Sign"
	}
	return fmt.Sprintf("unknown(%c)", system)
}

// Houses is the output of the house routine. Cusps[0] is the first house.
type Houses struct {
	Cusps     [12]float64
	Ascendant float64
	Midheaven float64
	ARMC      float64
}

// HouseCusps computes cusps and angles at Julian day jd (UT) for a site at
// geographic latitude lat and east longitude lon, in degrees.
func HouseCusps(jd, lat, lon float64, system byte) (Houses, error) {
	if math.IsNaN(lat) || math.Abs(lat) >= 90 {
		return Houses{}, fmt.Errorf("%w: %w: %v", ErrHouseUnavailable, ErrInvalidLatitude, lat)
	}

	jde := jd + coords.DeltaT(julian.JDToTime(jd))/86400
	ε := coords.TrueObliquity(jde)
	// Apparent sidereal time is in seconds of time; 240 s per degree.
	armc := coords.Normalize(float64(sidereal.Apparent(jd))/240 + lon)

	h := Houses{
		ARMC:      armc,
		Midheaven: cuspLongitude(armc, 0, ε),
		Ascendant: cuspLongitude(armc+90, lat, ε),
	}

	var err error
	switch system {
	case Placidus:
		err = placidus(&h, lat, ε)
	case Regiomontanus:
		regiomontanus(&h, lat, ε)
	case Porphyry:
		porphyry(&h)
	case Equal:
		for i := range h.Cusps {
			h.Cusps[i] = coords.Normalize(h.Ascendant + float64(30*i))
		}
	case WholeSign:
		start := math.Floor(h.Ascendant/30) * 30
		for i := range h.Cusps {
			h.Cusps[i] = coords.Normalize(start + float64(30*i))
		}
	default:
		return Houses{}, fmt.Errorf("%w: %w: %q", ErrHouseUnavailable, ErrUnsupportedHouseSystem, system)
	}
	if err != nil {
		return Houses{}, fmt.Errorf("%w: %w", ErrHouseUnavailable, err)
	}
	return h, nil
}

// cuspLongitude is the ecliptic longitude crossing the great circle through
// the north and south points with right ascension r and pole height pole.
// With r = ARMC it is the Midheaven, with r = ARMC+90 and pole = latitude
// the Ascendant.
func cuspLongitude(r, pole, ε float64) float64 {
	sr, cr := math.Sincos(deg2rad(r))
	sε, cε := math.Sincos(deg2rad(ε))
	return coords.Normalize(rad2deg(math.Atan2(sr, cr*cε-math.Tan(deg2rad(pole))*sε)))
}

// fillQuadrant sets cusps 1, 10 from the angles and the six cusps opposite
// the given 11, 12, 2, 3.
func fillQuadrant(h *Houses, c11, c12, c2, c3 float64) {
	h.Cusps[0] = h.Ascendant
	h.Cusps[9] = h.Midheaven
	h.Cusps[10] = c11
	h.Cusps[11] = c12
	h.Cusps[1] = c2
	h.Cusps[2] = c3
	for i := 3; i < 9; i++ {
		h.Cusps[i] = coords.Normalize(h.Cusps[(i+6)%12] + 180)
	}
}

func porphyry(h *Houses) {
	upper := coords.Normalize(h.Ascendant - h.Midheaven)
	lower := 180 - upper
	fillQuadrant(h,
		coords.Normalize(h.Midheaven+upper/3),
		coords.Normalize(h.Midheaven+2*upper/3),
		coords.Normalize(h.Ascendant+lower/3),
		coords.Normalize(h.Ascendant+2*lower/3),
	)
}

func regiomontanus(h *Houses, lat, ε float64) {
	cusp := func(offset float64) float64 {
		pole := rad2deg(math.Atan(math.Tan(deg2rad(lat)) * math.Sin(deg2rad(offset))))
		return cuspLongitude(h.ARMC+offset, pole, ε)
	}
	fillQuadrant(h, cusp(30), cusp(60), cusp(120), cusp(150))
}

// placidus trisects each point's own diurnal and nocturnal semi-arcs.
func placidus(h *Houses, lat, ε float64) error {
	if math.Abs(lat) >= 90-ε {
		return fmt.Errorf("%w: latitude %.4f", ErrPolarCircle, lat)
	}
	tanφ := math.Tan(deg2rad(lat))
	tanε := math.Tan(deg2rad(ε))
	cε := math.Cos(deg2rad(ε))

	// offset maps a point's diurnal semi-arc to its right ascension
	// distance east of the meridian.
	cusp := func(offset func(dsa float64) float64) (float64, error) {
		α := h.ARMC + offset(90)
		for i := 0; i < 100; i++ {
			δ := math.Atan(tanε * math.Sin(deg2rad(α)))
			x := -tanφ * math.Tan(δ)
			if x < -1 || x > 1 {
				return 0, ErrPolarCircle
			}
			next := h.ARMC + offset(rad2deg(math.Acos(x)))
			if math.Abs(next-α) < 1e-9 {
				α = next
				break
			}
			α = next
		}
		sα, cα := math.Sincos(deg2rad(α))
		return coords.Normalize(rad2deg(math.Atan2(sα, cα*cε))), nil
	}

	offsets := []func(float64) float64{
		func(dsa float64) float64 { return dsa / 3 },
		func(dsa float64) float64 { return 2 * dsa / 3 },
		func(dsa float64) float64 { return dsa + (180-dsa)/3 },
		func(dsa float64) float64 { return dsa + 2*(180-dsa)/3 },
	}
	var c [4]float64
	for i, off := range offsets {
		v, err := cusp(off)
		if err != nil {
			return err
		}
		c[i] = v
	}
	fillQuadrant(h, c[0], c[1], c[2], c[3])
	return nil
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
