package ephemeris

// Body codes accepted by Calculator.Position.
const (
	Sun        = 0
	Moon       = 1
	Mercury    = 2
	Venus      = 3
	Mars       = 4
	Jupiter    = 5
	Saturn     = 6
	Uranus     = 7
	Neptune    = 8
	Pluto      = 9
	MeanNode   = 10
	MeanApogee = 12

	Vulcan     = 40
	Persephone = 41
	Hades      = 42
	Proserpina = 43
	Isis       = 44

	// MinorPlanetOffset + n addresses minor planet n in the elements file.
	MinorPlanetOffset = 10000
)

// symbolicRates are daily motions, in degrees, of the hypothetical bodies.
// Their longitude is jd × rate reduced into [0,360) at zero latitude.
var symbolicRates = map[int]float64{
	Vulcan:     0.9856,
	Persephone: 0.083,
	Hades:      0.014,
	Proserpina: 0.004,
	Isis:       0.25,
}

// MinorPlanet returns the code for numbered minor planet n.
func MinorPlanet(n int) int {
	return MinorPlanetOffset + n
}
