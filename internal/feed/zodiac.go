package feed

import (
	"fmt"
	"math"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
)

var signs = [12]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// Sign returns the zodiac sign containing lon, which must be in [0,360).
func Sign(lon float64) string {
	i := int(math.Floor(lon / 30))
	if i < 0 || i > 11 {
		return ""
	}
	return signs[i]
}

// Zodiac renders lon as degrees within its sign, e.g. 15°30′0″ Leo.
// A nil longitude renders as the empty string.
func Zodiac(lon *float64) string {
	if lon == nil || math.IsNaN(*lon) {
		return ""
	}
	sign := Sign(*lon)
	if sign == "" {
		return ""
	}
	within := *lon - 30*math.Floor(*lon/30)
	return fmt.Sprintf("%.0d %s", sexa.FmtAngle(unit.AngleFromDeg(within)), sign)
}
