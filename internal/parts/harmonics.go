package parts

import "github.com/i474232898/transit-feed/internal/coords"

// Harmonic returns the nth harmonic of lon, (lon × n) mod 360.
func Harmonic(lon float64, n int) float64 {
	return coords.Normalize(lon * float64(n))
}

// HarmonicOf is Harmonic over an optional longitude.
func HarmonicOf(lon *float64, n int) *float64 {
	if lon == nil {
		return nil
	}
	v := Harmonic(*lon, n)
	return &v
}

// HarmonicEntry is one harmonic position of a named longitude.
type HarmonicEntry struct {
	Name      string   `json:"name"`
	N         int      `json:"n"`
	Longitude *float64 `json:"longitude"`
}

// Harmonics computes every requested harmonic for each name, in the order
// given. Missing or nil longitudes yield nil entries.
func Harmonics(names []string, longitudes map[string]*float64, ns []int) []HarmonicEntry {
	out := make([]HarmonicEntry, 0, len(names)*len(ns))
	for _, name := range names {
		for _, n := range ns {
			out = append(out, HarmonicEntry{Name: name, N: n, Longitude: HarmonicOf(longitudes[name], n)})
		}
	}
	return out
}
