package sources

import (
	"context"
	"time"

	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/transit"
)

// Placeholder returns the same configured position for every body.
type Placeholder struct {
	lon, lat float64
}

func NewPlaceholder(lon, lat float64) *Placeholder {
	return &Placeholder{lon: coords.Normalize(lon), lat: lat}
}

func (p *Placeholder) Name() string {
	return transit.SourcePlaceholder
}

func (p *Placeholder) Resolve(context.Context, transit.Body, time.Time) (transit.Coordinates, error) {
	return transit.Coordinates{Lon: p.lon, Lat: p.lat}, nil
}
