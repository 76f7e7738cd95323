package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/transit"
)

// FixedStar converts catalogue J2000 positions to ecliptic coordinates of
// date. Proper motion is ignored.
type FixedStar struct{}

func (FixedStar) Name() string {
	return transit.SourceFixedStar
}

func (FixedStar) Resolve(_ context.Context, body transit.Body, at time.Time) (transit.Coordinates, error) {
	if body.Equatorial == nil {
		return transit.Coordinates{}, fmt.Errorf("%w: %s has no catalogue position", transit.ErrNoResult, body.Name)
	}
	ra, dec := body.Equatorial.RA, body.Equatorial.Dec
	lon, lat := coords.FromJ2000(ra, dec, at)
	return transit.Coordinates{
		Lon: lon,
		Lat: lat,
		Aux: &transit.Auxiliary{RA: &ra, Dec: &dec},
	}, nil
}
