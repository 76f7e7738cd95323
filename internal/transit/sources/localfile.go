package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/transit"
)

// LocalFile resolves bodies with the local ephemeris calculator and
// reduces its output to longitude and latitude.
type LocalFile struct {
	calc *ephemeris.Calculator
}

func NewLocalFile(calc *ephemeris.Calculator) *LocalFile {
	return &LocalFile{calc: calc}
}

func (l *LocalFile) Name() string {
	return transit.SourceLocalFile
}

func (l *LocalFile) Resolve(ctx context.Context, body transit.Body, at time.Time) (transit.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return transit.Coordinates{}, err
	}
	if body.LocalCode == nil {
		return transit.Coordinates{}, fmt.Errorf("%w: %s has no local code", transit.ErrNoResult, body.Name)
	}

	res, err := l.calc.Position(coords.JulianDay(at), *body.LocalCode)
	if err != nil {
		return transit.Coordinates{}, fmt.Errorf("%w: %v", transit.ErrNoResult, err)
	}

	c := transit.Coordinates{Lon: coords.Normalize(res.Lon), Lat: res.Lat}
	if res.Dist > 0 {
		d := res.Dist
		c.Aux = &transit.Auxiliary{Delta: &d}
	}
	return c, nil
}
