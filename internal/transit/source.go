package transit

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/transit-feed/internal/geo"
)

// Source labels. A position's provenance is the label of the source that
// produced it.
const (
	SourceHorizons     = "horizons"
	SourceMiriade      = "miriade"
	SourceLocalFile    = "local-file"
	SourceFlatFallback = "flat-fallback"
	SourceFixedStar    = "fixed-star"
	SourcePlaceholder  = "placeholder"
)

// ErrNoResult is wrapped by sources that cannot produce a position.
var ErrNoResult = errors.New("no result")

// Source is one position provider. Any non-nil error means "no result"
// and the resolver moves on to the next source; the error text is kept
// only for diagnostics.
type Source interface {
	Name() string
	Resolve(ctx context.Context, body Body, at time.Time) (Coordinates, error)
}

// Store persists generated feeds per observer site.
type Store interface {
	SaveFeed(site geo.Site, f Feed)
	GetLatest(site geo.Site) (Feed, error)
	GetRange(site geo.Site, from, to time.Time) ([]Feed, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveSource(source string, ok bool, elapsed time.Duration)
	ObserveResolution(category Category, provenance Provenance)
	ObservePoint(available bool)
	ObserveFeed(status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSource(string, bool, time.Duration) {}
func (nopRecorder) ObserveResolution(Category, Provenance)    {}
func (nopRecorder) ObservePoint(bool)                         {}
func (nopRecorder) ObserveFeed(string, time.Duration)         {}
