package transit

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"
)

// Resolver resolves bodies through ordered source chains.
type Resolver struct {
	sources       map[string]Source
	chains        map[Category][]string
	forceFallback map[Category]bool
	placeholder   Source
	metrics       Recorder
}

// ResolverOptions configures a Resolver. Nil maps fall back to
// DefaultChains and no forced fallback.
type ResolverOptions struct {
	Chains        map[Category][]string
	ForceFallback map[Category]bool
	// Placeholder supplies forced-fallback values; nil means (0°, 0°).
	Placeholder Source
	Metrics     Recorder
}

// NewResolver registers sources by name. Chain overrides must use known
// source labels; a known label without a registered source is skipped at
// resolution time (see ChainFor).
func NewResolver(sources []Source, opts ResolverOptions) (*Resolver, error) {
	r := &Resolver{
		sources:       make(map[string]Source, len(sources)),
		chains:        make(map[Category][]string, len(Categories)),
		forceFallback: opts.ForceFallback,
		placeholder:   opts.Placeholder,
		metrics:       opts.Metrics,
	}
	if r.metrics == nil {
		r.metrics = nopRecorder{}
	}
	if r.forceFallback == nil {
		r.forceFallback = map[Category]bool{}
	}
	for _, s := range sources {
		if _, dup := r.sources[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate source %q", s.Name())
		}
		r.sources[s.Name()] = s
	}

	for _, c := range Categories {
		chain := DefaultChains[c]
		if custom, ok := opts.Chains[c]; ok {
			for _, l := range custom {
				if !IsSourceLabel(l) {
					return nil, fmt.Errorf("chain for %s: unknown source %q", c, l)
				}
			}
			chain = custom
		}
		r.chains[c] = chain
	}
	return r, nil
}

// ChainFor returns the sources a body is resolved through. Labels of
// sources that are not registered (a remote service switched off, say)
// are skipped.
func (r *Resolver) ChainFor(b Body) []Source {
	labels := b.Chain
	if len(labels) == 0 {
		labels = r.chains[b.Category]
	}
	chain := make([]Source, 0, len(labels))
	for _, l := range labels {
		if s, ok := r.sources[l]; ok {
			chain = append(chain, s)
		}
	}
	return chain
}

// SourceOrder reports the configured labels per category.
func (r *Resolver) SourceOrder() map[Category][]string {
	out := make(map[Category][]string, len(r.chains))
	for c, l := range r.chains {
		out[c] = append([]string(nil), l...)
	}
	return out
}

// Resolve resolves b with its configured chain and fallback policy.
func (r *Resolver) Resolve(ctx context.Context, b Body, at time.Time) Position {
	p := r.ResolvePosition(ctx, b, at, r.ChainFor(b), r.forceFallback[b.Category])
	r.metrics.ObserveResolution(b.Category, p.Provenance)
	return p
}

// ResolvePosition tries chain strictly in order and returns the first
// success, tagged with that source's name. Sources after the first
// success are not called. When every source fails the result is a
// placeholder tagged ProvenanceCalculatedFallback if forceFallback is set,
// and ProvenanceMissing with no coordinates otherwise.
func (r *Resolver) ResolvePosition(ctx context.Context, b Body, at time.Time, chain []Source, forceFallback bool) Position {
	var attempts []string
	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name(), err))
			return missing(b, attempts)
		}

		start := time.Now()
		c, err := r.try(ctx, s, b, at)
		r.metrics.ObserveSource(s.Name(), err == nil, time.Since(start))
		if err != nil {
			log.Printf("DEBUG: source %s failed for %s: %v", s.Name(), b.Name, err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		return resolved(b, c, Provenance(s.Name()), attempts)
	}

	if forceFallback && ctx.Err() == nil {
		c := Coordinates{}
		if r.placeholder != nil {
			pc, err := r.try(ctx, r.placeholder, b, at)
			if err == nil {
				c = pc
			}
		}
		log.Printf("WARN: no source resolved %s; using placeholder position", b.Name)
		return resolved(b, c, ProvenanceCalculatedFallback, attempts)
	}
	return missing(b, attempts)
}

// try calls a source and turns a panic or invalid output into an error.
func (r *Resolver) try(ctx context.Context, s Source, b Body, at time.Time) (c Coordinates, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c, err = Coordinates{}, fmt.Errorf("%w: source panicked: %v", ErrNoResult, rec)
		}
	}()

	c, err = s.Resolve(ctx, b, at)
	if err != nil {
		return Coordinates{}, err
	}
	if !finite(c.Lon) || !finite(c.Lat) || c.Lon < 0 || c.Lon >= 360 {
		return Coordinates{}, fmt.Errorf("%w: invalid coordinates (%v, %v)", ErrNoResult, c.Lon, c.Lat)
	}
	return c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
