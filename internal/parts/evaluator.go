// Package parts evaluates symbolic points ("Arabic Parts") and harmonics
// over resolved longitudes.
package parts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/transit-feed/internal/angles"
	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/formula"
)

// Result is the outcome of one point. Longitude is nil when unavailable,
// in which case Error carries the diagnostic.
type Result struct {
	Name      string        `json:"name"`
	Longitude *float64      `json:"longitude"`
	Branch    angles.Branch `json:"branch"`
	Formula   string        `json:"formula"`
	Error     string        `json:"error,omitempty"`

	// Misconfigured is set when the formula itself is at fault, as
	// opposed to a dependency having no data.
	Misconfigured bool `json:"-"`
}

// Available reports whether the point has a value.
func (r Result) Available() bool { return r.Longitude != nil }

var angleAliases = map[string]string{
	"asc":        "ASC",
	"ascendant":  "ASC",
	"mc":         "MC",
	"midheaven":  "MC",
	"dsc":        "DSC",
	"desc":       "DSC",
	"descendant": "DSC",
	"ic":         "IC",
	"imumcoeli":  "IC",
}

func normalizeName(s string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Evaluate computes each definition in order for the given branch.
//
// longitudes maps body names to resolved longitudes; a nil value marks a
// known body with no data. set may be nil when the angles could not be
// computed. Names are matched without regard to case, spaces, hyphens or
// underscores. No failure escapes: each point carries its own error.
func Evaluate(defs []Definition, longitudes map[string]*float64, set *angles.AngleSet, branch angles.Branch) []Result {
	env := make(map[string]*float64, len(longitudes)+len(defs))
	for name, v := range longitudes {
		env[normalizeName(name)] = v
	}

	results := make([]Result, 0, len(defs))
	for _, d := range defs {
		src := d.Day
		if branch == angles.Night && strings.TrimSpace(d.Night) != "" {
			src = d.Night
		}

		r := Result{Name: d.Name, Branch: branch, Formula: src}
		v, err := evaluateOne(src, env, set)
		if err != nil {
			r.Error = err.Error()
			r.Misconfigured = !errors.Is(err, formula.ErrUnavailable)
		} else {
			lon := coords.Normalize(v)
			r.Longitude = &lon
		}
		// Later definitions may refer to this point; an unavailable
		// point is bound to nil so dependents report it as unavailable.
		env[normalizeName(d.Name)] = r.Longitude
		results = append(results, r)
	}
	return results
}

func evaluateOne(src string, env map[string]*float64, set *angles.AngleSet) (float64, error) {
	expr, err := formula.Compile(src)
	if err != nil {
		return 0, fmt.Errorf("invalid formula %q: %w", src, err)
	}
	var unknown []string
	for _, ref := range expr.References() {
		key := normalizeName(ref)
		if _, ok := angleAliases[key]; ok {
			continue
		}
		if _, ok := env[key]; !ok {
			unknown = append(unknown, ref)
		}
	}
	if len(unknown) > 0 {
		return 0, fmt.Errorf("%w: %s", formula.ErrUnknownName, strings.Join(unknown, ", "))
	}
	return expr.Eval(func(name string) (float64, error) {
		key := normalizeName(name)
		if angle, ok := angleAliases[key]; ok {
			if set == nil {
				return 0, fmt.Errorf("%w: %s (angles not computed)", formula.ErrUnavailable, name)
			}
			v, _ := set.Lookup(angle)
			return v, nil
		}
		v, ok := env[key]
		if !ok {
			return 0, fmt.Errorf("%w: %s", formula.ErrUnknownName, name)
		}
		if v == nil {
			return 0, fmt.Errorf("%w: %s", formula.ErrUnavailable, name)
		}
		return *v, nil
	})
}

// ToMap indexes results by name.
func ToMap(results []Result) map[string]*float64 {
	m := make(map[string]*float64, len(results))
	for _, r := range results {
		m[r.Name] = r.Longitude
	}
	return m
}
