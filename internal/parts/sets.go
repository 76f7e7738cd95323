package parts

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed sets/*.toml
var builtinSets embed.FS

// DefaultSet is used when no formula set is configured.
const DefaultSet = "hellenistic"

// ErrUnknownSet is returned for a set name that is neither builtin nor a file.
var ErrUnknownSet = errors.New("unknown formula set")

// Definition is one symbolic point. Night falls back to Day when empty.
type Definition struct {
	Name  string `toml:"name"`
	Day   string `toml:"day"`
	Night string `toml:"night"`
}

// FormulaSet is a named, ordered list of definitions. A definition may
// refer to points defined before it.
type FormulaSet struct {
	Name        string       `toml:"name"`
	Description string       `toml:"description"`
	Parts       []Definition `toml:"part"`
}

// BuiltinSets lists the embedded set names.
func BuiltinSets() []string {
	entries, err := builtinSets.ReadDir("sets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Strings(names)
	return names
}

// LoadSet returns a builtin set by name, or reads a TOML file when ref
// names a path.
func LoadSet(ref string) (*FormulaSet, error) {
	if ref == "" {
		ref = DefaultSet
	}
	if data, err := builtinSets.ReadFile(path.Join("sets", ref+".toml")); err == nil {
		return ParseSet(data)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (builtin: %s)", ErrUnknownSet, ref, strings.Join(BuiltinSets(), ", "))
		}
		return nil, fmt.Errorf("reading formula set: %w", err)
	}
	set, err := ParseSet(data)
	if err != nil {
		return nil, fmt.Errorf("formula set %s: %w", ref, err)
	}
	return set, nil
}

// ParseSet decodes a TOML formula set. Formulas are not compiled here; a
// bad formula only makes its own point unavailable.
func ParseSet(data []byte) (*FormulaSet, error) {
	var set FormulaSet
	if err := toml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing formula set: %w", err)
	}
	seen := make(map[string]bool, len(set.Parts))
	for i, d := range set.Parts {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("part %d has no name", i+1)
		}
		key := normalizeName(d.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate part %q", d.Name)
		}
		seen[key] = true
	}
	return &set, nil
}
