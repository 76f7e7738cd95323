package parts

import (
	"log"
	"sync"
)

// Library holds the active formula set and swaps it on Reload. A failed
// reload keeps the previous set.
type Library struct {
	mu  sync.RWMutex
	ref string
	set *FormulaSet
}

// NewLibrary loads ref and returns a library serving it.
func NewLibrary(ref string) (*Library, error) {
	set, err := LoadSet(ref)
	if err != nil {
		return nil, err
	}
	return &Library{ref: ref, set: set}, nil
}

// Current returns the active set.
func (l *Library) Current() *FormulaSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set
}

// Reload reads the set again.
func (l *Library) Reload() error {
	set, err := LoadSet(l.ref)
	if err != nil {
		log.Printf("WARN: formula set %s not reloaded: %v", l.ref, err)
		return err
	}
	l.mu.Lock()
	l.set = set
	l.mu.Unlock()
	log.Printf("INFO: formula set %s reloaded (%d points)", set.Name, len(set.Parts))
	return nil
}
