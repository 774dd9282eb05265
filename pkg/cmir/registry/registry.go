// Package registry resolves candidate substrings of entity strings to
// entity types (composer, work, conductor, performer, ensemble, label).
package registry

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Entity types known to the parser. Registry rows may carry other types;
// the tokenizer emits whatever type string the registry returns.
const (
	TypeComposer  = "composer"
	TypeWork      = "work"
	TypeConductor = "conductor"
	TypePerformer = "performer"
	TypeEnsemble  = "ensemble"
	TypeLabel     = "label"
)

// Classification is the registry's answer for one candidate.
type Classification struct {
	Type     string
	Strength int
}

// Classifier classifies a candidate substring. ok is false when no
// registry row matches.
type Classifier interface {
	Classify(candidate string) (c Classification, ok bool)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(candidate string) (Classification, bool)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(candidate string) (Classification, bool) {
	return f(candidate)
}

// Key normalizes a candidate for lookup: surrounding space trimmed, NFC.
func Key(candidate string) string {
	return norm.NFC.String(strings.TrimSpace(candidate))
}

// Registry is an in-memory Classifier. Safe for concurrent readers with
// occasional writers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]Classification
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string][]Classification)}
}

// Add records ref as an entity of the given type. Re-adding the same
// (ref, type) pair keeps the higher strength.
func (r *Registry) Add(ref, entType string, strength int) {
	key := Key(ref)
	if key == "" || entType == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.entries[key]
	for i := range rows {
		if rows[i].Type == entType {
			if strength > rows[i].Strength {
				rows[i].Strength = strength
			}
			sortRows(rows)
			return
		}
	}
	rows = append(rows, Classification{Type: entType, Strength: strength})
	sortRows(rows)
	r.entries[key] = rows
}

// Classify returns the highest-strength row for candidate.
func (r *Registry) Classify(candidate string) (Classification, bool) {
	key := Key(candidate)
	if key == "" {
		return Classification{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.entries[key]
	if len(rows) == 0 {
		return Classification{}, false
	}
	return rows[0], true
}

// Len returns the number of distinct refs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// strongest first; equal strengths fall back to type name so results are stable
func sortRows(rows []Classification) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Strength != rows[j].Strength {
			return rows[i].Strength > rows[j].Strength
		}
		return rows[i].Type < rows[j].Type
	})
}
