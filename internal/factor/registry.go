// Package factor implements the factor runtime: a registry of factor
// definitions and a runner that evaluates them over rolling windows into
// dated cross-sectional panels.
package factor

import (
	"errors"
	"fmt"
	"sort"

	"factorlab/internal/domain"
)

// Registry errors.
var (
	ErrDuplicateFactor = errors.New("factor already registered")
	ErrNilScoreFunc    = errors.New("factor has no scoring function")
)

// Registry holds the factor definitions for a run. It is populated once
// before evaluation and immutable during it.
type Registry struct {
	defs map[domain.FactorID]domain.FactorDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[domain.FactorID]domain.FactorDefinition)}
}

// Register adds a definition. Validates the definition and rejects duplicate
// IDs; registration problems are configuration errors and fatal before a run.
func (r *Registry) Register(def domain.FactorDefinition) error {
	if def.ID == "" {
		return &domain.ConfigError{Option: "factor.id", Reason: "empty factor id"}
	}
	if def.Lookback <= 0 {
		return &domain.ConfigError{Option: "factor.lookback", Reason: fmt.Sprintf("factor %s: lookback must be > 0", def.ID)}
	}
	if def.Frequency <= 0 {
		def.Frequency = 1
	}
	if def.Score == nil {
		return ErrNilScoreFunc
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFactor, def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// Get retrieves a definition by ID. The second return value indicates
// whether the factor is registered.
func (r *Registry) Get(id domain.FactorID) (domain.FactorDefinition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// List returns all definitions sorted by ID for deterministic iteration.
func (r *Registry) List() []domain.FactorDefinition {
	out := make([]domain.FactorDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered factors.
func (r *Registry) Len() int { return len(r.defs) }
