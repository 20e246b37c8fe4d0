package pipeline

import (
	"maps"
	"regexp"
	"slices"
	"sync"

	"github.com/pkg/errors"
)

// Factory builds a pipeline from its configuration.
type Factory func(cfg Config) (Pipeline, error)

// Definition describes a registrable pipeline.
type Definition struct {
	// Name is the registry key and the name every built pipeline reports.
	Name        string
	Description string
	// RequiredConfig lists keys Build checks before calling New.
	RequiredConfig []string
	New            Factory
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

func (d Definition) validate() error {
	if d.Name == "" {
		return errors.Wrap(ErrInvalidRegistration, "empty pipeline name")
	}
	if !namePattern.MatchString(d.Name) {
		return errors.Wrapf(ErrInvalidRegistration, "pipeline name %q must match %s", d.Name, namePattern)
	}
	if d.New == nil {
		return errors.Wrapf(ErrInvalidRegistration, "pipeline %q has no factory", d.Name)
	}
	for _, k := range d.RequiredConfig {
		if k == "" {
			return errors.Wrapf(ErrInvalidRegistration, "pipeline %q declares an empty required key", d.Name)
		}
	}
	return nil
}

// Build checks cfg for the required keys and calls the factory with a copy
// of cfg. The built pipeline must report d.Name.
func (d Definition) Build(cfg Config) (Pipeline, error) {
	if missing := cfg.Missing(d.RequiredConfig...); len(missing) > 0 {
		return nil, &ConfigurationError{Pipeline: d.Name, Missing: missing}
	}
	p, err := d.New(cfg.Clone())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.Wrapf(ErrInvalidRegistration, "pipeline %q factory returned nil", d.Name)
	}
	if p.Name() != d.Name {
		return nil, errors.Wrapf(ErrInvalidRegistration, "pipeline %q factory built %q", d.Name, p.Name())
	}
	return p, nil
}

// Registry maps pipeline names to definitions. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def. It fails with ErrInvalidRegistration for a malformed
// definition and with ErrDuplicatePipeline when the name is taken.
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	def.RequiredConfig = slices.Clone(def.RequiredConfig)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[def.Name]; ok {
		return errors.Wrapf(ErrDuplicatePipeline, "pipeline %q", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is Register for start-up lists. It panics on error.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Get returns the definition registered under name. The second result is
// false when the name is unknown.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if ok {
		def.RequiredConfig = slices.Clone(def.RequiredConfig)
	}
	return def, ok
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// All returns a snapshot of the registry. Changing it does not affect r.
func (r *Registry) All() map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Definition, len(r.defs))
	for name, def := range r.defs {
		def.RequiredConfig = slices.Clone(def.RequiredConfig)
		out[name] = def
	}
	return out
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.defs))
}

// Len returns the number of registered pipelines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Clear removes every definition.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.defs)
}

// Replace swaps the whole registry for defs in one step. Readers never see
// a partial set. On error r is left unchanged.
func (r *Registry) Replace(defs ...Definition) error {
	next := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if err := def.validate(); err != nil {
			return err
		}
		if _, ok := next[def.Name]; ok {
			return errors.Wrapf(ErrDuplicatePipeline, "pipeline %q", def.Name)
		}
		def.RequiredConfig = slices.Clone(def.RequiredConfig)
		next[def.Name] = def
	}

	r.mu.Lock()
	r.defs = next
	r.mu.Unlock()
	return nil
}
