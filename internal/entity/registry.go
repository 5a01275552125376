package entity

import (
	"fmt"
	"sort"
	"strings"

	domainerrors "encore/pkg/domain-errors"
)

// Registry holds the closed entity set and the precomputed run ordering.
// The dependency graph is static data, not control flow: ordering is a
// topological sort over declared pairs, computed once at construction and
// testable on its own.
type Registry struct {
	byName map[string]*Descriptor
	order  []string     // stable declaration order
	levels [][]string   // topological levels; entities in a level are independent
}

// New builds the default registry: venues and songs are dimensions with no
// dependencies, shows reference venues, setlists reference shows and songs.
func New() *Registry {
	r, err := NewWith(Venues(), Songs(), Shows(), Setlists())
	if err != nil {
		// The default graph is static; a cycle here is a programming error.
		panic(err)
	}
	return r
}

// NewWith builds a registry from explicit descriptors. Returns an error when
// a dependency names an unknown entity or the graph has a cycle.
func NewWith(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	for _, d := range descriptors {
		for _, dep := range d.DependsOn {
			if _, ok := r.byName[dep]; !ok {
				return nil, fmt.Errorf("entity %q depends on unknown entity %q", d.Name, dep)
			}
		}
	}
	levels, err := topoLevels(r.byName, r.order)
	if err != nil {
		return nil, err
	}
	r.levels = levels
	return r, nil
}

// Get returns the named descriptor.
func (r *Registry) Get(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, domainerrors.Newf(domainerrors.CodeNotFound, "unknown entity %q", name)
	}
	return d, nil
}

// All returns descriptors in declaration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns entity names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Levels returns the topological levels of the dependency graph. Every
// entity in level i depends only on entities in levels < i, so entities
// within one level may run concurrently.
func (r *Registry) Levels() [][]string {
	out := make([][]string, len(r.levels))
	for i, level := range r.levels {
		out[i] = append([]string(nil), level...)
	}
	return out
}

// Dependencies returns the direct dependencies of an entity.
func (r *Registry) Dependencies(name string) []string {
	d, ok := r.byName[name]
	if !ok {
		return nil
	}
	return append([]string(nil), d.DependsOn...)
}

// ResolveScope expands a scope expression ("all", one name, or a
// comma-separated list) into the set of entity names it covers.
func (r *Registry) ResolveScope(scope string) ([]string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" || scope == "all" {
		return r.Names(), nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, part := range strings.Split(scope, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, err := r.Get(name); err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "empty scope")
	}
	return names, nil
}

func topoLevels(byName map[string]*Descriptor, order []string) ([][]string, error) {
	indegree := make(map[string]int, len(order))
	for _, name := range order {
		indegree[name] = len(byName[name].DependsOn)
	}
	dependents := make(map[string][]string)
	for _, name := range order {
		for _, dep := range byName[name].DependsOn {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var levels [][]string
	remaining := len(order)
	current := make([]string, 0, len(order))
	for _, name := range order {
		if indegree[name] == 0 {
			current = append(current, name)
		}
	}
	for len(current) > 0 {
		sort.Strings(current)
		levels = append(levels, current)
		remaining -= len(current)
		var next []string
		for _, name := range current {
			for _, dep := range dependents[name] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		current = next
	}
	if remaining != 0 {
		return nil, fmt.Errorf("dependency cycle among entities")
	}
	return levels, nil
}
