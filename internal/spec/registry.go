package spec

import (
	"fmt"
	"sort"
)

// Constructor returns a fresh, empty distribution ready to be decoded into.
type Constructor func() Distribution

// Registry maps distribution tags to constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// Register adds a constructor for tag. Registering a tag twice fails.
func (r *Registry) Register(tag string, c Constructor) error {
	if _, ok := r.ctors[tag]; ok {
		return fmt.Errorf("distribution %q already registered", tag)
	}
	r.ctors[tag] = c
	return nil
}

// New constructs an empty distribution for tag.
func (r *Registry) New(tag string) (Distribution, error) {
	c, ok := r.ctors[tag]
	if !ok {
		return nil, fmt.Errorf("unknown distribution %q", tag)
	}
	return c(), nil
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
