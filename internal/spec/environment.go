package spec

import (
	"fmt"
	"slices"
)

// Base describes the operating system an environment was traced on.
type Base struct {
	Name         string `yaml:"name,omitempty"`
	Version      string `yaml:"version,omitempty"`
	Architecture string `yaml:"architecture,omitempty"`
}

func (b *Base) ToDocument() *Document {
	if b == nil {
		return nil
	}
	return NewDocument().
		Set("name", b.Name).
		Set("version", b.Version).
		Set("architecture", b.Architecture)
}

// EnvironmentSpec is the root of a traced environment: the distributions
// found and the files no distribution explained.
type EnvironmentSpec struct {
	Base          *Base
	Distributions []Distribution
	Files         []string
}

func (e *EnvironmentSpec) Kind() Kind              { return KindCollection }
func (e *EnvironmentSpec) TypeName() string        { return "EnvironmentSpec" }
func (e *EnvironmentSpec) IdentityFields() []Field { return nil }
func (e *EnvironmentSpec) DiffFields() []Field     { return nil }

func (e *EnvironmentSpec) Elements() []Object {
	out := make([]Object, len(e.Distributions))
	for i, d := range e.Distributions {
		out[i] = d
	}
	return out
}

func (e *EnvironmentSpec) ToDocument() *Document {
	return NewDocument().
		Set("base", e.Base.ToDocument()).
		Set("distributions", Documents(e.Distributions)).
		Set("files", e.Files)
}

// GetDistribution returns the single distribution of type T. ok is false
// when there is none; more than one is an error.
func GetDistribution[T Distribution](e *EnvironmentSpec) (dist T, ok bool, err error) {
	for _, d := range e.Distributions {
		t, match := d.(T)
		if !match {
			continue
		}
		if ok {
			var zero T
			return zero, false, fmt.Errorf("%s: %w", d.TypeName(), ErrMultipleDistributions)
		}
		dist, ok = t, true
	}
	return dist, ok, nil
}

// AllFiles returns every file the environment mentions, package-owned and
// loose, sorted and without duplicates.
func (e *EnvironmentSpec) AllFiles() []string {
	var files []string
	for _, d := range e.Distributions {
		files = append(files, d.Files()...)
	}
	files = append(files, e.Files...)
	slices.Sort(files)
	return slices.Compact(files)
}
