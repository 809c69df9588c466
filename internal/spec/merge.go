package spec

import (
	"errors"
	"fmt"
)

// Merger is implemented by distributions that can absorb the packages of
// another instance describing the same entity.
type Merger interface {
	Merge(other Distribution) error
}

// MergeDistributions folds distributions sharing type and identity into
// the first of them, when it implements Merger. Order of first appearance
// is kept. Distributions without identity are never merged.
func MergeDistributions(dists []Distribution) ([]Distribution, error) {
	var out []Distribution
	first := map[string]Distribution{}
	for _, d := range dists {
		key, err := Key(d)
		if errors.Is(err, ErrIdentityUndefined) {
			out = append(out, d)
			continue
		}
		if err != nil {
			return nil, err
		}
		prev, ok := first[key]
		if !ok {
			first[key] = d
			out = append(out, d)
			continue
		}
		m, ok := prev.(Merger)
		if !ok {
			out = append(out, d)
			continue
		}
		if err := m.Merge(d); err != nil {
			return nil, fmt.Errorf("merging %s: %w", key, err)
		}
	}
	for _, d := range out {
		d.Normalize()
	}
	return out, nil
}

// MergePackages appends the packages of src missing from dst, keyed by
// identity. Packages without identity are always appended.
func MergePackages[P Object](dst, src []P) []P {
	seen := map[string]bool{}
	for _, p := range dst {
		if k, err := Key(p); err == nil {
			seen[k] = true
		}
	}
	for _, p := range src {
		k, err := Key(p)
		if err == nil && seen[k] {
			continue
		}
		seen[k] = true
		dst = append(dst, p)
	}
	return dst
}
