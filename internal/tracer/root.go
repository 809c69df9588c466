package tracer

import (
	"context"
	"path"
)

// RootFinder locates the closest ancestor directory carrying a marker,
// such as conda-meta or pyvenv.cfg. Answers are cached per directory.
type RootFinder struct {
	marker func(ctx context.Context, dir string) (bool, error)
	cache  map[string]bool
}

// NewRootFinder returns a finder testing directories with marker.
func NewRootFinder(marker func(ctx context.Context, dir string) (bool, error)) *RootFinder {
	return &RootFinder{marker: marker, cache: map[string]bool{}}
}

// Find walks up from the directory containing file. ok is false when no
// ancestor carries the marker or file is not absolute.
func (f *RootFinder) Find(ctx context.Context, file string) (root string, ok bool, err error) {
	if !path.IsAbs(file) {
		return "", false, nil
	}
	dir := path.Dir(path.Clean(file))
	for {
		is, cached := f.cache[dir]
		if !cached {
			is, err = f.marker(ctx, dir)
			if err != nil {
				return "", false, err
			}
			f.cache[dir] = is
		}
		if is {
			return dir, true, nil
		}
		parent := path.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}
