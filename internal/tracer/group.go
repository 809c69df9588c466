package tracer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
)

// Fields are the identity fields a backend query attributes to a file.
// A nil Fields marks a file known to belong to no package.
type Fields map[string]string

// Key returns a canonical representation of f usable as a map key.
func (f Fields) Key() string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(f[k])
		b.WriteByte(0)
	}
	return b.String()
}

// Owner is a package that can record the files it owns.
type Owner interface {
	AddFile(path string)
}

// GroupFiles groups files sharing identical fields into one package each.
//
// Files missing from fieldsByFile, mapped to nil, or refused by newPackage
// are returned as unknown. When root is set, owned paths are recorded
// relative to it. A directory that creates a package is not recorded as an
// owned file. Output order follows the order of files.
func GroupFiles[P Owner](
	ctx context.Context,
	sess session.Session,
	files []string,
	fieldsByFile map[string]Fields,
	newPackage func(Fields) (P, bool),
	root string,
) ([]P, []string, error) {
	var (
		packages []P
		unknown  []string
	)
	found := map[string]P{}

	for _, f := range files {
		fields, ok := fieldsByFile[f]
		if !ok || fields == nil {
			unknown = append(unknown, f)
			continue
		}
		path, err := relativize(f, root)
		if err != nil {
			return nil, nil, err
		}

		key := fields.Key()
		if pkg, ok := found[key]; ok {
			pkg.AddFile(path)
			continue
		}
		pkg, ok := newPackage(fields)
		if !ok {
			unknown = append(unknown, f)
			continue
		}
		found[key] = pkg
		packages = append(packages, pkg)

		isDir, err := sess.IsDir(ctx, f)
		if err != nil {
			return nil, nil, fmt.Errorf("checking %s: %w", f, err)
		}
		if !isDir {
			pkg.AddFile(path)
		}
	}
	return packages, unknown, nil
}

func relativize(path, root string) (string, error) {
	if root == "" {
		return path, nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relativizing %s to %s: %w", path, root, err)
	}
	return rel, nil
}

// Attribution collects candidate package fields per file from raw query
// output. A file claimed by more than one distinct candidate is ambiguous
// and resolves to no package.
type Attribution struct {
	order      []string
	candidates map[string][]Fields
	ambiguous  map[string]bool
	backend    string
}

// NewAttribution starts an empty attribution for the named backend, which
// is used in warnings.
func NewAttribution(backend string) *Attribution {
	return &Attribution{candidates: map[string][]Fields{}, ambiguous: map[string]bool{}, backend: backend}
}

// Attribute records that fields claim file. Repeated identical claims are
// collapsed.
func (a *Attribution) Attribute(file string, fields Fields) {
	existing, seen := a.candidates[file]
	if !seen {
		a.order = append(a.order, file)
	}
	for _, c := range existing {
		if c.Key() == fields.Key() {
			return
		}
	}
	a.candidates[file] = append(existing, fields)
}

// MarkAmbiguous records that file is claimed in a way the backend cannot
// pin to a single package (e.g. several packages on one output line).
func (a *Attribution) MarkAmbiguous(file string, fields ...Fields) {
	if _, seen := a.candidates[file]; !seen {
		a.order = append(a.order, file)
		a.candidates[file] = nil
	}
	a.candidates[file] = append(a.candidates[file], fields...)
	a.ambiguous[file] = true
}

// Resolve returns the file->fields mapping. Ambiguous files map to nil and
// are logged as warnings.
func (a *Attribution) Resolve() map[string]Fields {
	log := logger.Logger()
	out := make(map[string]Fields, len(a.candidates))
	for _, file := range a.order {
		cands := a.candidates[file]
		if len(cands) == 1 && !a.ambiguous[file] {
			out[file] = cands[0]
			continue
		}
		names := make([]string, 0, len(cands))
		for _, c := range cands {
			if c != nil {
				names = append(names, c["name"])
			}
		}
		log.Warnw("ambiguous package ownership, treating file as unknown",
			"backend", a.backend, "file", file, "candidates", names)
		out[file] = nil
	}
	return out
}
