// Package vcs traces files tracked by version control checkouts.
package vcs

import (
	"path"
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

const (
	GitTag = "git"
	SVNTag = "svn"
)

// GitRepo is a git working tree.
type GitRepo struct {
	Path       string   `yaml:"path"`
	RootHexsha string   `yaml:"root_hexsha,omitempty"`
	Hexsha     string   `yaml:"hexsha,omitempty"`
	Describe   string   `yaml:"describe,omitempty"`
	Branch     string   `yaml:"branch,omitempty"`
	Remote     string   `yaml:"remote,omitempty"`
	Files      []string `yaml:"files,omitempty"`
}

func (r *GitRepo) Kind() spec.Kind  { return spec.KindLeaf }
func (r *GitRepo) TypeName() string { return "GitRepo" }

func (r *GitRepo) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("root_hexsha", r.RootHexsha), spec.Str("path", r.Path)}
}

func (r *GitRepo) DiffFields() []spec.Field { return []spec.Field{spec.Str("hexsha", r.Hexsha)} }

func (r *GitRepo) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("path", r.Path).
		Set("root_hexsha", r.RootHexsha).
		Set("hexsha", r.Hexsha).
		Set("describe", r.Describe).
		Set("branch", r.Branch).
		Set("remote", r.Remote).
		Set("files", r.Files)
}

// SVNRepo is a subversion working copy.
type SVNRepo struct {
	Path     string   `yaml:"path"`
	UUID     string   `yaml:"uuid,omitempty"`
	Revision string   `yaml:"revision,omitempty"`
	URL      string   `yaml:"url,omitempty"`
	Files    []string `yaml:"files,omitempty"`
}

func (r *SVNRepo) Kind() spec.Kind  { return spec.KindLeaf }
func (r *SVNRepo) TypeName() string { return "SVNRepo" }

func (r *SVNRepo) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("uuid", r.UUID), spec.Str("path", r.Path)}
}

func (r *SVNRepo) DiffFields() []spec.Field { return []spec.Field{spec.Str("revision", r.Revision)} }

func (r *SVNRepo) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("path", r.Path).
		Set("uuid", r.UUID).
		Set("revision", r.Revision).
		Set("url", r.URL).
		Set("files", r.Files)
}

// repoDistribution holds the checkouts of one VCS kind.
type repoDistribution[R spec.Object] struct {
	Name     string `yaml:"name"`
	Packages []R    `yaml:"packages,omitempty"`
}

func (d *repoDistribution[R]) Kind() spec.Kind              { return spec.KindCollection }
func (d *repoDistribution[R]) IdentityFields() []spec.Field { return []spec.Field{spec.Str("name", d.Name)} }
func (d *repoDistribution[R]) DiffFields() []spec.Field     { return nil }

func (d *repoDistribution[R]) Elements() []spec.Object {
	out := make([]spec.Object, len(d.Packages))
	for i, p := range d.Packages {
		out[i] = p
	}
	return out
}

func (d *repoDistribution[R]) ToDocument() *spec.Document {
	return spec.NewDocument().Set("name", d.Name).Set("packages", spec.Documents(d.Packages))
}

func (d *repoDistribution[R]) merge(other *repoDistribution[R]) {
	d.Packages = spec.MergePackages(d.Packages, other.Packages)
}

func repoFiles(root string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = path.Join(root, f)
	}
	return out
}

// GitDistribution holds the git checkouts found.
type GitDistribution struct {
	repoDistribution[*GitRepo] `yaml:",inline"`
}

// NewGit returns an empty distribution for the registry.
func NewGit() spec.Distribution {
	return &GitDistribution{repoDistribution[*GitRepo]{Name: GitTag}}
}

func (d *GitDistribution) TypeName() string { return "GitDistribution" }
func (d *GitDistribution) Tag() string      { return GitTag }

func (d *GitDistribution) Files() []string {
	var files []string
	for _, r := range d.Packages {
		files = append(files, repoFiles(r.Path, r.Files)...)
	}
	return files
}

func (d *GitDistribution) InstallCommands() [][]string {
	var cmds [][]string
	for _, r := range d.Packages {
		if r.Remote == "" {
			continue
		}
		cmds = append(cmds, []string{"git", "clone", r.Remote, r.Path})
		if r.Hexsha != "" {
			cmds = append(cmds, []string{"git", "-C", r.Path, "checkout", r.Hexsha})
		}
	}
	return cmds
}

func (d *GitDistribution) Merge(other spec.Distribution) error {
	o, ok := other.(*GitDistribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	d.merge(&o.repoDistribution)
	return nil
}

func (d *GitDistribution) Normalize() {
	slices.SortStableFunc(d.Packages, func(a, b *GitRepo) int { return strings.Compare(a.Path, b.Path) })
}

// SVNDistribution holds the subversion working copies found.
type SVNDistribution struct {
	repoDistribution[*SVNRepo] `yaml:",inline"`
}

// NewSVN returns an empty distribution for the registry.
func NewSVN() spec.Distribution {
	return &SVNDistribution{repoDistribution[*SVNRepo]{Name: SVNTag}}
}

func (d *SVNDistribution) TypeName() string { return "SVNDistribution" }
func (d *SVNDistribution) Tag() string      { return SVNTag }

func (d *SVNDistribution) Files() []string {
	var files []string
	for _, r := range d.Packages {
		files = append(files, repoFiles(r.Path, r.Files)...)
	}
	return files
}

func (d *SVNDistribution) InstallCommands() [][]string {
	var cmds [][]string
	for _, r := range d.Packages {
		if r.URL == "" {
			continue
		}
		cmd := []string{"svn", "checkout"}
		if r.Revision != "" {
			cmd = append(cmd, "-r", r.Revision)
		}
		cmds = append(cmds, append(cmd, r.URL, r.Path))
	}
	return cmds
}

func (d *SVNDistribution) Merge(other spec.Distribution) error {
	o, ok := other.(*SVNDistribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	d.merge(&o.repoDistribution)
	return nil
}

func (d *SVNDistribution) Normalize() {
	slices.SortStableFunc(d.Packages, func(a, b *SVNRepo) int { return strings.Compare(a.Path, b.Path) })
}
