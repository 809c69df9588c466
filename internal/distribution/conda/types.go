// Package conda traces files installed into conda environments.
package conda

import (
	"path"
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

// Tag names the backend in documents.
const Tag = "conda"

// Package is a package recorded in an environment's conda-meta.
type Package struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version,omitempty"`
	Build   string   `yaml:"build,omitempty"`
	Channel string   `yaml:"channel,omitempty"`
	Files   []string `yaml:"files,omitempty"`
}

func (p *Package) Kind() spec.Kind  { return spec.KindLeaf }
func (p *Package) TypeName() string { return "CondaPackage" }

func (p *Package) IdentityFields() []spec.Field { return []spec.Field{spec.Str("name", p.Name)} }

func (p *Package) DiffFields() []spec.Field {
	return []spec.Field{spec.Str("version", p.Version), spec.Str("build", p.Build)}
}

func (p *Package) AddFile(path string) { p.Files = append(p.Files, path) }

func (p *Package) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", p.Name).
		Set("version", p.Version).
		Set("build", p.Build).
		Set("channel", p.Channel).
		Set("files", p.Files)
}

// MatchSpec renders name=version=build for conda install.
func (p *Package) MatchSpec() string {
	var parts []string
	for _, s := range []string{p.Name, p.Version, p.Build} {
		if s == "" {
			break
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "=")
}

// Environment is one conda prefix.
type Environment struct {
	Path     string     `yaml:"path"`
	Packages []*Package `yaml:"packages,omitempty"`
}

func (e *Environment) Kind() spec.Kind              { return spec.KindCollection }
func (e *Environment) TypeName() string             { return "CondaEnvironment" }
func (e *Environment) IdentityFields() []spec.Field { return []spec.Field{spec.Str("path", e.Path)} }
func (e *Environment) DiffFields() []spec.Field     { return nil }

func (e *Environment) Elements() []spec.Object {
	out := make([]spec.Object, len(e.Packages))
	for i, p := range e.Packages {
		out[i] = p
	}
	return out
}

func (e *Environment) ToDocument() *spec.Document {
	return spec.NewDocument().Set("path", e.Path).Set("packages", spec.Documents(e.Packages))
}

// Distribution is a conda installation and the environments found in it.
type Distribution struct {
	Name         string         `yaml:"name"`
	Path         string         `yaml:"path,omitempty"`
	CondaVersion string         `yaml:"conda_version,omitempty"`
	Channels     []string       `yaml:"channels,omitempty"`
	Environments []*Environment `yaml:"environments,omitempty"`
}

// New returns an empty distribution for the registry.
func New() spec.Distribution { return &Distribution{Name: Tag} }

func (d *Distribution) Kind() spec.Kind  { return spec.KindCollection }
func (d *Distribution) TypeName() string { return "CondaDistribution" }
func (d *Distribution) Tag() string      { return Tag }

func (d *Distribution) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("name", d.Name), spec.Str("path", d.Path)}
}

func (d *Distribution) DiffFields() []spec.Field {
	return []spec.Field{spec.Str("conda_version", d.CondaVersion)}
}

func (d *Distribution) Elements() []spec.Object {
	out := make([]spec.Object, len(d.Environments))
	for i, e := range d.Environments {
		out[i] = e
	}
	return out
}

func (d *Distribution) Files() []string {
	var files []string
	for _, e := range d.Environments {
		for _, p := range e.Packages {
			for _, f := range p.Files {
				files = append(files, path.Join(e.Path, f))
			}
		}
	}
	return files
}

func (d *Distribution) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", d.Name).
		Set("path", d.Path).
		Set("conda_version", d.CondaVersion).
		Set("channels", d.Channels).
		Set("environments", spec.Documents(d.Environments))
}

func (d *Distribution) condaBinary() string {
	if d.Path == "" {
		return "conda"
	}
	return path.Join(d.Path, "bin", "conda")
}

func (d *Distribution) InstallCommands() [][]string {
	var cmds [][]string
	for _, e := range d.Environments {
		if len(e.Packages) == 0 {
			continue
		}
		cmd := []string{d.condaBinary(), "install", "-y", "-p", e.Path}
		for _, c := range d.Channels {
			cmd = append(cmd, "-c", c)
		}
		for _, p := range e.Packages {
			cmd = append(cmd, p.MatchSpec())
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (d *Distribution) Merge(other spec.Distribution) error {
	o, ok := other.(*Distribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	d.Channels = append(d.Channels, o.Channels...)
	for _, oe := range o.Environments {
		i := slices.IndexFunc(d.Environments, func(e *Environment) bool { return e.Path == oe.Path })
		if i < 0 {
			d.Environments = append(d.Environments, oe)
			continue
		}
		d.Environments[i].Packages = spec.MergePackages(d.Environments[i].Packages, oe.Packages)
	}
	return nil
}

// Normalize dedupes channels and sorts environments and packages.
func (d *Distribution) Normalize() {
	d.Channels = slices.Compact(slices.Sorted(slices.Values(d.Channels)))
	slices.SortStableFunc(d.Environments, func(a, b *Environment) int { return strings.Compare(a.Path, b.Path) })
	for _, e := range d.Environments {
		slices.SortStableFunc(e.Packages, func(a, b *Package) int { return strings.Compare(a.Name, b.Name) })
	}
}
