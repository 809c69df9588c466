// Package venv traces files installed by pip into Python virtual
// environments.
package venv

import (
	"path"
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

// Tag names the backend in documents.
const Tag = "venv"

// Package is a pip distribution installed in an environment.
type Package struct {
	Name             string   `yaml:"name"`
	Version          string   `yaml:"version,omitempty"`
	EditableLocation string   `yaml:"editable_location,omitempty"`
	Files            []string `yaml:"files,omitempty"`
}

func (p *Package) Kind() spec.Kind              { return spec.KindLeaf }
func (p *Package) TypeName() string             { return "PipPackage" }
func (p *Package) IdentityFields() []spec.Field { return []spec.Field{spec.Str("name", p.Name)} }
func (p *Package) DiffFields() []spec.Field     { return []spec.Field{spec.Str("version", p.Version)} }
func (p *Package) AddFile(path string)          { p.Files = append(p.Files, path) }

func (p *Package) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", p.Name).
		Set("version", p.Version).
		Set("editable_location", p.EditableLocation).
		Set("files", p.Files)
}

// Requirement renders the package as a pip requirement.
func (p *Package) Requirement() string {
	if p.EditableLocation != "" {
		return "-e" + p.EditableLocation
	}
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "==" + p.Version
}

// Environment is one virtual environment.
type Environment struct {
	Path          string     `yaml:"path"`
	PythonVersion string     `yaml:"python_version,omitempty"`
	Packages      []*Package `yaml:"packages,omitempty"`
}

func (e *Environment) Kind() spec.Kind              { return spec.KindCollection }
func (e *Environment) TypeName() string             { return "VirtualEnvironment" }
func (e *Environment) IdentityFields() []spec.Field { return []spec.Field{spec.Str("path", e.Path)} }

func (e *Environment) DiffFields() []spec.Field {
	return []spec.Field{spec.Str("python_version", e.PythonVersion)}
}

func (e *Environment) Elements() []spec.Object {
	out := make([]spec.Object, len(e.Packages))
	for i, p := range e.Packages {
		out[i] = p
	}
	return out
}

func (e *Environment) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("path", e.Path).
		Set("python_version", e.PythonVersion).
		Set("packages", spec.Documents(e.Packages))
}

// Distribution groups every virtual environment found.
type Distribution struct {
	Name         string         `yaml:"name"`
	Environments []*Environment `yaml:"environments,omitempty"`
}

// New returns an empty distribution for the registry.
func New() spec.Distribution { return &Distribution{Name: Tag} }

func (d *Distribution) Kind() spec.Kind              { return spec.KindCollection }
func (d *Distribution) TypeName() string             { return "VenvDistribution" }
func (d *Distribution) Tag() string                  { return Tag }
func (d *Distribution) IdentityFields() []spec.Field { return []spec.Field{spec.Str("name", d.Name)} }
func (d *Distribution) DiffFields() []spec.Field     { return nil }

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
	return spec.NewDocument().Set("name", d.Name).Set("environments", spec.Documents(d.Environments))
}

// InstallCommands recreates each environment and installs its packages.
func (d *Distribution) InstallCommands() [][]string {
	var cmds [][]string
	for _, e := range d.Environments {
		python := "python3"
		if e.PythonVersion != "" {
			parts := strings.SplitN(e.PythonVersion, ".", 3)
			python = "python" + strings.Join(parts[:min(2, len(parts))], ".")
		}
		cmds = append(cmds, []string{python, "-m", "venv", e.Path})
		if len(e.Packages) == 0 {
			continue
		}
		install := []string{path.Join(e.Path, "bin", "pip"), "install"}
		for _, p := range e.Packages {
			install = append(install, p.Requirement())
		}
		cmds = append(cmds, install)
	}
	return cmds
}

func (d *Distribution) Merge(other spec.Distribution) error {
	o, ok := other.(*Distribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
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

func (d *Distribution) Normalize() {
	slices.SortStableFunc(d.Environments, func(a, b *Environment) int { return strings.Compare(a.Path, b.Path) })
	for _, e := range d.Environments {
		slices.SortStableFunc(e.Packages, func(a, b *Package) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}
}
