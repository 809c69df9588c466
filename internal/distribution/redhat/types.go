// Package redhat traces files owned by rpm packages.
package redhat

import (
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

// Tag names the backend in documents.
const Tag = "redhat"

// Package is an installed rpm.
type Package struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version,omitempty"`
	Release      string   `yaml:"release,omitempty"`
	Epoch        string   `yaml:"epoch,omitempty"`
	Architecture string   `yaml:"architecture,omitempty"`
	Size         string   `yaml:"size,omitempty"`
	License      string   `yaml:"license,omitempty"`
	SourceRPM    string   `yaml:"source_rpm,omitempty"`
	InstallDate  string   `yaml:"install_date,omitempty"`
	Files        []string `yaml:"files,omitempty"`
}

func (p *Package) Kind() spec.Kind  { return spec.KindLeaf }
func (p *Package) TypeName() string { return "RPMPackage" }

func (p *Package) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("name", p.Name), spec.Str("architecture", p.Architecture)}
}

func (p *Package) DiffFields() []spec.Field {
	return []spec.Field{spec.Str("version", p.Version), spec.Str("release", p.Release)}
}

func (p *Package) AddFile(path string) { p.Files = append(p.Files, path) }

func (p *Package) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", p.Name).
		Set("version", p.Version).
		Set("release", p.Release).
		Set("epoch", p.Epoch).
		Set("architecture", p.Architecture).
		Set("size", p.Size).
		Set("license", p.License).
		Set("source_rpm", p.SourceRPM).
		Set("install_date", p.InstallDate).
		Set("files", p.Files)
}

// NEVRA renders name-[epoch:]version-release.arch, omitting what is unknown.
func (p *Package) NEVRA() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Version != "" {
		b.WriteByte('-')
		if p.Epoch != "" {
			b.WriteString(p.Epoch + ":")
		}
		b.WriteString(p.Version)
		if p.Release != "" {
			b.WriteString("-" + p.Release)
		}
	}
	if p.Architecture != "" {
		b.WriteString("." + p.Architecture)
	}
	return b.String()
}

// Distribution is the rpm database of a Red Hat family system.
type Distribution struct {
	Name     string     `yaml:"name"`
	Version  string     `yaml:"version,omitempty"`
	Packages []*Package `yaml:"packages,omitempty"`
}

// New returns an empty distribution for the registry.
func New() spec.Distribution { return &Distribution{Name: Tag} }

func (d *Distribution) Kind() spec.Kind  { return spec.KindCollection }
func (d *Distribution) TypeName() string { return "RPMDistribution" }
func (d *Distribution) Tag() string      { return Tag }

func (d *Distribution) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("name", d.Name)}
}

func (d *Distribution) DiffFields() []spec.Field {
	return []spec.Field{spec.Str("version", d.Version)}
}

func (d *Distribution) Elements() []spec.Object {
	out := make([]spec.Object, len(d.Packages))
	for i, p := range d.Packages {
		out[i] = p
	}
	return out
}

func (d *Distribution) Files() []string {
	var files []string
	for _, p := range d.Packages {
		files = append(files, p.Files...)
	}
	return files
}

func (d *Distribution) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", d.Name).
		Set("version", d.Version).
		Set("packages", spec.Documents(d.Packages))
}

func (d *Distribution) InstallCommands() [][]string {
	if len(d.Packages) == 0 {
		return nil
	}
	cmd := []string{"yum", "install", "-y"}
	for _, p := range d.Packages {
		cmd = append(cmd, p.NEVRA())
	}
	return [][]string{cmd}
}

func (d *Distribution) Merge(other spec.Distribution) error {
	o, ok := other.(*Distribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	d.Packages = spec.MergePackages(d.Packages, o.Packages)
	return nil
}

func (d *Distribution) Normalize() {
	slices.SortStableFunc(d.Packages, func(a, b *Package) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Architecture, b.Architecture)
	})
}
