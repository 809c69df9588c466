// Package debian traces files owned by dpkg packages and describes the APT
// sources their installed versions came from.
package debian

import (
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

// Tag names the backend in documents.
const Tag = "debian"

// Package is an installed dpkg package.
type Package struct {
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version,omitempty"`
	Architecture  string   `yaml:"architecture,omitempty"`
	Source        string   `yaml:"source,omitempty"`
	InstalledSize string   `yaml:"installed_size,omitempty"`
	MD5Sum        string   `yaml:"md5sum,omitempty"`
	SHA1          string   `yaml:"sha1,omitempty"`
	SHA256        string   `yaml:"sha256,omitempty"`
	InstallDate   string   `yaml:"install_date,omitempty"`
	Sources       []string `yaml:"sources,omitempty"`
	Files         []string `yaml:"files,omitempty"`
}

func (p *Package) Kind() spec.Kind  { return spec.KindLeaf }
func (p *Package) TypeName() string { return "DebianPackage" }

func (p *Package) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("name", p.Name), spec.Str("architecture", p.Architecture)}
}

func (p *Package) DiffFields() []spec.Field {
	return []spec.Field{spec.Str("version", p.Version)}
}

func (p *Package) AddFile(path string) { p.Files = append(p.Files, path) }

func (p *Package) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", p.Name).
		Set("version", p.Version).
		Set("architecture", p.Architecture).
		Set("source", p.Source).
		Set("installed_size", p.InstalledSize).
		Set("md5sum", p.MD5Sum).
		Set("sha1", p.SHA1).
		Set("sha256", p.SHA256).
		Set("install_date", p.InstallDate).
		Set("sources", p.Sources).
		Set("files", p.Files)
}

// qualified returns name:arch as dpkg-query accepts it.
func (p *Package) qualified() string {
	if p.Architecture == "" {
		return p.Name
	}
	return p.Name + ":" + p.Architecture
}

// APTSource is one release of an APT repository, referenced by name from
// packages.
type APTSource struct {
	Name         string `yaml:"name"`
	Site         string `yaml:"site,omitempty"`
	Origin       string `yaml:"origin,omitempty"`
	Label        string `yaml:"label,omitempty"`
	Archive      string `yaml:"archive,omitempty"`
	Codename     string `yaml:"codename,omitempty"`
	Version      string `yaml:"version,omitempty"`
	Component    string `yaml:"component,omitempty"`
	Architecture string `yaml:"architecture,omitempty"`
}

func (s *APTSource) Kind() spec.Kind  { return spec.KindLeaf }
func (s *APTSource) TypeName() string { return "APTSource" }

func (s *APTSource) IdentityFields() []spec.Field {
	return []spec.Field{spec.Str("name", s.Name)}
}

func (s *APTSource) DiffFields() []spec.Field { return nil }

func (s *APTSource) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("name", s.Name).
		Set("site", s.Site).
		Set("origin", s.Origin).
		Set("label", s.Label).
		Set("archive", s.Archive).
		Set("codename", s.Codename).
		Set("version", s.Version).
		Set("component", s.Component).
		Set("architecture", s.Architecture)
}

// content identifies a source by everything but its synthetic name.
func (s *APTSource) content() string {
	return strings.Join([]string{s.Site, s.Origin, s.Label, s.Archive, s.Codename,
		s.Version, s.Component, s.Architecture}, "\x00")
}

// Distribution is the set of dpkg packages of a Debian based system.
type Distribution struct {
	Name     string       `yaml:"name"`
	Version  string       `yaml:"version,omitempty"`
	Sources  []*APTSource `yaml:"sources,omitempty"`
	Packages []*Package   `yaml:"packages,omitempty"`
}

// New returns an empty distribution for the registry.
func New() spec.Distribution { return &Distribution{Name: Tag} }

func (d *Distribution) Kind() spec.Kind  { return spec.KindCollection }
func (d *Distribution) TypeName() string { return "DebianDistribution" }
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
		Set("sources", spec.Documents(d.Sources)).
		Set("packages", spec.Documents(d.Packages))
}

// InstallCommands pins every package to its recorded version.
func (d *Distribution) InstallCommands() [][]string {
	if len(d.Packages) == 0 {
		return nil
	}
	install := []string{"apt-get", "install", "-y", "--allow-downgrades"}
	for _, p := range d.Packages {
		pin := p.qualified()
		if p.Version != "" {
			pin += "=" + p.Version
		}
		install = append(install, pin)
	}
	return [][]string{{"apt-get", "update"}, install}
}

// Merge adds the packages and sources of other.
func (d *Distribution) Merge(other spec.Distribution) error {
	o, ok := other.(*Distribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	d.Sources = append(d.Sources, o.Sources...)
	d.Packages = spec.MergePackages(d.Packages, o.Packages)
	return nil
}

// Normalize collapses sources with identical content into the first name
// seen, rewrites package references accordingly, drops unreferenced sources
// and sorts packages.
func (d *Distribution) Normalize() {
	byContent := map[string]string{}
	rename := map[string]string{}
	var sources []*APTSource
	for _, s := range d.Sources {
		if name, ok := byContent[s.content()]; ok {
			rename[s.Name] = name
			continue
		}
		if _, dup := rename[s.Name]; dup {
			continue
		}
		byContent[s.content()] = s.Name
		rename[s.Name] = s.Name
		sources = append(sources, s)
	}

	used := map[string]bool{}
	for _, p := range d.Packages {
		for i, ref := range p.Sources {
			if name, ok := rename[ref]; ok {
				p.Sources[i] = name
			}
		}
		slices.Sort(p.Sources)
		p.Sources = slices.Compact(p.Sources)
		for _, ref := range p.Sources {
			used[ref] = true
		}
	}
	d.Sources = slices.DeleteFunc(sources, func(s *APTSource) bool { return !used[s.Name] })

	slices.SortStableFunc(d.Packages, func(a, b *Package) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Architecture, b.Architecture)
	})
}
