package spec

import "strings"

type testPackage struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version,omitempty"`
	Files   []string `yaml:"files,omitempty"`
}

func (p *testPackage) Kind() Kind       { return KindLeaf }
func (p *testPackage) TypeName() string { return "testPackage" }
func (p *testPackage) IdentityFields() []Field {
	return []Field{Str("name", p.Name)}
}
func (p *testPackage) DiffFields() []Field { return []Field{Str("version", p.Version)} }
func (p *testPackage) ToDocument() *Document {
	return NewDocument().Set("name", p.Name).Set("version", p.Version).Set("files", p.Files)
}

type otherPackage struct{ testPackage }

func (p *otherPackage) TypeName() string { return "otherPackage" }

type testDist struct {
	Name     string         `yaml:"name"`
	Version  string         `yaml:"version,omitempty"`
	Packages []*testPackage `yaml:"packages,omitempty"`
}

func (d *testDist) Kind() Kind              { return KindCollection }
func (d *testDist) TypeName() string        { return "testDist" }
func (d *testDist) Tag() string             { return "test" }
func (d *testDist) IdentityFields() []Field { return []Field{Str("name", d.Name)} }
func (d *testDist) DiffFields() []Field     { return []Field{Str("version", d.Version)} }
func (d *testDist) Normalize()              {}
func (d *testDist) Elements() []Object {
	out := make([]Object, len(d.Packages))
	for i, p := range d.Packages {
		out[i] = p
	}
	return out
}
func (d *testDist) Files() []string {
	var files []string
	for _, p := range d.Packages {
		files = append(files, p.Files...)
	}
	return files
}
func (d *testDist) InstallCommands() [][]string {
	var cmds [][]string
	for _, p := range d.Packages {
		cmds = append(cmds, []string{"install", p.Name})
	}
	return cmds
}
func (d *testDist) ToDocument() *Document {
	return NewDocument().Set("name", d.Name).Set("version", d.Version).Set("packages", Documents(d.Packages))
}

func pkg(nameVersion string, files ...string) *testPackage {
	name, version, _ := strings.Cut(nameVersion, "=")
	return &testPackage{Name: name, Version: version, Files: files}
}

func dist(pkgs ...*testPackage) *testDist {
	return &testDist{Name: "test", Packages: pkgs}
}

func (d *testDist) Merge(other Distribution) error {
	o, ok := other.(*testDist)
	if !ok {
		return &TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	d.Packages = MergePackages(d.Packages, o.Packages)
	return nil
}
