// Package docker traces container images referenced as docker-image:<ref>
// paths.
package docker

import (
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
)

const (
	// Tag names the backend in documents.
	Tag = "docker"
	// PathPrefix marks a path naming an image.
	PathPrefix = "docker-image:"
)

// Image is a locally available image.
type Image struct {
	ID           string   `yaml:"id"`
	Refs         []string `yaml:"refs,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
	Digests      []string `yaml:"digests,omitempty"`
	Created      string   `yaml:"created,omitempty"`
	OS           string   `yaml:"os,omitempty"`
	Architecture string   `yaml:"architecture,omitempty"`
	Size         int64    `yaml:"size,omitempty"`
}

func (i *Image) Kind() spec.Kind              { return spec.KindLeaf }
func (i *Image) TypeName() string             { return "DockerImage" }
func (i *Image) IdentityFields() []spec.Field { return []spec.Field{spec.Str("id", i.ID)} }
func (i *Image) DiffFields() []spec.Field     { return nil }

func (i *Image) ToDocument() *spec.Document {
	return spec.NewDocument().
		Set("id", i.ID).
		Set("refs", i.Refs).
		Set("tags", i.Tags).
		Set("digests", i.Digests).
		Set("created", i.Created).
		Set("os", i.OS).
		Set("architecture", i.Architecture).
		Set("size", i.Size)
}

// pullRef prefers a digest so the exact image is fetched.
func (i *Image) pullRef() string {
	if len(i.Digests) > 0 {
		return i.Digests[0]
	}
	if len(i.Refs) > 0 {
		return i.Refs[0]
	}
	if len(i.Tags) > 0 {
		return i.Tags[0]
	}
	return ""
}

// Distribution holds the images found.
type Distribution struct {
	Name   string   `yaml:"name"`
	Images []*Image `yaml:"images,omitempty"`
}

// New returns an empty distribution for the registry.
func New() spec.Distribution { return &Distribution{Name: Tag} }

func (d *Distribution) Kind() spec.Kind              { return spec.KindCollection }
func (d *Distribution) TypeName() string             { return "DockerDistribution" }
func (d *Distribution) Tag() string                  { return Tag }
func (d *Distribution) IdentityFields() []spec.Field { return []spec.Field{spec.Str("name", d.Name)} }
func (d *Distribution) DiffFields() []spec.Field     { return nil }

func (d *Distribution) Elements() []spec.Object {
	out := make([]spec.Object, len(d.Images))
	for i, img := range d.Images {
		out[i] = img
	}
	return out
}

// Files returns the image paths the distribution explains, one per
// reference an image was traced under.
func (d *Distribution) Files() []string {
	var files []string
	for _, img := range d.Images {
		for _, ref := range img.Refs {
			files = append(files, PathPrefix+ref)
		}
	}
	return files
}

func (d *Distribution) ToDocument() *spec.Document {
	return spec.NewDocument().Set("name", d.Name).Set("images", spec.Documents(d.Images))
}

func (d *Distribution) InstallCommands() [][]string {
	var cmds [][]string
	for _, img := range d.Images {
		if ref := img.pullRef(); ref != "" {
			cmds = append(cmds, []string{"docker", "pull", ref})
		}
	}
	return cmds
}

func (d *Distribution) Merge(other spec.Distribution) error {
	o, ok := other.(*Distribution)
	if !ok {
		return &spec.TypeMismatchError{Left: d.TypeName(), Right: other.TypeName()}
	}
	// the same image traced in another round keeps the references of both
	for _, img := range o.Images {
		i := slices.IndexFunc(d.Images, func(x *Image) bool { return x.ID == img.ID })
		if i < 0 {
			d.Images = append(d.Images, img)
			continue
		}
		for _, ref := range img.Refs {
			if !slices.Contains(d.Images[i].Refs, ref) {
				d.Images[i].Refs = append(d.Images[i].Refs, ref)
			}
		}
	}
	return nil
}

func (d *Distribution) Normalize() {
	slices.SortStableFunc(d.Images, func(a, b *Image) int { return strings.Compare(a.ID, b.ID) })
}
