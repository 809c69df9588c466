package spec

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/open-edge-platform/os-env-tracer/internal/config/validate"
	"gopkg.in/yaml.v3"
)

//go:embed schema/environment.schema.json
var environmentSchema []byte

type rawEnvironment struct {
	Base          *Base       `yaml:"base"`
	Distributions []yaml.Node `yaml:"distributions"`
	Files         []string    `yaml:"files"`
}

// Parse decodes a YAML environment document, constructing each
// distribution through reg from its name tag.
func Parse(data []byte, reg *Registry) (*EnvironmentSpec, error) {
	if err := validate.ValidateYAMLAgainstSchema("environment.schema.json", environmentSchema, data, ""); err != nil {
		return nil, fmt.Errorf("invalid environment document: %w", err)
	}

	var raw rawEnvironment
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing environment document: %w", err)
	}

	env := &EnvironmentSpec{Base: raw.Base, Files: raw.Files}
	for i := range raw.Distributions {
		node := &raw.Distributions[i]
		var head struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("distribution #%d: %w", i, err)
		}
		dist, err := reg.New(head.Name)
		if err != nil {
			return nil, fmt.Errorf("distribution #%d: %w", i, err)
		}
		if err := node.Decode(dist); err != nil {
			return nil, fmt.Errorf("decoding %s distribution: %w", head.Name, err)
		}
		dist.Normalize()
		env.Distributions = append(env.Distributions, dist)
	}
	return env, nil
}

// Load reads and parses the environment document at path.
func Load(path string, reg *Registry) (*EnvironmentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	env, err := Parse(data, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// Write renders obj's document as YAML to w.
func Write(w io.Writer, obj Object) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(obj.ToDocument()); err != nil {
		return fmt.Errorf("encoding %s: %w", obj.TypeName(), err)
	}
	return enc.Close()
}

// Marshal renders obj's document as YAML.
func Marshal(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
