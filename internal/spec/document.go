package spec

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Document is an ordered mapping describing a spec object. Empty values
// are never stored, so serializers only see fields that carry information.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: map[string]any{}}
}

// Set stores value under key unless value is empty. Setting an existing
// key replaces its value and keeps its position.
func (d *Document) Set(key string, value any) *Document {
	if isEmptyValue(value) {
		return d
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return d
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// Documents converts spec objects to their documents.
func Documents[T Object](objs []T) []*Document {
	out := make([]*Document, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.ToDocument())
	}
	return out
}

// MarshalYAML renders the document as a mapping node preserving key order.
func (d *Document) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range d.keys {
		valNode := &yaml.Node{}
		if err := valNode.Encode(d.values[k]); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			valNode,
		)
	}
	return node, nil
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if doc, ok := value.(*Document); ok {
		return doc == nil || doc.Len() == 0
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
