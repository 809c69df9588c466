// Package spec holds the environment specification model: distributions,
// the packages they own and the identity, diff and satisfaction algebra used
// to compare two specifications.
package spec

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
)

// Kind tells the comparison algebra whether an object is compared field by
// field or through the elements it holds.
type Kind int

const (
	KindLeaf Kind = iota
	KindCollection
)

func (k Kind) String() string {
	if k == KindCollection {
		return "collection"
	}
	return "leaf"
}

// Unspecified is the value of a field nobody filled in. On the left side
// of a satisfaction check it matches anything.
const Unspecified = ""

// Field is one named value taking part in comparisons.
type Field struct {
	Name  string
	Value string
}

// Object is implemented by every spec type.
type Object interface {
	Kind() Kind
	// TypeName names the concrete type; objects are only comparable when
	// their type names match.
	TypeName() string
	// IdentityFields must match for two objects to describe the same
	// real-world thing.
	IdentityFields() []Field
	// DiffFields are the values whose differences are reported.
	DiffFields() []Field
	ToDocument() *Document
}

// Collection is an Object compared through its elements.
type Collection interface {
	Object
	Elements() []Object
}

// Distribution is a named source of packages sharing a backend.
type Distribution interface {
	Collection
	// Tag is the stable backend name ("debian", "git", ...), used to pick
	// the constructor when loading documents.
	Tag() string
	// Normalize dedupes backend metadata after tracing or loading.
	Normalize()
	// Files returns the absolute paths of every file the packages own.
	Files() []string
	// InstallCommands renders the commands that would install the packages.
	InstallCommands() [][]string
}

var (
	// ErrIdentityUndefined is returned by Identity for types declaring no
	// identity fields.
	ErrIdentityUndefined = errors.New("identity undefined")
	// ErrMultipleDistributions is returned when a spec holds more than one
	// distribution of the requested type.
	ErrMultipleDistributions = errors.New("multiple distributions of the same type")
)

// TypeMismatchError reports a comparison between objects of different types.
type TypeMismatchError struct {
	Left, Right string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot compare %s with %s", e.Left, e.Right)
}

// IdentityMismatchError reports a diff of two collections describing
// different real-world entities.
type IdentityMismatchError struct {
	TypeName    string
	Left, Right []string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("cannot diff %s %v against %s %v: identities differ",
		e.TypeName, e.Left, e.TypeName, e.Right)
}

// Str builds a field; the zero value stays unspecified.
func Str(name, value string) Field {
	return Field{Name: name, Value: value}
}

// Install runs the install commands of dist through sess, in order.
func Install(ctx context.Context, sess session.Session, dist Distribution) error {
	for _, argv := range dist.InstallCommands() {
		if _, _, err := sess.ExecuteCommand(ctx, argv, session.ExecOptions{}); err != nil {
			return fmt.Errorf("installing %s packages: %w", dist.Tag(), err)
		}
	}
	return nil
}
