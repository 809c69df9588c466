package spec

import (
	"fmt"
	"strings"
)

// Identity returns the values of obj's identity fields.
func Identity(obj Object) ([]string, error) {
	fields := obj.IdentityFields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", obj.TypeName(), ErrIdentityUndefined)
	}
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = f.Value
	}
	return values, nil
}

// DiffValues returns the values of obj's diff fields.
func DiffValues(obj Object) []string {
	fields := obj.DiffFields()
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = f.Value
	}
	return values
}

// Key is the identity of obj qualified by its type, used to pair elements
// of two collections.
func Key(obj Object) (string, error) {
	id, err := Identity(obj)
	if err != nil {
		return "", err
	}
	return obj.TypeName() + ":" + strings.Join(id, "/"), nil
}

func compareFields(obj Object) []Field {
	return append(append([]Field{}, obj.IdentityFields()...), obj.DiffFields()...)
}

func fieldValue(fields []Field, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return Unspecified
}

// SatisfiedBy reports whether other meets the constraints a expresses.
//
// For collections every element of a must be satisfied by some element of
// other of the same type. For leaves each specified identity or diff field
// of a must equal the field of other; unspecified fields impose nothing, so
// a leaf with every field unspecified is satisfied by any leaf of its type.
func SatisfiedBy(a, other Object) (bool, error) {
	if a.TypeName() != other.TypeName() {
		return false, &TypeMismatchError{Left: a.TypeName(), Right: other.TypeName()}
	}

	switch a.Kind() {
	case KindCollection:
		ac, ok := a.(Collection)
		if !ok {
			return false, fmt.Errorf("%s declares a collection kind without elements", a.TypeName())
		}
		oc, ok := other.(Collection)
		if !ok {
			return false, fmt.Errorf("%s declares a collection kind without elements", other.TypeName())
		}
		for _, item := range ac.Elements() {
			found := false
			for _, candidate := range oc.Elements() {
				if candidate.TypeName() != item.TypeName() {
					continue
				}
				ok, err := SatisfiedBy(item, candidate)
				if err != nil {
					return false, err
				}
				if ok {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	default:
		otherFields := compareFields(other)
		for _, f := range compareFields(a) {
			if f.Value == Unspecified {
				continue
			}
			if fieldValue(otherFields, f.Name) != f.Value {
				return false, nil
			}
		}
		return true, nil
	}
}

// IdenticalTo reports whether a and other have the same type and equal
// identity and diff fields. Unspecified is compared like any other value.
func IdenticalTo(a, other Object) bool {
	if a.TypeName() != other.TypeName() {
		return false
	}
	af, of := compareFields(a), compareFields(other)
	if len(af) != len(of) {
		return false
	}
	for i := range af {
		if af[i] != of[i] {
			return false
		}
	}
	return true
}
