package spec

import (
	"fmt"
	"sort"
)

// FieldChange represents a change in a single field between two objects.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

// ModifiedElement is a leaf present on both sides whose diff fields differ.
type ModifiedElement struct {
	Key     string        `json:"key"`
	A       Object        `json:"-"`
	B       Object        `json:"-"`
	Changes []FieldChange `json:"changes,omitempty"`
}

// DiffResult is the difference between two objects of the same type.
type DiffResult struct {
	Key string `json:"key"`
	A   Object `json:"-"`
	B   Object `json:"-"`

	// Changes lists differing diff fields of A and B themselves.
	Changes []FieldChange `json:"changes,omitempty"`

	OnlyInA  []Object          `json:"-"`
	OnlyInB  []Object          `json:"-"`
	Modified []ModifiedElement `json:"modified,omitempty"`
	// Nested holds the non-empty diffs of collection elements present on
	// both sides.
	Nested []*DiffResult `json:"nested,omitempty"`
}

// Empty reports whether no difference was found at any depth.
func (d *DiffResult) Empty() bool {
	return len(d.Changes) == 0 && len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0 &&
		len(d.Modified) == 0 && len(d.Nested) == 0
}

// Diff compares a and b. Collections are paired element by element on
// their identity keys; leaves only report their own field changes.
func Diff(a, b Object) (*DiffResult, error) {
	if a.TypeName() != b.TypeName() {
		return nil, &TypeMismatchError{Left: a.TypeName(), Right: b.TypeName()}
	}

	res := &DiffResult{A: a, B: b, Key: a.TypeName()}
	idA, errA := Identity(a)
	idB, errB := Identity(b)
	if errA == nil && errB == nil {
		if !equalStrings(idA, idB) {
			return nil, &IdentityMismatchError{TypeName: a.TypeName(), Left: idA, Right: idB}
		}
		res.Key, _ = Key(a)
	}
	res.Changes = fieldChanges(a.DiffFields(), b.DiffFields())

	if a.Kind() != KindCollection {
		return res, nil
	}
	ac, okA := a.(Collection)
	bc, okB := b.(Collection)
	if !okA || !okB {
		return nil, fmt.Errorf("%s declares a collection kind without elements", a.TypeName())
	}

	elemsA, keysA, err := indexElements(ac.Elements())
	if err != nil {
		return nil, err
	}
	elemsB, keysB, err := indexElements(bc.Elements())
	if err != nil {
		return nil, err
	}

	for _, k := range keysA {
		ea := elemsA[k]
		eb, ok := elemsB[k]
		if !ok {
			res.OnlyInA = append(res.OnlyInA, ea)
			continue
		}
		if ea.Kind() == KindCollection {
			nested, err := Diff(ea, eb)
			if err != nil {
				return nil, err
			}
			if !nested.Empty() {
				res.Nested = append(res.Nested, nested)
			}
			continue
		}
		if !equalStrings(DiffValues(ea), DiffValues(eb)) {
			res.Modified = append(res.Modified, ModifiedElement{
				Key: k, A: ea, B: eb,
				Changes: fieldChanges(ea.DiffFields(), eb.DiffFields()),
			})
		}
	}
	for _, k := range keysB {
		if _, ok := elemsA[k]; !ok {
			res.OnlyInB = append(res.OnlyInB, elemsB[k])
		}
	}

	normalizeDiffResult(res)
	return res, nil
}

// indexElements keys elements by identity. The first element wins when a
// key repeats.
func indexElements(elems []Object) (map[string]Object, []string, error) {
	index := make(map[string]Object, len(elems))
	keys := make([]string, 0, len(elems))
	for _, e := range elems {
		k, err := Key(e)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := index[k]; seen {
			continue
		}
		index[k] = e
		keys = append(keys, k)
	}
	return index, keys, nil
}

func fieldChanges(from, to []Field) []FieldChange {
	var out []FieldChange
	for _, f := range from {
		if v := fieldValue(to, f.Name); v != f.Value {
			out = append(out, FieldChange{Field: f.Name, From: f.Value, To: v})
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func objectKey(o Object) string {
	k, _ := Key(o)
	return k
}

// normalizeDiffResult sorts every list for stable output.
func normalizeDiffResult(d *DiffResult) {
	sort.SliceStable(d.OnlyInA, func(i, j int) bool { return objectKey(d.OnlyInA[i]) < objectKey(d.OnlyInA[j]) })
	sort.SliceStable(d.OnlyInB, func(i, j int) bool { return objectKey(d.OnlyInB[i]) < objectKey(d.OnlyInB[j]) })
	sort.SliceStable(d.Modified, func(i, j int) bool { return d.Modified[i].Key < d.Modified[j].Key })
	sort.SliceStable(d.Nested, func(i, j int) bool { return d.Nested[i].Key < d.Nested[j].Key })
}
