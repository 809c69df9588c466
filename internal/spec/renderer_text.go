package spec

import (
	"fmt"
	"io"
	"strings"
)

// Describe returns a one-line label for obj: its type and identity.
func Describe(obj Object) string {
	id, err := Identity(obj)
	if err != nil {
		return obj.TypeName()
	}
	label := obj.TypeName() + " " + strings.Join(nonEmpty(id), " ")
	if dv := nonEmpty(DiffValues(obj)); len(dv) > 0 {
		label += " (" + strings.Join(dv, " ") + ")"
	}
	return label
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// RenderDiffText writes d in a human readable, indented form. Lines
// starting with "-" are only in A, "+" only in B, "~" changed.
func RenderDiffText(w io.Writer, d *DiffResult) error {
	if d.Empty() {
		_, err := fmt.Fprintln(w, "No differences found.")
		return err
	}
	return renderDiff(w, d, 0)
}

func renderDiff(w io.Writer, d *DiffResult, depth int) error {
	indent := strings.Repeat("  ", depth)
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("%s%s\n", indent, Describe(d.A))
	for _, c := range d.Changes {
		printf("%s  ~ %s: %s -> %s\n", indent, c.Field, orNone(c.From), orNone(c.To))
	}
	for _, o := range d.OnlyInA {
		printf("%s  - %s\n", indent, Describe(o))
	}
	for _, o := range d.OnlyInB {
		printf("%s  + %s\n", indent, Describe(o))
	}
	for _, m := range d.Modified {
		printf("%s  ~ %s\n", indent, Describe(m.A))
		for _, c := range m.Changes {
			printf("%s      %s: %s -> %s\n", indent, c.Field, orNone(c.From), orNone(c.To))
		}
	}
	if err != nil {
		return err
	}
	for _, n := range d.Nested {
		if err := renderDiff(w, n, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(unspecified)"
	}
	return s
}
