package tracer

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/open-edge-platform/os-env-tracer/internal/session/sessiontest"
)

type ownedPackage struct {
	name, version string
	files         []string
}

func (p *ownedPackage) AddFile(path string) { p.files = append(p.files, path) }

func newOwned(f Fields) (*ownedPackage, bool) {
	if f["name"] == "" {
		return nil, false
	}
	return &ownedPackage{name: f["name"], version: f["version"]}, true
}

type groupSummary struct {
	Name  string
	Files []string
}

func summarize(pkgs []*ownedPackage) []groupSummary {
	var out []groupSummary
	for _, p := range pkgs {
		out = append(out, groupSummary{p.name, p.files})
	}
	return out
}

func TestGroupFiles(t *testing.T) {
	sess := sessiontest.New().AddDir("/usr/lib/python3")
	files := []string{"/usr/lib/python3", "/bin/bash", "/bin/sh", "/usr/bin/bashbug", "/tmp/x", "/opt/bad"}
	fields := map[string]Fields{
		"/usr/lib/python3": {"name": "python3", "version": "3.11"},
		"/bin/bash":        {"name": "bash", "version": "5.2"},
		"/usr/bin/bashbug": {"name": "bash", "version": "5.2"},
		"/bin/sh":          nil,
		"/opt/bad":         {"version": "1"},
	}

	pkgs, unknown, err := GroupFiles(context.Background(), sess, files, fields, newOwned, "")
	if err != nil {
		t.Fatalf("GroupFiles: %v", err)
	}
	want := []groupSummary{
		{"python3", nil},
		{"bash", []string{"/bin/bash", "/usr/bin/bashbug"}},
	}
	if diff := cmp.Diff(want, summarize(pkgs)); diff != "" {
		t.Errorf("packages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/bin/sh", "/tmp/x", "/opt/bad"}, unknown); diff != "" {
		t.Errorf("unknown mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupFilesIdempotentFields(t *testing.T) {
	sess := sessiontest.New()
	files := []string{"/a", "/b"}
	fields := map[string]Fields{
		"/a": {"name": "pkg", "version": "1"},
		"/b": {"version": "1", "name": "pkg"},
	}
	pkgs, _, err := GroupFiles(context.Background(), sess, files, fields, newOwned, "")
	if err != nil {
		t.Fatalf("GroupFiles: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("identical fields must produce one package, got %d", len(pkgs))
	}
}

func TestGroupFilesRelativizes(t *testing.T) {
	sess := sessiontest.New()
	fields := map[string]Fields{"/venv/lib/site.py": {"name": "site"}}
	pkgs, _, err := GroupFiles(context.Background(), sess, []string{"/venv/lib/site.py"}, fields, newOwned, "/venv")
	if err != nil {
		t.Fatalf("GroupFiles: %v", err)
	}
	if diff := cmp.Diff([]string{"lib/site.py"}, pkgs[0].files); diff != "" {
		t.Errorf("relative files mismatch (-want +got):\n%s", diff)
	}
}

func TestAttribution(t *testing.T) {
	a := NewAttribution("test")
	dash := Fields{"name": "dash", "architecture": "amd64"}
	bash := Fields{"name": "bash", "architecture": "amd64"}

	a.Attribute("/bin/dash", dash)
	a.Attribute("/bin/dash", Fields{"architecture": "amd64", "name": "dash"})
	a.Attribute("/bin/sh", dash)
	a.Attribute("/bin/sh", bash)
	a.MarkAmbiguous("/usr/share/diverted")
	a.Attribute("/bin/bash", bash)
	a.MarkAmbiguous("/bin/bash", dash)

	got := a.Resolve()
	want := map[string]Fields{
		"/bin/dash":           dash,
		"/bin/sh":             nil,
		"/usr/share/diverted": nil,
		"/bin/bash":           nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}
