package spec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/open-edge-platform/os-env-tracer/internal/session/sessiontest"
)

func TestGetDistribution(t *testing.T) {
	env := &EnvironmentSpec{}
	if _, ok, err := GetDistribution[*testDist](env); ok || err != nil {
		t.Errorf("expected absent distribution, got %v %v", ok, err)
	}

	d := dist(pkg("a=1"))
	env.Distributions = []Distribution{d}
	got, ok, err := GetDistribution[*testDist](env)
	if err != nil || !ok || got != d {
		t.Errorf("expected to find distribution, got %v %v %v", got, ok, err)
	}

	env.Distributions = append(env.Distributions, dist())
	if _, _, err := GetDistribution[*testDist](env); !errors.Is(err, ErrMultipleDistributions) {
		t.Errorf("expected ErrMultipleDistributions, got %v", err)
	}
}

func TestAllFiles(t *testing.T) {
	env := &EnvironmentSpec{
		Distributions: []Distribution{dist(pkg("a", "/usr/bin/a", "/usr/share/a"))},
		Files:         []string{"/etc/loose", "/usr/bin/a"},
	}
	want := []string{"/etc/loose", "/usr/bin/a", "/usr/share/a"}
	if diff := cmp.Diff(want, env.AllFiles()); diff != "" {
		t.Errorf("AllFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentOmitsEmptyAndKeepsOrder(t *testing.T) {
	doc := NewDocument().
		Set("name", "bash").
		Set("version", "").
		Set("files", []string{}).
		Set("architecture", "amd64").
		Set("size", 0).
		Set("nested", NewDocument())
	if diff := cmp.Diff([]string{"name", "architecture"}, doc.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteAndParseRoundTrip(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("test", func() Distribution { return &testDist{} }); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("test", func() Distribution { return &testDist{} }); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	env := &EnvironmentSpec{
		Base:          &Base{Name: "Debian GNU/Linux", Version: "12"},
		Distributions: []Distribution{&testDist{Name: "test", Version: "1", Packages: []*testPackage{pkg("bash=5.2", "/bin/bash")}}},
		Files:         []string{"/etc/hosts"},
	}
	data, err := Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	text := string(data)
	if strings.Index(text, "base:") > strings.Index(text, "distributions:") {
		t.Errorf("expected base before distributions:\n%s", text)
	}
	if strings.Contains(text, "architecture") {
		t.Errorf("empty fields must be omitted:\n%s", text)
	}

	loaded, err := Parse(data, reg)
	if err != nil {
		t.Fatalf("Parse failed: %v\n%s", err, text)
	}
	ok, err := SatisfiedBy(env, loaded)
	if err != nil || !ok {
		t.Errorf("round-tripped spec should satisfy the original: %v %v", ok, err)
	}
	if diff := cmp.Diff(env.AllFiles(), loaded.AllFiles()); diff != "" {
		t.Errorf("files mismatch:\n%s", diff)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	reg := NewRegistry()
	tests := map[string]string{
		"unknown top-level key": "packages: []\n",
		"distribution without name": "distributions:\n- version: 1\n",
		"unregistered tag":          "distributions:\n- name: nosuch\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc), reg); err == nil {
				t.Errorf("expected error for %q", doc)
			}
		})
	}
}

func TestInstall(t *testing.T) {
	sess := sessiontest.New().On(sessiontest.Command{Prefix: []string{"install"}})
	if err := Install(context.Background(), sess, dist(pkg("a"), pkg("b"))); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if got := len(sess.CallsWith("install")); got != 2 {
		t.Errorf("expected 2 install calls, got %d", got)
	}
}
