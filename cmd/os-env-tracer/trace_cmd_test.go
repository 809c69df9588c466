package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/os-env-tracer/internal/chroot"
	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/session/sessiontest"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
)

func fakeSession(t *testing.T) {
	t.Helper()
	prev := newSession
	newSession = func(string) session.Session {
		return sessiontest.New().On(sessiontest.Command{
			Prefix: []string{"docker", "image", "inspect"},
			Stdout: `[{"Id": "sha256:bbb", "RepoTags": ["alpine:latest"]}]`,
		})
	}
	t.Cleanup(func() {
		newSession = prev
		traceFrom, traceChroot, traceOutput, traceProgress, traceReportDir = "", "", "", false, ""
	})
}

func TestTraceWritesSpecification(t *testing.T) {
	fakeSession(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "env.yml")

	if _, err := runRoot(t, "trace", "--progress", "-o", out, "docker-image:alpine", "/srv/loose.txt"); err != nil {
		t.Fatalf("trace: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	for _, want := range []string{"name: docker", "id: sha256:bbb", "- /srv/loose.txt"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in specification:\n%s", want, data)
		}
	}

	// the written specification retraces to the same images
	stdout, err := runRoot(t, "trace", "--from", out)
	if err != nil {
		t.Fatalf("trace --from: %v", err)
	}
	if !strings.Contains(stdout, "id: sha256:bbb") {
		t.Errorf("retrace lost the image:\n%s", stdout)
	}
}

func TestTraceRequiresPaths(t *testing.T) {
	fakeSession(t)
	if _, err := runRoot(t, "trace"); err == nil || !strings.Contains(err.Error(), "no paths") {
		t.Fatalf("expected missing paths error, got %v", err)
	}
}

func TestResolvePaths(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	got, err := resolvePaths([]string{"/etc/hosts", "docker-image:alpine", "notes.txt"}, nil)
	if err != nil {
		t.Fatalf("resolvePaths: %v", err)
	}
	want := []string{"/etc/hosts", "docker-image:alpine", filepath.Join(wd, "notes.txt")}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
	}

	env := &chroot.ChrootEnv{ChrootEnvRoot: "/srv/root"}
	got, err = resolvePaths([]string{"/srv/root/usr/bin/ls", "/etc/hosts"}, env)
	if err != nil {
		t.Fatalf("resolvePaths in chroot: %v", err)
	}
	if got[0] != "/usr/bin/ls" || got[1] != "/etc/hosts" {
		t.Errorf("unexpected chroot paths %v", got)
	}
	if _, err := resolvePaths([]string{"notes.txt"}, env); err == nil {
		t.Error("expected relative path inside a chroot to be rejected")
	}
}

type fakeProgress struct {
	description string
	sets        []int
}

func (f *fakeProgress) Describe(d string) { f.description = d }

func (f *fakeProgress) Set(n int) error {
	f.sets = append(f.sets, n)
	return nil
}

func TestProgressObserverNeverGoesBackwards(t *testing.T) {
	bar := &fakeProgress{}
	observe := progressObserver(bar, 10)

	observe(tracer.Event{Round: 1, Tracer: "debian", Remaining: 4})
	observe(tracer.Event{Round: 1, Tracer: "venv", Remaining: 7})
	observe(tracer.Event{Round: 2, Tracer: "vcs", Remaining: 2})
	if len(bar.sets) != 2 || bar.sets[0] != 6 || bar.sets[1] != 8 {
		t.Errorf("unexpected progress updates %v", bar.sets)
	}
	if bar.description != "round 2: vcs" {
		t.Errorf("description = %q", bar.description)
	}
}
