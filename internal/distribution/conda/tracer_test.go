package conda

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/open-edge-platform/os-env-tracer/internal/session/sessiontest"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
)

func condaSession() *sessiontest.Session {
	sess := sessiontest.New().AddDir("/opt/conda/conda-meta", "/opt/conda/envs/ml/conda-meta")
	sess.AddFile("/opt/conda/conda-meta/python-3.11.5-h955ad1f_0.json",
		`{"name": "python", "version": "3.11.5", "build": "h955ad1f_0", "channel": "pkgs/main",
		  "files": ["bin/python3.11", "lib/libpython3.11.so"]}`)
	sess.AddFile("/opt/conda/conda-meta/history", "==> 2023-10-01 <==\n")
	sess.AddFile("/opt/conda/envs/ml/conda-meta/numpy-1.26.0-py311h08b1b3b_0.json",
		`{"name": "numpy", "version": "1.26.0", "build": "py311h08b1b3b_0", "channel": "conda-forge",
		  "files": ["lib/python3.11/site-packages/numpy/__init__.py"]}`)
	sess.AddFile("/opt/conda/envs/ml/conda-meta/broken.json", "{")
	sess.On(sessiontest.Command{
		Prefix: []string{"ls", "-1", "/opt/conda/conda-meta"},
		Stdout: "history\npython-3.11.5-h955ad1f_0.json\n",
	})
	sess.On(sessiontest.Command{
		Prefix: []string{"ls", "-1", "/opt/conda/envs/ml/conda-meta"},
		Stdout: "broken.json\nnumpy-1.26.0-py311h08b1b3b_0.json\n",
	})
	sess.On(sessiontest.Command{
		Prefix: []string{"/opt/conda/bin/conda", "info", "--json"},
		Stdout: `{"conda_version": "23.7.4", "channels": ["https://repo.anaconda.com/pkgs/main/linux-64"]}`,
	})
	return sess
}

func TestIdentifyDistributions(t *testing.T) {
	sess := condaSession()
	files := []string{
		"/opt/conda/bin/python3.11",
		"/opt/conda/envs/ml/lib/python3.11/site-packages/numpy/__init__.py",
		"/opt/conda/bin/custom-script",
		"/usr/bin/ls",
	}
	results, err := NewTracer(sess, tracer.BatchOptions{}).IdentifyDistributions(context.Background(), files)
	if err != nil {
		t.Fatalf("IdentifyDistributions: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("envs of one installation must form one distribution, got %d", len(results))
	}
	dist := results[0].Distribution.(*Distribution)
	if dist.Path != "/opt/conda" || dist.CondaVersion != "23.7.4" || len(dist.Channels) != 1 {
		t.Errorf("unexpected installation metadata: %+v", dist)
	}
	if len(dist.Environments) != 2 {
		t.Fatalf("expected base and ml environments, got %d", len(dist.Environments))
	}
	base, ml := dist.Environments[0], dist.Environments[1]
	want := &Package{Name: "python", Version: "3.11.5", Build: "h955ad1f_0", Channel: "pkgs/main", Files: []string{"bin/python3.11"}}
	if diff := cmp.Diff(want, base.Packages[0]); diff != "" {
		t.Errorf("python mismatch (-want +got):\n%s", diff)
	}
	if ml.Path != "/opt/conda/envs/ml" || ml.Packages[0].Name != "numpy" {
		t.Errorf("unexpected ml environment: %+v", ml)
	}
	if diff := cmp.Diff([]string{"/opt/conda/bin/custom-script", "/usr/bin/ls"}, results[0].Remaining); diff != "" {
		t.Errorf("remaining mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/opt/conda/bin/python3.11", "/opt/conda/envs/ml/lib/python3.11/site-packages/numpy/__init__.py"}, dist.Files()); diff != "" {
		t.Errorf("absolute files mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentifyDistributionsReadsMetadataOnce(t *testing.T) {
	sess := condaSession()
	tr := NewTracer(sess, tracer.BatchOptions{})
	for range 2 {
		if _, err := tr.IdentifyDistributions(context.Background(), []string{"/opt/conda/bin/python3.11"}); err != nil {
			t.Fatalf("IdentifyDistributions: %v", err)
		}
	}
	if got := len(sess.CallsWith("ls", "-1", "/opt/conda/conda-meta")); got != 1 {
		t.Errorf("conda-meta should be listed once per tracer, got %d", got)
	}
}

func TestIdentifyDistributionsNoConda(t *testing.T) {
	results, err := NewTracer(sessiontest.New(), tracer.BatchOptions{}).IdentifyDistributions(context.Background(), []string{"/usr/bin/ls"})
	if err != nil || results != nil {
		t.Errorf("expected nothing, got %v, %v", results, err)
	}
}

func TestInstallation(t *testing.T) {
	for prefix, want := range map[string]string{
		"/opt/conda":          "/opt/conda",
		"/opt/conda/envs/ml":  "/opt/conda",
		"/home/u/miniforge3":  "/home/u/miniforge3",
		"/home/u/project/env": "/home/u/project/env",
	} {
		if got := installation(prefix); got != want {
			t.Errorf("installation(%s) = %s, want %s", prefix, got, want)
		}
	}
}

func TestInstallCommands(t *testing.T) {
	d := &Distribution{
		Name: Tag, Path: "/opt/conda", Channels: []string{"conda-forge"},
		Environments: []*Environment{
			{Path: "/opt/conda/envs/ml", Packages: []*Package{{Name: "numpy", Version: "1.26.0", Build: "py311_0"}, {Name: "pip"}}},
			{Path: "/opt/conda/envs/empty"},
		},
	}
	want := [][]string{{"/opt/conda/bin/conda", "install", "-y", "-p", "/opt/conda/envs/ml", "-c", "conda-forge", "numpy=1.26.0=py311_0", "pip"}}
	if diff := cmp.Diff(want, d.InstallCommands()); diff != "" {
		t.Errorf("InstallCommands mismatch (-want +got):\n%s", diff)
	}
}
