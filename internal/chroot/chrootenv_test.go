package chroot_test

import (
	"os"
	"path/filepath"
	"testing"

	chroot "github.com/open-edge-platform/os-env-tracer/internal/chroot"
)

func TestNewChrootEnv(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	env, err := chroot.NewChrootEnv(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ChrootEnvRoot != root {
		t.Fatalf("expected root %s, got %s", root, env.ChrootEnvRoot)
	}

	for name, path := range map[string]string{
		"empty":         "",
		"missing":       filepath.Join(root, "missing"),
		"not directory": file,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := chroot.NewChrootEnv(path); err == nil {
				t.Fatalf("expected error for %q", path)
			}
		})
	}
}

func TestChrootEnv_GetChrootEnvHostPath(t *testing.T) {
	root := t.TempDir()
	chrootEnv := &chroot.ChrootEnv{ChrootEnvRoot: root}

	t.Run("valid path", func(t *testing.T) {
		got, err := chrootEnv.GetChrootEnvHostPath("var/lib")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := filepath.Join(root, "var/lib")
		if got != expected {
			t.Fatalf("expected %s, got %s", expected, got)
		}
	})

	t.Run("reject parent traversal", func(t *testing.T) {
		if _, err := chrootEnv.GetChrootEnvHostPath("../etc/passwd"); err == nil {
			t.Fatal("expected error for path containing '..'")
		}
	})

	t.Run("missing root", func(t *testing.T) {
		emptyEnv := &chroot.ChrootEnv{}
		if _, err := emptyEnv.GetChrootEnvHostPath("/etc"); err == nil {
			t.Fatal("expected error when chroot root is empty")
		}
	})
}

func TestChrootEnv_GetChrootEnvPath(t *testing.T) {
	root := t.TempDir()
	chrootEnv := &chroot.ChrootEnv{ChrootEnvRoot: root}
	insidePath := filepath.Join(root, "etc", "hosts")

	t.Run("subpath is converted", func(t *testing.T) {
		got, err := chrootEnv.GetChrootEnvPath(insidePath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "/etc/hosts" {
			t.Fatalf("expected /etc/hosts, got %s", got)
		}
	})

	t.Run("root path maps to slash", func(t *testing.T) {
		got, err := chrootEnv.GetChrootEnvPath(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "/" {
			t.Fatalf("expected /, got %s", got)
		}
	})

	t.Run("outside path rejected", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "etc")
		if _, err := chrootEnv.GetChrootEnvPath(outside); err == nil {
			t.Fatal("expected error for path outside chroot root")
		}
		if chrootEnv.Contains(outside) {
			t.Fatal("Contains must be false outside the root")
		}
	})

	t.Run("missing root", func(t *testing.T) {
		emptyEnv := &chroot.ChrootEnv{}
		if _, err := emptyEnv.GetChrootEnvPath(insidePath); err == nil {
			t.Fatal("expected error when chroot root is unset")
		}
	})
}
