package system_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/session/sessiontest"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/system"
)

func TestDetectOsDistribution(t *testing.T) {
	tests := []struct {
		name             string
		osReleaseContent string
		expectedName     string
		expectedVersion  string
		expectedID       string
		expectedIDLike   []string
		expectedTypes    []string
	}{
		{
			name: "ubuntu_complete",
			osReleaseContent: `NAME="Ubuntu"
VERSION_ID="22.04"
ID=ubuntu
ID_LIKE=debian`,
			expectedName:    "Ubuntu",
			expectedVersion: "22.04",
			expectedID:      "ubuntu",
			expectedIDLike:  []string{"debian"},
			expectedTypes:   []string{"deb"},
		},
		{
			name: "fedora_complete",
			osReleaseContent: `NAME="Fedora Linux"
VERSION_ID="38"
ID=fedora
ID_LIKE="rhel fedora"`,
			expectedName:    "Fedora Linux",
			expectedVersion: "38",
			expectedID:      "fedora",
			expectedIDLike:  []string{"rhel", "fedora"},
			expectedTypes:   []string{"rpm"},
		},
		{
			name: "id_like_fallback",
			osReleaseContent: `# derived distribution
NAME="Custom"
ID=custom
ID_LIKE="centos rhel"`,
			expectedName:   "Custom",
			expectedID:     "custom",
			expectedIDLike: []string{"centos", "rhel"},
			expectedTypes:  []string{"rpm"},
		},
		{
			name: "debian_minimal",
			osReleaseContent: `NAME=Debian
VERSION_ID=11
ID=debian`,
			expectedName:    "Debian",
			expectedVersion: "11",
			expectedID:      "debian",
			expectedTypes:   []string{"deb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := sessiontest.New().AddFile(system.OsReleaseFile, tt.osReleaseContent)
			osInfo, err := system.DetectOsDistribution(context.Background(), sess)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if osInfo.Name != tt.expectedName {
				t.Errorf("expected name %q, got %q", tt.expectedName, osInfo.Name)
			}
			if osInfo.Version != tt.expectedVersion {
				t.Errorf("expected version %q, got %q", tt.expectedVersion, osInfo.Version)
			}
			if osInfo.ID != tt.expectedID {
				t.Errorf("expected ID %q, got %q", tt.expectedID, osInfo.ID)
			}
			if len(tt.expectedIDLike) > 0 && !reflect.DeepEqual(osInfo.IDLike, tt.expectedIDLike) {
				t.Errorf("expected ID_LIKE %v, got %v", tt.expectedIDLike, osInfo.IDLike)
			}
			if !reflect.DeepEqual(osInfo.PackageTypes, tt.expectedTypes) {
				t.Errorf("expected package types %v, got %v", tt.expectedTypes, osInfo.PackageTypes)
			}
		})
	}
}

func TestDetectOsDistribution_CommandDetection(t *testing.T) {
	sess := sessiontest.New().AddFile(system.OsReleaseFile, "NAME=Unknown\nID=unknown\n")
	sess.On(sessiontest.Command{Prefix: []string{"sh", "-c", "command -v rpm"}, Stdout: "/usr/bin/rpm\n"})

	osInfo, err := system.DetectOsDistribution(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !osInfo.HasPackageType("rpm") || osInfo.HasPackageType("deb") {
		t.Errorf("expected rpm detected from commands, got %v", osInfo.PackageTypes)
	}
}

func TestDetectOsDistribution_FileNotFound(t *testing.T) {
	_, err := system.DetectOsDistribution(context.Background(), sessiontest.New())
	if err == nil {
		t.Fatalf("expected error when os-release is missing")
	}
	if _, ok := session.IsCommandError(err); !ok {
		t.Errorf("expected the read failure to be kept, got %v", err)
	}
}

func TestDetectBase(t *testing.T) {
	sess := sessiontest.New().AddFile(system.OsReleaseFile, "ID=debian\nVERSION_ID=12\n")
	sess.On(sessiontest.Command{Prefix: []string{"uname", "-m"}, Stdout: "x86_64\n"})

	base, err := system.DetectBase(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.Name != "debian" || base.Version != "12" || base.Architecture != "x86_64" {
		t.Errorf("unexpected base: %+v", base)
	}
}

func TestDetectBase_Partial(t *testing.T) {
	base, err := system.DetectBase(context.Background(), sessiontest.New())
	if err != nil {
		t.Fatalf("missing tools must not fail: %v", err)
	}
	if base.Name != "" || base.Architecture != "" {
		t.Errorf("expected empty base, got %+v", base)
	}
}

func TestDetectBase_Unavailable(t *testing.T) {
	sess := sessiontest.New().On(sessiontest.Command{Prefix: []string{"uname"}, Err: session.ErrUnavailable})
	if _, err := system.DetectBase(context.Background(), sess); !errors.Is(err, session.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseOsRelease(t *testing.T) {
	values, err := system.ParseOsRelease("PRETTY_NAME='Rocky Linux 9'\n\nbroken line\nID = rocky\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["PRETTY_NAME"] != "Rocky Linux 9" || values["ID"] != "rocky" {
		t.Errorf("unexpected values: %v", values)
	}
}
