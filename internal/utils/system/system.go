package system

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
)

var OsReleaseFile = "/etc/os-release"

// OsDistribution contains information about the Linux OS distribution
type OsDistribution struct {
	Name            string   // Distribution name (e.g., "Ubuntu", "Fedora", "Azure Linux")
	PrettyName      string   // Human readable name with version
	Version         string   // Version (e.g., "22.04", "38")
	ID              string   // Distribution ID (e.g., "ubuntu", "fedora")
	IDLike          []string // Related distributions (e.g., ["debian"], ["rhel", "fedora"])
	PackageTypes    []string // Supported package types (e.g., ["deb"], ["rpm"])
	PackageManagers []string // Package managers (e.g., ["apt", "dpkg"], ["tdnf", "rpm"])
}

// HasPackageType reports whether the distribution uses packages of type t.
func (d *OsDistribution) HasPackageType(t string) bool {
	return slices.Contains(d.PackageTypes, t)
}

// ParseOsRelease parses os-release content into its key/value pairs.
func ParseOsRelease(content string) (map[string]string, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading os-release: %w", err)
	}
	return values, nil
}

// DetectOsDistribution detects the Linux distribution behind sess and its
// supported package types by parsing /etc/os-release and checking the
// available package managers.
func DetectOsDistribution(ctx context.Context, sess session.Session) (*OsDistribution, error) {
	log := logger.Logger()

	content, err := sess.Read(ctx, OsReleaseFile)
	if err != nil {
		return nil, fmt.Errorf("file %s not readable: %w", OsReleaseFile, err)
	}
	values, err := ParseOsRelease(content)
	if err != nil {
		return nil, err
	}

	osInfo := &OsDistribution{
		Name:       values["NAME"],
		PrettyName: values["PRETTY_NAME"],
		Version:    values["VERSION_ID"],
		ID:         strings.ToLower(values["ID"]),
		// ID_LIKE can contain multiple space-separated values
		IDLike: strings.Fields(values["ID_LIKE"]),
	}
	osInfo.PackageTypes, osInfo.PackageManagers, err = detectPackageSupport(ctx, sess, osInfo.ID, osInfo.IDLike)
	if err != nil {
		return nil, err
	}

	if len(osInfo.PackageTypes) == 0 {
		log.Warnf("Could not determine package type for distribution: %s (ID: %s)", osInfo.Name, osInfo.ID)
	}
	log.Debugf("Detected OS distribution: %s %s (ID: %s, Package Types: %v, Package Managers: %v)",
		osInfo.Name, osInfo.Version, osInfo.ID, osInfo.PackageTypes, osInfo.PackageManagers)

	return osInfo, nil
}

// detectPackageSupport determines the package types and managers based on distribution ID
func detectPackageSupport(ctx context.Context, sess session.Session, id string, idLike []string) ([]string, []string, error) {
	if pkgTypes, pkgMgrs := getPackageInfoForID(id); len(pkgTypes) > 0 {
		return pkgTypes, pkgMgrs, nil
	}
	for _, likeID := range idLike {
		if pkgTypes, pkgMgrs := getPackageInfoForID(likeID); len(pkgTypes) > 0 {
			return pkgTypes, pkgMgrs, nil
		}
	}
	return detectFromCommands(ctx, sess)
}

// getPackageInfoForID returns package types and managers for a given distribution ID
func getPackageInfoForID(id string) ([]string, []string) {
	switch strings.ToLower(id) {
	case "ubuntu", "debian", "linuxmint", "pop", "elementary", "kali", "raspbian", "elxr":
		return []string{"deb"}, []string{"apt", "dpkg"}
	case "fedora", "rhel", "centos", "rocky", "almalinux", "scientific", "oracle":
		return []string{"rpm"}, []string{"dnf", "yum", "rpm"}
	case "opensuse", "opensuse-leap", "opensuse-tumbleweed", "sles", "sle":
		return []string{"rpm"}, []string{"zypper", "rpm"}
	case "mariner", "azurelinux":
		return []string{"rpm"}, []string{"tdnf", "rpm"}
	case "arch", "manjaro", "endeavouros":
		return []string{"pkg.tar.zst"}, []string{"pacman"}
	case "alpine":
		return []string{"apk"}, []string{"apk"}
	default:
		return nil, nil
	}
}

// detectFromCommands attempts to detect package support by checking for package manager commands
func detectFromCommands(ctx context.Context, sess session.Session) ([]string, []string, error) {
	// order matters for precedence
	checks := []struct {
		cmd          string
		packageTypes []string
		managers     []string
	}{
		{"dpkg", []string{"deb"}, []string{"dpkg"}},
		{"rpm", []string{"rpm"}, []string{"rpm"}},
		{"pacman", []string{"pkg.tar.zst"}, []string{"pacman"}},
		{"apk", []string{"apk"}, []string{"apk"}},
	}
	for _, check := range checks {
		exists, err := IsCommandExist(ctx, sess, check.cmd)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return check.packageTypes, check.managers, nil
		}
	}
	return nil, nil, nil
}

// IsCommandExist reports whether cmd resolves on the PATH behind sess.
func IsCommandExist(ctx context.Context, sess session.Session, cmd string) (bool, error) {
	_, _, err := sess.ExecuteCommand(ctx, []string{"sh", "-c", "command -v " + cmd}, session.ExecOptions{})
	if err == nil {
		return true, nil
	}
	if _, ok := session.IsCommandError(err); ok && ctx.Err() == nil {
		return false, nil
	}
	return false, err
}

// GetArch returns the machine architecture reported by uname.
func GetArch(ctx context.Context, sess session.Session) (string, error) {
	out, _, err := sess.ExecuteCommand(ctx, []string{"uname", "-m"}, session.ExecOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get architecture: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// DetectBase describes the operating system behind sess. Missing
// information leaves fields empty; only transport failures are errors.
func DetectBase(ctx context.Context, sess session.Session) (*spec.Base, error) {
	log := logger.Logger()
	base := &spec.Base{}

	arch, err := GetArch(ctx, sess)
	if err != nil {
		if _, ok := session.IsCommandError(err); !ok || ctx.Err() != nil {
			return nil, err
		}
		log.Warnf("Failed to get architecture: %v", err)
	}
	base.Architecture = arch

	osInfo, err := DetectOsDistribution(ctx, sess)
	if err != nil {
		if _, ok := session.IsCommandError(err); !ok || ctx.Err() != nil {
			return nil, err
		}
		log.Warnf("Failed to detect OS distribution: %v", err)
		return base, nil
	}
	base.Name = osInfo.ID
	base.Version = osInfo.Version
	log.Infof("Detected OS info: %s %s %s", base.Name, base.Version, base.Architecture)
	return base, nil
}
