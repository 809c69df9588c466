// Package chroot maps paths between the host and a chroot being traced.
package chroot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ChrootEnv is a directory tree traced as if it were the root filesystem.
type ChrootEnv struct {
	ChrootEnvRoot string
}

// NewChrootEnv validates root and returns its environment.
func NewChrootEnv(root string) (*ChrootEnv, error) {
	if root == "" {
		return nil, fmt.Errorf("chroot root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving chroot root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("chroot root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("chroot root %s is not a directory", root)
	}
	return &ChrootEnv{ChrootEnvRoot: abs}, nil
}

// GetChrootEnvHostPath returns the host path of a path inside the chroot.
func (c *ChrootEnv) GetChrootEnvHostPath(chrootPath string) (string, error) {
	if c.ChrootEnvRoot == "" {
		return "", fmt.Errorf("chroot root is not set")
	}
	for _, part := range strings.Split(filepath.ToSlash(chrootPath), "/") {
		if part == ".." {
			return "", fmt.Errorf("path %s escapes the chroot", chrootPath)
		}
	}
	return filepath.Join(c.ChrootEnvRoot, chrootPath), nil
}

// GetChrootEnvPath converts a host path under the chroot root to the path
// seen inside the chroot.
func (c *ChrootEnv) GetChrootEnvPath(hostPath string) (string, error) {
	if c.ChrootEnvRoot == "" {
		return "", fmt.Errorf("chroot root is not set")
	}
	rel, err := filepath.Rel(c.ChrootEnvRoot, filepath.Clean(hostPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside chroot %s", hostPath, c.ChrootEnvRoot)
	}
	if rel == "." {
		return "/", nil
	}
	return "/" + filepath.ToSlash(rel), nil
}

// Contains reports whether hostPath lies under the chroot root.
func (c *ChrootEnv) Contains(hostPath string) bool {
	_, err := c.GetChrootEnvPath(hostPath)
	return err == nil
}
