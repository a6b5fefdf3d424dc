// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultWorkspaceDir is the workspace root, relative to the working directory.
	DefaultWorkspaceDir = "flow_modules"

	// CachePathEnv overrides the default registry cache location.
	CachePathEnv = "FLOWVERSE_CACHE"

	// localDirName groups copies of local sources under the workspace root.
	localDirName = "local"
)

// GetDefaultCacheDir returns the default registry cache directory.
// It checks FLOWVERSE_CACHE first, then falls back to ~/.cache/flows/flow_verse.
func GetDefaultCacheDir() (string, error) {
	return GetDefaultCacheDirWith(os.Getenv)
}

// GetDefaultCacheDirWith returns the default cache directory using the provided
// getenv function. This enables testing without mutating process-global environment state.
func GetDefaultCacheDirWith(getenv func(string) string) (string, error) {
	if envPath := getenv(CachePathEnv); envPath != "" {
		return envPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cache", "flows", "flow_verse"), nil
}

// TargetDir returns where a normalized dependency is synced under root.
// The result depends on the source only, never on the revision.
func TargetDir(root string, dep Dependency) (string, error) {
	if dep.IsLocal() {
		abs, err := filepath.Abs(string(dep.Source))
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", dep.Source, err)
		}
		return filepath.Join(root, localDirName, filepath.Base(abs)), nil
	}

	rel, err := LocatorPath(dep.Source)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// prepareWorkspace creates root when missing and hides its content from
// version control.
func prepareWorkspace(root string) error {
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("failed to create workspace %s: %w", root, err)
		}
	case err != nil:
		return fmt.Errorf("failed to inspect workspace %s: %w", root, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s", ErrWorkspaceNotDir, root)
	}

	return UpdateIgnore(root, IgnoreTruncate, "*")
}
