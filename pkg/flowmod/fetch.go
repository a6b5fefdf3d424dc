// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type (
	// Registry materializes a named revision of a remote module into a
	// directory. cacheDir is scratch space owned by the registry.
	Registry interface {
		Retrieve(ctx context.Context, locator Source, rev Revision, cacheDir, targetDir string) error
	}

	// RegistryFunc adapts a plain function to the Registry interface.
	RegistryFunc func(ctx context.Context, locator Source, rev Revision, cacheDir, targetDir string) error
)

// Retrieve implements Registry.
func (f RegistryFunc) Retrieve(ctx context.Context, locator Source, rev Revision, cacheDir, targetDir string) error {
	return f(ctx, locator, rev, cacheDir, targetDir)
}

// fetchRemote retrieves dep into targetDir and stamps it. A registry failure
// leaves targetDir as the registry left it, without a marker.
func (s *Syncer) fetchRemote(ctx context.Context, dep Dependency, id ModuleID, targetDir string) error {
	if err := s.registry.Retrieve(ctx, dep.Source, dep.Revision, s.cacheDir, targetDir); err != nil {
		return &FetchError{ModuleID: id, Target: targetDir, Err: err}
	}
	return s.stamp(id, targetDir)
}

// fetchLocal copies the local source into targetDir and stamps it. Without
// overwrite the target must be missing or empty.
func (s *Syncer) fetchLocal(dep Dependency, id ModuleID, targetDir string, overwrite bool) error {
	if !overwrite && !isEmptyDir(targetDir) {
		return &TargetExistsError{ModuleID: id, Target: targetDir}
	}

	if err := os.MkdirAll(filepath.Dir(targetDir), 0o755); err != nil {
		return &FetchError{ModuleID: id, Target: targetDir, Err: err}
	}
	if err := copyTree(string(dep.Source), targetDir, s.copyExcludes); err != nil {
		return &FetchError{ModuleID: id, Target: targetDir, Err: fmt.Errorf("copy %s: %w", dep.Source, err)}
	}
	return s.stamp(id, targetDir)
}

// stamp records provenance and hides the marker from version control.
func (s *Syncer) stamp(id ModuleID, targetDir string) error {
	if err := s.provenance.Write(targetDir, id); err != nil {
		return &FetchError{ModuleID: id, Target: targetDir, Err: err}
	}
	if err := UpdateIgnore(targetDir, IgnoreAppend, ModuleIDFileName); err != nil {
		return &FetchError{ModuleID: id, Target: targetDir, Err: err}
	}
	return nil
}
