// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaultCacheDirWith(t *testing.T) {
	t.Parallel()

	got, err := GetDefaultCacheDirWith(func(key string) string {
		if key == CachePathEnv {
			return "/custom/cache"
		}
		return ""
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "/custom/cache" {
		t.Errorf("GetDefaultCacheDirWith() = %q, want env override", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err = GetDefaultCacheDirWith(func(string) string { return "" })
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".cache", "flows", "flow_verse"); got != want {
		t.Errorf("GetDefaultCacheDirWith() = %q, want %q", got, want)
	}
}

func TestTargetDir_RemoteIgnoresRevision(t *testing.T) {
	t.Parallel()

	root := filepath.Join("ws", DefaultWorkspaceDir)
	r1, err := ValidateAndAugment(Dependency{Source: "registryA/moduleX", Revision: "r1"})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := ValidateAndAugment(Dependency{Source: "registryA/moduleX", Revision: "r2"})
	if err != nil {
		t.Fatal(err)
	}

	d1, err := TargetDir(root, r1)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := TargetDir(root, r2)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Errorf("TargetDir differs by revision: %q vs %q", d1, d2)
	}
	if want := filepath.Join(root, "registryA", "moduleX"); d1 != want {
		t.Errorf("TargetDir() = %q, want %q", d1, want)
	}
}

func TestTargetDir_Local(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "my-local-dep")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}
	dep, err := ValidateAndAugment(Dependency{Source: Source(src)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := TargetDir("/ws", dep)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/ws", "local", "my-local-dep"); got != want {
		t.Errorf("TargetDir() = %q, want %q", got, want)
	}
}

func TestPrepareWorkspace(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), DefaultWorkspaceDir)
	if err := prepareWorkspace(root); err != nil {
		t.Fatalf("prepareWorkspace() error: %v", err)
	}
	if got, want := readIgnore(t, root), ignoreBanner+"*\n"; got != want {
		t.Errorf(".gitignore = %q, want %q", got, want)
	}

	// Existing workspaces are reused and the ignore list is rewritten.
	if err := prepareWorkspace(root); err != nil {
		t.Fatal(err)
	}
	if got, want := readIgnore(t, root), ignoreBanner+"*\n"; got != want {
		t.Errorf(".gitignore after second call = %q, want %q", got, want)
	}
}

func TestPrepareWorkspace_NotDir(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), DefaultWorkspaceDir)
	writeFile(t, root, "not a directory")

	if err := prepareWorkspace(root); !errors.Is(err, ErrWorkspaceNotDir) {
		t.Errorf("prepareWorkspace() = %v, want ErrWorkspaceNotDir", err)
	}
}
