// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildModuleID(t *testing.T) {
	t.Parallel()

	id, err := BuildModuleID("registryA/moduleX", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "registryA/moduleX:r1" {
		t.Errorf("BuildModuleID() = %q", id)
	}

	if _, err := BuildModuleID("registryA/moduleX", "r 1"); !errors.Is(err, ErrInvalidRevision) {
		t.Errorf("BuildModuleID() with illegal revision = %v, want ErrInvalidRevision", err)
	}
}

func TestModuleIDRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, ok := ReadModuleID(dir); ok {
		t.Fatal("ReadModuleID() on empty dir should report absent")
	}

	if err := WriteModuleID(dir, "org/mod:v1"); err != nil {
		t.Fatal(err)
	}
	id, ok := ReadModuleID(dir)
	if !ok || id != "org/mod:v1" {
		t.Fatalf("ReadModuleID() = (%q, %v), want org/mod:v1", id, ok)
	}

	// A second write replaces the record instead of appending to it.
	if err := WriteModuleID(dir, "org/mod:v2"); err != nil {
		t.Fatal(err)
	}
	if id, ok := ReadModuleID(dir); !ok || id != "org/mod:v2" {
		t.Fatalf("ReadModuleID() after rewrite = (%q, %v)", id, ok)
	}

	data, err := os.ReadFile(filepath.Join(dir, ModuleIDFileName))
	if err != nil {
		t.Fatal(err)
	}
	if want := moduleIDFileHeader + "org/mod:v2\n"; string(data) != want {
		t.Errorf("marker content = %q, want %q", data, want)
	}
}

func TestReadModuleID_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"header only", moduleIDFileHeader},
		{"blank identity", moduleIDFileHeader + "   \n"},
		{"corrupted header", "#######\n# edited by hand #\n#######\norg/mod:v1\n"},
		{"missing header", "org/mod:v1\n"},
		{"extra lines", moduleIDFileHeader + "org/mod:v1\norg/mod:v2\n"},
		{"trailing blank line", moduleIDFileHeader + "org/mod:v1\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, ModuleIDFileName), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if id, ok := ReadModuleID(dir); ok {
				t.Errorf("ReadModuleID() = %q, want absent", id)
			}
		})
	}
}

func TestReadModuleID_WithoutTrailingNewline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ModuleIDFileName), []byte(moduleIDFileHeader+"org/mod:v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if id, ok := ReadModuleID(dir); !ok || id != "org/mod:v1" {
		t.Errorf("ReadModuleID() = (%q, %v), want org/mod:v1", id, ok)
	}
}

func TestMarkerStore(t *testing.T) {
	t.Parallel()

	var store ProvenanceStore = MarkerStore{}
	dir := t.TempDir()
	if err := store.Write(dir, "a:b"); err != nil {
		t.Fatal(err)
	}
	if id, ok := store.Read(dir); !ok || id != "a:b" {
		t.Errorf("Read() = (%q, %v)", id, ok)
	}
	if err := store.Write(filepath.Join(dir, "missing"), "a:b"); err == nil {
		t.Error("Write() into a missing directory should fail")
	}
}
