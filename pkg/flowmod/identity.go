// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ModuleIDFileName is the provenance marker written into every synced directory.
	ModuleIDFileName = "FLOW_MODULE_ID"

	// moduleIDFileHeader is the fixed three-line header preceding the identity line.
	moduleIDFileHeader = "########################################\n" +
		"# auto-generated by flows, DO NOT EDIT #\n" +
		"########################################\n"
)

type (
	// ModuleID identifies the (source, revision) pair that populated a directory.
	// Format: "<source>:<revision>".
	ModuleID string

	// ProvenanceStore persists the ModuleID of a synced directory.
	// Read never fails: anything that is not a well-formed record is reported
	// as absent.
	ProvenanceStore interface {
		Read(dir string) (ModuleID, bool)
		Write(dir string, id ModuleID) error
	}

	// MarkerStore is the ProvenanceStore backed by the FLOW_MODULE_ID file.
	MarkerStore struct{}
)

// String returns the string representation of the ModuleID.
func (id ModuleID) String() string { return string(id) }

// BuildModuleID computes the canonical identity of a source at a revision.
func BuildModuleID(src Source, rev Revision) (ModuleID, error) {
	if err := rev.Validate(); err != nil {
		return "", withSource(err, src)
	}
	return ModuleID(fmt.Sprintf("%s:%s", src, rev)), nil
}

// Read implements ProvenanceStore.
func (MarkerStore) Read(dir string) (ModuleID, bool) { return ReadModuleID(dir) }

// Write implements ProvenanceStore.
func (MarkerStore) Write(dir string, id ModuleID) error { return WriteModuleID(dir, id) }

// WriteModuleID stamps dir with id, replacing any previous marker.
func WriteModuleID(dir string, id ModuleID) error {
	content := moduleIDFileHeader + string(id) + "\n"
	if err := os.WriteFile(filepath.Join(dir, ModuleIDFileName), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write module id: %w", err)
	}
	return nil
}

// ReadModuleID returns the identity recorded in dir. The second result is
// false when the marker is missing, has a different header, or does not end
// in exactly one identity line.
func ReadModuleID(dir string) (ModuleID, bool) {
	data, err := os.ReadFile(filepath.Join(dir, ModuleIDFileName))
	if err != nil {
		return "", false
	}

	rest, found := strings.CutPrefix(string(data), moduleIDFileHeader)
	if !found {
		return "", false
	}

	line := strings.TrimSuffix(rest, "\n")
	if strings.Contains(line, "\n") {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	return ModuleID(line), true
}
