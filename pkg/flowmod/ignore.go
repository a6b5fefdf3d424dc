// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// IgnoreFileName is the exclusion list consulted by the host project's VCS.
	IgnoreFileName = ".gitignore"

	ignoreBanner = "\n\n\n# auto-generated by flows, all synced modules will be ignored by default\n"
)

// IgnoreMode selects how UpdateIgnore opens the exclusion list.
type IgnoreMode int

const (
	// IgnoreTruncate replaces the file contents.
	IgnoreTruncate IgnoreMode = iota
	// IgnoreAppend adds to the end of the file, creating it if needed.
	IgnoreAppend
)

// String returns the string representation of the IgnoreMode.
func (m IgnoreMode) String() string {
	switch m {
	case IgnoreTruncate:
		return "truncate"
	case IgnoreAppend:
		return "append"
	default:
		return fmt.Sprintf("IgnoreMode(%d)", int(m))
	}
}

// UpdateIgnore writes the generated banner followed by content into dir's
// .gitignore. Existing entries are not inspected; repeated appends grow the file.
func UpdateIgnore(dir string, mode IgnoreMode, content string) error {
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case IgnoreTruncate:
		flags |= os.O_TRUNC
	case IgnoreAppend:
		flags |= os.O_APPEND
	default:
		return fmt.Errorf("unknown ignore mode %v", mode)
	}

	path := filepath.Join(dir, IgnoreFileName)
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	_, writeErr := f.WriteString(ignoreBanner + content + "\n")
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return nil
}
