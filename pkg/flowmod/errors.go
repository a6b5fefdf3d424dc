// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDescriptor is the sentinel error wrapped by InvalidDescriptorError.
	ErrInvalidDescriptor = errors.New("invalid dependency descriptor")
	// ErrInvalidRevision is the sentinel error wrapped by InvalidRevisionError.
	ErrInvalidRevision = errors.New("invalid revision")
	// ErrTargetExists is the sentinel error wrapped by TargetExistsError.
	ErrTargetExists = errors.New("target directory is not empty")
	// ErrFetchFailed is the sentinel error wrapped by FetchError.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrWorkspaceNotDir is returned when the workspace root exists but is not a directory.
	ErrWorkspaceNotDir = errors.New("workspace root is not a directory")
)

type (
	// InvalidDescriptorError is returned when a dependency declaration is
	// missing its source or points at something that cannot be synced.
	InvalidDescriptorError struct {
		Source Source
		Reason string
	}

	// InvalidRevisionError is returned when a revision contains characters
	// outside the allowed set, or when a local source declares a revision
	// other than "local".
	InvalidRevisionError struct {
		Source   Source
		Revision Revision
		Reason   string
	}

	// TargetExistsError is returned when a local copy would merge into a
	// non-empty directory without overwrite permission, or when the target
	// path is taken by something other than a directory.
	TargetExistsError struct {
		ModuleID ModuleID
		Target   string
		// NotDir is set when Target exists but is not a directory. Overwrite
		// does not apply then.
		NotDir bool
	}

	// FetchError is returned when a module could not be materialized into its
	// target directory. It unwraps to both ErrFetchFailed and the cause.
	FetchError struct {
		ModuleID ModuleID
		Target   string
		Err      error
	}

	// BatchError aborts a whole sync call before anything is fetched.
	// Index is the position of the offending declaration.
	BatchError struct {
		Index int
		Err   error
	}
)

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	if e.Source == "" {
		return "invalid dependency: " + e.Reason
	}
	return fmt.Sprintf("invalid dependency %q: %s", e.Source, e.Reason)
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *InvalidDescriptorError) Unwrap() error { return ErrInvalidDescriptor }

// Error implements the error interface.
func (e *InvalidRevisionError) Error() string {
	return fmt.Sprintf("invalid revision %q for %q: %s", e.Revision, e.Source, e.Reason)
}

// Unwrap returns ErrInvalidRevision for errors.Is() compatibility.
func (e *InvalidRevisionError) Unwrap() error { return ErrInvalidRevision }

// Error implements the error interface.
func (e *TargetExistsError) Error() string {
	if e.NotDir {
		return fmt.Sprintf("cannot sync %s: %s exists and is not a directory", e.ModuleID, e.Target)
	}
	return fmt.Sprintf("cannot sync %s: %s is not empty (use overwrite to merge into it)", e.ModuleID, e.Target)
}

// Unwrap returns ErrTargetExists for errors.Is() compatibility.
func (e *TargetExistsError) Unwrap() error { return ErrTargetExists }

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s into %s: %v", e.ModuleID, e.Target, e.Err)
}

// Unwrap returns ErrFetchFailed and the underlying cause.
func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Err} }

// Error implements the error interface.
func (e *BatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "dependency #%d: ", e.Index+1)
	sb.WriteString(e.Err.Error())
	return sb.String()
}

// Unwrap returns the validation error that aborted the batch.
func (e *BatchError) Unwrap() error { return e.Err }
