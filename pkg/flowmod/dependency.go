// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// LocalRevision is the reserved revision for directly referenced local directories.
	LocalRevision Revision = "local"

	// DefaultRemoteRevision is used when a remote dependency omits its revision.
	DefaultRemoteRevision Revision = "main"
)

// revisionPattern is the allow-list for revision labels embedded in markers.
var revisionPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

type (
	// Source is either a filesystem path to a local directory or a remote
	// module locator (e.g. "registryA/moduleX" or a Git URL).
	Source string

	// Revision labels a version of a module: a branch, tag, or commit for
	// remote sources, and always "local" for local ones.
	Revision string

	// Dependency declares one required flow module.
	Dependency struct {
		// Source is the local directory or remote locator. Required.
		Source Source `json:"source" yaml:"source" toml:"source" mapstructure:"source"`
		// Revision selects the module version. Defaults to "main" for remote
		// sources and must be "local" for local ones.
		Revision Revision `json:"revision,omitempty" yaml:"revision,omitempty" toml:"revision,omitempty" mapstructure:"revision"`
		// Overwrite replaces an existing synced directory without asking.
		Overwrite bool `json:"overwrite,omitempty" yaml:"overwrite,omitempty" toml:"overwrite,omitempty" mapstructure:"overwrite"`

		local bool
	}
)

// String returns the string representation of the Source.
func (s Source) String() string { return string(s) }

// String returns the string representation of the Revision.
func (r Revision) String() string { return string(r) }

// Validate returns nil if the revision only contains letters, digits, and
// the characters "-", "_", ".", and "/".
func (r Revision) Validate() error {
	if !revisionPattern.MatchString(string(r)) {
		return &InvalidRevisionError{
			Revision: r,
			Reason:   "only letters, digits, '-', '_', '.', and '/' are allowed",
		}
	}
	return nil
}

// IsLocal reports whether the dependency refers to a local directory.
// Only meaningful on values returned by ValidateAndAugment.
func (d Dependency) IsLocal() bool { return d.local }

// String returns a human-readable representation of the dependency.
func (d Dependency) String() string {
	s := string(d.Source)
	if d.Revision != "" {
		s += "@" + string(d.Revision)
	}
	return s
}

// ValidateAndAugment normalizes a raw declaration.
//
// Local sources get revision "local" when none is given; any other explicit
// revision is rejected. Remote sources without a revision get "main". The
// only I/O is an existence check on the source.
func ValidateAndAugment(dep Dependency) (Dependency, error) {
	raw := strings.TrimSpace(string(dep.Source))
	if raw == "" {
		return dep, &InvalidDescriptorError{Reason: "source is required"}
	}
	if strings.ContainsAny(raw, "\r\n") {
		return dep, &InvalidDescriptorError{Source: dep.Source, Reason: "source must be a single line"}
	}

	if localPath, ok := localSourcePath(raw); ok {
		return augmentLocal(dep, localPath)
	}

	dep.Source = Source(raw)
	dep.local = false
	if dep.Revision == "" {
		dep.Revision = DefaultRemoteRevision
	}
	if err := dep.Revision.Validate(); err != nil {
		return dep, withSource(err, dep.Source)
	}
	if _, err := LocatorPath(dep.Source); err != nil {
		return dep, err
	}
	return dep, nil
}

func augmentLocal(dep Dependency, localPath string) (Dependency, error) {
	dep.Source = Source(localPath)
	dep.local = true

	switch dep.Revision {
	case "":
		dep.Revision = LocalRevision
	case LocalRevision:
	default:
		return dep, &InvalidRevisionError{
			Source:   dep.Source,
			Revision: dep.Revision,
			Reason:   "local dependencies only accept revision " + string(LocalRevision),
		}
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return dep, &InvalidDescriptorError{Source: dep.Source, Reason: "local directory does not exist"}
	}
	if !info.IsDir() {
		return dep, &InvalidDescriptorError{Source: dep.Source, Reason: "not a directory"}
	}
	return dep, nil
}

// localSourcePath reports whether raw names a local directory and returns
// its cleaned path. A source is local when it exists on disk or when it is
// spelled as an explicit filesystem path.
func localSourcePath(raw string) (string, bool) {
	expanded := raw
	if rest, found := strings.CutPrefix(raw, "~/"); found {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, rest)
		}
	}

	if _, err := os.Stat(expanded); err == nil {
		return filepath.Clean(expanded), true
	}

	if raw == "." || raw == ".." || filepath.IsAbs(raw) ||
		strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") || strings.HasPrefix(raw, "~/") {
		return filepath.Clean(expanded), true
	}
	return "", false
}

// LocatorPath converts a remote locator into the relative directory path it
// occupies under the workspace root.
// e.g., "https://github.com/user/repo.git" -> "github.com/user/repo"
func LocatorPath(locator Source) (string, error) {
	p := string(locator)
	for _, prefix := range []string{"https://", "http://", "ssh://", "git@"} {
		p = strings.TrimPrefix(p, prefix)
	}
	p = strings.TrimSuffix(p, ".git")
	p = strings.ReplaceAll(p, ":", "/")

	for seg := range strings.SplitSeq(p, "/") {
		if seg == ".." {
			return "", &InvalidDescriptorError{Source: locator, Reason: "locator must not contain '..' segments"}
		}
	}

	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return "", &InvalidDescriptorError{Source: locator, Reason: "locator does not name a module"}
	}
	return p, nil
}

func withSource(err error, src Source) error {
	if re, ok := err.(*InvalidRevisionError); ok {
		re.Source = src
		return re
	}
	return err
}
