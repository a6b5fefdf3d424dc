// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Neel-Shah-29/aiflows/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultManifestFile is the manifest looked up when none is given.
const DefaultManifestFile = "flowmod.cue"

const (
	// ManifestCUE is a CUE document validated against #Manifest.
	ManifestCUE ManifestFormat = "cue"
	// ManifestYAML is a YAML document with the same fields.
	ManifestYAML ManifestFormat = "yaml"
	// ManifestTOML is a TOML document with the same fields.
	ManifestTOML ManifestFormat = "toml"
)

//go:embed flowmod_schema.cue
var manifestSchema []byte

// ErrUnknownManifestFormat is returned for manifest files with an unsupported extension.
var ErrUnknownManifestFormat = errors.New("unknown manifest format")

type (
	// ManifestFormat names a manifest encoding.
	ManifestFormat string

	// Manifest lists the dependencies of a project.
	Manifest struct {
		Dependencies []Dependency `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
		// OverwriteAll applies overwrite to every dependency.
		OverwriteAll bool `json:"overwrite_all,omitempty" yaml:"overwrite_all,omitempty" toml:"overwrite_all,omitempty"`
	}
)

// FormatFromPath picks the manifest format from the file extension.
func FormatFromPath(path string) (ManifestFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ManifestCUE, nil
	case ".yaml", ".yml":
		return ManifestYAML, nil
	case ".toml":
		return ManifestTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownManifestFormat, path)
	}
}

// ParseManifest reads and decodes the manifest at path.
func ParseManifest(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifestBytes(data, format, path)
}

// ParseManifestBytes decodes a manifest. filename is only used in error messages.
// Unknown fields are rejected in every format.
func ParseManifestBytes(data []byte, format ManifestFormat, filename string) (*Manifest, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, err
	}

	switch format {
	case ManifestCUE:
		return cueutil.Decode[Manifest](manifestSchema, data, "#Manifest", cueutil.WithFilename(filename))

	case ManifestYAML:
		var m Manifest
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		return &m, nil

	case ManifestTOML:
		var m Manifest
		if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&m); err != nil {
			return nil, tomlError(err, filename)
		}
		return &m, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownManifestFormat, format)
	}
}

// Deps returns the declared dependencies with OverwriteAll folded in.
func (m *Manifest) Deps() []Dependency {
	deps := make([]Dependency, len(m.Dependencies))
	for i, d := range m.Dependencies {
		d.Overwrite = d.Overwrite || m.OverwriteAll
		deps[i] = d
	}
	return deps
}

// tomlError names the offending keys, which go-toml leaves out of Error().
func tomlError(err error, filename string) error {
	var strict *toml.StrictMissingError
	if !errors.As(err, &strict) {
		return fmt.Errorf("%s: %w", filename, err)
	}

	keys := make([]string, 0, len(strict.Errors))
	for _, e := range strict.Errors {
		row, _ := e.Position()
		keys = append(keys, fmt.Sprintf("%s (line %d)", strings.Join(e.Key(), "."), row))
	}
	return fmt.Errorf("%s: unknown fields: %s: %w", filename, strings.Join(keys, ", "), err)
}
