// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseManifestBytes(t *testing.T) {
	t.Parallel()

	want := []Dependency{
		{Source: "registryA/moduleX", Revision: "v1.2"},
		{Source: "./flows/local", Overwrite: true},
	}

	tests := []struct {
		name   string
		format ManifestFormat
		data   string
	}{
		{
			name:   "cue",
			format: ManifestCUE,
			data: `dependencies: [
	{source: "registryA/moduleX", revision: "v1.2"},
	{source: "./flows/local", overwrite: true},
]
`,
		},
		{
			name:   "yaml",
			format: ManifestYAML,
			data: `dependencies:
  - source: registryA/moduleX
    revision: v1.2
  - source: ./flows/local
    overwrite: true
`,
		},
		{
			name:   "toml",
			format: ManifestTOML,
			data: `[[dependencies]]
source = "registryA/moduleX"
revision = "v1.2"

[[dependencies]]
source = "./flows/local"
overwrite = true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := ParseManifestBytes([]byte(tt.data), tt.format, "flowmod."+string(tt.format))
			if err != nil {
				t.Fatalf("ParseManifestBytes() error: %v", err)
			}
			if len(m.Dependencies) != len(want) {
				t.Fatalf("got %d dependencies, want %d", len(m.Dependencies), len(want))
			}
			for i, d := range m.Dependencies {
				if d != want[i] {
					t.Errorf("dependency %d = %+v, want %+v", i, d, want[i])
				}
			}
			if m.OverwriteAll {
				t.Error("OverwriteAll should default to false")
			}
		})
	}
}

func TestParseManifestBytes_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  ManifestFormat
		data    string
		wantErr string
	}{
		{"cue unknown field", ManifestCUE, `dependencies: [{source: "a/b", branch: "main"}]`, "branch"},
		{"cue empty source", ManifestCUE, `dependencies: [{source: ""}]`, "source"},
		{"cue bad revision", ManifestCUE, `dependencies: [{source: "a/b", revision: "main;rm"}]`, "revision"},
		{"cue syntax", ManifestCUE, `dependencies: [`, "flowmod.cue"},
		{"yaml unknown field", ManifestYAML, "dependencies:\n  - source: a/b\n    branch: main\n", "branch"},
		{"toml unknown field", ManifestTOML, "[[dependencies]]\nsource = \"a/b\"\nbranch = \"main\"\n", "branch"},
		{"unknown format", ManifestFormat("json"), `{}`, "unknown manifest format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseManifestBytes([]byte(tt.data), tt.format, "flowmod.cue")
			if err == nil {
				t.Fatal("ParseManifestBytes() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseManifestBytes_Empty(t *testing.T) {
	t.Parallel()

	for _, format := range []ManifestFormat{ManifestCUE, ManifestYAML, ManifestTOML} {
		m, err := ParseManifestBytes(nil, format, "empty")
		if err != nil {
			t.Errorf("%s: ParseManifestBytes(empty) error: %v", format, err)
			continue
		}
		if len(m.Dependencies) != 0 {
			t.Errorf("%s: got %d dependencies, want 0", format, len(m.Dependencies))
		}
	}
}

func TestParseManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "deps.yml")
	if err := os.WriteFile(path, []byte("overwrite_all: true\ndependencies:\n  - source: a/b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ParseManifest(path)
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}
	if !m.OverwriteAll || len(m.Dependencies) != 1 {
		t.Errorf("ParseManifest() = %+v", m)
	}

	if _, err := ParseManifest(filepath.Join(dir, "missing.cue")); err == nil {
		t.Error("ParseManifest(missing) should fail")
	}
	if _, err := ParseManifest(filepath.Join(dir, "deps.ini")); !errors.Is(err, ErrUnknownManifestFormat) {
		t.Errorf("ParseManifest(.ini) error = %v, want ErrUnknownManifestFormat", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want ManifestFormat
	}{
		{"flowmod.cue", ManifestCUE},
		{"deps/FLOWMOD.YAML", ManifestYAML},
		{"flowmod.yml", ManifestYAML},
		{"flowmod.toml", ManifestTOML},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}
}

func TestManifest_Deps(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Dependencies: []Dependency{{Source: "a/b"}, {Source: "c/d", Overwrite: true}},
	}
	for _, d := range m.Deps() {
		if d.Source == "a/b" && d.Overwrite {
			t.Error("a/b should not be overwritten without overwrite_all")
		}
	}

	m.OverwriteAll = true
	for _, d := range m.Deps() {
		if !d.Overwrite {
			t.Errorf("%s: overwrite_all should apply to every dependency", d.Source)
		}
	}
	if m.Dependencies[0].Overwrite {
		t.Error("Deps() must not modify the manifest")
	}
}
