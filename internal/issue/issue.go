// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a known class of user-facing problems.
//
//nolint:revive // Id matches the catalog naming used across the CLI
type Id int

const (
	// ManifestNotFoundId means the manifest file does not exist.
	ManifestNotFoundId Id = iota + 1
	// ManifestParseErrorId means the manifest could not be decoded.
	ManifestParseErrorId
	// InvalidDependencyId means a dependency declaration failed validation.
	InvalidDependencyId
	// FetchFailedId means a module could not be retrieved.
	FetchFailedId
	// TargetNotEmptyId means a local copy would merge into existing content.
	TargetNotEmptyId
	// WorkspaceNotDirId means the workspace root is a regular file.
	WorkspaceNotDirId
	// ConfigLoadFailedId means the configuration file is invalid.
	ConfigLoadFailedId
)

type (
	// MarkdownMsg is guidance text rendered with glamour.
	MarkdownMsg string

	// HttpLink points at further documentation.
	//
	//nolint:revive // HttpLink matches the catalog naming used across the CLI
	HttpLink string

	// Issue is a catalog entry with remediation guidance.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

const docsBase = "https://github.com/Neel-Shah-29/aiflows/blob/main/README.md"

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No manifest found!

flowverse reads the dependency list from a manifest in the current directory.

## Things you can try:
- Create a ` + "`flowmod.cue`" + ` file:
~~~cue
dependencies: [
  {source: "registryA/moduleX", revision: "main"},
  {source: "./my-local-dep"},
]
~~~

- Or point at another manifest (CUE, YAML or TOML):
~~~
$ flowverse sync deps/flowmod.yaml
~~~`,
		docLinks: []HttpLink{docsBase + "#manifests"},
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# The manifest could not be read

The manifest has a syntax error or fields that are not part of the format.

## Things you can try:
- Every dependency needs a non-empty ` + "`source`" + `.
- Only ` + "`source`" + `, ` + "`revision`" + ` and ` + "`overwrite`" + ` are accepted per dependency,
  plus a top-level ` + "`overwrite_all`" + `.
- Revisions may only contain letters, digits, ` + "`-`, `_`, `.` and `/`" + `.`,
		docLinks: []HttpLink{docsBase + "#manifests"},
	}

	invalidDependencyIssue = &Issue{
		id: InvalidDependencyId,
		mdMsg: `
# A dependency declaration is invalid

Nothing was synced: all declarations are checked before the workspace is touched.

## Things you can try:
- Local directories must exist, and their revision must be ` + "`local`" + ` or omitted.
- Remote locators must not contain ` + "`..`" + ` segments.
- Revisions may only contain letters, digits, ` + "`-`, `_`, `.` and `/`" + `.`,
		docLinks: []HttpLink{docsBase + "#dependencies"},
	}

	fetchFailedIssue = &Issue{
		id: FetchFailedId,
		mdMsg: `
# A module could not be fetched

## Things you can try:
- Check that the revision exists as a branch, tag or commit.
- For private repositories, export a token:
~~~
$ export FLOWVERSE_GIT_TOKEN=...
~~~
- Use a different registry:
~~~
$ export FLOWVERSE_REGISTRY_BASE_URL=https://github.com
~~~`,
		docLinks: []HttpLink{docsBase + "#registries"},
		extLinks: []HttpLink{"https://huggingface.co/docs/hub/security-tokens"},
	}

	targetNotEmptyIssue = &Issue{
		id: TargetNotEmptyId,
		mdMsg: `
# The target directory already has content

A local module is only copied into an empty directory unless overwrite is set.

## Things you can try:
- Set ` + "`overwrite: true`" + ` on the dependency.
- Or run the sync with ` + "`--overwrite-all`" + `.`,
		docLinks: []HttpLink{docsBase + "#overwriting"},
	}

	workspaceNotDirIssue = &Issue{
		id: WorkspaceNotDirId,
		mdMsg: `
# The workspace root is not a directory

## Things you can try:
- Remove or rename the file that occupies the workspace path.
- Or choose another workspace with ` + "`workspace_root`" + ` in config.cue.`,
		docLinks: []HttpLink{docsBase + "#workspace"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# The configuration could not be loaded

## Things you can try:
- Show the effective configuration:
~~~
$ flowverse config show
~~~
- Recreate the default file:
~~~
$ flowverse config init
~~~`,
		docLinks: []HttpLink{docsBase + "#configuration"},
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():   manifestNotFoundIssue,
		manifestParseErrorIssue.Id(): manifestParseErrorIssue,
		invalidDependencyIssue.Id():  invalidDependencyIssue,
		fetchFailedIssue.Id():        fetchFailedIssue,
		targetNotEmptyIssue.Id():     targetNotEmptyIssue,
		workspaceNotDirIssue.Id():    workspaceNotDirIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
	}
)

// Id returns the catalog identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the raw guidance text.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns project documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// ExtLinks returns third-party documentation links.
func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render formats the guidance for a terminal using the given glamour style
// ("dark", "light", "notty", or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
