// SPDX-License-Identifier: MPL-2.0

// Package flowmod synchronizes flow module dependencies into a local workspace.
//
// A flow module is a directory of files identified by a source and a revision.
// The source is either a path to a local directory or a remote locator that a
// [Registry] knows how to retrieve. Synced modules live under a workspace root
// (flow_modules by default), one directory per source.
//
// # Synchronization
//
// [Syncer] reconciles a list of [Dependency] declarations against the workspace:
//   - [ValidateAndAugment]: fills in default revisions and rejects malformed declarations
//   - [BuildModuleID]: canonical "<source>:<revision>" identity used for staleness checks
//   - [MarkerStore]: reads and writes the FLOW_MODULE_ID provenance marker
//   - [UpdateIgnore]: keeps synced content out of the host project's version control
//   - [GitRegistry]: retrieves a named revision of a remote module via Git
//
// A directory whose marker matches the requested identity is left alone. A
// remote directory whose marker differs (or is missing) is a conflict and is
// only overwritten after the injected [Confirmer] agrees, unless overwrite was
// requested explicitly.
//
// # Workspace Layout
//
//	flow_modules/
//	  .gitignore              "*"
//	  local/<basename>/       copied local sources
//	  <locator>/              remote modules, e.g. registryA/moduleX
//	    FLOW_MODULE_ID        provenance marker
//	    .gitignore            excludes FLOW_MODULE_ID
//
// # Manifests
//
// Dependencies can be declared in a flowmod.cue, flowmod.yaml, or flowmod.toml
// file and loaded with [ParseManifest].
package flowmod
