// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes CUE documents against an embedded schema.
//
// Manifests and configuration files share one flow: compile the schema,
// unify the user document with a schema definition, validate, and decode
// into a Go value. Errors carry the file name and a JSON-style field path.
package cueutil
