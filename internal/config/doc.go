// SPDX-License-Identifier: MPL-2.0

// Package config handles flowverse configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/flowverse/config.cue (or the XDG equivalent on
// Linux, ~/Library/Application Support/flowverse/config.cue on macOS, %APPDATA%\flowverse\config.cue
// on Windows), falling back to ./config.cue. Every key can be overridden through a
// FLOWVERSE_ environment variable, e.g. FLOWVERSE_REGISTRY_BASE_URL.
//
// Configuration files are validated against an embedded CUE schema (config_schema.cue).
package config
