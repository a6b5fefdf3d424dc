// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive prompts of the CLI. It wraps
// charmbracelet/huh forms and falls back to line-based accessible mode when
// no terminal is attached.
package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

const (
	// ThemeDefault uses the default huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeCatppuccin uses the Catppuccin theme.
	ThemeCatppuccin Theme = "catppuccin"
	// ThemeBase16 uses the Base16 theme.
	ThemeBase16 Theme = "base16"
)

type (
	// Theme represents the visual theme for prompts.
	Theme string

	// Config holds common configuration for prompts.
	Config struct {
		// Theme specifies the visual theme to use.
		Theme Theme
		// Accessible replaces the full-screen form with plain line prompts.
		Accessible bool
		// Input is read in accessible mode (default: stdin).
		Input io.Reader
		// Output receives the prompt (default: stderr).
		Output io.Writer
	}
)

// DefaultConfig returns the prompt configuration for the current process.
// Accessible mode is enabled when stdin is not a terminal or when the
// ACCESSIBLE environment variable is set.
//
// Prompts always go to stderr so they never mix with command output.
func DefaultConfig() Config {
	return Config{
		Theme:      ThemeDefault,
		Accessible: !IsInputTerminal() || os.Getenv("ACCESSIBLE") != "",
		Output:     os.Stderr,
	}
}

// IsInputTerminal returns true if stdin is connected to a terminal.
func IsInputTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// getHuhTheme converts a Theme to a huh.Theme.
func getHuhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeCatppuccin:
		return huh.ThemeCatppuccin()
	case ThemeBase16:
		return huh.ThemeBase16()
	default:
		return huh.ThemeBase()
	}
}

func newForm(cfg Config, fields ...huh.Field) *huh.Form {
	form := huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(getHuhTheme(cfg.Theme)).
		WithAccessible(cfg.Accessible).
		WithShowHelp(!cfg.Accessible)
	if cfg.Output != nil {
		form = form.WithOutput(cfg.Output)
	}
	if cfg.Input != nil {
		form = form.WithInput(cfg.Input)
	}
	return form
}
