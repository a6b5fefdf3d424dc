// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ConfirmPrompt asks before replacing a module. Without a terminal the
	// answer is read as a line from stdin and end of input declines.
	ConfirmPrompt ConfirmPolicy = "prompt"
	// ConfirmAlways replaces conflicting modules without asking.
	ConfirmAlways ConfirmPolicy = "always"
	// ConfirmNever keeps conflicting modules.
	ConfirmNever ConfirmPolicy = "never"

	// MaxJobs bounds the parallelism accepted from configuration.
	MaxJobs Jobs = 64

	// ThemeDefault is the plain prompt theme.
	ThemeDefault PromptTheme = "default"
	// ThemeCharm is the Charm prompt theme.
	ThemeCharm PromptTheme = "charm"
	// ThemeDracula is the Dracula prompt theme.
	ThemeDracula PromptTheme = "dracula"
	// ThemeCatppuccin is the Catppuccin prompt theme.
	ThemeCatppuccin PromptTheme = "catppuccin"
	// ThemeBase16 is the Base16 prompt theme.
	ThemeBase16 PromptTheme = "base16"
)

var (
	// ErrInvalidConfirmPolicy is returned when a ConfirmPolicy value is not recognized.
	ErrInvalidConfirmPolicy = errors.New("invalid confirm policy")
	// ErrInvalidPromptTheme is returned when a PromptTheme value is not recognized.
	ErrInvalidPromptTheme = errors.New("invalid prompt theme")
	// ErrInvalidJobs is returned when Jobs is out of range.
	ErrInvalidJobs = errors.New("invalid jobs")
	// ErrInvalidWorkspaceRoot is returned when WorkspaceRoot is empty or whitespace-only.
	ErrInvalidWorkspaceRoot = errors.New("invalid workspace root")
	// ErrInvalidCacheDir is returned when a CacheDir value is whitespace-only.
	ErrInvalidCacheDir = errors.New("invalid cache dir")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ConfirmPolicy selects how overwrite conflicts are resolved.
	ConfirmPolicy string

	// InvalidConfirmPolicyError is returned when a ConfirmPolicy value is not recognized.
	// It wraps ErrInvalidConfirmPolicy for errors.Is() compatibility.
	InvalidConfirmPolicyError struct {
		Value ConfirmPolicy
	}

	// Jobs is the number of target directories synced concurrently.
	Jobs int

	// PromptTheme names the color theme of interactive prompts.
	PromptTheme string

	// WorkspaceRoot is the directory that holds synced modules.
	WorkspaceRoot string

	// CacheDir is the registry cache directory. The zero value ("") selects
	// the default location.
	CacheDir string

	// InvalidConfigError collects every field error found by Config.Validate.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// WorkspaceRoot is where modules are synced to.
		WorkspaceRoot WorkspaceRoot `json:"workspace_root" mapstructure:"workspace_root"`
		// CacheDir overrides the registry cache location.
		CacheDir CacheDir `json:"cache_dir" mapstructure:"cache_dir"`
		// Registry configures remote module retrieval.
		Registry RegistryConfig `json:"registry" mapstructure:"registry"`
		// Confirm resolves overwrite conflicts.
		Confirm ConfirmPolicy `json:"confirm" mapstructure:"confirm"`
		// Jobs bounds parallel syncs.
		Jobs Jobs `json:"jobs" mapstructure:"jobs"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// RegistryConfig configures the Git registry.
	RegistryConfig struct {
		// BaseURL is prepended to bare "owner/name" locators.
		BaseURL string `json:"base_url" mapstructure:"base_url"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		// Verbose enables debug logging and full error chains.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Theme colors the overwrite prompt.
		Theme PromptTheme `json:"theme" mapstructure:"theme"`
	}
)

// String returns the string representation of the ConfirmPolicy.
func (p ConfirmPolicy) String() string { return string(p) }

// Validate returns nil if the policy is one of prompt, always, or never.
func (p ConfirmPolicy) Validate() error {
	switch p {
	case ConfirmPrompt, ConfirmAlways, ConfirmNever:
		return nil
	default:
		return &InvalidConfirmPolicyError{Value: p}
	}
}

// Error implements the error interface.
func (e *InvalidConfirmPolicyError) Error() string {
	return fmt.Sprintf("invalid confirm policy %q (valid: prompt, always, never)", e.Value)
}

// Unwrap returns ErrInvalidConfirmPolicy for errors.Is() compatibility.
func (e *InvalidConfirmPolicyError) Unwrap() error { return ErrInvalidConfirmPolicy }

// Validate returns nil if j is between 1 and MaxJobs.
func (j Jobs) Validate() error {
	if j < 1 || j > MaxJobs {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidJobs, j, MaxJobs)
	}
	return nil
}

// String returns the string representation of the PromptTheme.
func (t PromptTheme) String() string { return string(t) }

// Validate returns nil if the theme is empty (the default) or one of the
// known prompt themes.
func (t PromptTheme) Validate() error {
	switch t {
	case "", ThemeDefault, ThemeCharm, ThemeDracula, ThemeCatppuccin, ThemeBase16:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: default, charm, dracula, catppuccin, base16)", ErrInvalidPromptTheme, t)
	}
}

// String returns the string representation of the WorkspaceRoot.
func (w WorkspaceRoot) String() string { return string(w) }

// Validate returns nil if the workspace root is not blank.
func (w WorkspaceRoot) Validate() error {
	if strings.TrimSpace(string(w)) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidWorkspaceRoot)
	}
	return nil
}

// String returns the string representation of the CacheDir.
func (c CacheDir) String() string { return string(c) }

// Validate returns nil if the cache dir is empty or a non-blank path.
func (c CacheDir) Validate() error {
	if c != "" && strings.TrimSpace(string(c)) == "" {
		return fmt.Errorf("%w: must not be whitespace-only", ErrInvalidCacheDir)
	}
	return nil
}

// Validate checks every field and returns an *InvalidConfigError listing all problems.
func (c Config) Validate() error {
	var errs []error
	if err := c.WorkspaceRoot.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.CacheDir.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Confirm.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Jobs.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.UI.Theme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkspaceRoot: "flow_modules",
		CacheDir:      "",
		Registry: RegistryConfig{
			BaseURL: "https://huggingface.co",
		},
		Confirm: ConfirmPrompt,
		Jobs:    1,
		UI: UIConfig{
			Verbose: false,
			Theme:   ThemeDefault,
		},
	}
}
