// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/Neel-Shah-29/aiflows/internal/config"
	"github.com/Neel-Shah-29/aiflows/internal/tui"
	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reaches configuration, the registry, and the
	// prompt through it.
	App struct {
		Config   config.Provider
		Registry RegistryFactory
		Prompt   func() tui.Config
		stdout   io.Writer
		stderr   io.Writer

		// Global flag values, bound by NewRootCommand.
		verbose    bool
		configPath string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   config.Provider
		Registry RegistryFactory
		Prompt   func() tui.Config
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// RegistryFactory builds the remote registry for a configured base URL.
	RegistryFactory func(baseURL string) flowmod.Registry

	// syncFlags are the flags shared by commands that sync modules.
	syncFlags struct {
		overwrite bool
		yes       bool
		noInput   bool
		jobs      int
		label     string
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:   deps.Config,
		Registry: deps.Registry,
		Prompt:   deps.Prompt,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Registry == nil {
		app.Registry = func(baseURL string) flowmod.Registry { return flowmod.NewGitRegistry(baseURL) }
	}
	if app.Prompt == nil {
		app.Prompt = tui.DefaultConfig
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads configuration honoring the --config flag.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Err: err}
	}
	if cfg.UI.Verbose {
		a.verbose = true
	}
	return cfg, nil
}

// newLogger returns the progress logger, at debug level in verbose mode.
func (a *App) newLogger(label string) *log.Logger {
	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: label, Level: level})
}

// newSyncer builds a Syncer from configuration, letting flags win.
func (a *App) newSyncer(cfg *config.Config, flags syncFlags, jobsSet bool) (*flowmod.Syncer, error) {
	jobs := int(cfg.Jobs)
	if jobsSet {
		jobs = flags.jobs
	}

	return flowmod.NewSyncer(flowmod.Options{
		WorkspaceRoot: string(cfg.WorkspaceRoot),
		CacheDir:      string(cfg.CacheDir),
		Registry:      a.Registry(cfg.Registry.BaseURL),
		Confirm:       a.confirmer(cfg, flags),
		Label:         flags.label,
		Logger:        a.newLogger(flags.label),
		Jobs:          jobs,
	})
}

// confirmer picks the conflict policy. Flags take precedence over the
// configured policy.
func (a *App) confirmer(cfg *config.Config, flags syncFlags) flowmod.Confirmer {
	switch {
	case flags.yes:
		return flowmod.AlwaysConfirm
	case flags.noInput:
		return flowmod.NeverConfirm
	case cfg.Confirm == config.ConfirmAlways:
		return flowmod.AlwaysConfirm
	case cfg.Confirm == config.ConfirmNever:
		return flowmod.NeverConfirm
	default:
		return tui.ConflictConfirmer(a.promptConfig(cfg))
	}
}

// promptConfig applies the configured theme to the process prompt settings.
func (a *App) promptConfig(cfg *config.Config) tui.Config {
	p := a.Prompt()
	if cfg.UI.Theme != "" {
		p.Theme = tui.Theme(cfg.UI.Theme)
	}
	return p
}
