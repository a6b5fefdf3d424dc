// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for flowverse.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Neel-Shah-29/aiflows/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowverse",
		Short: "Sync flow modules into your project",
		Long: TitleStyle.Render("flowverse") + SubtitleStyle.Render(" - Sync flow modules into your project") + `

flowverse materializes the flow modules a project depends on into a local
workspace folder (flow_modules by default). Remote modules come from a Git
registry, local directories are copied. Each synced directory records the
module it holds, so unchanged modules are never fetched twice.

` + SubtitleStyle.Render("Examples:") + `
  flowverse sync                      Sync the dependencies in flowmod.cue
  flowverse sync deps.yaml --yes      Sync and accept every overwrite
  flowverse add registryA/moduleX v2  Sync one module at a revision
  flowverse list                      Show what the workspace holds
  flowverse config show               Show the effective configuration`,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/flowverse/config.cue)")

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(newSyncCommand(app))
	rootCmd.AddCommand(newAddCommand(app))
	rootCmd.AddCommand(newListCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	os.Exit(Run(context.Background(), NewApp(Dependencies{}), os.Args[1:]))
}

// Run executes the command line args against app and returns the process exit code.
func Run(ctx context.Context, app *App, args []string) int {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			app.handleError(w, styles, err)
		}),
	)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailed
}

// handleError prints err. Errors that carry catalog guidance get their
// suggestions and the rendered guidance, everything else goes to fang's
// default handler.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.verbose))
	if guidance := ae.Guidance(); guidance != nil {
		if rendered, renderErr := guidance.Render(glamourStyle(a.stderr)); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// glamourStyle picks the markdown style for w: "dark" on terminals and
// plain "notty" output otherwise.
func glamourStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "dark"
	}
	return "notty"
}
