// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Neel-Shah-29/aiflows/internal/issue"
	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"

	"github.com/spf13/cobra"
)

// newSyncCommand creates the `flowverse sync` command.
func newSyncCommand(app *App) *cobra.Command {
	var (
		flags syncFlags
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "sync [manifest]",
		Short: "Sync the dependencies declared in a manifest",
		Long: `Sync every dependency declared in a manifest into the workspace.

The manifest defaults to flowmod.cue. YAML (.yaml, .yml) and TOML (.toml)
manifests with the same fields are accepted too:

  dependencies: [
    {source: "registryA/moduleX", revision: "v1.0"},
    {source: "./my-local-dep"},
  ]

All declarations are checked before the workspace is touched. A module
already synced at another revision is only replaced after confirmation,
or when overwrite is set.

With --watch the command keeps running after the first sync. Edits to the
manifest or to a local dependency trigger another sync; changed local
dependencies are copied again.

Examples:
  flowverse sync
  flowverse sync deps/flowmod.yaml --jobs 4
  flowverse sync --overwrite-all
  flowverse sync --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := flowmod.DefaultManifestFile
			if len(args) == 1 {
				manifest = args[0]
			}
			jobsSet := cmd.Flags().Changed("jobs")
			if watch {
				return app.runSyncWatch(cmd.Context(), manifest, flags, jobsSet)
			}
			return app.runSync(cmd.Context(), manifest, flags, jobsSet)
		},
	}

	cmd.Flags().BoolVar(&flags.overwrite, "overwrite-all", false, "replace every existing module without asking")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-sync when the manifest or a local dependency changes")
	addSyncFlags(cmd, &flags)

	return cmd
}

// addSyncFlags registers the flags shared by sync and add.
func addSyncFlags(cmd *cobra.Command, flags *syncFlags) {
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "accept every overwrite prompt")
	cmd.Flags().BoolVar(&flags.noInput, "no-input", false, "never prompt, keep conflicting modules")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 1, "number of modules synced concurrently")
	cmd.Flags().StringVar(&flags.label, "label", "", "prefix for log lines")
}

func (a *App) runSync(ctx context.Context, manifestPath string, flags syncFlags, jobsSet bool) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	manifest, err := flowmod.ParseManifest(manifestPath)
	if err != nil {
		return manifestError(manifestPath, err)
	}

	syncer, err := a.newSyncer(cfg, flags, jobsSet)
	if err != nil {
		return err
	}

	report, err := syncer.Sync(ctx, manifest.Deps(), flowmod.SyncOptions{OverwriteAll: flags.overwrite})
	if err != nil {
		return syncError(manifestPath, err)
	}

	printReport(a.stdout, report)
	return reportError(report)
}

// manifestError maps a manifest read failure to catalog guidance.
func manifestError(path string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("read manifest").
		WithResource(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		ctx.WithIssue(issue.ManifestNotFoundId).
			WithSuggestion("Create " + flowmod.DefaultManifestFile + " or pass the manifest path as an argument")
		return &ExitError{Code: ExitUsage, Err: ctx.Wrap(fs.ErrNotExist).BuildError()}
	case errors.Is(err, flowmod.ErrUnknownManifestFormat):
		ctx.WithIssue(issue.ManifestParseErrorId).
			WithSuggestion("Use a .cue, .yaml, .yml or .toml manifest")
	default:
		ctx.WithIssue(issue.ManifestParseErrorId)
	}
	return &ExitError{Code: ExitUsage, Err: ctx.Wrap(err).BuildError()}
}

// syncError maps errors that abort a whole sync call.
func syncError(resource string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("sync dependencies").
		WithResource(resource)

	var batchErr *flowmod.BatchError
	switch {
	case errors.As(err, &batchErr):
		ctx.WithIssue(issue.InvalidDependencyId).
			WithSuggestion("Fix the declaration; nothing was synced")
		return &ExitError{Code: ExitUsage, Err: ctx.Wrap(err).BuildError()}
	case errors.Is(err, flowmod.ErrWorkspaceNotDir):
		ctx.WithIssue(issue.WorkspaceNotDirId)
	}
	return &ExitError{Code: ExitFailed, Err: ctx.Wrap(err).BuildError()}
}

// reportError summarizes failed dependencies, or returns nil.
func reportError(report *flowmod.Report) error {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}

	ctx := issue.NewErrorContext().
		WithOperation(fmt.Sprintf("sync %d of %d dependencies", len(failed), len(report.Results))).
		WithIssue(issue.FetchFailedId)
	for _, res := range failed {
		if errors.Is(res.Err, flowmod.ErrTargetExists) {
			ctx.WithIssue(issue.TargetNotEmptyId)
			break
		}
	}
	return &ExitError{Code: ExitFailed, Err: ctx.Wrap(report.Err()).BuildError()}
}

// printReport writes one line per dependency in declaration order.
func printReport(w io.Writer, report *flowmod.Report) {
	for _, res := range report.Results {
		id := res.ModuleID.String()
		if id == "" {
			id = res.Dependency.String()
		}

		line := fmt.Sprintf("%s %-11s %s", outcomeMark(res.Outcome), res.Outcome, CmdStyle.Render(id))
		if res.Target != "" {
			line += SubtitleStyle.Render(" -> " + displayPath(res.Target))
		}
		fmt.Fprintln(w, line)

		if res.Outcome == flowmod.OutcomeDeclined && res.Previous != "" {
			fmt.Fprintf(w, "  %s\n", WarningStyle.Render("kept "+res.Previous.String()))
		}
		if res.Err != nil {
			fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(res.Err.Error()))
		}
	}
}

// displayPath shortens path relative to the working directory when it lies below it.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
