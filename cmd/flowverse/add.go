// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"

	"github.com/spf13/cobra"
)

// newAddCommand creates the `flowverse add` command.
func newAddCommand(app *App) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "add <source> [revision]",
		Short: "Sync a single module",
		Long: `Sync a single module without a manifest.

The source is either a local directory or a remote module locator. Remote
modules default to revision "main"; local directories are always synced
at revision "local".

Examples:
  flowverse add registryA/moduleX
  flowverse add registryA/moduleX v1.2 --overwrite
  flowverse add ./my-local-dep`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep := flowmod.Dependency{Source: flowmod.Source(args[0])}
			if len(args) == 2 {
				dep.Revision = flowmod.Revision(args[1])
			}
			return app.runAdd(cmd.Context(), dep, flags, cmd.Flags().Changed("jobs"))
		},
	}

	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "replace the existing module without asking")
	addSyncFlags(cmd, &flags)

	return cmd
}

func (a *App) runAdd(ctx context.Context, dep flowmod.Dependency, flags syncFlags, jobsSet bool) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	syncer, err := a.newSyncer(cfg, flags, jobsSet)
	if err != nil {
		return err
	}

	report, err := syncer.Sync(ctx, []flowmod.Dependency{dep}, flowmod.SyncOptions{OverwriteAll: flags.overwrite})
	if err != nil {
		return syncError(dep.String(), err)
	}

	printReport(a.stdout, report)
	return reportError(report)
}
