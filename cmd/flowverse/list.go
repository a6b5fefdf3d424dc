// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"

	"github.com/spf13/cobra"
)

// listEntry is the JSON shape of one listed module.
type listEntry struct {
	Path     string `json:"path"`
	ModuleID string `json:"module_id,omitempty"`
	Tracked  bool   `json:"tracked"`
}

// newListCommand creates the `flowverse list` command.
func newListCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the modules synced into the workspace",
		Long: `List the module directories in the workspace with the module each one
holds. Directories without a readable module record are shown as untracked;
the next sync replaces them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runList(cmd.Context(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the listing as JSON")

	return cmd
}

func (a *App) runList(ctx context.Context, asJSON bool) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	syncer, err := flowmod.NewSyncer(flowmod.Options{
		WorkspaceRoot: string(cfg.WorkspaceRoot),
		CacheDir:      string(cfg.CacheDir),
		Logger:        a.newLogger(""),
	})
	if err != nil {
		return err
	}

	entries, err := syncer.List()
	if err != nil {
		return err
	}

	if asJSON {
		out := make([]listEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, listEntry{Path: e.Path, ModuleID: e.ModuleID.String(), Tracked: e.Tracked})
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No modules synced in "+displayPath(syncer.WorkspaceRoot())))
		return nil
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Modules in "+displayPath(syncer.WorkspaceRoot())))
	for _, e := range entries {
		id := CmdStyle.Render(e.ModuleID.String())
		if !e.Tracked {
			id = WarningStyle.Render("untracked")
		}
		fmt.Fprintf(a.stdout, "  %s  %s\n", e.Path, id)
	}
	return nil
}
