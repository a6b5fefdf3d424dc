// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/Neel-Shah-29/aiflows/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `flowverse config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage flowverse configuration",
		Long: `Manage flowverse configuration.

Configuration is stored in:
  - Linux: ~/.config/flowverse/config.cue
  - macOS: ~/Library/Application Support/flowverse/config.cue
  - Windows: %APPDATA%\flowverse\config.cue

A config.cue in the current directory is used when the per-user file is
missing. FLOWVERSE_* environment variables override file values, e.g.
FLOWVERSE_JOBS=4 or FLOWVERSE_REGISTRY_BASE_URL=https://github.com.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd.Context())
		},
	})

	var dir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig(dir)
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", "", "directory to write config.cue into (default is the user config directory)")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context) error {
	cfg, path, err := a.loadConfigWithPath(ctx)
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := a.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	cacheDir := string(cfg.CacheDir)
	if cacheDir == "" {
		cacheDir = SubtitleStyle.Render("(default)")
	}

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("workspace_root"), valueStyle.Render(string(cfg.WorkspaceRoot)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("cache_dir"), cacheDir)
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("confirm"), valueStyle.Render(string(cfg.Confirm)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("jobs"), valueStyle.Render(fmt.Sprint(cfg.Jobs)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("registry"))
	fmt.Fprintf(w, "  base_url: %s\n", valueStyle.Render(cfg.Registry.BaseURL))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprint(cfg.UI.Verbose)))
	fmt.Fprintf(w, "  theme: %s\n", valueStyle.Render(string(cfg.UI.Theme)))

	return nil
}

// loadConfigWithPath is loadConfig that also reports the file that was read,
// when the provider can tell.
func (a *App) loadConfigWithPath(ctx context.Context) (*config.Config, string, error) {
	pr, ok := a.Config.(config.PathReporter)
	if !ok {
		cfg, err := a.loadConfig(ctx)
		return cfg, "", err
	}

	cfg, path, err := pr.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, "", &ExitError{Code: ExitUsage, Err: err}
	}
	return cfg, path, nil
}

func (a *App) initConfig(dir string) error {
	path, created, err := config.CreateDefaultConfig(dir)
	if err != nil {
		return err
	}

	if !created {
		fmt.Fprintf(a.stdout, "Config file already exists at %s\n", path)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s Created default config at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
