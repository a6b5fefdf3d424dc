// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Neel-Shah-29/aiflows/internal/watch"
	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"
)

// runSyncWatch syncs once and then again after every change to the manifest
// or to a local dependency, until the context is cancelled.
func (a *App) runSyncWatch(ctx context.Context, manifestPath string, flags syncFlags, jobsSet bool) error {
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
	logger := a.newLogger(flags.label)

	report, err := syncer.Sync(ctx, manifest.Deps(), flowmod.SyncOptions{OverwriteAll: flags.overwrite})
	if err != nil {
		return syncError(manifestPath, err)
	}
	printReport(a.stdout, report)
	if failed := report.Failed(); len(failed) > 0 {
		logger.Warn("some dependencies failed, watching anyway", "failed", len(failed))
	}

	roots := localRoots(manifest.Deps())
	w, err := watch.New(watch.Config{
		Roots:   roots,
		Files:   []string{manifestPath},
		Exclude: []string{syncer.WorkspaceRoot(), syncer.CacheDir()},
		Logger:  logger,
		OnChange: func(ctx context.Context, changed []string) error {
			m, err := flowmod.ParseManifest(manifestPath)
			if err != nil {
				return err
			}

			deps, n := markChanged(m.Deps(), changed)
			logger.Info("change detected, syncing again", "paths", len(changed), "local_modules_changed", n)

			report, err := syncer.Sync(ctx, deps, flowmod.SyncOptions{OverwriteAll: flags.overwrite})
			if err != nil {
				return err
			}
			printReport(a.stdout, report)

			for _, root := range localRoots(deps) {
				if !slices.Contains(roots, root) {
					logger.Warn("new local dependency is not watched until restart", "source", root)
				}
			}
			return report.Err()
		},
	})
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}

	fmt.Fprintln(a.stdout, SubtitleStyle.Render(fmt.Sprintf(
		"Watching %s and %d local dependencies for changes (Ctrl+C to stop)",
		displayPath(absOrSelf(manifestPath)), len(roots))))

	if err := w.Run(ctx); err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}
	return nil
}

// localRoots returns the absolute source directories of the local
// dependencies in deps. Invalid declarations are skipped.
func localRoots(deps []flowmod.Dependency) []string {
	var roots []string
	for _, raw := range deps {
		dep, err := flowmod.ValidateAndAugment(raw)
		if err != nil || !dep.IsLocal() {
			continue
		}
		root := absOrSelf(string(dep.Source))
		if !slices.Contains(roots, root) {
			roots = append(roots, root)
		}
	}
	slices.Sort(roots)
	return roots
}

// markChanged sets Overwrite on every local dependency whose source contains
// one of the changed paths, so the next sync copies it again. It returns the
// updated declarations and how many were marked.
func markChanged(deps []flowmod.Dependency, changed []string) ([]flowmod.Dependency, int) {
	out := slices.Clone(deps)
	marked := 0
	for i, raw := range out {
		dep, err := flowmod.ValidateAndAugment(raw)
		if err != nil || !dep.IsLocal() {
			continue
		}
		root := absOrSelf(string(dep.Source))
		if slices.ContainsFunc(changed, func(p string) bool { return pathWithin(root, p) }) {
			out[i].Overwrite = true
			marked++
		}
	}
	return out, marked
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func pathWithin(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
