// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type (
	// Options configures a Syncer. Zero fields fall back to defaults.
	Options struct {
		// WorkspaceRoot holds all synced modules (default: flow_modules).
		WorkspaceRoot string
		// CacheDir is handed to the registry as its scratch space
		// (default: GetDefaultCacheDir).
		CacheDir string
		// Registry retrieves remote modules (default: a GitRegistry on DefaultRegistryURL).
		Registry Registry
		// Confirm is consulted before overwriting a conflicting remote module
		// (default: NeverConfirm).
		Confirm Confirmer
		// Provenance reads and writes module identities (default: MarkerStore).
		Provenance ProvenanceStore
		// Label tags log output with the caller requesting the sync.
		Label string
		// Logger receives progress messages (default: stderr, prefixed with Label).
		Logger *log.Logger
		// Jobs bounds how many target directories are synced concurrently.
		// Values below 2 keep the sync sequential.
		Jobs int
		// CopyExcludes are glob patterns skipped when copying local sources
		// (default: DefaultCopyExcludes).
		CopyExcludes []string
	}

	// SyncOptions are per-call settings.
	SyncOptions struct {
		// OverwriteAll replaces every existing module without asking.
		OverwriteAll bool
	}

	// ModuleEntry is a directory found in the workspace by List.
	ModuleEntry struct {
		// Path is relative to the workspace root, slash-separated.
		Path     string
		ModuleID ModuleID
		// Tracked is false for directories without a valid marker.
		Tracked bool
	}

	// Syncer reconciles dependency declarations with the workspace.
	Syncer struct {
		root         string
		cacheDir     string
		registry     Registry
		confirm      Confirmer
		provenance   ProvenanceStore
		label        string
		logger       *log.Logger
		jobs         int
		copyExcludes []string

		// confirmMu serializes prompts so each one maps to a single dependency.
		confirmMu sync.Mutex
	}

	plannedDep struct {
		index  int
		dep    Dependency
		id     ModuleID
		target string
	}
)

// NewSyncer creates a Syncer from opts.
func NewSyncer(opts Options) (*Syncer, error) {
	root := opts.WorkspaceRoot
	if root == "" {
		root = DefaultWorkspaceDir
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir, err = GetDefaultCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get cache directory: %w", err)
		}
	}
	absCacheDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	s := &Syncer{
		root:         absRoot,
		cacheDir:     absCacheDir,
		registry:     opts.Registry,
		confirm:      opts.Confirm,
		provenance:   opts.Provenance,
		label:        opts.Label,
		logger:       opts.Logger,
		jobs:         opts.Jobs,
		copyExcludes: opts.CopyExcludes,
	}
	if s.registry == nil {
		s.registry = NewGitRegistry("")
	}
	if s.confirm == nil {
		s.confirm = NeverConfirm
	}
	if s.provenance == nil {
		s.provenance = MarkerStore{}
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: s.label})
	}
	if s.copyExcludes == nil {
		s.copyExcludes = DefaultCopyExcludes
	}
	return s, nil
}

// WorkspaceRoot returns the absolute workspace root.
func (s *Syncer) WorkspaceRoot() string { return s.root }

// CacheDir returns the absolute registry cache directory.
func (s *Syncer) CacheDir() string { return s.cacheDir }

// Sync brings every dependency in deps up to date.
//
// All declarations are validated before anything is written; the first
// invalid one aborts the call with a *BatchError. After that, failures are
// recorded per dependency in the report and the remaining ones still run.
func (s *Syncer) Sync(ctx context.Context, deps []Dependency, opts SyncOptions) (*Report, error) {
	s.logger.Info("started to sync flow module dependencies...")

	plan, err := s.plan(deps)
	if err != nil {
		return nil, err
	}
	if err := prepareWorkspace(s.root); err != nil {
		return nil, err
	}

	report := &Report{Label: s.label, Results: make([]Result, len(plan))}
	if s.jobs < 2 {
		for _, p := range plan {
			report.Results[p.index] = s.syncOne(ctx, p, opts.OverwriteAll)
		}
	} else {
		s.syncConcurrently(ctx, plan, opts.OverwriteAll, report)
	}

	s.logger.Info("finished syncing",
		"fetched", report.Count(OutcomeFetched)+report.Count(OutcomeOverwritten),
		"up_to_date", report.Count(OutcomeUpToDate),
		"declined", report.Count(OutcomeDeclined),
		"failed", report.Count(OutcomeFailed))
	return report, nil
}

// SyncDependency syncs a single dependency. The returned error is either a
// validation error or the error recorded in the result.
func (s *Syncer) SyncDependency(ctx context.Context, dep Dependency, overwrite bool) (Result, error) {
	report, err := s.Sync(ctx, []Dependency{dep}, SyncOptions{OverwriteAll: overwrite})
	if err != nil {
		return Result{Dependency: dep, Outcome: OutcomeFailed, Err: err}, err
	}
	res := report.Results[0]
	return res, res.Err
}

// plan validates every declaration and computes identities and targets.
func (s *Syncer) plan(deps []Dependency) ([]plannedDep, error) {
	plan := make([]plannedDep, 0, len(deps))
	for i, raw := range deps {
		dep, err := ValidateAndAugment(raw)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		id, err := BuildModuleID(dep.Source, dep.Revision)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		target, err := TargetDir(s.root, dep)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		plan = append(plan, plannedDep{index: i, dep: dep, id: id, target: target})
	}
	return plan, nil
}

// syncConcurrently runs one worker per target directory. Dependencies that
// share a target stay in declaration order inside the same worker.
func (s *Syncer) syncConcurrently(ctx context.Context, plan []plannedDep, overwriteAll bool, report *Report) {
	groups := make(map[string][]plannedDep)
	var order []string
	for _, p := range plan {
		if _, seen := groups[p.target]; !seen {
			order = append(order, p.target)
		}
		groups[p.target] = append(groups[p.target], p)
	}

	var g errgroup.Group
	g.SetLimit(s.jobs)
	for _, target := range order {
		group := groups[target]
		g.Go(func() error {
			for _, p := range group {
				report.Results[p.index] = s.syncOne(ctx, p, overwriteAll)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers record failures in the report
}

// syncOne decides between skip, fetch, and confirmed overwrite for one dependency.
func (s *Syncer) syncOne(ctx context.Context, p plannedDep, overwriteAll bool) Result {
	res := Result{Dependency: p.dep, ModuleID: p.id, Target: p.target}
	if err := ctx.Err(); err != nil {
		return failed(res, err)
	}

	overwrite := overwriteAll || p.dep.Overwrite
	logger := s.logger.With("module", p.id)

	prev, tracked := s.provenance.Read(p.target)
	if tracked {
		res.Previous = prev
	}

	if p.dep.IsLocal() {
		if info, err := os.Stat(p.target); err == nil && !info.IsDir() {
			err := &TargetExistsError{ModuleID: p.id, Target: p.target, NotDir: true}
			logger.Error("sync failed", "err", err)
			return failed(res, err)
		}
		empty := isEmptyDir(p.target)
		if !empty && !overwrite {
			logger.Info("already synced, skip")
			res.Outcome = OutcomeUpToDate
			return res
		}
		logger.Info("copying local module", "target", p.target)
		if err := s.fetchLocal(p.dep, p.id, p.target, overwrite); err != nil {
			logger.Error("sync failed", "err", err)
			return failed(res, err)
		}
		res.Outcome = outcomeFor(empty)
		return res
	}

	info, statErr := os.Stat(p.target)
	exists := statErr == nil && info.IsDir()

	switch {
	case !exists || overwrite:
		logger.Info("first fetch / overwrite", "target", p.target)
		if err := s.fetchRemote(ctx, p.dep, p.id, p.target); err != nil {
			logger.Error("sync failed", "err", err)
			return failed(res, err)
		}
		res.Outcome = outcomeFor(!exists)
		return res

	case !tracked:
		// A missing or malformed marker means "no provenance" and forces a
		// fresh fetch without prompting. This rule wins over the generic
		// "identity differs, ask first" path below: an interrupted fetch
		// leaves exactly this state and a retry must heal it unattended.
		logger.Info("no valid provenance, fetching fresh copy", "target", p.target)
		if err := s.fetchRemote(ctx, p.dep, p.id, p.target); err != nil {
			logger.Error("sync failed", "err", err)
			return failed(res, err)
		}
		res.Outcome = OutcomeOverwritten
		return res

	case prev != p.id:
		conflict := Conflict{Target: p.target, Current: prev, Requested: p.id}
		logger.Warn(conflict.String())

		ok, err := s.confirmConflict(ctx, conflict)
		if err != nil {
			logger.Error("confirmation failed", "err", err)
			return failed(res, fmt.Errorf("confirm overwrite of %s: %w", p.target, err))
		}
		if !ok {
			logger.Info("overwrite declined, keeping existing module", "current", prev)
			res.Outcome = OutcomeDeclined
			return res
		}
		if err := s.fetchRemote(ctx, p.dep, p.id, p.target); err != nil {
			logger.Error("sync failed", "err", err)
			return failed(res, err)
		}
		res.Outcome = OutcomeOverwritten
		return res

	default:
		logger.Info("already synced, skip")
		res.Outcome = OutcomeUpToDate
		return res
	}
}

func (s *Syncer) confirmConflict(ctx context.Context, c Conflict) (bool, error) {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	return s.confirm(ctx, c)
}

// List reports the module directories currently in the workspace.
func (s *Syncer) List() ([]ModuleEntry, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}

	var entries []ModuleEntry
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		if id, ok := s.provenance.Read(path); ok {
			entries = append(entries, ModuleEntry{Path: filepath.ToSlash(rel), ModuleID: id, Tracked: true})
			return filepath.SkipDir
		}
		if hasContentFiles(path) {
			entries = append(entries, ModuleEntry{Path: filepath.ToSlash(rel)})
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace %s: %w", s.root, err)
	}
	return entries, nil
}

// hasContentFiles reports whether dir directly holds files other than the ignore list.
func hasContentFiles(dir string) bool {
	items, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, item := range items {
		if !item.IsDir() && item.Name() != IgnoreFileName {
			return true
		}
	}
	return false
}

func outcomeFor(fresh bool) Outcome {
	if fresh {
		return OutcomeFetched
	}
	return OutcomeOverwritten
}

func failed(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}
