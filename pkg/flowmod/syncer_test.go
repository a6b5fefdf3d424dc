// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

type (
	// fakeRegistry materializes a README holding "<locator>@<revision>".
	fakeRegistry struct {
		mu    sync.Mutex
		calls []string
		fail  map[Source]error
	}

	// recordingConfirmer answers every prompt the same way and keeps them.
	recordingConfirmer struct {
		mu      sync.Mutex
		answer  bool
		err     error
		prompts []Conflict
	}
)

func (f *fakeRegistry) Retrieve(_ context.Context, locator Source, rev Revision, _, targetDir string) error {
	f.mu.Lock()
	f.calls = append(f.calls, string(locator)+"@"+string(rev))
	err := f.fail[locator]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(targetDir, "README.md"), []byte(string(locator)+"@"+string(rev)), 0o644)
}

func (f *fakeRegistry) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (r *recordingConfirmer) confirm(_ context.Context, c Conflict) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, c)
	return r.answer, r.err
}

func newTestSyncer(t *testing.T, reg Registry, confirm Confirmer, jobs int) *Syncer {
	t.Helper()
	s, err := NewSyncer(Options{
		WorkspaceRoot: filepath.Join(t.TempDir(), DefaultWorkspaceDir),
		CacheDir:      t.TempDir(),
		Registry:      reg,
		Confirm:       confirm,
		Label:         "test",
		Logger:        log.New(io.Discard),
		Jobs:          jobs,
	})
	if err != nil {
		t.Fatalf("NewSyncer() error: %v", err)
	}
	return s
}

func mustSync(t *testing.T, s *Syncer, deps []Dependency, opts SyncOptions) *Report {
	t.Helper()
	report, err := s.Sync(context.Background(), deps, opts)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	return report
}

func assertMarker(t *testing.T, dir string, want ModuleID) {
	t.Helper()
	got, ok := ReadModuleID(dir)
	if !ok {
		t.Fatalf("no valid marker in %s", dir)
	}
	if got != want {
		t.Errorf("marker in %s = %q, want %q", dir, got, want)
	}
}

// snapshot returns every file under root keyed by relative path.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func TestSync_FirstRemoteFetch(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	conf := &recordingConfirmer{}
	s := newTestSyncer(t, reg, conf.confirm, 1)

	report := mustSync(t, s, []Dependency{{Source: "registryA/moduleX", Revision: "r1"}}, SyncOptions{})

	res := report.Results[0]
	if res.Outcome != OutcomeFetched {
		t.Errorf("Outcome = %s, want fetched", res.Outcome)
	}
	if res.ModuleID != "registryA/moduleX:r1" {
		t.Errorf("ModuleID = %q", res.ModuleID)
	}
	target := filepath.Join(s.WorkspaceRoot(), "registryA", "moduleX")
	if res.Target != target {
		t.Errorf("Target = %q, want %q", res.Target, target)
	}
	if reg.fetches() != 1 {
		t.Errorf("fetches = %d, want 1", reg.fetches())
	}
	if len(conf.prompts) != 0 {
		t.Errorf("prompts = %d, want 0", len(conf.prompts))
	}

	assertMarker(t, target, "registryA/moduleX:r1")
	if got, want := readIgnore(t, target), ignoreBanner+ModuleIDFileName+"\n"; got != want {
		t.Errorf("module .gitignore = %q, want %q", got, want)
	}
	if got, want := readIgnore(t, s.WorkspaceRoot()), ignoreBanner+"*\n"; got != want {
		t.Errorf("workspace .gitignore = %q, want %q", got, want)
	}
}

func TestSync_Idempotent(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	s := newTestSyncer(t, reg, NeverConfirm, 1)
	deps := []Dependency{
		{Source: "registryA/moduleX", Revision: "r1"},
		{Source: "org/other"},
	}

	mustSync(t, s, deps, SyncOptions{})
	before := snapshot(t, s.WorkspaceRoot())

	report := mustSync(t, s, deps, SyncOptions{})
	if reg.fetches() != 2 {
		t.Errorf("fetches after second run = %d, want 2", reg.fetches())
	}
	if report.Count(OutcomeUpToDate) != 2 {
		t.Errorf("up-to-date = %d, want 2", report.Count(OutcomeUpToDate))
	}

	after := snapshot(t, s.WorkspaceRoot())
	if len(before) != len(after) {
		t.Fatalf("file count changed: %d -> %d", len(before), len(after))
	}
	for path, content := range before {
		if after[path] != content {
			t.Errorf("%s changed on re-sync", path)
		}
	}
}

func TestSync_ChangedRevision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		answer      bool
		wantOutcome Outcome
		wantMarker  ModuleID
		wantFetches int
	}{
		{name: "declined", answer: false, wantOutcome: OutcomeDeclined, wantMarker: "registryA/moduleX:r1", wantFetches: 1},
		{name: "accepted", answer: true, wantOutcome: OutcomeOverwritten, wantMarker: "registryA/moduleX:r2", wantFetches: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := &fakeRegistry{}
			conf := &recordingConfirmer{answer: tt.answer}
			s := newTestSyncer(t, reg, conf.confirm, 1)
			target := filepath.Join(s.WorkspaceRoot(), "registryA", "moduleX")

			mustSync(t, s, []Dependency{{Source: "registryA/moduleX", Revision: "r1"}}, SyncOptions{})
			report := mustSync(t, s, []Dependency{{Source: "registryA/moduleX", Revision: "r2"}}, SyncOptions{})

			if len(conf.prompts) != 1 {
				t.Fatalf("prompts = %d, want exactly 1", len(conf.prompts))
			}
			c := conf.prompts[0]
			if c.Current != "registryA/moduleX:r1" || c.Requested != "registryA/moduleX:r2" || c.Target != target {
				t.Errorf("unexpected conflict: %+v", c)
			}

			res := report.Results[0]
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.wantOutcome)
			}
			if res.Previous != "registryA/moduleX:r1" {
				t.Errorf("Previous = %q", res.Previous)
			}
			if reg.fetches() != tt.wantFetches {
				t.Errorf("fetches = %d, want %d", reg.fetches(), tt.wantFetches)
			}
			assertMarker(t, target, tt.wantMarker)

			wantReadme := "registryA/moduleX@r1"
			if tt.answer {
				wantReadme = "registryA/moduleX@r2"
			}
			assertFile(t, filepath.Join(target, "README.md"), wantReadme)
		})
	}
}

func TestSync_OverwriteNeverPrompts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dep  Dependency
		opts SyncOptions
	}{
		{name: "per dependency", dep: Dependency{Source: "org/mod", Revision: "r2", Overwrite: true}},
		{name: "batch", dep: Dependency{Source: "org/mod", Revision: "r2"}, opts: SyncOptions{OverwriteAll: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := &fakeRegistry{}
			conf := &recordingConfirmer{}
			s := newTestSyncer(t, reg, conf.confirm, 1)

			mustSync(t, s, []Dependency{{Source: "org/mod", Revision: "r1"}}, SyncOptions{})
			report := mustSync(t, s, []Dependency{tt.dep}, tt.opts)

			if len(conf.prompts) != 0 {
				t.Errorf("prompts = %d, want 0", len(conf.prompts))
			}
			if reg.fetches() != 2 {
				t.Errorf("fetches = %d, want 2", reg.fetches())
			}
			if report.Results[0].Outcome != OutcomeOverwritten {
				t.Errorf("Outcome = %s, want overwritten", report.Results[0].Outcome)
			}
			assertMarker(t, filepath.Join(s.WorkspaceRoot(), "org", "mod"), "org/mod:r2")
		})
	}
}

func TestSync_CorruptedMarkerRefetchesWithoutPrompt(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	conf := &recordingConfirmer{}
	s := newTestSyncer(t, reg, conf.confirm, 1)
	dep := Dependency{Source: "registryA/moduleX", Revision: "r1"}
	target := filepath.Join(s.WorkspaceRoot(), "registryA", "moduleX")

	mustSync(t, s, []Dependency{dep}, SyncOptions{})
	writeFile(t, filepath.Join(target, ModuleIDFileName), "# edited\nregistryA/moduleX:r1\n")

	report := mustSync(t, s, []Dependency{dep}, SyncOptions{})
	if len(conf.prompts) != 0 {
		t.Errorf("prompts = %d, want 0", len(conf.prompts))
	}
	if reg.fetches() != 2 {
		t.Errorf("fetches = %d, want 2", reg.fetches())
	}
	if report.Results[0].Outcome != OutcomeOverwritten {
		t.Errorf("Outcome = %s, want overwritten", report.Results[0].Outcome)
	}
	assertMarker(t, target, "registryA/moduleX:r1")
}

func TestSync_UntrackedDirectoryIsFetched(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	conf := &recordingConfirmer{}
	s := newTestSyncer(t, reg, conf.confirm, 1)
	target := filepath.Join(s.WorkspaceRoot(), "org", "mod")
	writeFile(t, filepath.Join(target, "partial.bin"), "half")

	mustSync(t, s, []Dependency{{Source: "org/mod", Revision: "v1"}}, SyncOptions{})

	if len(conf.prompts) != 0 {
		t.Errorf("prompts = %d, want 0", len(conf.prompts))
	}
	assertMarker(t, target, "org/mod:v1")
}

func TestSync_InvalidDescriptorAbortsBeforeMutation(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	s := newTestSyncer(t, reg, AlwaysConfirm, 1)

	_, err := s.Sync(context.Background(), []Dependency{
		{Source: "registryA/moduleX", Revision: "r1"},
		{Source: "./my-local-dep", Revision: "anything-but-local"},
		{Source: "org/never"},
	}, SyncOptions{})

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Sync() error = %v, want *BatchError", err)
	}
	if batchErr.Index != 1 {
		t.Errorf("Index = %d, want 1", batchErr.Index)
	}
	if !errors.Is(err, ErrInvalidRevision) {
		t.Errorf("error should wrap ErrInvalidRevision: %v", err)
	}
	if reg.fetches() != 0 {
		t.Errorf("fetches = %d, want 0", reg.fetches())
	}
	if _, statErr := os.Stat(s.WorkspaceRoot()); !os.IsNotExist(statErr) {
		t.Errorf("workspace should not be created, stat err = %v", statErr)
	}
}

func TestSync_FetchFailureContinues(t *testing.T) {
	t.Parallel()

	cause := errors.New("revision not found")
	reg := &fakeRegistry{fail: map[Source]error{"org/broken": cause}}
	s := newTestSyncer(t, reg, NeverConfirm, 1)

	report := mustSync(t, s, []Dependency{
		{Source: "org/broken", Revision: "v9"},
		{Source: "org/ok"},
	}, SyncOptions{})

	broken := report.Results[0]
	if broken.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %s, want failed", broken.Outcome)
	}
	if !errors.Is(broken.Err, ErrFetchFailed) || !errors.Is(broken.Err, cause) {
		t.Errorf("Err = %v, want FetchFailed wrapping the cause", broken.Err)
	}
	var fe *FetchError
	if !errors.As(broken.Err, &fe) || fe.ModuleID != "org/broken:v9" || fe.Target != broken.Target {
		t.Errorf("FetchError should carry module id and target: %#v", broken.Err)
	}
	if _, ok := ReadModuleID(broken.Target); ok {
		t.Error("failed fetch must not write a marker")
	}

	if report.Results[1].Outcome != OutcomeFetched {
		t.Errorf("second dependency Outcome = %s, want fetched", report.Results[1].Outcome)
	}
	if len(report.Failed()) != 1 || !errors.Is(report.Err(), cause) {
		t.Errorf("report should expose exactly one failure, got %v", report.Err())
	}
}

func TestSync_ConfirmErrorIsRecorded(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	cause := errors.New("no terminal")
	conf := &recordingConfirmer{err: cause}
	s := newTestSyncer(t, reg, conf.confirm, 1)

	mustSync(t, s, []Dependency{{Source: "org/mod", Revision: "r1"}}, SyncOptions{})
	report := mustSync(t, s, []Dependency{{Source: "org/mod", Revision: "r2"}}, SyncOptions{})

	if res := report.Results[0]; res.Outcome != OutcomeFailed || !errors.Is(res.Err, cause) {
		t.Errorf("result = %s / %v, want failure wrapping the confirm error", res.Outcome, res.Err)
	}
	if reg.fetches() != 1 {
		t.Errorf("fetches = %d, want 1", reg.fetches())
	}
}

func TestSync_Local(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "my-local-dep")
	writeFile(t, filepath.Join(src, "flow.py"), "v1")
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref")

	reg := &fakeRegistry{}
	s := newTestSyncer(t, reg, NeverConfirm, 1)
	target := filepath.Join(s.WorkspaceRoot(), "local", "my-local-dep")
	dep := Dependency{Source: Source(src)}

	report := mustSync(t, s, []Dependency{dep}, SyncOptions{})
	if report.Results[0].Outcome != OutcomeFetched {
		t.Fatalf("Outcome = %s, want fetched", report.Results[0].Outcome)
	}
	if reg.fetches() != 0 {
		t.Errorf("local sync used the registry %d times", reg.fetches())
	}
	assertFile(t, filepath.Join(target, "flow.py"), "v1")
	assertMissing(t, filepath.Join(target, ".git"))
	assertMarker(t, target, ModuleID(src+":local"))

	// Changes in the source are only picked up with overwrite.
	writeFile(t, filepath.Join(src, "flow.py"), "v2")
	report = mustSync(t, s, []Dependency{dep}, SyncOptions{})
	if report.Results[0].Outcome != OutcomeUpToDate {
		t.Errorf("Outcome = %s, want up-to-date", report.Results[0].Outcome)
	}
	assertFile(t, filepath.Join(target, "flow.py"), "v1")

	dep.Overwrite = true
	report = mustSync(t, s, []Dependency{dep}, SyncOptions{})
	if report.Results[0].Outcome != OutcomeOverwritten {
		t.Errorf("Outcome = %s, want overwritten", report.Results[0].Outcome)
	}
	assertFile(t, filepath.Join(target, "flow.py"), "v2")
}

func TestSync_LocalTargetIsFile(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "my-local-dep")
	writeFile(t, filepath.Join(src, "flow.py"), "v1")

	s := newTestSyncer(t, &fakeRegistry{}, NeverConfirm, 1)
	target := filepath.Join(s.WorkspaceRoot(), "local", "my-local-dep")
	writeFile(t, target, "not a module")

	for _, overwrite := range []bool{false, true} {
		report := mustSync(t, s, []Dependency{{Source: Source(src), Overwrite: overwrite}}, SyncOptions{})
		res := report.Results[0]
		if res.Outcome != OutcomeFailed {
			t.Errorf("overwrite=%v: Outcome = %s, want failed", overwrite, res.Outcome)
		}
		var te *TargetExistsError
		if !errors.As(res.Err, &te) || !te.NotDir {
			t.Errorf("overwrite=%v: Err = %v, want *TargetExistsError with NotDir", overwrite, res.Err)
		}
		if !errors.Is(res.Err, ErrTargetExists) {
			t.Errorf("overwrite=%v: Err should wrap ErrTargetExists", overwrite)
		}
	}
	assertFile(t, target, "not a module")
}

func TestFetchLocal_TargetExists(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "existing"), "x")

	s := newTestSyncer(t, &fakeRegistry{}, NeverConfirm, 1)
	dep, err := ValidateAndAugment(Dependency{Source: Source(src)})
	if err != nil {
		t.Fatal(err)
	}

	err = s.fetchLocal(dep, "id:local", target, false)
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("fetchLocal() = %v, want ErrTargetExists", err)
	}
	assertMissing(t, filepath.Join(target, "a"))
	assertMissing(t, filepath.Join(target, ModuleIDFileName))

	if err := s.fetchLocal(dep, "id:local", target, true); err != nil {
		t.Fatalf("fetchLocal(overwrite) = %v", err)
	}
	assertFile(t, filepath.Join(target, "a"), "a")
	assertFile(t, filepath.Join(target, "existing"), "x")
}

func TestSync_Concurrent(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	s := newTestSyncer(t, reg, NeverConfirm, 4)

	deps := []Dependency{
		{Source: "org/a", Revision: "r1"},
		{Source: "org/b"},
		{Source: "org/c"},
		{Source: "org/a", Revision: "r1"},
		{Source: "org/d"},
		{Source: "org/e"},
	}
	report := mustSync(t, s, deps, SyncOptions{})

	for i, res := range report.Results {
		if res.Dependency.Source != deps[i].Source {
			t.Errorf("result %d is for %s, want %s", i, res.Dependency.Source, deps[i].Source)
		}
	}
	// The duplicate shares a worker with the first declaration and sees its marker.
	if report.Results[0].Outcome != OutcomeFetched || report.Results[3].Outcome != OutcomeUpToDate {
		t.Errorf("duplicate handling: %s, %s", report.Results[0].Outcome, report.Results[3].Outcome)
	}
	if reg.fetches() != 5 {
		t.Errorf("fetches = %d, want 5", reg.fetches())
	}
}

func TestSync_CanceledContext(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	s := newTestSyncer(t, reg, NeverConfirm, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := s.Sync(ctx, []Dependency{{Source: "org/a"}, {Source: "org/b"}}, SyncOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range report.Results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: Err = %v, want context.Canceled", res.Dependency, res.Err)
		}
	}
	if reg.fetches() != 0 {
		t.Errorf("fetches = %d, want 0", reg.fetches())
	}
}

func TestSync_WorkspaceNotDir(t *testing.T) {
	t.Parallel()

	s := newTestSyncer(t, &fakeRegistry{}, NeverConfirm, 1)
	writeFile(t, s.WorkspaceRoot(), "file")

	_, err := s.Sync(context.Background(), []Dependency{{Source: "org/a"}}, SyncOptions{})
	if !errors.Is(err, ErrWorkspaceNotDir) {
		t.Errorf("Sync() = %v, want ErrWorkspaceNotDir", err)
	}
}

func TestSyncDependency(t *testing.T) {
	t.Parallel()

	s := newTestSyncer(t, &fakeRegistry{}, NeverConfirm, 1)

	res, err := s.SyncDependency(context.Background(), Dependency{Source: "org/a", Revision: "v1"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeFetched || res.ModuleID != "org/a:v1" {
		t.Errorf("result = %+v", res)
	}

	if _, err := s.SyncDependency(context.Background(), Dependency{}, false); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("SyncDependency(empty) = %v, want ErrInvalidDescriptor", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	s := newTestSyncer(t, &fakeRegistry{}, NeverConfirm, 1)

	entries, err := s.List()
	if err != nil || entries != nil {
		t.Fatalf("List() on missing workspace = %v, %v", entries, err)
	}

	mustSync(t, s, []Dependency{{Source: "registryA/moduleX", Revision: "r1"}}, SyncOptions{})
	writeFile(t, filepath.Join(s.WorkspaceRoot(), "stray", "notes.txt"), "x")

	entries, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() = %+v, want 2 entries", entries)
	}
	if e := entries[0]; e.Path != "registryA/moduleX" || !e.Tracked || e.ModuleID != "registryA/moduleX:r1" {
		t.Errorf("entries[0] = %+v", e)
	}
	if e := entries[1]; e.Path != "stray" || e.Tracked {
		t.Errorf("entries[1] = %+v", e)
	}
}

func TestNewSyncer_Defaults(t *testing.T) {
	t.Parallel()

	s, err := NewSyncer(Options{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(s.WorkspaceRoot()) || filepath.Base(s.WorkspaceRoot()) != DefaultWorkspaceDir {
		t.Errorf("WorkspaceRoot() = %q", s.WorkspaceRoot())
	}
	if _, ok := s.registry.(*GitRegistry); !ok {
		t.Errorf("default registry = %T, want *GitRegistry", s.registry)
	}
	if ok, _ := s.confirm(context.Background(), Conflict{}); ok {
		t.Error("default confirmer should decline")
	}
}

func TestReport(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := &Report{Results: []Result{
		{Outcome: OutcomeFetched},
		{Outcome: OutcomeFailed, Err: boom},
		{Outcome: OutcomeDeclined},
		{Outcome: OutcomeFetched},
	}}
	if r.Count(OutcomeFetched) != 2 || r.Count(OutcomeUpToDate) != 0 {
		t.Errorf("Count() mismatch")
	}
	if len(r.Failed()) != 1 || !errors.Is(r.Err(), boom) {
		t.Errorf("Failed()/Err() mismatch: %v", r.Err())
	}
	if (&Report{}).Err() != nil {
		t.Error("empty report should have no error")
	}
	if OutcomeDeclined.String() != "declined" || Outcome(99).String() != "Outcome(99)" {
		t.Errorf("Outcome.String() mismatch")
	}
}

func TestConflict_String(t *testing.T) {
	t.Parallel()

	c := Conflict{Target: "t", Current: "registryA/moduleX:r1", Requested: "registryA/moduleX:r2"}
	want := "registryA/moduleX:r1 already synced, it will be overwritten by new revision registryA/moduleX:r2"
	if c.String() != want {
		t.Errorf("String() = %q, want %q", c.String(), want)
	}
}
