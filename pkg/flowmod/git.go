// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// DefaultRegistryURL hosts bare "owner/name" locators.
const DefaultRegistryURL = "https://huggingface.co"

// GitRegistry retrieves remote modules from Git hosts. Each repository is
// mirrored once under <cacheDir>/sources and later syncs only fetch updates.
// It is safe for concurrent use; retrievals sharing a mirror run one at a time.
type GitRegistry struct {
	// BaseURL is prepended to locators that are not already Git URLs.
	BaseURL string

	getenv func(string) string

	// locks maps a mirror path to the *sync.Mutex guarding it.
	locks sync.Map
}

// NewGitRegistry creates a registry rooted at baseURL (DefaultRegistryURL when empty).
func NewGitRegistry(baseURL string) *GitRegistry {
	return NewGitRegistryWith(baseURL, os.Getenv)
}

// NewGitRegistryWith is NewGitRegistry with an explicit environment lookup
// for credentials.
func NewGitRegistryWith(baseURL string, getenv func(string) string) *GitRegistry {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &GitRegistry{BaseURL: baseURL, getenv: getenv}
}

// RemoteURL returns the clone URL for a locator.
func (g *GitRegistry) RemoteURL(locator Source) string {
	s := string(locator)
	if isGitURL(s) {
		return s
	}
	return strings.TrimSuffix(g.BaseURL, "/") + "/" + strings.TrimPrefix(s, "/")
}

// Retrieve implements Registry. The tree of the resolved commit is written
// into targetDir; files already present there are overwritten, others are kept.
func (g *GitRegistry) Retrieve(ctx context.Context, locator Source, rev Revision, cacheDir, targetDir string) error {
	url := g.RemoteURL(locator)
	cachePath := repoCachePath(cacheDir, url)

	// Different locators can name the same repository, so the lock follows
	// the mirror rather than the target directory.
	unlock := g.lockMirror(cachePath)
	defer unlock()

	repo, fetchErr := g.mirror(ctx, url, cachePath)
	if repo == nil {
		return fetchErr
	}

	commit, err := resolveCommit(repo, rev)
	if err != nil {
		if fetchErr != nil {
			return errors.Join(err, fetchErr)
		}
		return err
	}

	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to read tree of %s: %w", commit.Hash, err)
	}
	return writeTree(tree, targetDir)
}

// lockMirror blocks until the mirror at cachePath is free and returns the
// matching unlock.
func (g *GitRegistry) lockMirror(cachePath string) func() {
	v, _ := g.locks.LoadOrStore(cachePath, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// mirror opens or clones the bare cache repository for url. When the cache
// already exists a failed fetch is returned alongside the repository, since
// the requested revision may still be available locally.
func (g *GitRegistry) mirror(ctx context.Context, url, cachePath string) (*git.Repository, error) {
	auth := g.authFor(url)

	repo, err := git.PlainOpen(cachePath)
	if err != nil {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		repo, err = git.PlainCloneContext(ctx, cachePath, true, &git.CloneOptions{
			URL:  url,
			Auth: auth,
			Tags: git.AllTags,
		})
		if err != nil {
			// Clean up failed attempt (best-effort)
			_ = os.RemoveAll(cachePath)
			return nil, fmt.Errorf("failed to clone %s: %w", url, err)
		}
		return repo, nil
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return repo, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return repo, nil
}

// resolveCommit finds the commit named by rev: a branch, a tag, or a hash.
func resolveCommit(repo *git.Repository, rev Revision) (*object.Commit, error) {
	candidates := []plumbing.Revision{
		plumbing.Revision("refs/remotes/origin/" + string(rev)),
		plumbing.Revision("refs/tags/" + string(rev)),
		plumbing.Revision(rev),
	}

	for _, c := range candidates {
		hash, err := repo.ResolveRevision(c)
		if err != nil {
			continue
		}
		if commit, err := repo.CommitObject(*hash); err == nil {
			return commit, nil
		}
		// Annotated tag - dereference to the commit it points to
		if tag, err := repo.TagObject(*hash); err == nil {
			if commit, err := tag.Commit(); err == nil {
				return commit, nil
			}
		}
	}
	return nil, fmt.Errorf("revision %q not found", rev)
}

// writeTree materializes every regular file of tree under dir.
func writeTree(tree *object.Tree, dir string) error {
	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	return tree.Files().ForEach(func(f *object.File) error {
		if f.Mode == filemode.Symlink || f.Mode == filemode.Submodule {
			return nil
		}

		dst := filepath.Join(root, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
			return fmt.Errorf("refusing to write %q outside %s", f.Name, root)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}

		perm := os.FileMode(0o644)
		if f.Mode == filemode.Executable {
			perm = 0o755
		}
		return writeBlob(f, dst, perm)
	})
}

func writeBlob(f *object.File, dst string, perm os.FileMode) error {
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer r.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// authFor picks credentials by URL scheme: SSH keys for SSH remotes and
// token basic auth for HTTP remotes. Nil means anonymous access.
func (g *GitRegistry) authFor(url string) transport.AuthMethod {
	if strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://") {
		return trySSHAuth()
	}
	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://") {
		return g.tryHTTPAuth()
	}
	return nil
}

// trySSHAuth attempts to configure SSH authentication.
func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(homeDir, ".ssh", name)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}
	return nil
}

// tryHTTPAuth attempts to configure HTTP authentication from well-known token variables.
func (g *GitRegistry) tryHTTPAuth() transport.AuthMethod {
	tokens := []struct{ env, user string }{
		{"FLOWVERSE_GIT_TOKEN", "git"},
		{"HF_TOKEN", "hf_user"},
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, t := range tokens {
		if token := g.getenv(t.env); token != "" {
			return &http.BasicAuth{Username: t.user, Password: token}
		}
	}
	return nil
}

// isGitURL returns true if s already carries a transport scheme.
func isGitURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "git@")
}

// repoCachePath maps a clone URL to its mirror directory.
// e.g., "https://huggingface.co/org/mod" -> <cacheDir>/sources/huggingface.co/org/mod
func repoCachePath(cacheDir, url string) string {
	p := url
	if _, rest, found := strings.Cut(p, "://"); found {
		p = rest
	}
	p = strings.TrimPrefix(p, "git@")
	p = strings.TrimSuffix(p, ".git")
	p = strings.ReplaceAll(p, ":", "/")
	p = strings.Trim(path.Clean("/"+p), "/")
	return filepath.Join(cacheDir, "sources", filepath.FromSlash(p))
}
