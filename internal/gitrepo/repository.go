// Package gitrepo resolves branch names for checkout events using go-git.
package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
)

// Repository wraps a local git repository for branch resolution.
type Repository struct {
	repo   *git.Repository
	path   string
	logger zerolog.Logger
}

// Open opens the repository containing path, searching parent directories the
// way git itself does.
func Open(path string, logger zerolog.Logger) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", path, err)
	}
	return &Repository{repo: repo, path: path, logger: logger}, nil
}

// CurrentBranch returns the branch HEAD points at, or "" when HEAD is
// detached. A detached HEAD is not an error here; the orchestrator treats the
// empty name as an invalid transfer endpoint.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		r.logger.Debug().Str("head", head.Hash().String()).Msg("HEAD is detached")
		return "", nil
	}
	return head.Name().Short(), nil
}

// BranchesAt returns the names of all local branches whose tip is the commit
// the given revision resolves to. The previous HEAD of a checkout can be the
// tip of several branches at once; all of them are source candidates.
func (r *Repository) BranchesAt(revision string) ([]string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %q: %w", revision, err)
	}

	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Hash() == *hash {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk branches: %w", err)
	}

	r.logger.Debug().
		Str("revision", revision).
		Strs("branches", names).
		Msg("resolved branches at revision")
	return names, nil
}

// HooksDir locates the hooks directory for the repository containing start.
// Handles both a regular .git directory and the gitfile indirection used by
// worktrees and submodules.
func HooksDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		gitPath := filepath.Join(dir, ".git")
		info, statErr := os.Stat(gitPath)
		if statErr == nil {
			if info.IsDir() {
				return filepath.Join(gitPath, "hooks"), nil
			}
			content, readErr := os.ReadFile(gitPath)
			if readErr != nil {
				return "", fmt.Errorf("read gitfile: %w", readErr)
			}
			gitDir := strings.TrimSpace(strings.TrimPrefix(string(content), "gitdir:"))
			if !filepath.IsAbs(gitDir) {
				gitDir = filepath.Join(dir, gitDir)
			}
			return filepath.Join(gitDir, "hooks"), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no git repository found above %s", start)
		}
		dir = parent
	}
}
