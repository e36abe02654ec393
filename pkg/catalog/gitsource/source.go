// Package gitsource keeps a local clone of a catalog repository current so
// the catalog importer can read the file from the working tree.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"mercator-hq/warden/pkg/config"
)

// SyncResult describes one Sync call.
type SyncResult struct {
	// Previous is the commit before the sync; empty on the first sync.
	Previous string

	// Commit is the checked out commit after the sync.
	Commit string

	// Changed is true when Commit differs from Previous. The first sync of a
	// Source always reports a change.
	Changed bool
}

// Source tracks one branch of a catalog repository.
type Source struct {
	cfg    config.CatalogGitConfig
	auth   transport.AuthMethod
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
	head string
}

// New creates a source for cfg. Nothing is fetched until Sync.
func New(cfg config.CatalogGitConfig, logger *slog.Logger) (*Source, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("local path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	auth, err := NewAuth(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth: %w", err)
	}

	return &Source{
		cfg:    cfg,
		auth:   auth,
		logger: logger.With("component", "catalog.git"),
	}, nil
}

// CatalogPath is the catalog file inside the local clone.
func (s *Source) CatalogPath() string {
	return filepath.Join(s.cfg.LocalPath, s.cfg.File)
}

// Sync clones the repository on first use, or opens an existing clone, and
// pulls the tracked branch. It is safe for concurrent use.
func (s *Source) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if s.repo == nil {
		cloned, err := s.open(ctx)
		if err != nil {
			return SyncResult{}, err
		}
		if cloned {
			head, err := s.headCommit()
			if err != nil {
				return SyncResult{}, err
			}
			s.head = head
			s.logger.InfoContext(ctx, "catalog repository cloned", "commit", short(head))
			return SyncResult{Commit: head, Changed: true}, nil
		}
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to get worktree: %w", err)
	}
	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Depth:         s.cfg.Depth,
		Auth:          s.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return SyncResult{}, fmt.Errorf("failed to pull: %w", err)
	}

	head, err := s.headCommit()
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{Previous: s.head, Commit: head, Changed: head != s.head}
	s.head = head

	if res.Changed {
		s.logger.InfoContext(ctx, "catalog repository updated",
			"from", short(res.Previous),
			"to", short(res.Commit),
		)
	}
	return res, nil
}

// open reuses a clone left at LocalPath or clones the repository. It
// reports whether a fresh clone was made.
func (s *Source) open(ctx context.Context) (bool, error) {
	if _, err := os.Stat(filepath.Join(s.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.cfg.LocalPath)
		if err != nil {
			return false, fmt.Errorf("failed to open existing clone: %w", err)
		}
		s.repo = repo
		return false, nil
	}

	if err := os.MkdirAll(s.cfg.LocalPath, 0o755); err != nil {
		return false, fmt.Errorf("failed to create clone directory: %w", err)
	}

	repo, err := gogit.PlainCloneContext(ctx, s.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           s.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Depth:         s.cfg.Depth,
		Auth:          s.auth,
	})
	if err != nil {
		return false, fmt.Errorf("failed to clone %s: %w", s.cfg.Repository, err)
	}
	s.repo = repo
	return true, nil
}

func (s *Source) headCommit() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Poll calls Sync every interval until ctx is done and runs onChange with
// the catalog path whenever a new commit arrives. Sync and onChange errors
// are logged and polling continues.
func (s *Source) Poll(ctx context.Context, interval time.Duration, onChange func(ctx context.Context, path string) error) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "catalog repository polling started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("catalog repository polling stopped")
			return
		case <-ticker.C:
			res, err := s.Sync(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "catalog repository sync failed", "error", err)
				continue
			}
			if !res.Changed {
				continue
			}
			if err := onChange(ctx, s.CatalogPath()); err != nil {
				s.logger.ErrorContext(ctx, "catalog re-import failed",
					"commit", short(res.Commit),
					"error", err,
				)
			}
		}
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
