// Package revision keeps a per-contract git history of drafting snapshots.
// Every save commits the serialized cell list, so a contract's evolution can
// be listed and any prior snapshot recovered.
package revision

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"lexdraft/api/internal/contract"
	"lexdraft/api/internal/store"
)

const snapshotFile = "contract.json"

// Snapshot is the committed form of a drafting session.
type Snapshot struct {
	ContractID string          `json:"contractId"`
	Title      string          `json:"title"`
	TemplateID string          `json:"templateId"`
	Variant    string          `json:"variant"`
	Fields     map[string]string `json:"fields,omitempty"`
	Cells      []contract.Cell `json:"cells"`
}

var ErrNoHistory = errors.New("contract has no revision history")

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) contractLock(contractID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[contractID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[contractID] = lock
	}
	return lock
}

func (s *Service) repoPath(contractID string) string {
	return filepath.Join(s.baseDir, contractID)
}

// Commit writes the snapshot and commits it, initializing the repository on
// first save. An empty message gets a default.
func (s *Service) Commit(contractID string, snap Snapshot, author, message string) (store.CommitInfo, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(contractID)
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = s.initRepo(path)
	}
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return store.CommitInfo{}, fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add snapshot: %w", err)
	}

	if strings.TrimSpace(message) == "" {
		message = "Save drafting progress"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.lexdraft.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit: %w", err)
	}
	return commitInfo(commit), nil
}

func (s *Service) initRepo(path string) (*git.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

// Head returns the latest committed snapshot.
func (s *Service) Head(contractID string) (Snapshot, store.CommitInfo, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(contractID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Snapshot{}, store.CommitInfo{}, ErrNoHistory
	}
	if err != nil {
		return Snapshot{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return Snapshot{}, store.CommitInfo{}, ErrNoHistory
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return Snapshot{}, store.CommitInfo{}, fmt.Errorf("read head commit: %w", err)
	}
	snap, err := snapshotAt(commit)
	if err != nil {
		return Snapshot{}, store.CommitInfo{}, err
	}
	return snap, commitInfo(commit), nil
}

// History lists commits newest-first, capped at limit when limit > 0.
func (s *Service) History(contractID string, limit int) ([]store.CommitInfo, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(contractID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, ErrNoHistory
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var out []store.CommitInfo
	for {
		commit, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate log: %w", err)
		}
		out = append(out, commitInfo(commit))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetByHash recovers the snapshot committed at a specific revision.
func (s *Service) GetByHash(contractID, hash string) (Snapshot, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(contractID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Snapshot{}, ErrNoHistory
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("open repo: %w", err)
	}

	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return snapshotAt(commit)
}

func snapshotAt(commit *object.Commit) (Snapshot, error) {
	file, err := commit.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot file missing at %s: %w", commit.Hash, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func commitInfo(commit *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:    commit.Hash.String(),
		Message: strings.TrimSpace(commit.Message),
		Author:  commit.Author.Name,
		When:    commit.Author.When,
	}
}

func sanitizeEmail(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	cleaned = strings.ReplaceAll(cleaned, " ", ".")
	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "drafter"
	}
	return b.String()
}
