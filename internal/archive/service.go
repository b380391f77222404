// Package archive keeps an immutable, inspectable history of OCG
// lifecycle snapshots in per-agreement git repositories. Publishing and
// signing each commit the rendered document state, so every version of
// an agreement can be audited after the fact.
package archive

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
)

// Snapshot is one committed OCG state.
type Snapshot struct {
	OCGID    string          `json:"ocgId"`
	Version  int             `json:"version"`
	Status   string          `json:"status"`
	Document json.RawMessage `json:"document"`
}

// CommitInfo describes one archive entry.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Service manages one git repository per agreement lineage, keyed by
// (clientID, agreement name).
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

// RecordSnapshot commits the snapshot onto the agreement's main branch,
// initializing the repository on first use.
func (s *Service) RecordSnapshot(clientID, name string, snap Snapshot, actor, message string) (CommitInfo, error) {
	key := agreementKey(clientID, name)
	lock := s.agreementLock(key)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(key)
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = s.initRepo(path)
	}
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open archive repo: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "agreement.json"), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write snapshot: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add("agreement.json"); err != nil {
		return CommitInfo{}, fmt.Errorf("git add snapshot: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  actor,
			Email: fmt.Sprintf("%s@archive.justicebid.dev", sanitizeEmail(actor)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists archive entries for the agreement, newest first. A
// missing repository yields an empty history, not an error.
func (s *Service) History(clientID, name string, limit int) ([]CommitInfo, error) {
	key := agreementKey(clientID, name)
	lock := s.agreementLock(key)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(key))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// LatestSnapshot reads the snapshot at the head of the agreement's
// history, or nil when nothing has been archived.
func (s *Service) LatestSnapshot(clientID, name string) (*Snapshot, error) {
	key := agreementKey(clientID, name)
	lock := s.agreementLock(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(filepath.Join(s.repoPath(key), "agreement.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Service) initRepo(path string) (*git.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(key string) string {
	return filepath.Join(s.baseDir, key)
}

func (s *Service) agreementLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func agreementKey(clientID, name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	return clientID + "__" + b.String()
}

func sanitizeEmail(name string) string {
	out := strings.ToLower(strings.TrimSpace(name))
	out = strings.ReplaceAll(out, " ", ".")
	if out == "" {
		out = "system"
	}
	return out
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:    commitObj.Hash.String(),
		Author:  commitObj.Author.Name,
		Message: commitObj.Message,
		When:    commitObj.Author.When,
	}
}
