// Package archive keeps a git-backed trail of review state blobs, one
// repository per property. Saves are last-writer-wins at the database
// level; the archive preserves every version that was ever persisted so
// an overwritten review can be recovered.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const stateFile = "review.json"

var ErrNoArchive = errors.New("archive: property has no archive")

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

// CommitState records a new version of the property's review blob. The
// repository is created on first use. Committing a blob identical to
// the current head is a no-op and returns the head commit.
func (s *Service) CommitState(propertyID string, blob json.RawMessage, author, message string) (store.CommitInfo, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(propertyID)
	if err != nil {
		return store.CommitInfo{}, err
	}

	payload := normalizeBlob(blob)
	if head, headBlob, err := headState(repo); err == nil && bytes.Equal(normalizeBlob(headBlob), payload) {
		return toCommitInfo(head), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	path := filepath.Join(worktree.Filesystem.Root(), stateFile)
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return store.CommitInfo{}, fmt.Errorf("write %s: %w", stateFile, err)
	}
	if _, err := worktree.Add(stateFile); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add %s: %w", stateFile, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.vistral.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit review state: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists archived versions, newest first. A property that was
// never committed yields ErrNoArchive.
func (s *Service) History(propertyID string, limit int) ([]store.CommitInfo, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(propertyID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoArchive
		}
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
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

// StateAt returns the review blob as it was at the given commit.
func (s *Service) StateAt(propertyID, hash string) (json.RawMessage, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(propertyID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoArchive
		}
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readStateFromCommit(commitObj)
}

func (s *Service) repoPath(propertyID string) string {
	return filepath.Join(s.baseDir, propertyID)
}

func (s *Service) propertyLock(propertyID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[propertyID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[propertyID] = lock
	return lock
}

func (s *Service) openOrInit(propertyID string) (*git.Repository, error) {
	path := s.repoPath(propertyID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	return repo, nil
}

func headState(repo *git.Repository) (*object.Commit, json.RawMessage, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, nil, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, nil, err
	}
	blob, err := readStateFromCommit(commitObj)
	if err != nil {
		return nil, nil, err
	}
	return commitObj, blob, nil
}

func readStateFromCommit(commitObj *object.Commit) (json.RawMessage, error) {
	file, err := commitObj.File(stateFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", stateFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open state reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read state bytes: %w", err)
	}
	return json.RawMessage(bytes.TrimRight(raw, "\n")), nil
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "reviewer"
	}
	return string(runes)
}

// normalizeBlob re-marshals the blob so formatting differences do not
// produce spurious archive commits.
func normalizeBlob(blob json.RawMessage) []byte {
	if len(blob) == 0 {
		return []byte("{}")
	}
	var parsed any
	if err := json.Unmarshal(blob, &parsed); err != nil {
		return blob
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return blob
	}
	return normalized
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
