// Package archive keeps a git history of every publication. Each published
// node is a JSON file at <kind>/<id>.json in a single repository; publishing
// commits the file and deleting the node commits its removal.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"editorial/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const branch = "main"

// Publication is the snapshot written for one published version.
type Publication struct {
	Kind          store.NodeKind `json:"kind"`
	NodeID        int64          `json:"nodeId"`
	ParentID      int64          `json:"parentId"`
	VersionID     int64          `json:"versionId"`
	VersionNumber int            `json:"versionNumber"`
	Title         store.Text     `json:"title"`
	Body          store.Text     `json:"body"`
	AuthorID      int64          `json:"authorId"`
	PublishedBy   int64          `json:"publishedBy"`
	PublishedAt   time.Time      `json:"publishedAt"`
}

// Ref names an archived node.
type Ref struct {
	Kind   store.NodeKind
	NodeID int64
}

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

func entryPath(kind store.NodeKind, id int64) string {
	return path.Join(strings.ToLower(string(kind)), strconv.FormatInt(id, 10)+".json")
}

// Record commits the snapshot of pub.
func (s *Service) Record(pub Publication, actor string) (Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(pub, "", "  ")
	if err != nil {
		return Commit{}, fmt.Errorf("marshal publication: %w", err)
	}
	rel := entryPath(pub.Kind, pub.NodeID)
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Commit{}, fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(full, append(payload, '\n'), 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", rel, err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return Commit{}, fmt.Errorf("git add %s: %w", rel, err)
	}

	message := fmt.Sprintf("Publish %s %d version %d", strings.ToLower(pub.Kind.Label()), pub.NodeID, pub.VersionNumber)
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            signature(actor),
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit publication: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// Remove deletes the snapshots of refs in one commit. Refs that were never
// archived are skipped; ok is false when nothing was removed.
func (s *Service) Remove(refs []Ref, actor string) (Commit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return Commit{}, false, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, false, fmt.Errorf("open worktree: %w", err)
	}

	removed := 0
	for _, ref := range refs {
		rel := entryPath(ref.Kind, ref.NodeID)
		if _, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(rel))); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if _, err := worktree.Remove(rel); err != nil {
			return Commit{}, false, fmt.Errorf("git rm %s: %w", rel, err)
		}
		removed++
	}
	if removed == 0 {
		return Commit{}, false, nil
	}

	hash, err := worktree.Commit(fmt.Sprintf("Remove %d archived entries", removed), &git.CommitOptions{
		Author: signature(actor),
	})
	if err != nil {
		return Commit{}, false, fmt.Errorf("commit removal: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), true, nil
}

// History lists the commits that touched a node, newest first.
func (s *Service) History(kind store.NodeKind, id int64, limit int) ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	head, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	rel := entryPath(kind, id)
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Snapshot reads the publication of a node as of commit hash.
func (s *Service) Snapshot(kind store.NodeKind, id int64, hash string) (Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return Publication{}, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Publication{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Publication{}, fmt.Errorf("read commit %s: %w", hash, err)
	}

	rel := entryPath(kind, id)
	file, err := commitObj.File(rel)
	if err != nil {
		return Publication{}, fmt.Errorf("load %s from commit: %w", rel, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Publication{}, fmt.Errorf("open %s: %w", rel, err)
	}
	defer reader.Close()

	var pub Publication
	if err := json.NewDecoder(reader).Decode(&pub); err != nil {
		return Publication{}, fmt.Errorf("decode %s: %w", rel, err)
	}
	return pub, nil
}

// open opens the repository, creating it with HEAD on main the first time.
func (s *Service) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branch, err)
	}
	return repo, nil
}

func signature(actor string) *object.Signature {
	return &object.Signature{
		Name:  actor,
		Email: fmt.Sprintf("%s@editorial.local", sanitizeEmail(actor)),
		When:  time.Now(),
	}
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
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
