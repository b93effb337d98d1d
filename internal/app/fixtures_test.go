package app

import (
	"context"
	"sync"
	"testing"

	"editorial/api/internal/archive"
	"editorial/api/internal/export"
	"editorial/api/internal/search"
	"editorial/api/internal/store"

	"github.com/stretchr/testify/require"
)

const (
	editorID   int64 = 7
	reviewerID int64 = 9
)

func newTestService(t *testing.T, opts ...Option) (*Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	return New(mem, opts...), mem
}

// seededTree is one category holding a single chain of nodes, each with one
// version and none published.
type seededTree struct {
	category  int64
	book      int64
	chapter   int64
	section   int64
	paragraph int64
	versions  map[store.NodeKind]int64
}

func seedTree(t *testing.T, svc *Service) seededTree {
	t.Helper()
	ctx := context.Background()
	category, err := svc.CreateCategory(ctx, CategoryInput{Name: store.Text{En: "Safety", Fr: "Sécurité"}})
	require.NoError(t, err)

	seeded := seededTree{category: category.ID, versions: make(map[store.NodeKind]int64)}
	parent := category.ID
	for _, kind := range store.NodeKinds {
		number := 1
		if kind == store.KindSection {
			number = 0
		}
		node, err := svc.CreateNode(ctx, kind, parent, Placement{Number: number})
		require.NoError(t, err)

		in := VersionInput{Title: store.Text{En: kindSubject(kind) + " title"}, Body: store.Text{En: kindSubject(kind) + " intro"}}
		if kind == store.KindParagraph {
			in = VersionInput{Body: store.Text{En: "paragraph content", Fr: "contenu"}}
		}
		version, err := svc.CreateVersion(ctx, kind, node.ID, in, editorID)
		require.NoError(t, err)
		seeded.versions[kind] = version.ID

		switch kind {
		case store.KindBook:
			seeded.book = node.ID
		case store.KindChapter:
			seeded.chapter = node.ID
		case store.KindSection:
			seeded.section = node.ID
		case store.KindParagraph:
			seeded.paragraph = node.ID
		}
		parent = node.ID
	}
	return seeded
}

func (tr seededTree) id(kind store.NodeKind) int64 {
	switch kind {
	case store.KindBook:
		return tr.book
	case store.KindChapter:
		return tr.chapter
	case store.KindSection:
		return tr.section
	default:
		return tr.paragraph
	}
}

type fakeUsage struct {
	referenced []int64
	calls      [][]int64
	queriers   []store.Querier
}

func (f *fakeUsage) ReferencedParagraphs(_ context.Context, q store.Querier, ids []int64) ([]int64, error) {
	f.calls = append(f.calls, append([]int64(nil), ids...))
	f.queriers = append(f.queriers, q)
	return f.referenced, nil
}

type fakeCache struct {
	mu          sync.Mutex
	gen         int64
	entries     map[string][]byte
	gets        int
	hits        int
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, scope string) ([]byte, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	payload, ok := f.entries[scope]
	if ok {
		f.hits++
	}
	return payload, f.gen, ok, nil
}

func (f *fakeCache) Set(_ context.Context, gen int64, scope string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return nil
	}
	f.entries[scope] = payload
	return nil
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.gen++
	f.entries = make(map[string][]byte)
	return nil
}

type fakeSearch struct {
	mu       sync.Mutex
	indexed  []search.PublishedRecord
	deleted  []string
	reindex  []search.PublishedRecord
	response search.Response
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	resp := f.response
	resp.Query = q.Text
	return resp
}

func (f *fakeSearch) IndexPublished(rec search.PublishedRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, rec)
}

func (f *fakeSearch) DeletePublished(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
}

func (f *fakeSearch) Reindex(records []search.PublishedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reindex = records
	return nil
}

type fakeArchive struct {
	mu       sync.Mutex
	recorded []archive.Publication
	removed  []archive.Ref
	actors   []string
}

func (f *fakeArchive) Record(pub archive.Publication, actor string) (archive.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, pub)
	f.actors = append(f.actors, actor)
	return archive.Commit{Hash: "abc1234", Message: "publish"}, nil
}

func (f *fakeArchive) Remove(refs []archive.Ref, actor string) (archive.Commit, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, refs...)
	f.actors = append(f.actors, actor)
	return archive.Commit{Hash: "def5678"}, true, nil
}

func (f *fakeArchive) History(kind store.NodeKind, id int64, limit int) ([]archive.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var commits []archive.Commit
	for _, pub := range f.recorded {
		if pub.Kind == kind && pub.NodeID == id {
			commits = append(commits, archive.Commit{Hash: "abc1234"})
		}
	}
	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

type fakeExporter struct {
	requests []export.Request
	result   *export.Result
}

func (f *fakeExporter) Export(_ context.Context, req export.Request) (*export.Result, error) {
	f.requests = append(f.requests, req)
	if f.result != nil {
		return f.result, nil
	}
	return &export.Result{Data: []byte("<html></html>"), Filename: "book.html", MimeType: "text/html; charset=utf-8"}, nil
}
