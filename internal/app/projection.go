package app

import (
	"context"
	"encoding/json"
	"fmt"

	"editorial/api/internal/export"
	"editorial/api/internal/store"

	"golang.org/x/sync/errgroup"
)

// HierarchyNode is one node of a projected tree. Version is the working
// version in the complete view and the published version in the public one.
type HierarchyNode struct {
	Kind               store.NodeKind     `json:"kind"`
	ID                 int64              `json:"id"`
	ParentID           int64              `json:"parentId"`
	Number             int                `json:"number"`
	Position           int                `json:"position,omitempty"`
	Status             store.ContentState `json:"status"`
	PublishedVersionID *int64             `json:"publishedVersionId,omitempty"`
	Version            *store.Version     `json:"version,omitempty"`
	Children           []HierarchyNode    `json:"children"`
}

type CategoryTree struct {
	store.Category
	Nodes []HierarchyNode `json:"nodes"`
}

type parentKey struct {
	kind     store.NodeKind
	parentID int64
}

// treeData is everything a projection needs, loaded level by level.
type treeData struct {
	categories []store.Category
	children   map[parentKey][]store.Node
	statuses   map[store.NodeKind]map[int64]store.ContentStatus
	versions   map[store.NodeKind]map[int64]store.Version
}

func (t treeData) status(node store.Node) store.ContentStatus {
	if status, ok := t.statuses[node.Kind][node.ID]; ok {
		return status
	}
	return store.ContentStatus{Kind: node.Kind, EntityID: node.ID, State: store.StateDraft}
}

func (t treeData) version(kind store.NodeKind, id *int64) *store.Version {
	if id == nil {
		return nil
	}
	version, ok := t.versions[kind][*id]
	if !ok {
		return nil
	}
	return &version
}

func (s *Service) loadTree(ctx context.Context, categoryID *int64, public bool) (treeData, error) {
	data := treeData{
		children: make(map[parentKey][]store.Node),
		statuses: make(map[store.NodeKind]map[int64]store.ContentStatus),
		versions: make(map[store.NodeKind]map[int64]store.Version),
	}
	if categoryID != nil {
		category, err := s.GetCategory(ctx, *categoryID)
		if err != nil {
			return treeData{}, err
		}
		data.categories = []store.Category{category}
	} else {
		categories, err := s.store.ListCategories(ctx)
		if err != nil {
			return treeData{}, err
		}
		data.categories = categories
	}

	parents := make([]int64, 0, len(data.categories))
	for _, category := range data.categories {
		parents = append(parents, category.ID)
	}
	nodes := make([][]store.Node, len(store.NodeKinds))
	for i, kind := range store.NodeKinds {
		level, err := s.store.ListChildren(ctx, kind, parents...)
		if err != nil {
			return treeData{}, err
		}
		nodes[i] = level
		parents = parents[:0]
		for _, node := range level {
			data.children[parentKey{kind, node.ParentID}] = append(data.children[parentKey{kind, node.ParentID}], node)
			parents = append(parents, node.ID)
		}
	}

	statuses := make([]map[int64]store.ContentStatus, len(store.NodeKinds))
	versions := make([]map[int64]store.Version, len(store.NodeKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range store.NodeKinds {
		level := nodes[i]
		g.Go(func() error {
			ids := make([]int64, 0, len(level))
			for _, node := range level {
				ids = append(ids, node.ID)
			}
			levelStatuses, err := s.store.ListContentStatuses(gctx, kind, ids)
			if err != nil {
				return fmt.Errorf("load %s statuses: %w", kindSubject(kind), err)
			}
			versionIDs := make([]int64, 0, len(level))
			for _, node := range level {
				if public {
					if status, ok := levelStatuses[node.ID]; ok && status.Visible() {
						versionIDs = append(versionIDs, *status.PublishedVersionID)
					}
				} else if node.WorkingVersionID != nil {
					versionIDs = append(versionIDs, *node.WorkingVersionID)
				}
			}
			levelVersions, err := s.store.GetVersions(gctx, kind, versionIDs)
			if err != nil {
				return fmt.Errorf("load %s versions: %w", kindSubject(kind), err)
			}
			statuses[i] = levelStatuses
			versions[i] = levelVersions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return treeData{}, err
	}
	for i, kind := range store.NodeKinds {
		data.statuses[kind] = statuses[i]
		data.versions[kind] = versions[i]
	}
	return data, nil
}

func hierarchyNode(node store.Node, status store.ContentStatus, version *store.Version) HierarchyNode {
	return HierarchyNode{
		Kind:               node.Kind,
		ID:                 node.ID,
		ParentID:           node.ParentID,
		Number:             node.Number,
		Position:           node.Position,
		Status:             status.State,
		PublishedVersionID: status.PublishedVersionID,
		Version:            version,
		Children:           []HierarchyNode{},
	}
}

func (t treeData) complete(kind store.NodeKind, parentID int64) []HierarchyNode {
	items := make([]HierarchyNode, 0, len(t.children[parentKey{kind, parentID}]))
	for _, node := range t.children[parentKey{kind, parentID}] {
		item := hierarchyNode(node, t.status(node), t.version(kind, node.WorkingVersionID))
		if child, ok := kind.Child(); ok {
			item.Children = t.complete(child, node.ID)
		}
		items = append(items, item)
	}
	return items
}

// public keeps visible nodes only. Visible descendants of a hidden node are
// attached to the nearest visible ancestor instead of being dropped.
func (t treeData) public(kind store.NodeKind, parentID int64) []HierarchyNode {
	items := make([]HierarchyNode, 0)
	for _, node := range t.children[parentKey{kind, parentID}] {
		var below []HierarchyNode
		if child, ok := kind.Child(); ok {
			below = t.public(child, node.ID)
		}
		status := t.status(node)
		version := t.version(kind, status.PublishedVersionID)
		if !status.Visible() || version == nil {
			items = append(items, below...)
			continue
		}
		item := hierarchyNode(node, status, version)
		if below != nil {
			item.Children = below
		}
		items = append(items, item)
	}
	return items
}

// CompleteHierarchy is the editor view: every node with its working version
// and status.
func (s *Service) CompleteHierarchy(ctx context.Context, categoryID *int64) ([]CategoryTree, error) {
	data, err := s.loadTree(ctx, categoryID, false)
	if err != nil {
		return nil, err
	}
	trees := make([]CategoryTree, 0, len(data.categories))
	for _, category := range data.categories {
		trees = append(trees, CategoryTree{Category: category, Nodes: data.complete(store.KindBook, category.ID)})
	}
	return trees, nil
}

func cacheScope(categoryID *int64) string {
	if categoryID == nil {
		return "all"
	}
	return fmt.Sprintf("category:%d", *categoryID)
}

// PublicHierarchy is the reader view: published nodes rendered with their
// published version, never a draft.
func (s *Service) PublicHierarchy(ctx context.Context, categoryID *int64) ([]CategoryTree, error) {
	scope := cacheScope(categoryID)
	// gen is captured before the load; a payload built across an
	// invalidation is written under a generation nobody reads.
	var gen int64
	cacheable := s.cache != nil
	if s.cache != nil {
		payload, current, ok, err := s.cache.Get(ctx, scope)
		gen = current
		if err != nil {
			cacheable = false
			s.log.Warn().Err(err).Str("scope", scope).Msg("read projection cache")
		} else if ok {
			var trees []CategoryTree
			if err := json.Unmarshal(payload, &trees); err == nil {
				return trees, nil
			}
			s.log.Warn().Str("scope", scope).Msg("discarding undecodable cached projection")
		}
	}

	data, err := s.loadTree(ctx, categoryID, true)
	if err != nil {
		return nil, err
	}
	trees := make([]CategoryTree, 0, len(data.categories))
	for _, category := range data.categories {
		trees = append(trees, CategoryTree{Category: category, Nodes: data.public(store.KindBook, category.ID)})
	}

	if cacheable {
		if payload, err := json.Marshal(trees); err == nil {
			if err := s.cache.Set(ctx, gen, scope, payload); err != nil {
				s.log.Warn().Err(err).Str("scope", scope).Msg("write projection cache")
			}
		}
	}
	return trees, nil
}

// ExportOptions selects how a book is rendered.
type ExportOptions struct {
	Format export.Format
	Lang   string
	Paper  export.Paper
}

// ExportBook renders the published chain of a book: its published chapters,
// their published sections and those sections' published paragraphs.
func (s *Service) ExportBook(ctx context.Context, bookID int64, opts ExportOptions) (*export.Result, error) {
	if s.exporter == nil {
		return nil, unavailableError("export")
	}
	book, err := s.GetNode(ctx, store.KindBook, bookID)
	if err != nil {
		return nil, err
	}
	trees, err := s.PublicHierarchy(ctx, &book.ParentID)
	if err != nil {
		return nil, err
	}
	var root *HierarchyNode
	for _, tree := range trees {
		for i := range tree.Nodes {
			if tree.Nodes[i].Kind == store.KindBook && tree.Nodes[i].ID == bookID {
				root = &tree.Nodes[i]
			}
		}
	}
	if root == nil {
		return nil, conflictError(fmt.Sprintf("book %d is not published", bookID), map[string]any{"bookId": bookID})
	}

	result, err := s.exporter.Export(ctx, export.Request{Book: exportBook(*root), Format: opts.Format, Lang: opts.Lang, Paper: opts.Paper})
	if err != nil {
		return nil, fmt.Errorf("export book %d: %w", bookID, err)
	}
	return result, nil
}

func localized(t store.Text) export.Localized {
	return export.Localized{En: t.En, Fr: t.Fr}
}

func exportBook(root HierarchyNode) export.Book {
	book := export.Book{ID: root.ID, Number: root.Number, Title: localized(root.Version.Title), Intro: localized(root.Version.Body)}
	for _, ch := range root.Children {
		if ch.Kind != store.KindChapter {
			continue
		}
		chapter := export.Chapter{Number: ch.Number, Position: ch.Position, Title: localized(ch.Version.Title), Intro: localized(ch.Version.Body)}
		for _, sec := range ch.Children {
			if sec.Kind != store.KindSection {
				continue
			}
			section := export.Section{OrderIndex: sec.Number, Title: localized(sec.Version.Title), Intro: localized(sec.Version.Body)}
			for _, p := range sec.Children {
				section.Paragraphs = append(section.Paragraphs, export.Paragraph{Number: p.Number, Content: localized(p.Version.Body)})
			}
			chapter.Sections = append(chapter.Sections, section)
		}
		book.Chapters = append(book.Chapters, chapter)
	}
	return book
}
