package app

import (
	"context"

	"editorial/api/internal/store"
)

// Placement holds the structural attributes of a node: bookNumber,
// chapterNumber, orderIndex or paragraphNumber, plus the chapter position.
type Placement struct {
	Number   int  `json:"number"`
	Position *int `json:"position,omitempty"`
}

type CategoryInput struct {
	Name      store.Text `json:"name"`
	SortOrder int        `json:"sortOrder"`
}

func numberField(kind store.NodeKind) string {
	switch kind {
	case store.KindBook:
		return "bookNumber"
	case store.KindChapter:
		return "chapterNumber"
	case store.KindSection:
		return "orderIndex"
	default:
		return "paragraphNumber"
	}
}

func validatePlacement(kind store.NodeKind, p Placement) error {
	field := numberField(kind)
	if kind == store.KindSection {
		if p.Number < 0 {
			return validationError(field+" must not be negative", map[string]any{"field": field, "value": p.Number})
		}
	} else if p.Number < 1 {
		return validationError(field+" must be at least 1", map[string]any{"field": field, "value": p.Number})
	}

	if p.Position == nil {
		return nil
	}
	if kind != store.KindChapter {
		return validationError("position only applies to chapters", map[string]any{"field": "position"})
	}
	if *p.Position < 0 || *p.Position > 10 {
		return validationError("position must be between 0 and 10", map[string]any{"field": "position", "value": *p.Position})
	}
	return nil
}

func (p Placement) node(kind store.NodeKind) store.Node {
	item := store.Node{Kind: kind, Number: p.Number}
	if p.Position != nil {
		item.Position = *p.Position
	}
	return item
}

// Categories

func validateCategory(in CategoryInput) error {
	if in.Name.Blank() {
		return validationError("name is required in at least one locale", map[string]any{"field": "name"})
	}
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (store.Category, error) {
	if err := validateCategory(in); err != nil {
		return store.Category{}, err
	}
	created, err := s.store.InsertCategory(ctx, store.Category{Name: in.Name, SortOrder: in.SortOrder})
	if err != nil {
		return store.Category{}, err
	}
	s.invalidateProjections(ctx)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (store.Category, error) {
	if err := requireID("categoryId", id); err != nil {
		return store.Category{}, err
	}
	if err := validateCategory(in); err != nil {
		return store.Category{}, err
	}
	updated, err := s.store.UpdateCategory(ctx, store.Category{ID: id, Name: in.Name, SortOrder: in.SortOrder})
	if err != nil {
		return store.Category{}, storeError(err, "category", id)
	}
	s.invalidateProjections(ctx)
	return updated, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (store.Category, error) {
	if err := requireID("categoryId", id); err != nil {
		return store.Category{}, err
	}
	item, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return store.Category{}, storeError(err, "category", id)
	}
	return item, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]store.Category, error) {
	return s.store.ListCategories(ctx)
}

// DeleteCategory removes a category and every book beneath it.
func (s *Service) DeleteCategory(ctx context.Context, id, userID int64) (store.Removal, error) {
	if err := requireID("categoryId", id); err != nil {
		return store.Removal{}, err
	}
	if err := requireUser(userID); err != nil {
		return store.Removal{}, err
	}
	removal, err := s.store.DeleteCategory(ctx, id, s.paragraphGuard())
	if err != nil {
		return store.Removal{}, storeError(err, "category", id)
	}
	s.afterRemoval(ctx, removal, userID)
	return removal, nil
}

// Nodes

func (s *Service) CreateNode(ctx context.Context, kind store.NodeKind, parentID int64, p Placement) (store.Node, error) {
	if err := requireKind(kind); err != nil {
		return store.Node{}, err
	}
	if err := requireID("parentId", parentID); err != nil {
		return store.Node{}, err
	}
	if err := validatePlacement(kind, p); err != nil {
		return store.Node{}, err
	}
	item := p.node(kind)
	item.ParentID = parentID
	created, err := s.store.InsertNode(ctx, item)
	if err != nil {
		return store.Node{}, storeError(err, kindSubject(kind), parentID)
	}
	return created, nil
}

// UpdateNode changes structural attributes only; content lives in versions.
func (s *Service) UpdateNode(ctx context.Context, kind store.NodeKind, id int64, p Placement) (store.Node, error) {
	if err := requireKind(kind); err != nil {
		return store.Node{}, err
	}
	if err := requireID("id", id); err != nil {
		return store.Node{}, err
	}
	if err := validatePlacement(kind, p); err != nil {
		return store.Node{}, err
	}
	item := p.node(kind)
	item.ID = id
	if kind == store.KindChapter && p.Position == nil {
		current, err := s.store.GetNode(ctx, kind, id)
		if err != nil {
			return store.Node{}, storeError(err, kindSubject(kind), id)
		}
		item.Position = current.Position
	}
	updated, err := s.store.UpdateNodePlacement(ctx, item)
	if err != nil {
		return store.Node{}, storeError(err, kindSubject(kind), id)
	}
	s.invalidateProjections(ctx)
	return updated, nil
}

func (s *Service) GetNode(ctx context.Context, kind store.NodeKind, id int64) (store.Node, error) {
	if err := requireKind(kind); err != nil {
		return store.Node{}, err
	}
	if err := requireID("id", id); err != nil {
		return store.Node{}, err
	}
	item, err := s.store.GetNode(ctx, kind, id)
	if err != nil {
		return store.Node{}, storeError(err, kindSubject(kind), id)
	}
	return item, nil
}

// ListChildren lists nodes of kind under parentID, which is a category for
// books and a node of the parent kind otherwise.
func (s *Service) ListChildren(ctx context.Context, kind store.NodeKind, parentID int64) ([]store.Node, error) {
	if err := requireKind(kind); err != nil {
		return nil, err
	}
	if err := requireID("parentId", parentID); err != nil {
		return nil, err
	}
	if parentKind, ok := kind.Parent(); ok {
		if _, err := s.GetNode(ctx, parentKind, parentID); err != nil {
			return nil, err
		}
	} else if _, err := s.GetCategory(ctx, parentID); err != nil {
		return nil, err
	}
	return s.store.ListChildren(ctx, kind, parentID)
}

func (s *Service) SectionIDForParagraph(ctx context.Context, paragraphID int64) (int64, error) {
	paragraph, err := s.GetNode(ctx, store.KindParagraph, paragraphID)
	if err != nil {
		return 0, err
	}
	return paragraph.ParentID, nil
}

// DeleteNode removes the node and its whole subtree in one transaction. The
// delete is refused when learning content references any paragraph in it.
func (s *Service) DeleteNode(ctx context.Context, kind store.NodeKind, id, userID int64) (store.Removal, error) {
	if err := requireKind(kind); err != nil {
		return store.Removal{}, err
	}
	if err := requireID("id", id); err != nil {
		return store.Removal{}, err
	}
	if err := requireUser(userID); err != nil {
		return store.Removal{}, err
	}
	removal, err := s.store.DeleteNode(ctx, kind, id, s.paragraphGuard())
	if err != nil {
		return store.Removal{}, storeError(err, kindSubject(kind), id)
	}
	s.afterRemoval(ctx, removal, userID)
	return removal, nil
}
