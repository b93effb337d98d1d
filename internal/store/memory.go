package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type statusKey struct {
	kind NodeKind
	id   int64
}

// MemoryStore keeps the whole content tree in process memory. It backs
// tests and single-node development setups.
type MemoryStore struct {
	mu sync.Mutex

	seq        map[string]int64
	categories map[int64]Category
	nodes      map[NodeKind]map[int64]Node
	versions   map[NodeKind]map[int64]Version
	statuses   map[statusKey]ContentStatus
	items      map[statusKey]ReviewableItem
	reviews    map[int64]Review
	comments   map[int64]ReviewComment

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		seq:        make(map[string]int64),
		categories: make(map[int64]Category),
		nodes:      make(map[NodeKind]map[int64]Node),
		versions:   make(map[NodeKind]map[int64]Version),
		statuses:   make(map[statusKey]ContentStatus),
		items:      make(map[statusKey]ReviewableItem),
		reviews:    make(map[int64]Review),
		comments:   make(map[int64]ReviewComment),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, kind := range NodeKinds {
		s.nodes[kind] = make(map[int64]Node)
		s.versions[kind] = make(map[int64]Version)
	}
	return s
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Categories

func (s *MemoryStore) InsertCategory(_ context.Context, item Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	item.ID = s.nextID("categories")
	item.CreatedAt = now
	item.UpdatedAt = now
	s.categories[item.ID] = item
	return item, nil
}

func (s *MemoryStore) UpdateCategory(_ context.Context, item Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[item.ID]
	if !ok {
		return Category{}, ErrNotFound
	}
	existing.Name = item.Name
	existing.SortOrder = item.SortOrder
	existing.UpdatedAt = s.now()
	s.categories[item.ID] = existing
	return existing, nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id int64) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) ListCategories(context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Category, 0, len(s.categories))
	for _, item := range s.categories {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id int64, guard DeleteGuard) (Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return Removal{}, ErrNotFound
	}
	books := make([]int64, 0)
	for _, book := range s.nodes[KindBook] {
		if book.ParentID == id {
			books = append(books, book.ID)
		}
	}
	sortIDs(books)
	subtree := s.collectSubtree(KindBook, books)
	if err := runGuard(ctx, guard, nil, subtree); err != nil {
		return Removal{}, err
	}
	removal := s.removeSubtree(subtree)
	delete(s.categories, id)
	return removal, nil
}

// Nodes

func (s *MemoryStore) parentExists(kind NodeKind, parentID int64) bool {
	parent, ok := kind.Parent()
	if !ok {
		_, exists := s.categories[parentID]
		return exists
	}
	_, exists := s.nodes[parent][parentID]
	return exists
}

func (s *MemoryStore) placementTaken(item Node) bool {
	for _, other := range s.nodes[item.Kind] {
		if other.ID != item.ID && other.ParentID == item.ParentID && other.Number == item.Number {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertNode(_ context.Context, item Node) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := tableFor(item.Kind); err != nil {
		return Node{}, err
	}
	if !s.parentExists(item.Kind, item.ParentID) {
		return Node{}, ErrParentNotFound
	}
	if s.placementTaken(item) {
		return Node{}, ErrDuplicatePosition
	}
	now := s.now()
	item.ID = s.nextID(kindTables[item.Kind].nodes)
	item.WorkingVersionID = nil
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Kind != KindChapter {
		item.Position = 0
	}
	s.nodes[item.Kind][item.ID] = item
	return item, nil
}

func (s *MemoryStore) UpdateNodePlacement(_ context.Context, item Node) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := tableFor(item.Kind); err != nil {
		return Node{}, err
	}
	existing, ok := s.nodes[item.Kind][item.ID]
	if !ok {
		return Node{}, ErrNotFound
	}
	existing.Number = item.Number
	if item.Kind == KindChapter {
		existing.Position = item.Position
	}
	if s.placementTaken(existing) {
		return Node{}, ErrDuplicatePosition
	}
	existing.UpdatedAt = s.now()
	s.nodes[item.Kind][item.ID] = existing
	return existing, nil
}

func (s *MemoryStore) GetNode(_ context.Context, kind NodeKind, id int64) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := tableFor(kind); err != nil {
		return Node{}, err
	}
	item, ok := s.nodes[kind][id]
	if !ok {
		return Node{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) ListChildren(_ context.Context, kind NodeKind, parentIDs ...int64) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := tableFor(kind); err != nil {
		return nil, err
	}
	wanted := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	items := make([]Node, 0)
	for _, item := range s.nodes[kind] {
		if wanted[item.ParentID] {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ParentID != items[j].ParentID {
			return items[i].ParentID < items[j].ParentID
		}
		if items[i].Number != items[j].Number {
			return items[i].Number < items[j].Number
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) DeleteNode(ctx context.Context, kind NodeKind, id int64, guard DeleteGuard) (Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := tableFor(kind); err != nil {
		return Removal{}, err
	}
	if _, ok := s.nodes[kind][id]; !ok {
		return Removal{}, ErrNotFound
	}
	subtree := s.collectSubtree(kind, []int64{id})
	if err := runGuard(ctx, guard, nil, subtree); err != nil {
		return Removal{}, err
	}
	return s.removeSubtree(subtree), nil
}

func (s *MemoryStore) collectSubtree(kind NodeKind, ids []int64) map[NodeKind][]int64 {
	subtree := map[NodeKind][]int64{kind: ids}
	parents := ids
	for current := kind; len(parents) > 0; {
		child, ok := current.Child()
		if !ok {
			break
		}
		wanted := make(map[int64]bool, len(parents))
		for _, id := range parents {
			wanted[id] = true
		}
		children := make([]int64, 0)
		for _, item := range s.nodes[child] {
			if wanted[item.ParentID] {
				children = append(children, item.ID)
			}
		}
		sortIDs(children)
		subtree[child] = children
		parents = children
		current = child
	}
	return subtree
}

func (s *MemoryStore) removeSubtree(subtree map[NodeKind][]int64) Removal {
	removal := Removal{Nodes: make(map[NodeKind][]int64)}
	for i := len(NodeKinds) - 1; i >= 0; i-- {
		kind := NodeKinds[i]
		ids := subtree[kind]
		if len(ids) == 0 {
			continue
		}
		for _, id := range ids {
			key := statusKey{kind: kind, id: id}
			if item, ok := s.items[key]; ok {
				for reviewID, review := range s.reviews {
					if review.ItemID != item.ID {
						continue
					}
					for commentID, comment := range s.comments {
						if comment.ReviewID == reviewID {
							delete(s.comments, commentID)
							removal.Comments++
						}
					}
					delete(s.reviews, reviewID)
					removal.Reviews++
				}
				delete(s.items, key)
			}
			delete(s.statuses, key)
			for versionID, version := range s.versions[kind] {
				if version.NodeID == id {
					delete(s.versions[kind], versionID)
					removal.Versions++
				}
			}
			delete(s.nodes[kind], id)
		}
		removal.Nodes[kind] = ids
	}
	return removal
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Versions

func (s *MemoryStore) CreateVersion(_ context.Context, item Version) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := tableFor(item.Kind)
	if err != nil {
		return Version{}, err
	}
	node, ok := s.nodes[item.Kind][item.NodeID]
	if !ok {
		return Version{}, ErrNotFound
	}
	next := 1
	for _, existing := range s.versions[item.Kind] {
		if existing.NodeID == item.NodeID && existing.Number >= next {
			next = existing.Number + 1
		}
	}
	if !item.Kind.HasTitle() {
		item.Title = Text{}
	}
	item.ID = s.nextID(t.versions)
	item.Number = next
	item.CreatedAt = s.now()
	s.versions[item.Kind][item.ID] = item

	id := item.ID
	node.WorkingVersionID = &id
	node.UpdatedAt = item.CreatedAt
	s.nodes[item.Kind][node.ID] = node
	return item, nil
}

func (s *MemoryStore) GetVersion(_ context.Context, kind NodeKind, id int64) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.versions[kind][id]
	if !ok {
		return Version{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) GetVersions(_ context.Context, kind NodeKind, ids []int64) (map[int64]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[int64]Version, len(ids))
	for _, id := range ids {
		if item, ok := s.versions[kind][id]; ok {
			items[id] = item
		}
	}
	return items, nil
}

func (s *MemoryStore) nodeVersions(kind NodeKind, nodeID int64) []Version {
	items := make([]Version, 0)
	for _, item := range s.versions[kind] {
		if item.NodeID == nodeID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number > items[j].Number })
	return items
}

func (s *MemoryStore) LatestVersion(_ context.Context, kind NodeKind, nodeID int64) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.nodeVersions(kind, nodeID)
	if len(items) == 0 {
		return Version{}, ErrNotFound
	}
	return items[0], nil
}

func (s *MemoryStore) VersionByNumber(_ context.Context, kind NodeKind, nodeID int64, number int) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.nodeVersions(kind, nodeID) {
		if item.Number == number {
			return item, nil
		}
	}
	return Version{}, ErrNotFound
}

func (s *MemoryStore) ListVersions(_ context.Context, kind NodeKind, nodeID int64) ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nodeVersions(kind, nodeID), nil
}

// Content status

func (s *MemoryStore) GetContentStatus(_ context.Context, kind NodeKind, id int64) (ContentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.statuses[statusKey{kind: kind, id: id}]
	if !ok {
		return draftStatus(kind, id), nil
	}
	return item, nil
}

func (s *MemoryStore) ListContentStatuses(_ context.Context, kind NodeKind, ids []int64) (map[int64]ContentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[int64]ContentStatus, len(ids))
	for _, id := range ids {
		if item, ok := s.statuses[statusKey{kind: kind, id: id}]; ok {
			items[id] = item
		}
	}
	return items, nil
}

func (s *MemoryStore) writeStatus(kind NodeKind, id int64, state ContentState, publishedVersionID *int64, keepPointer bool, userID int64) ContentStatus {
	key := statusKey{kind: kind, id: id}
	item, ok := s.statuses[key]
	if !ok {
		item = ContentStatus{Kind: kind, EntityID: id}
	}
	item.State = state
	if !keepPointer {
		item.PublishedVersionID = publishedVersionID
	}
	item.UpdatedBy = userID
	now := s.now()
	item.UpdatedAt = &now
	s.statuses[key] = item
	return item
}

func (s *MemoryStore) SetContentState(_ context.Context, kind NodeKind, id int64, state ContentState, userID int64) (ContentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[kind][id]; !ok {
		return ContentStatus{}, ErrNotFound
	}
	return s.writeStatus(kind, id, state, nil, true, userID), nil
}

func (s *MemoryStore) hasPendingReview(kind NodeKind, id int64) bool {
	item, ok := s.items[statusKey{kind: kind, id: id}]
	if !ok {
		return false
	}
	for _, review := range s.reviews {
		if review.ItemID == item.ID && review.Status == ReviewPending {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Publish(_ context.Context, kind NodeKind, id, userID int64) (ContentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[kind][id]
	if !ok {
		return ContentStatus{}, ErrNotFound
	}
	if node.WorkingVersionID == nil {
		return ContentStatus{}, ErrNoVersion
	}
	if s.hasPendingReview(kind, id) {
		return ContentStatus{}, ErrReviewPending
	}
	versionID := *node.WorkingVersionID
	return s.writeStatus(kind, id, StatePublished, &versionID, false, userID), nil
}

func (s *MemoryStore) ListPublished(_ context.Context, kind NodeKind) ([]PublishedVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]PublishedVersion, 0)
	for key, status := range s.statuses {
		if key.kind != kind || !status.Visible() {
			continue
		}
		node, ok := s.nodes[kind][key.id]
		if !ok {
			continue
		}
		version, ok := s.versions[kind][*status.PublishedVersionID]
		if !ok {
			continue
		}
		items = append(items, PublishedVersion{Node: node, Version: version})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Node.ID < items[j].Node.ID })
	return items, nil
}

// Reviews

func (s *MemoryStore) reviewableItem(kind NodeKind, referenceID int64) ReviewableItem {
	key := statusKey{kind: kind, id: referenceID}
	item, ok := s.items[key]
	if !ok {
		item = ReviewableItem{
			ID:          s.nextID("reviewable_items"),
			Kind:        kind,
			ReferenceID: referenceID,
			CreatedAt:   s.now(),
		}
		s.items[key] = item
	}
	return item
}

func (s *MemoryStore) GetOrCreateReviewableItem(_ context.Context, kind NodeKind, referenceID int64) (ReviewableItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[kind][referenceID]; !ok {
		return ReviewableItem{}, ErrNotFound
	}
	return s.reviewableItem(kind, referenceID), nil
}

func (s *MemoryStore) SubmitReview(_ context.Context, item Review) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := tableFor(item.Kind); err != nil {
		return Review{}, err
	}
	if _, ok := s.nodes[item.Kind][item.ReferenceID]; !ok {
		return Review{}, ErrNotFound
	}
	version, ok := s.versions[item.Kind][item.VersionID]
	if !ok {
		return Review{}, ErrVersionNotFound
	}
	if version.NodeID != item.ReferenceID {
		return Review{}, ErrVersionMismatch
	}
	if s.hasPendingReview(item.Kind, item.ReferenceID) {
		return Review{}, ErrReviewPending
	}
	reviewable := s.reviewableItem(item.Kind, item.ReferenceID)
	item.ID = s.nextID("reviews")
	item.ItemID = reviewable.ID
	item.Status = ReviewPending
	item.ReviewedBy = nil
	item.ReviewedAt = nil
	item.DecisionComment = ""
	item.SubmittedAt = s.now()
	s.reviews[item.ID] = item
	return item, nil
}

func (s *MemoryStore) DecideReview(_ context.Context, id int64, status ReviewStatus, reviewedBy int64, comment string) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.reviews[id]
	if !ok {
		return Review{}, ErrNotFound
	}
	if item.Status != ReviewPending {
		return Review{}, ErrReviewNotPending
	}
	now := s.now()
	item.Status = status
	item.ReviewedBy = &reviewedBy
	item.ReviewedAt = &now
	item.DecisionComment = comment
	s.reviews[id] = item

	if status == ReviewApproved {
		versionID := item.VersionID
		s.writeStatus(item.Kind, item.ReferenceID, StatePublished, &versionID, false, reviewedBy)
	}
	return item, nil
}

func (s *MemoryStore) GetReview(_ context.Context, id int64) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.reviews[id]
	if !ok {
		return Review{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) itemReviews(kind NodeKind, referenceID int64) []Review {
	items := make([]Review, 0)
	for _, review := range s.reviews {
		if review.Kind == kind && review.ReferenceID == referenceID {
			items = append(items, review)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].SubmittedAt.After(items[j].SubmittedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items
}

func (s *MemoryStore) ListReviews(_ context.Context, kind NodeKind, referenceID int64) ([]Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.itemReviews(kind, referenceID), nil
}

func (s *MemoryStore) LatestApprovedReview(_ context.Context, kind NodeKind, referenceID int64) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		latest Review
		found  bool
	)
	for _, review := range s.itemReviews(kind, referenceID) {
		if review.Status != ReviewApproved {
			continue
		}
		if !found || review.ReviewedAt.After(*latest.ReviewedAt) ||
			(review.ReviewedAt.Equal(*latest.ReviewedAt) && review.ID > latest.ID) {
			latest = review
			found = true
		}
	}
	if !found {
		return Review{}, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) ListPendingReviews(_ context.Context, limit int) ([]Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]Review, 0)
	for _, review := range s.reviews {
		if review.Status == ReviewPending {
			items = append(items, review)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].SubmittedAt.Before(items[j].SubmittedAt)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Review comments

func (s *MemoryStore) InsertComment(_ context.Context, item ReviewComment) (ReviewComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[item.ReviewID]; !ok {
		return ReviewComment{}, ErrNotFound
	}
	now := s.now()
	item.ID = s.nextID("review_comments")
	item.CreatedAt = now
	item.UpdatedAt = now
	s.comments[item.ID] = item
	return item, nil
}

func (s *MemoryStore) GetComment(_ context.Context, id int64) (ReviewComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.comments[id]
	if !ok {
		return ReviewComment{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) UpdateComment(_ context.Context, id int64, text string) (ReviewComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.comments[id]
	if !ok {
		return ReviewComment{}, ErrNotFound
	}
	item.Text = text
	item.UpdatedAt = s.now()
	s.comments[id] = item
	return item, nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, reviewID int64) ([]ReviewComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]ReviewComment, 0)
	for _, item := range s.comments {
		if item.ReviewID == reviewID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
