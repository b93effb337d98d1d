package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// contentStore is the surface both implementations share.
type contentStore interface {
	InsertCategory(ctx context.Context, item Category) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	DeleteCategory(ctx context.Context, id int64, guard DeleteGuard) (Removal, error)
	InsertNode(ctx context.Context, item Node) (Node, error)
	UpdateNodePlacement(ctx context.Context, item Node) (Node, error)
	GetNode(ctx context.Context, kind NodeKind, id int64) (Node, error)
	ListChildren(ctx context.Context, kind NodeKind, parentIDs ...int64) ([]Node, error)
	DeleteNode(ctx context.Context, kind NodeKind, id int64, guard DeleteGuard) (Removal, error)
	CreateVersion(ctx context.Context, item Version) (Version, error)
	GetVersion(ctx context.Context, kind NodeKind, id int64) (Version, error)
	LatestVersion(ctx context.Context, kind NodeKind, nodeID int64) (Version, error)
	VersionByNumber(ctx context.Context, kind NodeKind, nodeID int64, number int) (Version, error)
	ListVersions(ctx context.Context, kind NodeKind, nodeID int64) ([]Version, error)
	GetContentStatus(ctx context.Context, kind NodeKind, id int64) (ContentStatus, error)
	SetContentState(ctx context.Context, kind NodeKind, id int64, state ContentState, userID int64) (ContentStatus, error)
	Publish(ctx context.Context, kind NodeKind, id, userID int64) (ContentStatus, error)
	ListPublished(ctx context.Context, kind NodeKind) ([]PublishedVersion, error)
	GetOrCreateReviewableItem(ctx context.Context, kind NodeKind, referenceID int64) (ReviewableItem, error)
	SubmitReview(ctx context.Context, item Review) (Review, error)
	DecideReview(ctx context.Context, id int64, status ReviewStatus, reviewedBy int64, comment string) (Review, error)
	GetReview(ctx context.Context, id int64) (Review, error)
	ListReviews(ctx context.Context, kind NodeKind, referenceID int64) ([]Review, error)
	LatestApprovedReview(ctx context.Context, kind NodeKind, referenceID int64) (Review, error)
	ListPendingReviews(ctx context.Context, limit int) ([]Review, error)
	InsertComment(ctx context.Context, item ReviewComment) (ReviewComment, error)
	UpdateComment(ctx context.Context, id int64, text string) (ReviewComment, error)
	DeleteComment(ctx context.Context, id int64) error
	ListComments(ctx context.Context, reviewID int64) ([]ReviewComment, error)
}

type seededTree struct {
	category   int64
	book       int64
	chapter    int64
	section    int64
	paragraphs []int64
}

func seedTree(t *testing.T, s contentStore) seededTree {
	t.Helper()
	ctx := context.Background()

	category, err := s.InsertCategory(ctx, Category{Name: Text{En: "Law", Fr: "Droit"}})
	require.NoError(t, err)
	book, err := s.InsertNode(ctx, Node{Kind: KindBook, ParentID: category.ID, Number: 1})
	require.NoError(t, err)
	chapter, err := s.InsertNode(ctx, Node{Kind: KindChapter, ParentID: book.ID, Number: 1, Position: 3})
	require.NoError(t, err)
	section, err := s.InsertNode(ctx, Node{Kind: KindSection, ParentID: chapter.ID, Number: 0})
	require.NoError(t, err)

	tree := seededTree{category: category.ID, book: book.ID, chapter: chapter.ID, section: section.ID}
	for i := 1; i <= 2; i++ {
		paragraph, err := s.InsertNode(ctx, Node{Kind: KindParagraph, ParentID: section.ID, Number: i})
		require.NoError(t, err)
		tree.paragraphs = append(tree.paragraphs, paragraph.ID)
	}
	return tree
}

func addVersion(t *testing.T, s contentStore, kind NodeKind, nodeID int64, title string) Version {
	t.Helper()
	item := Version{Kind: kind, NodeID: nodeID, AuthorID: 7, Body: Text{En: title + " body"}}
	if kind.HasTitle() {
		item.Title = Text{En: title}
	}
	created, err := s.CreateVersion(context.Background(), item)
	require.NoError(t, err)
	return created
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) contentStore) {
	t.Run("placement", func(t *testing.T) { testPlacement(t, newStore(t)) })
	t.Run("versions", func(t *testing.T) { testVersions(t, newStore(t)) })
	t.Run("concurrent versions", func(t *testing.T) { testConcurrentVersions(t, newStore(t)) })
	t.Run("publish", func(t *testing.T) { testPublish(t, newStore(t)) })
	t.Run("review lifecycle", func(t *testing.T) { testReviewLifecycle(t, newStore(t)) })
	t.Run("concurrent submit", func(t *testing.T) { testConcurrentSubmit(t, newStore(t)) })
	t.Run("concurrent decide", func(t *testing.T) { testConcurrentDecide(t, newStore(t)) })
	t.Run("reviewable items", func(t *testing.T) { testReviewableItems(t, newStore(t)) })
	t.Run("comments", func(t *testing.T) { testComments(t, newStore(t)) })
	t.Run("cascade delete", func(t *testing.T) { testCascadeDelete(t, newStore(t)) })
	t.Run("delete guard", func(t *testing.T) { testDeleteGuard(t, newStore(t)) })
	t.Run("category delete", func(t *testing.T) { testCategoryDelete(t, newStore(t)) })
}

func testPlacement(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)

	_, err := s.InsertNode(ctx, Node{Kind: KindParagraph, ParentID: tree.section, Number: 1})
	require.ErrorIs(t, err, ErrDuplicatePosition)

	_, err = s.InsertNode(ctx, Node{Kind: KindChapter, ParentID: 999999, Number: 1})
	require.ErrorIs(t, err, ErrParentNotFound)

	moved, err := s.UpdateNodePlacement(ctx, Node{Kind: KindChapter, ID: tree.chapter, Number: 4, Position: 10})
	require.NoError(t, err)
	require.Equal(t, 4, moved.Number)
	require.Equal(t, 10, moved.Position)

	_, err = s.UpdateNodePlacement(ctx, Node{Kind: KindParagraph, ID: tree.paragraphs[1], Number: 1})
	require.ErrorIs(t, err, ErrDuplicatePosition)

	children, err := s.ListChildren(ctx, KindParagraph, tree.section)
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.Equal(t, 1, children[0].Number)
	require.Equal(t, 2, children[1].Number)

	_, err = s.GetNode(ctx, KindBook, 424242)
	require.ErrorIs(t, err, ErrNotFound)
}

func testVersions(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)

	first := addVersion(t, s, KindChapter, tree.chapter, "one")
	second := addVersion(t, s, KindChapter, tree.chapter, "two")
	require.Equal(t, 1, first.Number)
	require.Equal(t, 2, second.Number)

	node, err := s.GetNode(ctx, KindChapter, tree.chapter)
	require.NoError(t, err)
	require.NotNil(t, node.WorkingVersionID)
	require.Equal(t, second.ID, *node.WorkingVersionID)

	latest, err := s.LatestVersion(ctx, KindChapter, tree.chapter)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	byNumber, err := s.VersionByNumber(ctx, KindChapter, tree.chapter, 1)
	require.NoError(t, err)
	require.Equal(t, "one", byNumber.Title.En)

	history, err := s.ListVersions(ctx, KindChapter, tree.chapter)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, history[0].Number)
	require.Equal(t, 1, history[1].Number)

	paragraph := addVersion(t, s, KindParagraph, tree.paragraphs[0], "para")
	require.Empty(t, paragraph.Title.En)
	require.Equal(t, "para body", paragraph.Body.En)

	_, err = s.CreateVersion(ctx, Version{Kind: KindSection, NodeID: 999999, AuthorID: 1})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.LatestVersion(ctx, KindBook, tree.book)
	require.ErrorIs(t, err, ErrNotFound)
}

func testConcurrentVersions(t *testing.T, s contentStore) {
	tree := seedTree(t, s)
	const writers = 12

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := s.CreateVersion(ctx, Version{Kind: KindSection, NodeID: tree.section, AuthorID: 3, Title: Text{En: "draft"}})
			return err
		})
	}
	require.NoError(t, g.Wait())

	history, err := s.ListVersions(context.Background(), KindSection, tree.section)
	require.NoError(t, err)
	require.Len(t, history, writers)
	seen := make(map[int]bool, writers)
	for _, item := range history {
		require.False(t, seen[item.Number], "version number %d assigned twice", item.Number)
		seen[item.Number] = true
	}
	for n := 1; n <= writers; n++ {
		require.True(t, seen[n], "version number %d missing", n)
	}
}

func testPublish(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)

	_, err := s.Publish(ctx, KindBook, tree.book, 1)
	require.ErrorIs(t, err, ErrNoVersion)

	status, err := s.GetContentStatus(ctx, KindBook, tree.book)
	require.NoError(t, err)
	require.Equal(t, StateDraft, status.State)
	require.Nil(t, status.PublishedVersionID)

	version := addVersion(t, s, KindBook, tree.book, "Civil code")
	status, err = s.Publish(ctx, KindBook, tree.book, 1)
	require.NoError(t, err)
	require.Equal(t, StatePublished, status.State)
	require.Equal(t, version.ID, *status.PublishedVersionID)

	addVersion(t, s, KindBook, tree.book, "Civil code v2")
	published, err := s.ListPublished(ctx, KindBook)
	require.NoError(t, err)
	require.Len(t, published, 1)
	require.Equal(t, version.ID, published[0].Version.ID)

	status, err = s.SetContentState(ctx, KindBook, tree.book, StateDraft, 2)
	require.NoError(t, err)
	require.Equal(t, StateDraft, status.State)
	require.False(t, status.Visible())

	published, err = s.ListPublished(ctx, KindBook)
	require.NoError(t, err)
	require.Empty(t, published)

	_, err = s.SetContentState(ctx, KindBook, 999999, StatePublished, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func testReviewLifecycle(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)
	first := addVersion(t, s, KindParagraph, tree.paragraphs[0], "first")
	other := addVersion(t, s, KindParagraph, tree.paragraphs[1], "other")

	_, err := s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: tree.paragraphs[0], VersionID: other.ID, SubmittedBy: 5})
	require.ErrorIs(t, err, ErrVersionMismatch)
	_, err = s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: tree.paragraphs[0], VersionID: 999999, SubmittedBy: 5})
	require.ErrorIs(t, err, ErrVersionNotFound)
	require.NotErrorIs(t, err, ErrVersionMismatch)
	_, err = s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: 999999, VersionID: first.ID, SubmittedBy: 5})
	require.ErrorIs(t, err, ErrNotFound)

	review, err := s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: tree.paragraphs[0], VersionID: first.ID, SubmittedBy: 5, SubmitComment: "ready"})
	require.NoError(t, err)
	require.Equal(t, ReviewPending, review.Status)
	require.Nil(t, review.ReviewedAt)

	_, err = s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: tree.paragraphs[0], VersionID: first.ID, SubmittedBy: 5})
	require.ErrorIs(t, err, ErrReviewPending)

	_, err = s.Publish(ctx, KindParagraph, tree.paragraphs[0], 9)
	require.ErrorIs(t, err, ErrReviewPending)

	pending, err := s.ListPendingReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rejected, err := s.DecideReview(ctx, review.ID, ReviewRejected, 9, "typo")
	require.NoError(t, err)
	require.Equal(t, ReviewRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewedAt)

	status, err := s.GetContentStatus(ctx, KindParagraph, tree.paragraphs[0])
	require.NoError(t, err)
	require.Equal(t, StateDraft, status.State)

	_, err = s.DecideReview(ctx, review.ID, ReviewApproved, 9, "")
	require.ErrorIs(t, err, ErrReviewNotPending)

	second := addVersion(t, s, KindParagraph, tree.paragraphs[0], "second")
	resubmitted, err := s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: tree.paragraphs[0], VersionID: second.ID, SubmittedBy: 5})
	require.NoError(t, err)
	require.Equal(t, review.ItemID, resubmitted.ItemID)

	approved, err := s.DecideReview(ctx, resubmitted.ID, ReviewApproved, 9, "ok")
	require.NoError(t, err)
	require.Equal(t, ReviewApproved, approved.Status)

	status, err = s.GetContentStatus(ctx, KindParagraph, tree.paragraphs[0])
	require.NoError(t, err)
	require.Equal(t, StatePublished, status.State)
	require.Equal(t, second.ID, *status.PublishedVersionID)

	latest, err := s.LatestApprovedReview(ctx, KindParagraph, tree.paragraphs[0])
	require.NoError(t, err)
	require.Equal(t, resubmitted.ID, latest.ID)

	history, err := s.ListReviews(ctx, KindParagraph, tree.paragraphs[0])
	require.NoError(t, err)
	require.Len(t, history, 2)

	_, err = s.LatestApprovedReview(ctx, KindParagraph, tree.paragraphs[1])
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.DecideReview(ctx, 999999, ReviewApproved, 9, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func testConcurrentSubmit(t *testing.T, s contentStore) {
	tree := seedTree(t, s)
	version := addVersion(t, s, KindSection, tree.section, "racing")
	const submitters = 10

	var won, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < submitters; i++ {
		g.Go(func() error {
			_, err := s.SubmitReview(context.Background(), Review{Kind: KindSection, ReferenceID: tree.section, VersionID: version.ID, SubmittedBy: 4})
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, ErrReviewPending):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, won.Load())
	require.EqualValues(t, submitters-1, lost.Load())
}

func testConcurrentDecide(t *testing.T, s contentStore) {
	for round := 0; round < 5; round++ {
		tree := seedTree(t, s)
		version := addVersion(t, s, KindChapter, tree.chapter, "contested")
		review, err := s.SubmitReview(context.Background(), Review{Kind: KindChapter, ReferenceID: tree.chapter, VersionID: version.ID, SubmittedBy: 4})
		require.NoError(t, err)

		outcomes := make([]error, 2)
		decisions := []ReviewStatus{ReviewApproved, ReviewRejected}
		var g errgroup.Group
		for i, decision := range decisions {
			g.Go(func() error {
				_, outcomes[i] = s.DecideReview(context.Background(), review.ID, decision, 9, "decided")
				return nil
			})
		}
		require.NoError(t, g.Wait())

		var winner ReviewStatus
		for i, err := range outcomes {
			if err == nil {
				require.Empty(t, winner, "both decisions succeeded")
				winner = decisions[i]
				continue
			}
			require.ErrorIs(t, err, ErrReviewNotPending)
		}
		require.NotEmpty(t, winner, "no decision succeeded")

		stored, err := s.GetReview(context.Background(), review.ID)
		require.NoError(t, err)
		require.Equal(t, winner, stored.Status)

		status, err := s.GetContentStatus(context.Background(), KindChapter, tree.chapter)
		require.NoError(t, err)
		if winner == ReviewApproved {
			require.Equal(t, StatePublished, status.State)
			require.Equal(t, version.ID, *status.PublishedVersionID)
		} else {
			require.Equal(t, StateDraft, status.State)
			require.Nil(t, status.PublishedVersionID)
		}
	}
}

func testReviewableItems(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)

	item, err := s.GetOrCreateReviewableItem(ctx, KindSection, tree.section)
	require.NoError(t, err)
	again, err := s.GetOrCreateReviewableItem(ctx, KindSection, tree.section)
	require.NoError(t, err)
	require.Equal(t, item.ID, again.ID)

	_, err = s.GetOrCreateReviewableItem(ctx, KindSection, 999999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.DeleteNode(ctx, KindSection, tree.section, nil)
	require.NoError(t, err)
	_, err = s.GetOrCreateReviewableItem(ctx, KindSection, tree.section)
	require.ErrorIs(t, err, ErrNotFound)
}

func testComments(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)
	version := addVersion(t, s, KindBook, tree.book, "commented")
	review, err := s.SubmitReview(ctx, Review{Kind: KindBook, ReferenceID: tree.book, VersionID: version.ID, SubmittedBy: 1})
	require.NoError(t, err)

	first, err := s.InsertComment(ctx, ReviewComment{ReviewID: review.ID, VersionID: version.ID, FieldName: "titleEn", Text: "shorter", AuthorID: 2})
	require.NoError(t, err)
	_, err = s.InsertComment(ctx, ReviewComment{ReviewID: review.ID, VersionID: version.ID, FieldName: "introFr", Text: "accents", AuthorID: 3})
	require.NoError(t, err)

	updated, err := s.UpdateComment(ctx, first.ID, "much shorter")
	require.NoError(t, err)
	require.Equal(t, "much shorter", updated.Text)

	comments, err := s.ListComments(ctx, review.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, first.ID, comments[0].ID)

	require.NoError(t, s.DeleteComment(ctx, first.ID))
	require.ErrorIs(t, s.DeleteComment(ctx, first.ID), ErrNotFound)

	_, err = s.InsertComment(ctx, ReviewComment{ReviewID: 999999, VersionID: version.ID, FieldName: "titleEn", Text: "x", AuthorID: 2})
	require.ErrorIs(t, err, ErrNotFound)
}

func testCascadeDelete(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)
	addVersion(t, s, KindBook, tree.book, "book")
	addVersion(t, s, KindChapter, tree.chapter, "chapter")
	paragraph := addVersion(t, s, KindParagraph, tree.paragraphs[0], "paragraph")
	review, err := s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: tree.paragraphs[0], VersionID: paragraph.ID, SubmittedBy: 1})
	require.NoError(t, err)
	_, err = s.InsertComment(ctx, ReviewComment{ReviewID: review.ID, VersionID: paragraph.ID, FieldName: "contentEn", Text: "x", AuthorID: 2})
	require.NoError(t, err)
	_, err = s.Publish(ctx, KindChapter, tree.chapter, 1)
	require.NoError(t, err)

	var guarded []int64
	removal, err := s.DeleteNode(ctx, KindBook, tree.book, func(_ context.Context, _ Querier, ids []int64) error {
		guarded = ids
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, tree.paragraphs, guarded)
	require.Equal(t, 1, removal.Count(KindBook))
	require.Equal(t, 1, removal.Count(KindChapter))
	require.Equal(t, 1, removal.Count(KindSection))
	require.Equal(t, 2, removal.Count(KindParagraph))
	require.EqualValues(t, 3, removal.Versions)
	require.EqualValues(t, 1, removal.Reviews)
	require.EqualValues(t, 1, removal.Comments)

	for kind, id := range map[NodeKind]int64{KindBook: tree.book, KindChapter: tree.chapter, KindSection: tree.section, KindParagraph: tree.paragraphs[1]} {
		_, err := s.GetNode(ctx, kind, id)
		require.ErrorIs(t, err, ErrNotFound, "kind %s", kind)
	}
	_, err = s.GetReview(ctx, review.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVersion(ctx, KindParagraph, paragraph.ID)
	require.ErrorIs(t, err, ErrNotFound)

	status, err := s.GetContentStatus(ctx, KindChapter, tree.chapter)
	require.NoError(t, err)
	require.Equal(t, StateDraft, status.State)

	_, err = s.DeleteNode(ctx, KindBook, tree.book, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func testDeleteGuard(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)
	addVersion(t, s, KindSection, tree.section, "kept")

	_, err := s.DeleteNode(ctx, KindChapter, tree.chapter, func(_ context.Context, _ Querier, ids []int64) error {
		return &ParagraphInUseError{ParagraphIDs: ids[:1]}
	})
	inUse, ok := IsParagraphInUse(err)
	require.True(t, ok, "expected ParagraphInUseError, got %v", err)
	require.Equal(t, tree.paragraphs[:1], inUse.ParagraphIDs)

	for _, id := range tree.paragraphs {
		_, err := s.GetNode(ctx, KindParagraph, id)
		require.NoError(t, err)
	}
	versions, err := s.ListVersions(ctx, KindSection, tree.section)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	// A nil guard never vetoes.
	removal, err := s.DeleteNode(ctx, KindParagraph, tree.paragraphs[1], nil)
	require.NoError(t, err)
	require.Equal(t, []int64{tree.paragraphs[1]}, removal.Nodes[KindParagraph])
}

func testCategoryDelete(t *testing.T, s contentStore) {
	ctx := context.Background()
	tree := seedTree(t, s)
	addVersion(t, s, KindBook, tree.book, "book")

	removal, err := s.DeleteCategory(ctx, tree.category, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{tree.book}, removal.Nodes[KindBook])
	require.Equal(t, 2, removal.Count(KindParagraph))

	_, err = s.GetCategory(ctx, tree.category)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteCategory(ctx, tree.category, nil)
	require.ErrorIs(t, err, ErrNotFound)
}
