package app

import (
	"context"
	"strings"

	"editorial/api/internal/store"
)

// AddComment attaches field-scoped feedback to a review. A zero versionID
// means the version under review.
func (s *Service) AddComment(ctx context.Context, reviewID, versionID int64, fieldName, text string, authorID int64) (store.ReviewComment, error) {
	if err := requireID("authorId", authorID); err != nil {
		return store.ReviewComment{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return store.ReviewComment{}, validationError("commentText is required", map[string]any{"field": "commentText"})
	}
	review, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return store.ReviewComment{}, err
	}
	if versionID == 0 {
		versionID = review.VersionID
	}
	if versionID != review.VersionID {
		return store.ReviewComment{}, validationError("comments must target the reviewed version", map[string]any{
			"reviewedVersionId": review.VersionID,
		})
	}
	if !review.Kind.HasField(fieldName) {
		return store.ReviewComment{}, validationError("unknown field "+fieldName, map[string]any{
			"field":   "fieldName",
			"allowed": review.Kind.Fields(),
		})
	}
	comment, err := s.store.InsertComment(ctx, store.ReviewComment{
		ReviewID:  review.ID,
		VersionID: versionID,
		FieldName: fieldName,
		Text:      text,
		AuthorID:  authorID,
	})
	if err != nil {
		return store.ReviewComment{}, storeError(err, "review", reviewID)
	}
	return comment, nil
}

func (s *Service) ownComment(ctx context.Context, commentID, userID int64) (store.ReviewComment, error) {
	if err := requireID("commentId", commentID); err != nil {
		return store.ReviewComment{}, err
	}
	if err := requireUser(userID); err != nil {
		return store.ReviewComment{}, err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return store.ReviewComment{}, storeError(err, "comment", commentID)
	}
	if comment.AuthorID != userID {
		return store.ReviewComment{}, forbiddenError("only the author may change a comment")
	}
	return comment, nil
}

func (s *Service) UpdateComment(ctx context.Context, commentID int64, text string, userID int64) (store.ReviewComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.ReviewComment{}, validationError("commentText is required", map[string]any{"field": "commentText"})
	}
	if _, err := s.ownComment(ctx, commentID, userID); err != nil {
		return store.ReviewComment{}, err
	}
	updated, err := s.store.UpdateComment(ctx, commentID, text)
	if err != nil {
		return store.ReviewComment{}, storeError(err, "comment", commentID)
	}
	return updated, nil
}

func (s *Service) DeleteComment(ctx context.Context, commentID, userID int64) error {
	if _, err := s.ownComment(ctx, commentID, userID); err != nil {
		return err
	}
	return storeError(s.store.DeleteComment(ctx, commentID), "comment", commentID)
}

func (s *Service) ListComments(ctx context.Context, reviewID int64) ([]store.ReviewComment, error) {
	if _, err := s.GetReview(ctx, reviewID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, reviewID)
}
