package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"editorial/api/internal/store"
)

func (s *Service) GetOrCreateReviewableItem(ctx context.Context, kind store.NodeKind, referenceID int64) (store.ReviewableItem, error) {
	if err := requireKind(kind); err != nil {
		return store.ReviewableItem{}, err
	}
	if err := requireID("referenceId", referenceID); err != nil {
		return store.ReviewableItem{}, err
	}
	item, err := s.store.GetOrCreateReviewableItem(ctx, kind, referenceID)
	if err != nil {
		return store.ReviewableItem{}, storeError(err, kindSubject(kind), referenceID)
	}
	return item, nil
}

// Submit opens a review of one version of a node. Only one review per node
// may be pending at a time.
func (s *Service) Submit(ctx context.Context, kind store.NodeKind, referenceID, versionID, submittedBy int64, comment string) (store.Review, error) {
	if err := requireKind(kind); err != nil {
		return store.Review{}, err
	}
	if err := requireID("referenceId", referenceID); err != nil {
		return store.Review{}, err
	}
	if err := requireID("versionId", versionID); err != nil {
		return store.Review{}, err
	}
	if err := requireID("submittedBy", submittedBy); err != nil {
		return store.Review{}, err
	}
	review, err := s.store.SubmitReview(ctx, store.Review{
		Kind:          kind,
		ReferenceID:   referenceID,
		VersionID:     versionID,
		SubmittedBy:   submittedBy,
		SubmitComment: strings.TrimSpace(comment),
	})
	if errors.Is(err, store.ErrVersionNotFound) {
		return store.Review{}, notFoundError(kindSubject(kind)+" version", versionID)
	}
	if err != nil {
		return store.Review{}, storeError(err, kindSubject(kind), referenceID)
	}
	s.log.Info().
		Int64("review_id", review.ID).
		Str("kind", string(kind)).
		Int64("reference_id", referenceID).
		Int64("version_id", versionID).
		Msg("review submitted")
	return review, nil
}

// Approve accepts a pending review and publishes exactly the reviewed
// version, whatever the node's working version is by now.
func (s *Service) Approve(ctx context.Context, reviewID, reviewedBy int64, comment string) (store.Review, error) {
	review, err := s.decide(ctx, reviewID, store.ReviewApproved, reviewedBy, comment)
	if err != nil {
		return store.Review{}, err
	}
	s.afterPublish(ctx, review.Kind, review.ReferenceID, review.VersionID, reviewedBy)
	return review, nil
}

// Reject closes a pending review. A reason is mandatory; the node's
// publication status is not touched.
func (s *Service) Reject(ctx context.Context, reviewID, reviewedBy int64, comment string) (store.Review, error) {
	if strings.TrimSpace(comment) == "" {
		return store.Review{}, validationError("a comment is required to reject a review", map[string]any{"field": "comment"})
	}
	return s.decide(ctx, reviewID, store.ReviewRejected, reviewedBy, comment)
}

func (s *Service) decide(ctx context.Context, reviewID int64, status store.ReviewStatus, reviewedBy int64, comment string) (store.Review, error) {
	if err := requireID("reviewId", reviewID); err != nil {
		return store.Review{}, err
	}
	if err := requireID("reviewedBy", reviewedBy); err != nil {
		return store.Review{}, err
	}
	review, err := s.store.DecideReview(ctx, reviewID, status, reviewedBy, strings.TrimSpace(comment))
	if errors.Is(err, store.ErrReviewNotPending) {
		current, getErr := s.store.GetReview(ctx, reviewID)
		if getErr != nil {
			return store.Review{}, storeError(getErr, "review", reviewID)
		}
		return store.Review{}, invalidStateError(
			fmt.Sprintf("review %d is %s, not PENDING", reviewID, current.Status),
			map[string]any{"reviewId": reviewID, "status": current.Status},
		)
	}
	if err != nil {
		return store.Review{}, storeError(err, "review", reviewID)
	}
	s.log.Info().
		Int64("review_id", review.ID).
		Str("status", string(review.Status)).
		Int64("reviewed_by", reviewedBy).
		Msg("review decided")
	return review, nil
}

func (s *Service) GetReview(ctx context.Context, reviewID int64) (store.Review, error) {
	if err := requireID("reviewId", reviewID); err != nil {
		return store.Review{}, err
	}
	review, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return store.Review{}, storeError(err, "review", reviewID)
	}
	return review, nil
}

// ListReviews returns every review cycle of a node, newest first.
func (s *Service) ListReviews(ctx context.Context, kind store.NodeKind, referenceID int64) ([]store.Review, error) {
	if _, err := s.GetNode(ctx, kind, referenceID); err != nil {
		return nil, err
	}
	return s.store.ListReviews(ctx, kind, referenceID)
}

func (s *Service) LatestApprovedReview(ctx context.Context, kind store.NodeKind, referenceID int64) (store.Review, error) {
	if err := requireKind(kind); err != nil {
		return store.Review{}, err
	}
	if err := requireID("referenceId", referenceID); err != nil {
		return store.Review{}, err
	}
	review, err := s.store.LatestApprovedReview(ctx, kind, referenceID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Review{}, domainError(http.StatusNotFound, CodeNotFound,
			fmt.Sprintf("%s %d has no approved review", kindSubject(kind), referenceID), nil)
	}
	if err != nil {
		return store.Review{}, err
	}
	return review, nil
}

// PendingReviews is the review queue, oldest submission first.
func (s *Service) PendingReviews(ctx context.Context, limit int) ([]store.Review, error) {
	if limit < 0 {
		return nil, validationError("limit must not be negative", map[string]any{"field": "limit"})
	}
	return s.store.ListPendingReviews(ctx, limit)
}
