package app

import (
	"context"
	"fmt"

	"editorial/api/internal/store"
)

// GetStatus returns the node's publication cell; nodes never published
// report DRAFT.
func (s *Service) GetStatus(ctx context.Context, kind store.NodeKind, id int64) (store.ContentStatus, error) {
	if _, err := s.GetNode(ctx, kind, id); err != nil {
		return store.ContentStatus{}, err
	}
	return s.store.GetContentStatus(ctx, kind, id)
}

// SetStatus writes the state cell as given. It applies no transition rules
// and keeps the published version pointer.
func (s *Service) SetStatus(ctx context.Context, kind store.NodeKind, id int64, state store.ContentState, userID int64) (store.ContentStatus, error) {
	if err := requireKind(kind); err != nil {
		return store.ContentStatus{}, err
	}
	if err := requireID("id", id); err != nil {
		return store.ContentStatus{}, err
	}
	if !state.Valid() {
		return store.ContentStatus{}, validationError(fmt.Sprintf("unknown status %q", state), map[string]any{"field": "status"})
	}
	if err := requireUser(userID); err != nil {
		return store.ContentStatus{}, err
	}
	status, err := s.store.SetContentState(ctx, kind, id, state, userID)
	if err != nil {
		return store.ContentStatus{}, storeError(err, kindSubject(kind), id)
	}
	if status.Visible() {
		s.afterPublish(ctx, kind, id, *status.PublishedVersionID, userID)
	} else {
		s.afterUnpublish(ctx, kind, id)
	}
	return status, nil
}

// Publish exposes the node's working version without a review. It is refused
// while a review of the node is pending.
func (s *Service) Publish(ctx context.Context, kind store.NodeKind, id, userID int64) (store.ContentStatus, error) {
	if err := requireKind(kind); err != nil {
		return store.ContentStatus{}, err
	}
	if err := requireID("id", id); err != nil {
		return store.ContentStatus{}, err
	}
	if err := requireUser(userID); err != nil {
		return store.ContentStatus{}, err
	}
	status, err := s.store.Publish(ctx, kind, id, userID)
	if err != nil {
		return store.ContentStatus{}, storeError(err, kindSubject(kind), id)
	}
	s.afterPublish(ctx, kind, id, *status.PublishedVersionID, userID)
	return status, nil
}

func (s *Service) PublishSection(ctx context.Context, sectionID, userID int64) (store.ContentStatus, error) {
	return s.Publish(ctx, store.KindSection, sectionID, userID)
}

// Unpublish hides the node from readers. The published pointer is kept so
// the node can be republished as it was.
func (s *Service) Unpublish(ctx context.Context, kind store.NodeKind, id, userID int64) (store.ContentStatus, error) {
	return s.SetStatus(ctx, kind, id, store.StateDraft, userID)
}
