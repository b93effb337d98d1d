package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) contentStore {
		return NewMemoryStore()
	})
}

func TestMemoryStoreOrdersPendingReviewsBySubmission(t *testing.T) {
	s := NewMemoryStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	ctx := context.Background()
	tree := seedTree(t, s)

	var submitted []int64
	for _, id := range tree.paragraphs {
		version, err := s.CreateVersion(ctx, Version{Kind: KindParagraph, NodeID: id, AuthorID: 1, Body: Text{En: "x"}})
		if err != nil {
			t.Fatalf("CreateVersion() error = %v", err)
		}
		review, err := s.SubmitReview(ctx, Review{Kind: KindParagraph, ReferenceID: id, VersionID: version.ID, SubmittedBy: 1})
		if err != nil {
			t.Fatalf("SubmitReview() error = %v", err)
		}
		submitted = append(submitted, review.ID)
	}

	pending, err := s.ListPendingReviews(ctx, 1)
	if err != nil {
		t.Fatalf("ListPendingReviews() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != submitted[0] {
		t.Fatalf("expected oldest review %d first, got %+v", submitted[0], pending)
	}
}

func TestMemoryStoreKeepsPublishedPointerWhenStateChanges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tree := seedTree(t, s)

	version, err := s.CreateVersion(ctx, Version{Kind: KindSection, NodeID: tree.section, AuthorID: 1, Title: Text{En: "s"}})
	if err != nil {
		t.Fatalf("CreateVersion() error = %v", err)
	}
	if _, err := s.Publish(ctx, KindSection, tree.section, 1); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	status, err := s.SetContentState(ctx, KindSection, tree.section, StateDraft, 2)
	if err != nil {
		t.Fatalf("SetContentState() error = %v", err)
	}
	if status.PublishedVersionID == nil || *status.PublishedVersionID != version.ID {
		t.Fatalf("expected published pointer %d to survive, got %+v", version.ID, status.PublishedVersionID)
	}
	if status.UpdatedBy != 2 {
		t.Fatalf("expected updatedBy 2, got %d", status.UpdatedBy)
	}
}
