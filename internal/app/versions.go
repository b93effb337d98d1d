package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"editorial/api/internal/store"
)

// VersionInput is the bilingual content of a new version. Body is the intro
// of books, chapters and sections and the content of paragraphs.
type VersionInput struct {
	Title store.Text `json:"title"`
	Body  store.Text `json:"body"`
}

func validateVersion(kind store.NodeKind, in VersionInput) error {
	if kind.HasTitle() {
		if in.Title.Blank() {
			return validationError("title is required in at least one locale", map[string]any{"field": "title"})
		}
		return nil
	}
	if !in.Title.Blank() {
		return validationError(kindSubject(kind)+" versions have no title", map[string]any{"field": "title"})
	}
	if in.Body.Blank() {
		return validationError("content is required in at least one locale", map[string]any{"field": "content"})
	}
	return nil
}

// CreateVersion appends a version to the node and makes it the working
// version. The publication status is left alone.
func (s *Service) CreateVersion(ctx context.Context, kind store.NodeKind, nodeID int64, in VersionInput, authorID int64) (store.Version, error) {
	if err := requireKind(kind); err != nil {
		return store.Version{}, err
	}
	if err := requireID("nodeId", nodeID); err != nil {
		return store.Version{}, err
	}
	if err := requireID("authorId", authorID); err != nil {
		return store.Version{}, err
	}
	if err := validateVersion(kind, in); err != nil {
		return store.Version{}, err
	}
	created, err := s.store.CreateVersion(ctx, store.Version{
		Kind:     kind,
		NodeID:   nodeID,
		Title:    in.Title,
		Body:     in.Body,
		AuthorID: authorID,
	})
	if err != nil {
		return store.Version{}, storeError(err, kindSubject(kind), nodeID)
	}
	return created, nil
}

func (s *Service) GetVersion(ctx context.Context, kind store.NodeKind, versionID int64) (store.Version, error) {
	if err := requireKind(kind); err != nil {
		return store.Version{}, err
	}
	if err := requireID("versionId", versionID); err != nil {
		return store.Version{}, err
	}
	item, err := s.store.GetVersion(ctx, kind, versionID)
	if err != nil {
		return store.Version{}, storeError(err, kindSubject(kind)+" version", versionID)
	}
	return item, nil
}

func noVersionsError(kind store.NodeKind, nodeID int64) *DomainError {
	return domainError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s %d has no versions", kindSubject(kind), nodeID), map[string]any{
		"subject": kindSubject(kind),
		"id":      nodeID,
	})
}

func (s *Service) LatestVersion(ctx context.Context, kind store.NodeKind, nodeID int64) (store.Version, error) {
	if _, err := s.GetNode(ctx, kind, nodeID); err != nil {
		return store.Version{}, err
	}
	item, err := s.store.LatestVersion(ctx, kind, nodeID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Version{}, noVersionsError(kind, nodeID)
	}
	if err != nil {
		return store.Version{}, err
	}
	return item, nil
}

func (s *Service) VersionByNumber(ctx context.Context, kind store.NodeKind, nodeID int64, number int) (store.Version, error) {
	if number < 1 {
		return store.Version{}, validationError("versionNumber must be at least 1", map[string]any{"field": "versionNumber"})
	}
	if _, err := s.GetNode(ctx, kind, nodeID); err != nil {
		return store.Version{}, err
	}
	item, err := s.store.VersionByNumber(ctx, kind, nodeID, number)
	if errors.Is(err, store.ErrNotFound) {
		return store.Version{}, domainError(http.StatusNotFound, CodeNotFound,
			fmt.Sprintf("%s %d has no version %d", kindSubject(kind), nodeID, number), nil)
	}
	if err != nil {
		return store.Version{}, err
	}
	return item, nil
}

// ListVersions returns the node's versions, newest first.
func (s *Service) ListVersions(ctx context.Context, kind store.NodeKind, nodeID int64) ([]store.Version, error) {
	if _, err := s.GetNode(ctx, kind, nodeID); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, kind, nodeID)
}
