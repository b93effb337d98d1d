package app

import (
	"context"
	"fmt"
	"time"

	"editorial/api/internal/archive"
	"editorial/api/internal/search"
	"editorial/api/internal/store"

	"golang.org/x/sync/errgroup"
)

// Side effects run after the store transaction has committed. They never
// fail the command that triggered them; failures are logged.

func actorName(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

func publishedRecord(node store.Node, version store.Version) search.PublishedRecord {
	return search.PublishedRecord{
		ID:            search.RecordID(string(node.Kind), node.ID),
		Kind:          string(node.Kind),
		NodeID:        node.ID,
		ParentID:      node.ParentID,
		VersionID:     version.ID,
		VersionNumber: version.Number,
		TitleEn:       version.Title.En,
		TitleFr:       version.Title.Fr,
		BodyEn:        version.Body.En,
		BodyFr:        version.Body.Fr,
	}
}

func (s *Service) invalidateProjections(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("invalidate projection cache")
	}
}

func (s *Service) afterPublish(ctx context.Context, kind store.NodeKind, nodeID, versionID, userID int64) {
	s.invalidateProjections(ctx)
	if s.search == nil && s.archive == nil {
		return
	}

	logger := s.log.With().Str("kind", string(kind)).Int64("id", nodeID).Int64("version_id", versionID).Logger()
	node, err := s.store.GetNode(ctx, kind, nodeID)
	if err != nil {
		logger.Warn().Err(err).Msg("load published node")
		return
	}
	version, err := s.store.GetVersion(ctx, kind, versionID)
	if err != nil {
		logger.Warn().Err(err).Msg("load published version")
		return
	}

	if s.search != nil {
		s.search.IndexPublished(publishedRecord(node, version))
	}
	if s.archive != nil {
		commit, err := s.archive.Record(archive.Publication{
			Kind:          kind,
			NodeID:        nodeID,
			ParentID:      node.ParentID,
			VersionID:     version.ID,
			VersionNumber: version.Number,
			Title:         version.Title,
			Body:          version.Body,
			AuthorID:      version.AuthorID,
			PublishedBy:   userID,
			PublishedAt:   time.Now().UTC(),
		}, actorName(userID))
		if err != nil {
			logger.Warn().Err(err).Msg("archive publication")
			return
		}
		logger.Debug().Str("commit", commit.Hash).Msg("publication archived")
	}
}

func (s *Service) afterUnpublish(ctx context.Context, kind store.NodeKind, nodeID int64) {
	s.invalidateProjections(ctx)
	if s.search != nil {
		s.search.DeletePublished(search.RecordID(string(kind), nodeID))
	}
}

func (s *Service) afterRemoval(ctx context.Context, removal store.Removal, userID int64) {
	s.invalidateProjections(ctx)

	var (
		ids  []string
		refs []archive.Ref
	)
	for _, kind := range store.NodeKinds {
		for _, id := range removal.Nodes[kind] {
			ids = append(ids, search.RecordID(string(kind), id))
			refs = append(refs, archive.Ref{Kind: kind, NodeID: id})
		}
	}
	if s.search != nil {
		s.search.DeletePublished(ids...)
	}
	if s.archive != nil && len(refs) > 0 {
		if _, _, err := s.archive.Remove(refs, actorName(userID)); err != nil {
			s.log.Warn().Err(err).Int("nodes", len(refs)).Msg("archive removal")
		}
	}
	s.log.Info().
		Int("nodes", len(refs)).
		Int64("versions", removal.Versions).
		Int64("reviews", removal.Reviews).
		Int64("comments", removal.Comments).
		Msg("subtree deleted")
}

// Search queries published content.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// ReindexSearch pushes every published version into the search index and
// returns how many records were sent.
func (s *Service) ReindexSearch(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, unavailableError("search")
	}
	perKind := make([][]store.PublishedVersion, len(store.NodeKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range store.NodeKinds {
		g.Go(func() error {
			items, err := s.store.ListPublished(gctx, kind)
			if err != nil {
				return fmt.Errorf("list published %s: %w", kindSubject(kind), err)
			}
			perKind[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var records []search.PublishedRecord
	for _, items := range perKind {
		for _, item := range items {
			records = append(records, publishedRecord(item.Node, item.Version))
		}
	}
	if err := s.search.Reindex(records); err != nil {
		return 0, fmt.Errorf("reindex search: %w", err)
	}
	return len(records), nil
}

// ArchiveHistory lists the archived publications of a node. History
// survives deletion of the node.
func (s *Service) ArchiveHistory(ctx context.Context, kind store.NodeKind, id int64, limit int) ([]archive.Commit, error) {
	if s.archive == nil {
		return nil, unavailableError("archive")
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.archive.History(kind, id, limit)
}
