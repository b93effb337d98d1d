package search

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type primaryBackend interface {
	Searcher
	Indexer
}

// Service is the search facade. It queries Meilisearch first and falls back
// to PostgreSQL FTS; index writes are asynchronous and only reach the
// primary backend.
type Service struct {
	primary  primaryBackend
	fallback Searcher
	log      zerolog.Logger
	pending  sync.WaitGroup
}

// NewService wires the facade. Either backend may be nil.
func NewService(m *Meili, pg *PgFTS, logger zerolog.Logger) *Service {
	var primary primaryBackend
	if m != nil {
		primary = m
	}
	var fallback Searcher
	if pg != nil {
		fallback = pg
	}
	return newService(primary, fallback, logger)
}

func newService(primary primaryBackend, fallback Searcher, logger zerolog.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		log:      logger.With().Str("component", "search").Logger(),
	}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	q = q.normalized()
	resp := Response{Results: []Result{}, Query: q.Text}
	if q.Text == "" {
		return resp
	}

	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			resp.Results = nonNil(results)
			resp.Total = total
			resp.Backend = "meilisearch"
			return resp
		}
		s.log.Warn().Err(err).Msg("primary search failed, falling back")
	}

	if s.fallback != nil {
		results, total, err := s.fallback.Search(ctx, q)
		if err != nil {
			s.log.Error().Err(err).Msg("fallback search failed")
			return resp
		}
		resp.Results = nonNil(results)
		resp.Total = total
		resp.Backend = "pgfts"
	}
	return resp
}

// IndexPublished pushes a record to the primary backend in the background.
func (s *Service) IndexPublished(rec PublishedRecord) {
	if s.primary == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.primary.IndexPublished([]PublishedRecord{rec}); err != nil {
			s.log.Warn().Err(err).Str("id", rec.ID).Msg("index published record")
		}
	}()
}

// DeletePublished removes records from the primary backend in the background.
func (s *Service) DeletePublished(ids ...string) {
	if s.primary == nil || len(ids) == 0 {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.primary.DeletePublished(ids); err != nil {
			s.log.Warn().Err(err).Strs("ids", ids).Msg("delete published records")
		}
	}()
}

// Reindex upserts every record into the primary backend synchronously.
func (s *Service) Reindex(records []PublishedRecord) error {
	if s.primary == nil {
		return nil
	}
	if err := s.primary.IndexPublished(records); err != nil {
		return err
	}
	s.log.Info().Int("records", len(records)).Msg("reindexed published content")
	return nil
}

// Backend names the backend a query would hit right now.
func (s *Service) Backend() string {
	switch {
	case s.primary != nil && s.primary.Healthy():
		return "meilisearch"
	case s.fallback != nil:
		return "pgfts"
	default:
		return "none"
	}
}

// Wait blocks until background index writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
