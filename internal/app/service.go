package app

import (
	"context"
	"fmt"

	"editorial/api/internal/archive"
	"editorial/api/internal/export"
	"editorial/api/internal/search"
	"editorial/api/internal/store"

	"github.com/rs/zerolog"
)

// ContentStore is the persistence the service runs on. Both the Postgres
// and the in-memory store satisfy it.
type ContentStore interface {
	Ping(context.Context) error

	InsertCategory(context.Context, store.Category) (store.Category, error)
	UpdateCategory(context.Context, store.Category) (store.Category, error)
	GetCategory(context.Context, int64) (store.Category, error)
	ListCategories(context.Context) ([]store.Category, error)
	DeleteCategory(context.Context, int64, store.DeleteGuard) (store.Removal, error)

	InsertNode(context.Context, store.Node) (store.Node, error)
	UpdateNodePlacement(context.Context, store.Node) (store.Node, error)
	GetNode(context.Context, store.NodeKind, int64) (store.Node, error)
	ListChildren(context.Context, store.NodeKind, ...int64) ([]store.Node, error)
	DeleteNode(context.Context, store.NodeKind, int64, store.DeleteGuard) (store.Removal, error)

	CreateVersion(context.Context, store.Version) (store.Version, error)
	GetVersion(context.Context, store.NodeKind, int64) (store.Version, error)
	GetVersions(context.Context, store.NodeKind, []int64) (map[int64]store.Version, error)
	LatestVersion(context.Context, store.NodeKind, int64) (store.Version, error)
	VersionByNumber(context.Context, store.NodeKind, int64, int) (store.Version, error)
	ListVersions(context.Context, store.NodeKind, int64) ([]store.Version, error)

	GetContentStatus(context.Context, store.NodeKind, int64) (store.ContentStatus, error)
	ListContentStatuses(context.Context, store.NodeKind, []int64) (map[int64]store.ContentStatus, error)
	SetContentState(context.Context, store.NodeKind, int64, store.ContentState, int64) (store.ContentStatus, error)
	Publish(context.Context, store.NodeKind, int64, int64) (store.ContentStatus, error)
	ListPublished(context.Context, store.NodeKind) ([]store.PublishedVersion, error)

	GetOrCreateReviewableItem(context.Context, store.NodeKind, int64) (store.ReviewableItem, error)
	SubmitReview(context.Context, store.Review) (store.Review, error)
	DecideReview(context.Context, int64, store.ReviewStatus, int64, string) (store.Review, error)
	GetReview(context.Context, int64) (store.Review, error)
	ListReviews(context.Context, store.NodeKind, int64) ([]store.Review, error)
	LatestApprovedReview(context.Context, store.NodeKind, int64) (store.Review, error)
	ListPendingReviews(context.Context, int) ([]store.Review, error)

	InsertComment(context.Context, store.ReviewComment) (store.ReviewComment, error)
	GetComment(context.Context, int64) (store.ReviewComment, error)
	UpdateComment(context.Context, int64, string) (store.ReviewComment, error)
	DeleteComment(context.Context, int64) error
	ListComments(context.Context, int64) ([]store.ReviewComment, error)
}

// ParagraphUsage answers whether learning content still references
// paragraphs. It is consulted inside delete transactions; q is that
// transaction (nil for the in-memory store) and every query goes through it.
type ParagraphUsage interface {
	ReferencedParagraphs(ctx context.Context, q store.Querier, ids []int64) ([]int64, error)
}

// projectionCache is generation-stamped: Get reports the generation it
// looked under and Set writes only under the generation it is handed.
type projectionCache interface {
	Get(ctx context.Context, scope string) ([]byte, int64, bool, error)
	Set(ctx context.Context, gen int64, scope string, payload []byte) error
	Invalidate(ctx context.Context) error
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexPublished(rec search.PublishedRecord)
	DeletePublished(ids ...string)
	Reindex(records []search.PublishedRecord) error
}

type publicationArchive interface {
	Record(pub archive.Publication, actor string) (archive.Commit, error)
	Remove(refs []archive.Ref, actor string) (archive.Commit, bool, error)
	History(kind store.NodeKind, id int64, limit int) ([]archive.Commit, error)
}

type bookExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	store    ContentStore
	usage    ParagraphUsage
	cache    projectionCache
	search   searchIndex
	archive  publicationArchive
	exporter bookExporter
	log      zerolog.Logger
}

type Option func(*Service)

func WithParagraphUsage(usage ParagraphUsage) Option {
	return func(s *Service) { s.usage = usage }
}

func WithCache(cache projectionCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithSearch(index searchIndex) Option {
	return func(s *Service) { s.search = index }
}

func WithArchive(a publicationArchive) Option {
	return func(s *Service) { s.archive = a }
}

func WithExporter(exporter bookExporter) Option {
	return func(s *Service) { s.exporter = exporter }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.log = logger }
}

// New builds the service over a content store. Collaborators that are not
// supplied are skipped: no paragraph is in use, projections are computed on
// every read and publications are neither indexed nor archived.
func New(contentStore ContentStore, opts ...Option) *Service {
	s := &Service{
		store: contentStore,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// paragraphGuard adapts ParagraphUsage to the store's delete veto.
func (s *Service) paragraphGuard() store.DeleteGuard {
	if s.usage == nil {
		return nil
	}
	usage := s.usage
	return func(ctx context.Context, q store.Querier, paragraphIDs []int64) error {
		referenced, err := usage.ReferencedParagraphs(ctx, q, paragraphIDs)
		if err != nil {
			return fmt.Errorf("check paragraph usage: %w", err)
		}
		if len(referenced) > 0 {
			return &store.ParagraphInUseError{ParagraphIDs: referenced}
		}
		return nil
	}
}
