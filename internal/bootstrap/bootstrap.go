// Package bootstrap wires configuration into a running service graph. It is
// shared by the API server and the operator CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"editorial/api/internal/app"
	"editorial/api/internal/archive"
	"editorial/api/internal/cache"
	"editorial/api/internal/config"
	"editorial/api/internal/export"
	"editorial/api/internal/search"
	"editorial/api/internal/store"

	"github.com/rs/zerolog"
)

// Stack is the assembled service and the resources it owns.
type Stack struct {
	Config  config.Config
	DB      *sql.DB
	Service *app.Service
	Search  *search.Service

	closers []func()
}

// Close releases resources in reverse acquisition order.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Stack) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// Options tune what Build brings up.
type Options struct {
	// Migrate applies pending migrations before the store is used.
	Migrate bool
}

// OpenDatabase connects to Postgres using the default pool settings.
func OpenDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// Build connects every configured collaborator. Optional backends that are
// not configured are left out; the service degrades instead of failing.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts Options) (*Stack, error) {
	stack := &Stack{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			stack.Close()
		}
	}()

	appOpts := []app.Option{app.WithLogger(logger)}

	var contentStore app.ContentStore
	var pgfts *search.PgFTS
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		stack.DB = db
		stack.onClose(func() { _ = db.Close() })

		if opts.Migrate {
			applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
			if err != nil {
				return nil, fmt.Errorf("migrations failed: %w", err)
			}
			for _, version := range applied {
				logger.Info().Str("version", version).Msg("migration applied")
			}
		}
		contentStore = store.NewPostgresStore(db)
		pgfts = search.NewPgFTS(db)
		if strings.TrimSpace(cfg.ParagraphUsageQuery) != "" {
			appOpts = append(appOpts, app.WithParagraphUsage(store.NewSQLParagraphUsage(db, cfg.ParagraphUsageQuery)))
		}
	case config.DriverMemory:
		logger.Warn().Msg("using the in-memory store; content is lost on restart")
		contentStore = store.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		stack.onClose(func() { _ = redisCache.Close() })
		appOpts = append(appOpts, app.WithCache(redisCache))
		logger.Info().Msg("caching public hierarchy in redis")
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		stack.onClose(meili.Close)
	}
	if meili != nil || pgfts != nil {
		stack.Search = search.NewService(meili, pgfts, logger)
		stack.onClose(stack.Search.Wait)
		appOpts = append(appOpts, app.WithSearch(stack.Search))
		logger.Info().Str("backend", stack.Search.Backend()).Msg("search enabled")
	}

	if strings.TrimSpace(cfg.ArchiveDir) != "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive dir: %w", err)
		}
		appOpts = append(appOpts, app.WithArchive(archive.New(cfg.ArchiveDir)))
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}
	appOpts = append(appOpts, app.WithExporter(exporter))

	stack.Service = app.New(contentStore, appOpts...)
	ok = true
	return stack, nil
}

func newExporter(cfg config.Config) (*export.Service, error) {
	if !cfg.ObjectStorageEnabled() {
		return export.NewService(nil, 0), nil
	}
	objects, err := export.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return export.NewService(objects, 0), nil
}
