package bootstrap

import (
	"context"
	"testing"

	"editorial/api/internal/config"
	"editorial/api/internal/logging"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Addr:             ":0",
		StoreDriver:      config.DriverMemory,
		JWTSecret:        "secret",
		ArchiveDir:       t.TempDir(),
		AccessTTLSeconds: 60,
		CacheTTLSeconds:  60,
	}
}

func TestBuildMemoryStack(t *testing.T) {
	stack, err := Build(context.Background(), memoryConfig(t), logging.Nop(), Options{Migrate: true})
	require.NoError(t, err)
	defer stack.Close()

	assert.NotNil(t, stack.Service)
	assert.Nil(t, stack.DB)
	assert.Nil(t, stack.Search, "memory store has no full-text fallback")
	require.NoError(t, stack.Service.Ping(context.Background()))
}

func TestBuildWithRedisCache(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := memoryConfig(t)
	cfg.RedisURL = "redis://" + server.Addr()

	stack, err := Build(context.Background(), cfg, logging.Nop(), Options{})
	require.NoError(t, err)
	defer stack.Close()

	_, err = stack.Service.PublicHierarchy(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, server.Exists("hierarchy:public:0:all"), "expected the projection to be cached, keys=%v", server.Keys())
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := Build(context.Background(), cfg, logging.Nop(), Options{})
	require.Error(t, err)
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreDriver = "sqlite"

	_, err := Build(context.Background(), cfg, logging.Nop(), Options{})
	require.Error(t, err)
}
