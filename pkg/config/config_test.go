package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Database.Type)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, 0.7, cfg.Search.VectorWeight)
	require.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	require.Equal(t, 5*time.Minute, cfg.Cache.AgentTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("SEARCH_VECTOR_WEIGHT", "0.25")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, "postgres", cfg.Database.Type)
	require.Equal(t, 0.25, cfg.Search.VectorWeight)
	require.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestEmbeddingKeyPrefersOwnVariable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-vendor")
	t.Setenv("EMBEDDING_API_KEY", "sk-own")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-own", cfg.Embedding.APIKey)
}
