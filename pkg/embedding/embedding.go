package embedding

import (
	"context"
	"errors"

	"mission-control/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dimensions is the vector length produced by text-embedding-3-small and
// expected by the memory store.
const Dimensions = 1536

// ErrUnavailable reports that no embedding backend is configured.
var ErrUnavailable = errors.New("embedding service unavailable")

type Embedding interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

var Module = fx.Module("embedding", fx.Provide(New))

// New returns an OpenAI-compatible client, or a disabled model that fails
// every call with ErrUnavailable when no credential is configured.
func New(cfg *config.Config) (Embedding, error) {
	e := cfg.Embedding
	if e.APIKey == "" {
		zap.L().Warn("embedding api key not set, semantic search disabled")
		return Disabled{}, nil
	}

	return NewOpenAIModel(e.APIKey, e.Model, e.BaseURL)
}

type Disabled struct{}

func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (Disabled) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrUnavailable
}
