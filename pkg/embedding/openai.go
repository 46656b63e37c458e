package embedding

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mission_control_embedding_requests_total",
	Help: "Embedding API calls by outcome.",
}, []string{"result"})

type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel talks to any OpenAI-compatible embeddings endpoint. The
// model must produce Dimensions-long vectors; other sizes are rejected.
func NewOpenAIModel(apiKey, modelName, baseURL string) (*OpenAIModel, error) {
	if modelName == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIModel{client: client, model: modelName}, nil
}

func (m *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (m *OpenAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.model),
	}

	resp, err := m.client.CreateEmbeddings(ctx, req)
	if err != nil {
		requests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		requests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) {
			idx = i
		}
		if len(d.Embedding) != Dimensions {
			requests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", idx, len(d.Embedding), Dimensions)
		}
		embeddings[idx] = d.Embedding
	}

	requests.WithLabelValues("ok").Inc()
	return embeddings, nil
}
