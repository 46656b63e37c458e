package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mission-control/pkg/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func embeddingsServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 1
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIModelEmbedBatch(t *testing.T) {
	srv := embeddingsServer(t, Dimensions)

	m, err := NewOpenAIModel("sk-test", "text-embedding-3-small", srv.URL)
	require.NoError(t, err)

	out, err := m.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out[0], Dimensions)
	require.Equal(t, float32(1), out[1][1])
}

func TestOpenAIModelRejectsWrongDimensions(t *testing.T) {
	srv := embeddingsServer(t, 8)

	m, err := NewOpenAIModel("sk-test", "text-embedding-3-small", srv.URL)
	require.NoError(t, err)

	_, err = m.Embed(context.Background(), "a")
	require.Error(t, err)
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	e, err := New(&config.Config{})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "a")
	require.ErrorIs(t, err, ErrUnavailable)
}
