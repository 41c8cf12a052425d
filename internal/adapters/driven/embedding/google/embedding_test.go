package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestNormaliseModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultModel},
		{"  ", DefaultModel},
		{"embedding-001", "models/embedding-001"},
		{"models/embedding-001", "models/embedding-001"},
		{"gemini-embedding-001", "models/gemini-embedding-001"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormaliseModel(tt.in))
		})
	}
}

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	svc, err := NewEmbeddingService(context.Background(), Config{APIKey: "k", Model: "gemini-embedding-001"})
	require.NoError(t, err)
	assert.Equal(t, "models/gemini-embedding-001", svc.ModelName())
	assert.Equal(t, 3072, svc.Dimensions())
	assert.NoError(t, svc.Close())
}

func TestEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "embedding-001")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0,0]},{"values":[0,1,0]}]}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vecs)
}

func TestEmbedBatch_Empty(t *testing.T) {
	svc, err := NewEmbeddingService(context.Background(), Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedBatch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded. Please retry in 7s.","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "a")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
