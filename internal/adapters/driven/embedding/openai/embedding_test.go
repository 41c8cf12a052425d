package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return svc
}

func TestNewEmbeddingService(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewEmbeddingService(Config{})
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "OPENAI_API_KEY", cfgErr.Param)
	})

	t.Run("defaults", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, svc.api.BaseURL())
		assert.Equal(t, DefaultModel, svc.ModelName())
		assert.Equal(t, 1536, svc.Dimensions())
		assert.Equal(t, DefaultTimeout, svc.api.Timeout())
		assert.NoError(t, svc.Close())
	})

	t.Run("unknown model has unknown dimensions", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "sk-test", Model: "custom"})
		require.NoError(t, err)
		assert.Zero(t, svc.Dimensions())
	})
}

func TestEmbedBatch(t *testing.T) {
	var got embeddingRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.5,0.25]},
			{"index":0,"embedding":[1,0]}
		]}`))
	})

	vecs, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.25}}, vecs)
}

func TestEmbed(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	})

	vec, err := svc.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestEmbedBatch_Empty(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedBatch_MissingEmbedding(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.ErrorContains(t, err, "missing embedding for input 1")
}

func TestEmbedBatch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		header  map[string]string
		wantErr error
		wantMsg string
	}{
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			header:  map[string]string{"Retry-After": "20"},
			wantErr: domain.ErrRateLimited,
			wantMsg: "retry after 20s",
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			wantErr: domain.ErrBackendConnectivity,
			wantMsg: "Incorrect API key provided",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `upstream failure`,
			wantMsg: "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := svc.Embed(context.Background(), "x")

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestEmbedBatch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: url})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrBackendConnectivity)
}
