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
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.api.BaseURL())
	assert.Equal(t, DefaultLLMTimeout, svc.api.Timeout())
	assert.NoError(t, svc.Close())
}

func TestGenerate(t *testing.T) {
	var raw map[string]any
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Forty-two."},"finish_reason":"stop"}]}`))
	})

	out, err := svc.Generate(context.Background(), "What is the answer?", driven.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Forty-two.", out)
	assert.Equal(t, "gpt-test", raw["model"])
	assert.Contains(t, raw, "temperature", "zero temperature must be sent explicitly")
	assert.InDelta(t, 0.0, raw["temperature"], 1e-9)
	assert.NotContains(t, raw, "max_completion_tokens")

	msgs, ok := raw["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "What is the answer?", msg["content"])
}

func TestGenerate_Options(t *testing.T) {
	var raw map[string]any
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{Temperature: 0.7, MaxTokens: 64})

	require.NoError(t, err)
	assert.InDelta(t, 0.7, raw["temperature"], 1e-9)
	assert.InDelta(t, 64, raw["max_completion_tokens"], 1e-9)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, domain.ErrRateLimited, "slow down"},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"no access"}}`, domain.ErrBackendConnectivity, "no access"},
		{"bad gateway", http.StatusBadGateway, `<html>bad gateway</html>`, nil, "status 502"},
		{"no choices", http.StatusOK, `{"choices":[]}`, nil, "no response choices"},
		{"api error body", http.StatusOK, `{"error":{"message":"model overloaded"}}`, nil, "model overloaded"},
		{"malformed", http.StatusOK, `not json`, nil, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
