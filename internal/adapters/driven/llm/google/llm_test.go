package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	svc, err := NewLLMService(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Forty"},{"text":"-two."}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(context.Background(), Config{APIKey: "k", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := svc.Generate(context.Background(), "What is the answer?", driven.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Forty-two.", out)
	gen, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "generation config must be sent")
	assert.Contains(t, gen, "temperature")
}

func TestGenerate_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "q", driven.GenerateOptions{})

	assert.ErrorContains(t, err, "no response generated")
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil", nil, ""},
		{"no content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{
			name: "skips empty candidate",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{{Text: ""}}}},
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "second"}}}},
			}},
			want: "second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseText(tt.resp))
		})
	}
}
