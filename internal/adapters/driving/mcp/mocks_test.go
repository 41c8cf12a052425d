package mcp

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.Answer
	err    error

	gotQuestion string
	gotOpts     domain.AnswerOptions
}

func (m *mockAnswerService) Answer(_ context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.gotQuestion = question
	m.gotOpts = opts
	return m.answer, m.err
}

// mockCollectionService is a mock implementation of driving.CollectionService.
type mockCollectionService struct {
	status  domain.CollectionStatus
	sources []string
}

func (m *mockCollectionService) Status(_ context.Context) domain.CollectionStatus {
	return m.status
}

func (m *mockCollectionService) ListSources(_ context.Context) []string {
	return m.sources
}

func (m *mockCollectionService) RemoveSource(_ context.Context, name string) (string, error) {
	return name, nil
}

func (m *mockCollectionService) ClearAll(_ context.Context) error {
	return nil
}

func newTestServer(answer *mockAnswerService, collection *mockCollectionService) (*Server, error) {
	if answer == nil {
		answer = &mockAnswerService{}
	}
	if collection == nil {
		collection = &mockCollectionService{}
	}
	return NewServer(&Ports{Answer: answer, Collection: collection, Temperature: 0.25})
}
