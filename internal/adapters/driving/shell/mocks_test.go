package shell

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

type mockCollection struct {
	status  domain.CollectionStatus
	sources []string
	removed []string
	cleared bool
	err     error
}

func (m *mockCollection) Status(_ context.Context) domain.CollectionStatus { return m.status }

func (m *mockCollection) ListSources(_ context.Context) []string { return m.sources }

func (m *mockCollection) RemoveSource(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.removed = append(m.removed, name)
	return name, nil
}

func (m *mockCollection) ClearAll(_ context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = true
	return nil
}

type mockIngestion struct {
	exists   bool
	report   *domain.IngestionReport
	err      error
	ingested []string
}

func (m *mockIngestion) Ingest(_ context.Context, path string, _ domain.IngestOptions) (*domain.IngestionReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ingested = append(m.ingested, path)
	if m.report != nil {
		return m.report, nil
	}
	return &domain.IngestionReport{Source: path, Pages: 1, Chunks: 2}, nil
}

func (m *mockIngestion) Exists(_ context.Context, path string) (string, bool, error) {
	return path, m.exists, nil
}

type mockAnswer struct {
	answer   *domain.Answer
	err      error
	question string
	opts     domain.AnswerOptions
}

func (m *mockAnswer) Answer(_ context.Context, q string, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.question = q
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

type mockServices struct {
	collection *mockCollection
	ingestion  *mockIngestion
	answer     *mockAnswer
	answerErr  error
	reloaded   int
}

func newMockServices() *mockServices {
	return &mockServices{
		collection: &mockCollection{},
		ingestion:  &mockIngestion{},
		answer:     &mockAnswer{answer: &domain.Answer{Text: "ok"}},
	}
}

func (m *mockServices) Collection(_ context.Context) (driving.CollectionService, error) {
	return m.collection, nil
}

func (m *mockServices) Ingestion(_ context.Context) (driving.IngestionService, error) {
	return m.ingestion, nil
}

func (m *mockServices) Answer(_ context.Context) (driving.AnswerService, error) {
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	return m.answer, nil
}

func (m *mockServices) ReloadPrompts() { m.reloaded++ }
