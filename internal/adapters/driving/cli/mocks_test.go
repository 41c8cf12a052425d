package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

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
	return "docs/" + name, nil
}

func (m *mockCollection) ClearAll(_ context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = true
	return nil
}

type mockIngestion struct {
	err      error
	failFor  string
	ingested []string
	opts     []domain.IngestOptions
}

func (m *mockIngestion) Ingest(_ context.Context, path string, opts domain.IngestOptions) (*domain.IngestionReport, error) {
	m.opts = append(m.opts, opts)
	if m.err != nil && (m.failFor == "" || m.failFor == path) {
		return nil, m.err
	}
	m.ingested = append(m.ingested, path)
	if opts.Progress != nil {
		opts.Progress(2, 2)
	}
	return &domain.IngestionReport{Source: path, Pages: 1, Chunks: 2, AverageChunkSize: 120}, nil
}

func (m *mockIngestion) Exists(_ context.Context, path string) (string, bool, error) {
	return path, false, nil
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
	settings   *domain.Settings
	collection *mockCollection
	ingestion  *mockIngestion
	answer     *mockAnswer
	reloaded   int
	closed     bool
}

func newMockServices() *mockServices {
	return &mockServices{
		settings: &domain.Settings{
			Store:    domain.StoreSettings{Backend: domain.StoreMemory, Collection: "pdf_documents"},
			Chunking: domain.ChunkingSettings{Size: 1000, Overlap: 200, BatchSize: 20},
			Answer:   domain.AnswerSettings{TopK: 4, Temperature: 0.3},
		},
		collection: &mockCollection{status: domain.CollectionStatus{Collection: "pdf_documents", Backend: "memory"}},
		ingestion:  &mockIngestion{},
		answer: &mockAnswer{answer: &domain.Answer{
			Question: "q",
			Text:     "Forty-two.",
			Citations: []domain.Citation{
				{Source: "docs/guide.pdf", Filename: "guide.pdf", Page: 2},
			},
		}},
	}
}

func (m *mockServices) Collection(_ context.Context) (driving.CollectionService, error) {
	return m.collection, nil
}

func (m *mockServices) Ingestion(_ context.Context) (driving.IngestionService, error) {
	return m.ingestion, nil
}

func (m *mockServices) Answer(_ context.Context) (driving.AnswerService, error) {
	return m.answer, nil
}

func (m *mockServices) ReloadPrompts() { m.reloaded++ }

func (m *mockServices) Settings() *domain.Settings { return m.settings }

func (m *mockServices) ConfigPath() string { return "/tmp/ragchat/config.toml" }

func (m *mockServices) Close() error {
	m.closed = true
	return nil
}

// withServices injects svc for the duration of the test.
func withServices(t *testing.T, svc Services) {
	t.Helper()
	prevServices, prevOwns := services, ownsServices
	services, ownsServices = svc, false
	t.Cleanup(func() { services, ownsServices = prevServices, prevOwns })
}

// withBootstrapError makes every bootstrap fail and clears injected services.
func withBootstrapError(t *testing.T) func() {
	t.Helper()
	prevBootstrap, prevServices, prevOwns := bootstrap, services, ownsServices
	bootstrap = func(GlobalFlags) (Services, error) {
		return nil, errors.New("bootstrap must not be called")
	}
	services, ownsServices = nil, false
	return func() {
		bootstrap, services, ownsServices = prevBootstrap, prevServices, prevOwns
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// resetFlags restores every flag to its default so tests do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
