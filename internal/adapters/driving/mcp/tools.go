package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of passages to retrieve (default from configuration)"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"generation temperature (default from configuration)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Citations []CitationOutput `json:"citations"`
	Fallback  bool             `json:"fallback"`
	Error     string           `json:"generation_error,omitempty"`
}

// CitationOutput is one cited page.
type CitationOutput struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	Page     string `json:"page"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Collection string   `json:"collection"`
	Backend    string   `json:"backend"`
	Chunks     int      `json:"chunks"`
	Sources    int      `json:"sources"`
	Incomplete []string `json:"incomplete,omitempty"`
}

// ListSourcesInput is the (empty) input schema for the list_sources tool.
type ListSourcesInput struct{}

// ListSourcesOutput is the output schema for the list_sources tool.
type ListSourcesOutput struct {
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the indexed PDF documents, with page citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Show the collection name, backend, chunk and document counts",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sources",
		Description: "List the indexed documents",
	}, s.handleListSources)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, errors.New("question is required")
	}

	opts := domain.AnswerOptions{TopK: input.TopK, Temperature: s.ports.Temperature}
	if input.Temperature != nil {
		opts.Temperature = *input.Temperature
	}

	answer, err := s.ports.Answer.Answer(ctx, input.Question, opts)
	if errors.Is(err, domain.ErrEmptyCollection) {
		return nil, AskOutput{}, errors.New("no documents are indexed; run `ragchat ingest <file.pdf>` first")
	}
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("answering question: %w", err)
	}

	output := AskOutput{
		Answer:    answer.Text,
		Citations: make([]CitationOutput, len(answer.Citations)),
		Fallback:  answer.Fallback,
		Error:     answer.GenerationError,
	}
	for i, c := range answer.Citations {
		output.Citations[i] = CitationOutput{
			Source:   c.Source,
			Filename: c.Filename,
			Page:     c.PageLabel(),
		}
	}

	return nil, output, nil
}

// handleStatus handles the status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	st := s.ports.Collection.Status(ctx)
	return nil, StatusOutput{
		Collection: st.Collection,
		Backend:    st.Backend,
		Chunks:     st.Chunks,
		Sources:    st.Sources,
		Incomplete: st.Incomplete,
	}, nil
}

// handleListSources handles the list_sources tool invocation.
func (s *Server) handleListSources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListSourcesInput,
) (*mcp.CallToolResult, ListSourcesOutput, error) {
	sources := s.ports.Collection.ListSources(ctx)
	return nil, ListSourcesOutput{Sources: sources, Count: len(sources)}, nil
}
