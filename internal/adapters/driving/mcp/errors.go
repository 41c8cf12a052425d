// Package mcp provides an MCP (Model Context Protocol) server adapter for ragchat.
// It lets AI assistants ask questions about the indexed PDFs and inspect the collection.
package mcp

import "errors"

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("mcp: answer service is required")

	// ErrMissingCollectionService is returned when the collection service is not provided.
	ErrMissingCollectionService = errors.New("mcp: collection service is required")
)
