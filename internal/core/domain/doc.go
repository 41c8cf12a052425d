// Package domain defines the core business entities for ragchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Page: Extracted text of one document page
//   - Chunk: A retrievable unit of document text with provenance metadata
//   - Citation: A deduplicated reference to a source page
//   - Answer: A grounded answer and its citations
//   - Settings: Validated runtime configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
