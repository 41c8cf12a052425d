package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// DocumentLoader extracts ordered page text from a file.
type DocumentLoader interface {
	// Load returns the pages of the file at path. Corrupt or encrypted files
	// fail with an error wrapping domain.ErrInvalidInput.
	Load(ctx context.Context, path string) ([]domain.Page, error)

	// Extensions returns the accepted lower-case file extensions, including the dot.
	Extensions() []string
}
