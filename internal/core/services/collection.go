package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure CollectionService implements the interface.
var _ driving.CollectionService = (*CollectionService)(nil)

// CollectionService provides status and source management over the repository.
type CollectionService struct {
	repo *Repository
}

// NewCollectionService creates a new collection service.
func NewCollectionService(repo *Repository) *CollectionService {
	return &CollectionService{repo: repo}
}

// Status returns chunk and source counts. Backend failures yield zeros.
func (s *CollectionService) Status(ctx context.Context) domain.CollectionStatus {
	return domain.CollectionStatus{
		Collection: s.repo.Collection(),
		Backend:    s.repo.Backend(),
		Chunks:     s.repo.Count(ctx),
		Sources:    s.repo.CountSources(ctx),
		Incomplete: s.repo.Incomplete(ctx),
	}
}

// ListSources returns the indexed source identifiers in order.
func (s *CollectionService) ListSources(ctx context.Context) []string {
	return s.repo.ListSources(ctx)
}

// RemoveSource deletes the chunks of the source named by name.
// An exact source identifier wins; otherwise name must match the file
// name of exactly one source.
func (s *CollectionService) RemoveSource(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: source name is empty", domain.ErrInvalidInput)
	}

	source, err := s.resolve(ctx, name)
	if err != nil {
		return "", err
	}

	n, err := s.repo.DeleteBySource(ctx, source)
	if err != nil {
		return "", err
	}
	if err := s.repo.ForgetSource(ctx, source); err != nil {
		return "", err
	}
	logger.Info("Removed %d chunks of %s", n, source)

	return source, nil
}

// ClearAll removes every chunk in the collection.
func (s *CollectionService) ClearAll(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func (s *CollectionService) resolve(ctx context.Context, name string) (string, error) {
	if s.repo.SourceExists(ctx, name) {
		return name, nil
	}

	var matches []string
	for _, src := range s.repo.ListSources(ctx) {
		if path.Base(src) == name {
			matches = append(matches, src)
		}
	}

	switch len(matches) {
	case 0:
		return "", domain.NewNotFoundError("source", name)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %s", domain.ErrAmbiguousSource, name, strings.Join(matches, ", "))
	}
}
