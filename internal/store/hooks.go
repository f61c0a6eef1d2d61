package store

import (
	"context"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
)

// EventEmitter broadcasts changes without depending on the SSE package.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// SearchIndexer keeps the search index in sync with rock writes.
type SearchIndexer interface {
	IndexRock(ctx context.Context, rock *domain.Rock) error
	DeleteRock(ctx context.Context, rockID int64) error
}

// NoopSearchIndexer is used when search is disabled.
type NoopSearchIndexer struct{}

// IndexRock is a no-op.
func (NoopSearchIndexer) IndexRock(context.Context, *domain.Rock) error { return nil }

// DeleteRock is a no-op.
func (NoopSearchIndexer) DeleteRock(context.Context, int64) error { return nil }
