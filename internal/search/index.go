package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
)

// SearchIndex wraps a Bleve index of rocks.
//
// All methods are safe for concurrent use. Rebuild takes the write lock and
// blocks everything else while the index is swapped.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory holding search.bleve and search.version
	Logger   *slog.Logger // Discards output if nil
}

// mappingVersion must change whenever buildIndexMapping does. An index
// written under another version is dropped and recreated on open.
const mappingVersion = "1"

const batchSize = 500

// NewSearchIndex opens the index under opts.DataPath, creating it if it does
// not exist. An index that is corrupt or has a stale mapping version is
// removed and recreated empty; callers repopulate it with IndexRocks.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	needsRebuild := false

	_, statErr := os.Stat(indexPath)
	indexExists := statErr == nil

	if indexExists {
		existing, err := os.ReadFile(versionPath)
		switch {
		case err != nil:
			logger.Info("search index has no version file, rebuilding", "version", mappingVersion)
			needsRebuild = true
		case string(existing) != mappingVersion:
			logger.Info("search index mapping changed, rebuilding",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if indexExists && !needsRebuild {
		var err error
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexRock adds or replaces a rock's document.
func (s *SearchIndex) IndexRock(_ context.Context, rock *domain.Rock) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := NewRockDocument(rock)
	if err := s.index.Index(doc.ID, doc.ToMap()); err != nil {
		return fmt.Errorf("index rock %d: %w", rock.ID, err)
	}
	return nil
}

// IndexRocks indexes rocks in batches of batchSize.
func (s *SearchIndex) IndexRocks(ctx context.Context, rocks []*domain.Rock) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(rocks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(rocks))

		batch := s.index.NewBatch()
		for _, rock := range rocks[start:end] {
			doc := NewRockDocument(rock)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index rock %d: %w", rock.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DeleteRock removes a rock's document. Deleting an unindexed rock is not
// an error.
func (s *SearchIndex) DeleteRock(_ context.Context, rockID int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.index.Delete(DocID(rockID)); err != nil {
		return fmt.Errorf("delete rock %d: %w", rockID, err)
	}
	return nil
}

// DocumentCount returns the number of indexed rocks.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document by recreating the index with the current
// mapping.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	versionPath := filepath.Join(filepath.Dir(s.path), "search.version")
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
		s.logger.Warn("failed to write search version file", "error", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
