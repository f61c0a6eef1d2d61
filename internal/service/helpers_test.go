package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/auth"
	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/search"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/sqlite"
	"github.com/clairecatohanson/rock-of-ages-api/internal/validation"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return tokens
}

// recordingEmitter captures emitted SSE events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (e *recordingEmitter) Emit(event any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt, ok := event.(sse.Event); ok {
		e.events = append(e.events, evt)
	}
}

func (e *recordingEmitter) types() []sse.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sse.EventType, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Type)
	}
	return out
}

// recordingIndexer tracks index writes.
type recordingIndexer struct {
	indexed []int64
	deleted []int64
	err     error
}

func (r *recordingIndexer) IndexRock(_ context.Context, rock *domain.Rock) error {
	r.indexed = append(r.indexed, rock.ID)
	return r.err
}

func (r *recordingIndexer) DeleteRock(_ context.Context, rockID int64) error {
	r.deleted = append(r.deleted, rockID)
	return r.err
}

// stubSearcher returns fixed ids and records its last params.
type stubSearcher struct {
	ids  []int64
	err  error
	last search.SearchParams
}

func (s *stubSearcher) Search(_ context.Context, params search.SearchParams) ([]int64, error) {
	s.last = params
	return s.ids, s.err
}

var testValidator = validation.New()
