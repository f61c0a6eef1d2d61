package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/auth"
	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/ratelimit"
	"github.com/clairecatohanson/rock-of-ages-api/internal/search"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/sqlite"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/storetest"
	"github.com/clairecatohanson/rock-of-ages-api/internal/validation"
)

// testServer wraps the API server with the pieces tests poke at directly.
type testServer struct {
	*Server
	api        humatest.TestAPI
	st         *sqlite.Store
	sseManager *sse.Manager
}

type testOptions struct {
	// rockStore replaces the store seen by the rock service only.
	rockStore   func(store.Store) store.Store
	withSearch  bool
	authLimiter *ratelimit.KeyedRateLimiter
}

func setupTestServer(t *testing.T, opts testOptions) *testServer {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	validator := validation.New()
	sseManager := sse.NewManager(nil)

	var (
		index    *search.SearchIndex
		indexer  store.SearchIndexer
		searcher service.RockSearcher
	)
	if opts.withSearch {
		index, err = search.NewSearchIndex(search.Options{DataPath: t.TempDir()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = index.Close() })
		indexer, searcher = index, index
	}

	var rockStore store.Store = st
	if opts.rockStore != nil {
		rockStore = opts.rockStore(st)
	}

	sessions := service.NewSessionService(st, tokens, nil)
	services := &Services{
		Auth: service.NewAuthService(st, tokens, sessions, validator, nil),
		Rock: service.NewRockService(rockStore, indexer, searcher, sseManager, validator, nil),
		Type: service.NewTypeService(st, nil),
	}

	server := NewServer(st, services, sseManager, index, Config{
		Name:        "Rock of Ages API Test",
		Version:     "test",
		AuthLimiter: opts.authLimiter,
	}, nil)

	return &testServer{
		Server:     server,
		api:        humatest.Wrap(t, server.API()),
		st:         st,
		sseManager: sseManager,
	}
}

// testUser is a registered account with a live access token.
type testUser struct {
	*domain.User
	token     string
	sessionID string
	refresh   string
}

func (u testUser) bearer() string {
	return "Authorization: Bearer " + u.token
}

func (ts *testServer) register(t *testing.T, email, first, last string) testUser {
	t.Helper()

	resp := ts.api.Post("/auth/register", map[string]any{
		"email":      email,
		"password":   "correct horse battery",
		"first_name": first,
		"last_name":  last,
	})
	require.Equal(t, http.StatusCreated, resp.Code, "register failed: %s", resp.Body.String())

	var body AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	user, err := ts.st.GetUser(context.Background(), body.User.ID)
	require.NoError(t, err)

	return testUser{
		User:      user,
		token:     body.AccessToken,
		sessionID: body.SessionID,
		refresh:   body.RefreshToken,
	}
}

// failingListStore fails rock listings and nothing else.
type failingListStore struct {
	store.Store
	err error
}

func (s failingListStore) ListRocks(context.Context, domain.RockFilter) ([]*domain.Rock, error) {
	return nil, s.err
}

// failingDeleteStore fails rock deletes and nothing else.
type failingDeleteStore struct {
	store.Store
	err error
}

func (s failingDeleteStore) DeleteRock(context.Context, int64) error {
	return s.err
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, testOptions{withSearch: true})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Components["database"].Status)
	assert.Equal(t, "0 documents indexed", body.Components["search"].Message)
	assert.Equal(t, "0 clients connected", body.Components["sse"].Message)
}

func TestHealthCheck_SearchDisabledIsDegraded(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "degraded", body.Components["search"].Status)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	require.NoError(t, ts.st.Close())

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy", body.Components["database"].Status)
}

func TestRequestID(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	t.Run("generated when absent", func(t *testing.T) {
		resp := ts.api.Get("/health")
		assert.NotEmpty(t, resp.Header().Get(requestIDHeader))
	})

	t.Run("echoes the caller's id", func(t *testing.T) {
		resp := ts.api.Get("/health", requestIDHeader+": trace-123")
		assert.Equal(t, "trace-123", resp.Header().Get(requestIDHeader))
	})
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	resp := ts.api.Get("/health", "Origin: http://localhost:5173")

	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	resp := ts.api.Get("/minerals")

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"NOT_FOUND"`)
}

func TestEvents_RequiresToken(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	resp := ts.api.Get("/events")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Get("/events?token=not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		message    string
		errs       []error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "store not found",
			status:     http.StatusInternalServerError,
			message:    "unexpected error occurred",
			errs:       []error{fmt.Errorf("get: %w", store.ErrTypeNotFound)},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    "type not found",
		},
		{
			name:       "unprocessable becomes bad request",
			status:     http.StatusUnprocessableEntity,
			message:    "validation failed",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
			wantMsg:    "validation failed",
		},
		{
			name:       "plain error keeps status",
			status:     http.StatusInternalServerError,
			message:    "unexpected error occurred",
			errs:       []error{errors.New("disk on fire")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
			wantMsg:    "unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(tt.status, tt.message, tt.errs...)

			apiErr, ok := err.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, apiErr.GetStatus())
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestRockResponseError(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	user := ts.register(t, "a@example.com", "Ada", "Stone")

	// A non-rock error is left for the API error handler.
	plain := errors.New("boom")
	assert.Same(t, plain, rockResponseError(plain, rockErrorJSON))

	_, err := ts.services.Rock.Get(context.Background(), "404", user.User)
	rendered := rockResponseError(err, rockErrorJSON)

	msgErr, ok := rendered.(*messageError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, msgErr.GetStatus())
	assert.Equal(t, service.MsgRockNotFound, msgErr.Message)
}

func (ts *testServer) seedType(t *testing.T, label string) *domain.Type {
	t.Helper()
	return storetest.MustCreateType(t, ts.st, label)
}

func (ts *testServer) seedRock(t *testing.T, name string, weight float64, typ *domain.Type, owner testUser) *domain.Rock {
	t.Helper()
	return storetest.MustCreateRock(t, ts.st, name, weight, typ, owner.User)
}
