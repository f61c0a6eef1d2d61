package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

func decodeRocks(t *testing.T, body []byte) []dto.Rock {
	t.Helper()
	var rocks []dto.Rock
	require.NoError(t, json.Unmarshal(body, &rocks))
	return rocks
}

func rockNames(rocks []dto.Rock) []string {
	names := make([]string, 0, len(rocks))
	for _, r := range rocks {
		names = append(names, r.Name)
	}
	return names
}

func TestCreateRock_Basalt(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	igneous := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	resp := ts.api.Post("/rocks", ada.bearer(), map[string]any{
		"typeId": igneous.ID,
		"name":   "Basalt",
		"weight": 12.5,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created dto.Rock
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	assert.JSONEq(t, fmt.Sprintf(`{
		"id": %d,
		"name": "Basalt",
		"weight": 12.5,
		"type": {"label": "Igneous"},
		"user": {"first_name": "Ada", "last_name": "Stone"}
	}`, created.ID), resp.Body.String())
}

func TestCreateRock_AcceptsNumericStrings(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Sedimentary")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	resp := ts.api.Post("/rocks", ada.bearer(), map[string]any{
		"typeId": fmt.Sprint(typ.ID),
		"name":   "Sandstone",
		"weight": "3.25",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created dto.Rock
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, 3.25, created.Weight)
	assert.Equal(t, "Sedimentary", created.Type.Label)
}

func TestCreateRock_Failures(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	tests := []struct {
		name       string
		body       any
		wantReason string
	}{
		{
			name:       "unknown type",
			body:       map[string]any{"typeId": 9999, "name": "Basalt", "weight": 12.5},
			wantReason: service.MsgTypeNotFound,
		},
		{
			name:       "malformed json",
			body:       strings.NewReader(`{"typeId": 1, "name": `),
			wantReason: "request body must be a JSON object",
		},
		{
			name:       "empty body",
			body:       strings.NewReader(""),
			wantReason: "request body is required",
		},
		{
			name:       "array body",
			body:       strings.NewReader(`[]`),
			wantReason: "request body must be a JSON object",
		},
		{
			name:       "missing name",
			body:       map[string]any{"typeId": typ.ID, "weight": 1},
			wantReason: "name is required",
		},
		{
			name:       "blank name",
			body:       map[string]any{"typeId": typ.ID, "name": "   ", "weight": 1},
			wantReason: "name must not be blank",
		},
		{
			name:       "negative weight",
			body:       map[string]any{"typeId": typ.ID, "name": "Basalt", "weight": -1},
			wantReason: "weight must be greater than or equal to 0",
		},
		{
			name:       "non-numeric type id",
			body:       map[string]any{"typeId": "igneous", "name": "Basalt", "weight": 1},
			wantReason: "typeId must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/rocks", ada.bearer(), tt.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Contains(t, body["reason"], tt.wantReason)
			assert.Len(t, body, 1, "only a reason is returned")
		})
	}

	// Nothing was persisted.
	rocks, err := ts.st.ListRocks(context.Background(), domain.RockFilter{})
	require.NoError(t, err)
	assert.Empty(t, rocks)
}

func TestCreateRock_RawRequest(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	igneous := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	for _, contentType := range []string{"", "application/json", "application/json; charset=utf-8"} {
		t.Run("content type "+contentType, func(t *testing.T) {
			body := fmt.Sprintf(`{"typeId":%d,"name":"Basalt","weight":12.5}`, igneous.ID)
			req := httptest.NewRequest(http.MethodPost, "/rocks", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+ada.token)
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			rec := httptest.NewRecorder()

			ts.ServeHTTP(rec, req)

			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var created dto.Rock
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
			assert.Equal(t, "Basalt", created.Name)
			assert.Equal(t, "Igneous", created.Type.Label)
		})
	}

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rocks", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+ada.token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		ts.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"reason":"request body is required"}`, rec.Body.String())
	})
}

func TestRocks_RequireAuthentication(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	for _, resp := range []*httptest.ResponseRecorder{
		ts.api.Get("/rocks"),
		ts.api.Post("/rocks", map[string]any{"typeId": 1, "name": "Basalt", "weight": 1}),
		ts.api.Delete("/rocks/1"),
		ts.api.Get("/rocks/1", "Authorization: Bearer not-a-token"),
	} {
		assert.Equal(t, http.StatusUnauthorized, resp.Code)

		var body APIError
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "UNAUTHORIZED", body.Code)
	}
}

func TestListRocks(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	ben := ts.register(t, "ben@example.com", "Ben", "Quarry")

	ts.seedRock(t, "Basalt", 12.5, typ, ada)
	ts.seedRock(t, "Granite", 40, typ, ben)
	ts.seedRock(t, "Obsidian", 2, typ, ada)

	t.Run("all rocks without owner", func(t *testing.T) {
		resp := ts.api.Get("/rocks", ben.bearer())
		require.Equal(t, http.StatusOK, resp.Code)

		rocks := decodeRocks(t, resp.Body.Bytes())
		assert.Equal(t, []string{"Basalt", "Granite", "Obsidian"}, rockNames(rocks))
	})

	t.Run("only the caller's rocks with owner=current", func(t *testing.T) {
		resp := ts.api.Get("/rocks?owner=current", ada.bearer())
		require.Equal(t, http.StatusOK, resp.Code)

		rocks := decodeRocks(t, resp.Body.Bytes())
		assert.Equal(t, []string{"Basalt", "Obsidian"}, rockNames(rocks))
		for _, r := range rocks {
			assert.Equal(t, dto.RockOwner{FirstName: "Ada", LastName: "Stone"}, r.User)
		}
	})

	t.Run("other owner values list everything", func(t *testing.T) {
		resp := ts.api.Get("/rocks?owner=someone", ada.bearer())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decodeRocks(t, resp.Body.Bytes()), 3)
	})
}

func TestListRocks_EmptyIsArray(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	resp := ts.api.Get("/rocks?owner=current", ada.bearer())
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestListRocks_FailureIsPlainText(t *testing.T) {
	ts := setupTestServer(t, testOptions{
		rockStore: func(s store.Store) store.Store {
			return failingListStore{Store: s, err: errors.New("no such table: rocks")}
		},
	})
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	resp := ts.api.Get("/rocks", ada.bearer())

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, resp.Body.String(), "no such table: rocks")
	assert.False(t, json.Valid(resp.Body.Bytes()), "list failures are not a JSON envelope")
}

func TestGetRock(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Metamorphic")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	rock := ts.seedRock(t, "Marble", 7, typ, ada)

	resp := ts.api.Get(fmt.Sprintf("/rocks/%d", rock.ID), ada.bearer())
	require.Equal(t, http.StatusOK, resp.Code)

	var got dto.Rock
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "Marble", got.Name)
	assert.Equal(t, "Metamorphic", got.Type.Label)

	for _, path := range []string{"/rocks/9999", "/rocks/abc", "/rocks/0", "/rocks/-3"} {
		resp := ts.api.Get(path, ada.bearer())
		assert.Equal(t, http.StatusNotFound, resp.Code, path)
		assert.JSONEq(t, `{"message":"`+service.MsgRockNotFound+`"}`, resp.Body.String(), path)
	}
}

func TestDeleteRock_Owned(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	rock := ts.seedRock(t, "Basalt", 12.5, typ, ada)
	path := fmt.Sprintf("/rocks/%d", rock.ID)

	resp := ts.api.Delete(path, ada.bearer())
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())
	assert.Empty(t, resp.Body.String())

	resp = ts.api.Get(path, ada.bearer())
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteRock_NotOwner(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	ben := ts.register(t, "ben@example.com", "Ben", "Quarry")
	rock := ts.seedRock(t, "Basalt", 12.5, typ, ada)
	path := fmt.Sprintf("/rocks/%d", rock.ID)

	resp := ts.api.Delete(path, ben.bearer())
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.JSONEq(t, `{"message":"You do not own that rock"}`, resp.Body.String())

	resp = ts.api.Get(path, ben.bearer())
	assert.Equal(t, http.StatusOK, resp.Code, "rock must survive a refused delete")
}

func TestDeleteRock_Missing(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	for _, path := range []string{"/rocks/9999", "/rocks/basalt"} {
		resp := ts.api.Delete(path, ada.bearer())
		assert.Equal(t, http.StatusNotFound, resp.Code, path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.NotEmpty(t, body["message"])
	}
}

func TestDeleteRock_StoreFailure(t *testing.T) {
	ts := setupTestServer(t, testOptions{
		rockStore: func(s store.Store) store.Store {
			return failingDeleteStore{Store: s, err: errors.New("database is locked")}
		},
	})
	typ := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	rock := ts.seedRock(t, "Basalt", 12.5, typ, ada)

	resp := ts.api.Delete(fmt.Sprintf("/rocks/%d", rock.ID), ada.bearer())
	require.Equal(t, http.StatusInternalServerError, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "database is locked")
}

func TestSearchRocks(t *testing.T) {
	ts := setupTestServer(t, testOptions{withSearch: true})
	igneous := ts.seedType(t, "Igneous")
	sedimentary := ts.seedType(t, "Sedimentary")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	ben := ts.register(t, "ben@example.com", "Ben", "Quarry")

	// Created through the API so the index is kept in sync.
	create := func(user testUser, typeID int64, name string) {
		resp := ts.api.Post("/rocks", user.bearer(), map[string]any{"typeId": typeID, "name": name, "weight": 1})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}
	create(ada, igneous.ID, "Basalt")
	create(ben, igneous.ID, "Basalt Column")
	create(ada, sedimentary.ID, "Limestone")

	t.Run("matches names", func(t *testing.T) {
		resp := ts.api.Get("/rocks/search?q=basalt", ada.bearer())
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.ElementsMatch(t, []string{"Basalt", "Basalt Column"}, rockNames(decodeRocks(t, resp.Body.Bytes())))
	})

	t.Run("matches type labels", func(t *testing.T) {
		resp := ts.api.Get("/rocks/search?q=sedimentary", ada.bearer())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"Limestone"}, rockNames(decodeRocks(t, resp.Body.Bytes())))
	})

	t.Run("owner=current", func(t *testing.T) {
		resp := ts.api.Get("/rocks/search?q=basalt&owner=current", ben.bearer())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"Basalt Column"}, rockNames(decodeRocks(t, resp.Body.Bytes())))
	})

	t.Run("limit", func(t *testing.T) {
		resp := ts.api.Get("/rocks/search?q=basalt&limit=1", ada.bearer())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decodeRocks(t, resp.Body.Bytes()), 1)
	})

	t.Run("blank query", func(t *testing.T) {
		resp := ts.api.Get("/rocks/search?q=", ada.bearer())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `[]`, resp.Body.String())
	})

	t.Run("deleted rocks leave the index", func(t *testing.T) {
		resp := ts.api.Get("/rocks/search?q=limestone", ada.bearer())
		rocks := decodeRocks(t, resp.Body.Bytes())
		require.Len(t, rocks, 1)

		resp = ts.api.Delete(fmt.Sprintf("/rocks/%d", rocks[0].ID), ada.bearer())
		require.Equal(t, http.StatusNoContent, resp.Code)

		resp = ts.api.Get("/rocks/search?q=limestone", ada.bearer())
		assert.JSONEq(t, `[]`, resp.Body.String())
	})
}

func TestCreateRock_EmitsEvent(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	typ := ts.seedType(t, "Igneous")
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	ctx, cancel := context.WithCancel(context.Background())
	ts.sseManager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = ts.sseManager.Shutdown(context.Background())
	})

	client, err := ts.sseManager.Connect(ada.ID)
	require.NoError(t, err)

	resp := ts.api.Post("/rocks", ada.bearer(), map[string]any{"typeId": typ.ID, "name": "Basalt", "weight": 12.5})
	require.Equal(t, http.StatusCreated, resp.Code)

	select {
	case evt := <-client.EventChan:
		require.Equal(t, sse.EventRockCreated, evt.Type)
		data, ok := evt.Data.(sse.RockEventData)
		require.True(t, ok)
		assert.Equal(t, "Basalt", data.Rock.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no rock.created event")
	}
}
