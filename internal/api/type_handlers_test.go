package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
)

func TestListTypes(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	_, err := ts.services.Type.EnsureDefaults(context.Background())
	require.NoError(t, err)

	resp := ts.api.Get("/types", ada.bearer())
	require.Equal(t, http.StatusOK, resp.Code)

	var types []dto.Type
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &types))

	labels := make([]string, 0, len(types))
	for _, typ := range types {
		labels = append(labels, typ.Label)
	}
	assert.Equal(t, []string{"Igneous", "Sedimentary", "Metamorphic", "Mineral"}, labels)
}

func TestListTypes_Empty(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")

	resp := ts.api.Get("/types", ada.bearer())
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestGetType(t *testing.T) {
	ts := setupTestServer(t, testOptions{})
	ada := ts.register(t, "ada@example.com", "Ada", "Stone")
	igneous := ts.seedType(t, "Igneous")

	resp := ts.api.Get(fmt.Sprintf("/types/%d", igneous.ID), ada.bearer())
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"label":"Igneous"}`, igneous.ID), resp.Body.String())

	for _, path := range []string{"/types/9999", "/types/igneous"} {
		resp := ts.api.Get(path, ada.bearer())
		assert.Equal(t, http.StatusNotFound, resp.Code, path)
		assert.Contains(t, resp.Body.String(), `"code":"NOT_FOUND"`, path)
	}
}

func TestTypes_RequireAuthentication(t *testing.T) {
	ts := setupTestServer(t, testOptions{})

	assert.Equal(t, http.StatusUnauthorized, ts.api.Get("/types").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.api.Get("/types/1").Code)
}
