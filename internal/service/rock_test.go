package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/storetest"
)

type rockFixture struct {
	store    store.Store
	svc      *RockService
	events   *recordingEmitter
	indexer  *recordingIndexer
	igneous  *domain.Type
	ann, bob *domain.User
}

func newRockFixture(t *testing.T, searcher RockSearcher) *rockFixture {
	t.Helper()

	s := newTestStore(t)
	f := &rockFixture{
		store:   s,
		events:  &recordingEmitter{},
		indexer: &recordingIndexer{},
		igneous: storetest.MustCreateType(t, s, "Igneous"),
		ann:     storetest.MustCreateUser(t, s, "user-ann", "Ann", "Smith"),
		bob:     storetest.MustCreateUser(t, s, "user-bob", "Bob", "Jones"),
	}
	f.svc = NewRockService(s, f.indexer, searcher, f.events, testValidator, nil)
	return f
}

func requireKind(t *testing.T, err error, kind RockErrorKind) *RockError {
	t.Helper()
	require.Error(t, err)
	rockErr, ok := AsRockError(err)
	require.True(t, ok, "expected *RockError, got %T: %v", err, err)
	require.Equal(t, kind, rockErr.Kind, "error: %v", err)
	return rockErr
}

func TestRockService_Create(t *testing.T) {
	f := newRockFixture(t, nil)
	ctx := context.Background()

	rock, err := f.svc.Create(ctx, []byte(`{"typeId": 1, "name": "Basalt", "weight": 12.5}`), f.ann)
	require.NoError(t, err)

	assert.NotZero(t, rock.ID)
	assert.Equal(t, "Basalt", rock.Name)
	assert.Equal(t, 12.5, rock.Weight)
	require.NotNil(t, rock.Type)
	assert.Equal(t, "Igneous", rock.Type.Label)
	require.NotNil(t, rock.Owner)
	assert.Equal(t, "Ann", rock.Owner.FirstName)
	assert.Equal(t, "Smith", rock.Owner.LastName)

	stored, err := f.store.GetRock(ctx, rock.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ann.ID, stored.UserID)

	assert.Equal(t, []int64{rock.ID}, f.indexer.indexed)
	assert.Equal(t, []sse.EventType{sse.EventRockCreated}, f.events.types())
}

func TestRockService_CreateAcceptsNumericStrings(t *testing.T) {
	f := newRockFixture(t, nil)

	rock, err := f.svc.Create(context.Background(), []byte(`{"typeId": "1", "name": "Pumice", "weight": "0.25"}`), f.ann)
	require.NoError(t, err)
	assert.Equal(t, f.igneous.ID, rock.TypeID)
	assert.Equal(t, 0.25, rock.Weight)
}

func TestRockService_CreateIndexFailureIsBestEffort(t *testing.T) {
	f := newRockFixture(t, nil)
	f.indexer.err = errors.New("index offline")

	_, err := f.svc.Create(context.Background(), []byte(`{"typeId": 1, "name": "Basalt", "weight": 1}`), f.ann)
	require.NoError(t, err)
}

func TestRockService_CreateFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{"unknown type", `{"typeId": 99, "name": "Basalt", "weight": 1}`, MsgTypeNotFound},
		{"empty body", ``, "request body is required"},
		{"malformed json", `{"typeId": 1,`, "request body must be a JSON object"},
		{"array body", `[1, 2]`, "request body must be a JSON object"},
		{"trailing data", `{"typeId": 1, "name": "Basalt", "weight": 1} {}`, "single JSON object"},
		{"missing type", `{"name": "Basalt", "weight": 1}`, "typeId is required"},
		{"fractional type", `{"typeId": 1.5, "name": "Basalt", "weight": 1}`, "typeId must be an integer"},
		{"non-numeric type", `{"typeId": "igneous", "name": "Basalt", "weight": 1}`, "typeId must be an integer"},
		{"zero type", `{"typeId": 0, "name": "Basalt", "weight": 1}`, "typeId must be greater than 0"},
		{"missing name", `{"typeId": 1, "weight": 1}`, "name is required"},
		{"null name", `{"typeId": 1, "name": null, "weight": 1}`, "name is required"},
		{"numeric name", `{"typeId": 1, "name": 7, "weight": 1}`, "name must be a string"},
		{"blank name", `{"typeId": 1, "name": "   ", "weight": 1}`, "name must not be blank"},
		{"long name", `{"typeId": 1, "name": "` + strings.Repeat("a", 156) + `", "weight": 1}`, "name must not exceed 155 characters"},
		{"missing weight", `{"typeId": 1, "name": "Basalt"}`, "weight is required"},
		{"negative weight", `{"typeId": 1, "name": "Basalt", "weight": -2}`, "weight must be greater than or equal to 0"},
		{"text weight", `{"typeId": 1, "name": "Basalt", "weight": "heavy"}`, "weight must be a number"},
		{"infinite weight", `{"typeId": 1, "name": "Basalt", "weight": "Inf"}`, "weight must be a finite number"},
		{"boolean weight", `{"typeId": 1, "name": "Basalt", "weight": true}`, "weight must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRockFixture(t, nil)
			ctx := context.Background()

			_, err := f.svc.Create(ctx, []byte(tt.body), f.ann)
			rockErr := requireKind(t, err, RockErrInvalid)
			assert.Contains(t, rockErr.Error(), tt.wantReason)

			rocks, err := f.store.ListRocks(ctx, domain.RockFilter{})
			require.NoError(t, err)
			assert.Empty(t, rocks)
			assert.Empty(t, f.events.types())
		})
	}
}

func TestRockService_CreateNameAtLimit(t *testing.T) {
	f := newRockFixture(t, nil)

	name := strings.Repeat("é", domain.MaxRockNameLength)
	rock, err := f.svc.Create(context.Background(), []byte(`{"typeId": 1, "name": "`+name+`", "weight": 0}`), f.ann)
	require.NoError(t, err)
	assert.Equal(t, name, rock.Name)
}

func TestRockService_List(t *testing.T) {
	f := newRockFixture(t, nil)
	ctx := context.Background()

	a1 := storetest.MustCreateRock(t, f.store, "Basalt", 1, f.igneous, f.ann)
	b1 := storetest.MustCreateRock(t, f.store, "Granite", 2, f.igneous, f.bob)
	a2 := storetest.MustCreateRock(t, f.store, "Obsidian", 3, f.igneous, f.ann)

	ids := func(rocks []*domain.Rock) []int64 {
		out := []int64{}
		for _, r := range rocks {
			out = append(out, r.ID)
		}
		return out
	}

	all, err := f.svc.List(ctx, "", f.ann)
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID, b1.ID, a2.ID}, ids(all))

	mine, err := f.svc.List(ctx, "current", f.ann)
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID, a2.ID}, ids(mine))

	for _, owner := range []string{"Current", "me", "user-bob", " current"} {
		rocks, err := f.svc.List(ctx, owner, f.ann)
		require.NoError(t, err)
		assert.Len(t, rocks, 3, owner)
	}

	for _, r := range all {
		require.NotNil(t, r.Type)
		require.NotNil(t, r.Owner)
	}
}

func TestRockService_ListEmpty(t *testing.T) {
	f := newRockFixture(t, nil)

	rocks, err := f.svc.List(context.Background(), "current", f.bob)
	require.NoError(t, err)
	assert.NotNil(t, rocks)
	assert.Empty(t, rocks)
}

func TestRockService_ListStoreFailure(t *testing.T) {
	f := newRockFixture(t, nil)
	require.NoError(t, f.store.Close())

	_, err := f.svc.List(context.Background(), "", f.ann)
	rockErr := requireKind(t, err, RockErrServer)
	assert.NotEmpty(t, rockErr.Error())
}

func TestRockService_Destroy(t *testing.T) {
	f := newRockFixture(t, nil)
	ctx := context.Background()
	rock := storetest.MustCreateRock(t, f.store, "Basalt", 1, f.igneous, f.ann)

	require.NoError(t, f.svc.Destroy(ctx, "1", f.ann))

	_, err := f.svc.Get(ctx, "1", f.ann)
	requireKind(t, err, RockErrNotFound)

	assert.Equal(t, []int64{rock.ID}, f.indexer.deleted)
	assert.Equal(t, []sse.EventType{sse.EventRockDeleted}, f.events.types())
}

func TestRockService_DestroyNotOwner(t *testing.T) {
	f := newRockFixture(t, nil)
	ctx := context.Background()
	storetest.MustCreateRock(t, f.store, "Basalt", 1, f.igneous, f.ann)

	err := f.svc.Destroy(ctx, "1", f.bob)
	rockErr := requireKind(t, err, RockErrForbidden)
	assert.Equal(t, MsgNotOwner, rockErr.Message)

	rock, err := f.svc.Get(ctx, "1", f.bob)
	require.NoError(t, err)
	assert.Equal(t, "Basalt", rock.Name)
	assert.Empty(t, f.indexer.deleted)
	assert.Empty(t, f.events.types())
}

func TestRockService_DestroyMissing(t *testing.T) {
	f := newRockFixture(t, nil)

	for _, id := range []string{"999", "abc", "0", "-1", "1.5", ""} {
		err := f.svc.Destroy(context.Background(), id, f.ann)
		rockErr := requireKind(t, err, RockErrNotFound)
		assert.Equal(t, MsgRockNotFound, rockErr.Message, id)
	}
}

func TestRockService_DestroyStoreFailure(t *testing.T) {
	f := newRockFixture(t, nil)
	storetest.MustCreateRock(t, f.store, "Basalt", 1, f.igneous, f.ann)
	require.NoError(t, f.store.Close())

	err := f.svc.Destroy(context.Background(), "1", f.ann)
	requireKind(t, err, RockErrServer)
}

func TestRockService_SearchUsesIndexOrder(t *testing.T) {
	searcher := &stubSearcher{}
	f := newRockFixture(t, searcher)
	ctx := context.Background()

	r1 := storetest.MustCreateRock(t, f.store, "Basalt", 1, f.igneous, f.ann)
	r2 := storetest.MustCreateRock(t, f.store, "Granite", 2, f.igneous, f.bob)
	searcher.ids = []int64{r2.ID, 404, r1.ID}

	rocks, err := f.svc.Search(ctx, "igneous", "current", 500, f.ann)
	require.NoError(t, err)
	require.Len(t, rocks, 2)
	assert.Equal(t, r2.ID, rocks[0].ID)
	assert.Equal(t, r1.ID, rocks[1].ID)

	assert.Equal(t, "igneous", searcher.last.Query)
	assert.Equal(t, f.ann.ID, searcher.last.OwnerID)
	assert.Equal(t, 100, searcher.last.Limit)

	_, err = f.svc.Search(ctx, "igneous", "", 0, f.ann)
	require.NoError(t, err)
	assert.Empty(t, searcher.last.OwnerID)
	assert.Equal(t, 20, searcher.last.Limit)
}

func TestRockService_SearchBlank(t *testing.T) {
	searcher := &stubSearcher{ids: []int64{1}}
	f := newRockFixture(t, searcher)

	rocks, err := f.svc.Search(context.Background(), "  ", "", 10, f.ann)
	require.NoError(t, err)
	assert.NotNil(t, rocks)
	assert.Empty(t, rocks)
	assert.Empty(t, searcher.last.Query)
}

func TestRockService_SearchFailure(t *testing.T) {
	f := newRockFixture(t, &stubSearcher{err: errors.New("index closed")})

	_, err := f.svc.Search(context.Background(), "basalt", "", 10, f.ann)
	requireKind(t, err, RockErrServer)
}

func TestRockService_SearchScanFallback(t *testing.T) {
	f := newRockFixture(t, nil)
	ctx := context.Background()

	storetest.MustCreateRock(t, f.store, "Basalt", 1, f.igneous, f.ann)
	storetest.MustCreateRock(t, f.store, "Granite", 2, f.igneous, f.bob)

	byName, err := f.svc.Search(ctx, "GRAN", "", 10, f.ann)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Granite", byName[0].Name)

	byOwner, err := f.svc.Search(ctx, "smith", "", 10, f.ann)
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, "Basalt", byOwner[0].Name)

	byType, err := f.svc.Search(ctx, "igneous", "current", 10, f.bob)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "Granite", byType[0].Name)

	limited, err := f.svc.Search(ctx, "igneous", "", 1, f.ann)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestParseRockID(t *testing.T) {
	id, ok := ParseRockID("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "4x", "1e3", " 5"} {
		_, ok := ParseRockID(raw)
		assert.False(t, ok, raw)
	}
}

func TestDecodeCreateRock(t *testing.T) {
	input, err := DecodeCreateRock([]byte(`{"typeId": " 3 ", "name": "Slate", "weight": 1e1, "extra": true}`))
	require.NoError(t, err)
	assert.Equal(t, CreateRockInput{TypeID: 3, Name: "Slate", Weight: 10}, input)

	_, err = DecodeCreateRock([]byte(`null`))
	require.EqualError(t, err, "typeId is required")

	input, err = DecodeCreateRock([]byte(`{"typeId": 2.0, "name": "Slate", "weight": 1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), input.TypeID)

	_, err = DecodeCreateRock([]byte(`{"typeId": 2.5, "name": "Slate", "weight": 1}`))
	require.EqualError(t, err, "typeId must be an integer")
}

func TestDecodeCreateRock_NonObjectBody(t *testing.T) {
	for _, body := range []string{`[]`, `"basalt"`, `12`, `{"typeId": 1,`} {
		_, err := DecodeCreateRock([]byte(body))
		require.EqualError(t, err, "request body must be a JSON object", body)
		assert.NotNil(t, errors.Unwrap(err), "decoder error kept for logging")
	}

	_, err := DecodeCreateRock(nil)
	require.EqualError(t, err, "request body is required")
}

func TestRockErrorKind_String(t *testing.T) {
	assert.Equal(t, "invalid", RockErrInvalid.String())
	assert.Equal(t, "not_found", RockErrNotFound.String())
	assert.Equal(t, "forbidden", RockErrForbidden.String())
	assert.Equal(t, "server", RockErrServer.String())
}
