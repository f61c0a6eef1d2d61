// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// Factory opens an empty store. The factory registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Run exercises s against the shared store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("Types", func(t *testing.T) { testTypes(t, newStore(t)) })
	t.Run("Rocks", func(t *testing.T) { testRocks(t, newStore(t)) })
	t.Run("RockRelations", func(t *testing.T) { testRockRelations(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
}

// NewUser returns a user ready to insert.
func NewUser(id, email, first, last string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		FirstName:    first,
		LastName:     last,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MustCreateUser inserts a user and fails the test on error.
func MustCreateUser(t *testing.T, s store.Store, id, first, last string) *domain.User {
	t.Helper()
	u := NewUser(id, id+"@example.com", first, last)
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// MustCreateType inserts a type and fails the test on error.
func MustCreateType(t *testing.T, s store.Store, label string) *domain.Type {
	t.Helper()
	typ := &domain.Type{Label: label}
	require.NoError(t, s.CreateType(context.Background(), typ))
	require.NotZero(t, typ.ID)
	return typ
}

// MustCreateRock inserts a rock and fails the test on error.
func MustCreateRock(t *testing.T, s store.Store, name string, weight float64, typ *domain.Type, owner *domain.User) *domain.Rock {
	t.Helper()
	r := &domain.Rock{Name: name, Weight: weight, TypeID: typ.ID, UserID: owner.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateRock(context.Background(), r))
	require.NotZero(t, r.ID)
	return r
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := NewUser("user-1", "Ada@Example.com", "Ada", "Stone")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada@Example.com", got.Email)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "Stone", got.LastName)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", u.CreatedAt, got.CreatedAt)

	byEmail, err := s.GetUserByEmail(ctx, "  ada@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byEmail.ID)

	dup := NewUser("user-2", "ada@example.com", "Other", "Person")
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrEmailExists)
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrAlreadyExists)

	_, err = s.GetUser(ctx, "user-missing")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got.LastName = "Quarry"
	got.Email = "ada.quarry@example.com"
	got.LastLoginAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.UpdateUser(ctx, got))

	updated, err := s.GetUserByEmail(ctx, "ada.quarry@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Quarry", updated.LastName)
	assert.True(t, got.LastLoginAt.Equal(updated.LastLoginAt))
	_, err = s.GetUserByEmail(ctx, "ada@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	missing := NewUser("user-missing", "x@example.com", "X", "Y")
	assert.ErrorIs(t, s.UpdateUser(ctx, missing), store.ErrUserNotFound)

	MustCreateUser(t, s, "user-3", "Bo", "Basalt")
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func newSession(id, userID, hash string, expires time.Time) *domain.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Session{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: hash,
		ExpiresAt:        expires.UTC().Truncate(time.Millisecond),
		CreatedAt:        now,
		LastSeenAt:       now,
		IPAddress:        "192.0.2.10",
		UserAgent:        "rockhound/1.0",
	}
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	MustCreateUser(t, s, "user-1", "Ada", "Stone")

	live := newSession("session-1", "user-1", "hash-1", time.Now().Add(time.Hour))
	require.NoError(t, s.CreateSession(ctx, live))

	got, err := s.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "192.0.2.10", got.IPAddress)
	assert.Equal(t, "rockhound/1.0", got.UserAgent)
	assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

	byHash, err := s.GetSessionByRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", byHash.ID)

	got.RefreshTokenHash = "hash-2"
	require.NoError(t, s.UpdateSession(ctx, got))
	_, err = s.GetSessionByRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	_, err = s.GetSessionByRefreshToken(ctx, "hash-2")
	require.NoError(t, err)

	expired := newSession("session-2", "user-1", "hash-3", time.Now().Add(-time.Hour))
	require.NoError(t, s.CreateSession(ctx, expired))

	// Expired sessions are not usable for refresh.
	_, err = s.GetSessionByRefreshToken(ctx, "hash-3")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	sessions, err := s.ListUserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	n, err := s.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteSession(ctx, "session-1"))
	_, err = s.GetSession(ctx, "session-1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, "session-1"), store.ErrSessionNotFound)

	sessions, err = s.ListUserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func testTypes(t *testing.T, s store.Store) {
	ctx := context.Background()

	igneous := MustCreateType(t, s, "Igneous")
	sedimentary := MustCreateType(t, s, "Sedimentary")
	assert.Greater(t, sedimentary.ID, igneous.ID)

	got, err := s.GetType(ctx, igneous.ID)
	require.NoError(t, err)
	assert.Equal(t, "Igneous", got.Label)

	byLabel, err := s.GetTypeByLabel(ctx, "igneous")
	require.NoError(t, err)
	assert.Equal(t, igneous.ID, byLabel.ID)

	assert.ErrorIs(t, s.CreateType(ctx, &domain.Type{Label: "IGNEOUS"}), store.ErrTypeExists)

	_, err = s.GetType(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrTypeNotFound)
	_, err = s.GetTypeByLabel(ctx, "Plutonic")
	assert.ErrorIs(t, err, store.ErrTypeNotFound)

	types, err := s.ListTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Igneous", types[0].Label)
	assert.Equal(t, "Sedimentary", types[1].Label)
}

func testRocks(t *testing.T, s store.Store) {
	ctx := context.Background()
	ada := MustCreateUser(t, s, "user-ada", "Ada", "Stone")
	bo := MustCreateUser(t, s, "user-bo", "Bo", "Basalt")
	igneous := MustCreateType(t, s, "Igneous")

	empty, err := s.ListRocks(ctx, domain.RockFilter{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	var ids []int64
	for i, owner := range []*domain.User{ada, bo, ada, bo, ada} {
		r := MustCreateRock(t, s, fmt.Sprintf("Rock %d", i), float64(i)+0.5, igneous, owner)
		ids = append(ids, r.ID)
	}
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1], "ids must increase")
	}

	all, err := s.ListRocks(ctx, domain.RockFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, r := range all {
		assert.Equal(t, ids[i], r.ID, "ascending id order")
	}

	mine, err := s.ListRocks(ctx, domain.RockFilter{OwnerID: ada.ID})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for _, r := range mine {
		assert.Equal(t, ada.ID, r.UserID)
	}
	assert.Equal(t, []int64{ids[0], ids[2], ids[4]}, []int64{mine[0].ID, mine[1].ID, mine[2].ID})

	nobody, err := s.ListRocks(ctx, domain.RockFilter{OwnerID: "user-nobody"})
	require.NoError(t, err)
	assert.Empty(t, nobody)

	byIDs, err := s.GetRocksByIDs(ctx, []int64{ids[3], 9999, ids[1]})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, ids[3], byIDs[0].ID)
	assert.Equal(t, ids[1], byIDs[1].ID)

	require.NoError(t, s.DeleteRock(ctx, ids[0]))
	_, err = s.GetRock(ctx, ids[0])
	assert.ErrorIs(t, err, store.ErrRockNotFound)
	assert.ErrorIs(t, s.DeleteRock(ctx, ids[0]), store.ErrRockNotFound)

	// Ids are never reused.
	next := MustCreateRock(t, s, "Pumice", 0.3, igneous, bo)
	assert.Greater(t, next.ID, ids[4])
}

func testRockRelations(t *testing.T, s store.Store) {
	ctx := context.Background()
	ada := MustCreateUser(t, s, "user-ada", "Ada", "Stone")
	igneous := MustCreateType(t, s, "Igneous")

	created := MustCreateRock(t, s, "Basalt", 12.5, igneous, ada)

	got, err := s.GetRock(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basalt", got.Name)
	assert.InDelta(t, 12.5, got.Weight, 1e-9)
	require.NotNil(t, got.Type)
	assert.Equal(t, igneous.ID, got.Type.ID)
	assert.Equal(t, "Igneous", got.Type.Label)
	require.NotNil(t, got.Owner)
	assert.Equal(t, ada.ID, got.Owner.ID)
	assert.Equal(t, "Ada", got.Owner.FirstName)
	assert.Equal(t, "Stone", got.Owner.LastName)

	listed, err := s.ListRocks(ctx, domain.RockFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Type)
	require.NotNil(t, listed[0].Owner)
	assert.Equal(t, "Igneous", listed[0].Type.Label)
	assert.Equal(t, "Ada", listed[0].Owner.FirstName)

	badType := &domain.Rock{Name: "Ghost", Weight: 1, TypeID: 9999, UserID: ada.ID}
	assert.ErrorIs(t, s.CreateRock(ctx, badType), store.ErrTypeNotFound)

	badOwner := &domain.Rock{Name: "Ghost", Weight: 1, TypeID: igneous.ID, UserID: "user-nobody"}
	assert.ErrorIs(t, s.CreateRock(ctx, badOwner), store.ErrUserNotFound)

	rocks, err := s.ListRocks(ctx, domain.RockFilter{})
	require.NoError(t, err)
	assert.Len(t, rocks, 1, "failed creates must not persist")
}

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{}, stats)

	ada := MustCreateUser(t, s, "user-ada", "Ada", "Stone")
	igneous := MustCreateType(t, s, "Igneous")
	MustCreateRock(t, s, "Basalt", 12.5, igneous, ada)
	MustCreateRock(t, s, "Granite", 3, igneous, ada)
	require.NoError(t, s.CreateSession(ctx, newSession("session-1", ada.ID, "hash-1", time.Now().Add(time.Hour))))

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Users: 1, Sessions: 1, Types: 1, Rocks: 2}, stats)
}
