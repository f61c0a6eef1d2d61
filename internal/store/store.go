// Package store defines the persistence interface for the Rock of Ages API.
// Backends live in the sqlite, kv and mysql subpackages.
package store

import (
	"context"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
)

// Store defines the interface for all persistence operations.
//
// Rock reads always resolve Rock.Type and Rock.Owner. Rock listings are
// ordered by ascending id.
type Store interface {
	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Stats(ctx context.Context) (Stats, error)

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Auth sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Rock types
	CreateType(ctx context.Context, t *domain.Type) error
	GetType(ctx context.Context, id int64) (*domain.Type, error)
	GetTypeByLabel(ctx context.Context, label string) (*domain.Type, error)
	ListTypes(ctx context.Context) ([]*domain.Type, error)

	// Rocks
	CreateRock(ctx context.Context, rock *domain.Rock) error
	GetRock(ctx context.Context, id int64) (*domain.Rock, error)
	GetRocksByIDs(ctx context.Context, ids []int64) ([]*domain.Rock, error)
	ListRocks(ctx context.Context, filter domain.RockFilter) ([]*domain.Rock, error)
	DeleteRock(ctx context.Context, id int64) error
}

// Stats holds record counts for health reporting and the admin CLI.
type Stats struct {
	Users    int `json:"users"`
	Sessions int `json:"sessions"`
	Types    int `json:"types"`
	Rocks    int `json:"rocks"`
}

// NormalizeEmail is the case-insensitive form emails are unique under.
func NormalizeEmail(email string) string {
	return lower(email)
}

// NormalizeLabel is the case-insensitive form type labels are unique under.
func NormalizeLabel(label string) string {
	return lower(label)
}

// OrderByIDs arranges rocks in the order of ids, dropping ids with no rock.
func OrderByIDs(rocks []*domain.Rock, ids []int64) []*domain.Rock {
	byID := make(map[int64]*domain.Rock, len(rocks))
	for _, r := range rocks {
		byID[r.ID] = r
	}

	ordered := make([]*domain.Rock, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
			delete(byID, id)
		}
	}
	return ordered
}
