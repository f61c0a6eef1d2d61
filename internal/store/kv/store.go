// Package kv implements store.Store on an embedded Badger key-value database.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

const sequenceBandwidth = 100

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Users    *Entity[domain.User]
	Sessions *Entity[domain.Session]
	Types    *Entity[domain.Type]
	Rocks    *Entity[domain.Rock]

	typeSeq *badger.Sequence
	rockSeq *badger.Sequence
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	return open(opts, logger)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if s.typeSeq, err = db.GetSequence([]byte("seq:type"), sequenceBandwidth); err != nil {
		db.Close()
		return nil, fmt.Errorf("type sequence: %w", err)
	}
	if s.rockSeq, err = db.GetSequence([]byte("seq:rock"), sequenceBandwidth); err != nil {
		s.typeSeq.Release() //nolint:errcheck // closing anyway
		db.Close()
		return nil, fmt.Errorf("rock sequence: %w", err)
	}

	s.Users = NewEntity[domain.User](db, "user:", store.ErrUserNotFound).
		WithUniqueIndex("email", store.ErrEmailExists,
			func(u *domain.User) []string { return []string{store.NormalizeEmail(u.Email)} },
			store.NormalizeEmail)

	s.Sessions = NewEntity[domain.Session](db, "session:", store.ErrSessionNotFound).
		WithUniqueIndex("refresh", store.ErrAlreadyExists,
			func(sess *domain.Session) []string { return []string{sess.RefreshTokenHash} },
			nil).
		WithIndex("user", func(sess *domain.Session) []string { return []string{sess.UserID} })

	s.Types = NewEntity[domain.Type](db, "type:", store.ErrTypeNotFound).
		WithUniqueIndex("label", store.ErrTypeExists,
			func(t *domain.Type) []string { return []string{store.NormalizeLabel(t.Label)} },
			store.NormalizeLabel)

	s.Rocks = NewEntity[domain.Rock](db, "rock:", store.ErrRockNotFound).
		WithIndex("user", func(r *domain.Rock) []string { return []string{r.UserID} })

	if logger != nil && !opts.InMemory {
		logger.Info("Badger database opened", "path", opts.Dir)
	}

	return s, nil
}

// Close releases the id sequences and closes the database.
func (s *Store) Close() error {
	return errors.Join(
		s.typeSeq.Release(),
		s.rockSeq.Release(),
		s.db.Close(),
	)
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// Stats counts the records of every entity.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if st.Users, err = s.Users.Count(ctx, txn); err != nil {
			return err
		}
		if st.Sessions, err = s.Sessions.Count(ctx, txn); err != nil {
			return err
		}
		if st.Types, err = s.Types.Count(ctx, txn); err != nil {
			return err
		}
		st.Rocks, err = s.Rocks.Count(ctx, txn)
		return err
	})
	return st, err
}

func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	//nolint:gosec // sequences start at zero and stay far below MaxInt64
	return int64(n) + 1, nil
}

// view runs fn in a read transaction after checking ctx.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction after checking ctx.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// Users

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return s.Users.Create(txn, user.ID, user)
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (u *domain.User, err error) {
	err = s.view(ctx, func(txn *badger.Txn) error {
		u, err = s.Users.Get(txn, id)
		return err
	})
	return u, err
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (u *domain.User, err error) {
	err = s.view(ctx, func(txn *badger.Txn) error {
		u, err = s.Users.GetByIndex(txn, "email", email)
		return err
	})
	return u, err
}

// UpdateUser replaces an existing user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return s.Users.Update(txn, user.ID, user)
	})
}

// ListUsers returns all users, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users := []*domain.User{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		for u, err := range s.Users.List(ctx, txn) {
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortUsers(users)
	return users, nil
}

// Sessions

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := s.Users.Exists(txn, session.UserID); err != nil || !ok {
			if err != nil {
				return err
			}
			return store.ErrUserNotFound
		}
		return s.Sessions.Create(txn, session.ID, session)
	})
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (sess *domain.Session, err error) {
	err = s.view(ctx, func(txn *badger.Txn) error {
		sess, err = s.Sessions.Get(txn, id)
		return err
	})
	return sess, err
}

// GetSessionByRefreshToken finds the unexpired session holding tokenHash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var sess *domain.Session
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		sess, err = s.Sessions.GetByIndex(txn, "refresh", tokenHash)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, store.ErrSessionNotFound
	}
	return sess, nil
}

// UpdateSession replaces an existing session.
func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return s.Sessions.Update(txn, session.ID, session)
	})
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return s.Sessions.Delete(txn, id)
	})
}

// ListUserSessions returns a user's sessions, most recently used first.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	sessions := []*domain.Session{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		for sess, err := range s.Sessions.ListByIndex(ctx, txn, "user", userID) {
			if err != nil {
				return err
			}
			sessions = append(sessions, sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSessionsByLastSeen(sessions)
	return sessions, nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns how many.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	now := time.Now()
	var expired []string

	err := s.view(ctx, func(txn *badger.Txn) error {
		for sess, err := range s.Sessions.List(ctx, txn) {
			if err != nil {
				return err
			}
			if !sess.ExpiresAt.After(now) {
				expired = append(expired, sess.ID)
			}
		}
		return nil
	})
	if err != nil || len(expired) == 0 {
		return 0, err
	}

	deleted := 0
	err = s.update(ctx, func(txn *badger.Txn) error {
		for _, id := range expired {
			err := s.Sessions.Delete(txn, id)
			if errors.Is(err, store.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
