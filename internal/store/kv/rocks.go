package kv

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// CreateType inserts a type and sets its ID.
func (s *Store) CreateType(ctx context.Context, t *domain.Type) error {
	id, err := nextID(s.typeSeq)
	if err != nil {
		return err
	}

	record := domain.Type{ID: id, Label: t.Label}
	err = s.update(ctx, func(txn *badger.Txn) error {
		return s.Types.Create(txn, FormatID(id), &record)
	})
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetType retrieves a type by ID.
func (s *Store) GetType(ctx context.Context, id int64) (t *domain.Type, err error) {
	err = s.view(ctx, func(txn *badger.Txn) error {
		t, err = s.Types.Get(txn, FormatID(id))
		return err
	})
	return t, err
}

// GetTypeByLabel retrieves a type by label, ignoring case.
func (s *Store) GetTypeByLabel(ctx context.Context, label string) (t *domain.Type, err error) {
	err = s.view(ctx, func(txn *badger.Txn) error {
		t, err = s.Types.GetByIndex(txn, "label", label)
		return err
	})
	return t, err
}

// ListTypes returns all types ordered by ID.
func (s *Store) ListTypes(ctx context.Context) ([]*domain.Type, error) {
	types := []*domain.Type{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		for t, err := range s.Types.List(ctx, txn) {
			if err != nil {
				return err
			}
			types = append(types, t)
		}
		return nil
	})
	return types, err
}

// CreateRock checks the referenced type and owner and inserts the rock in a
// single transaction, then sets its ID.
func (s *Store) CreateRock(ctx context.Context, rock *domain.Rock) error {
	id, err := nextID(s.rockSeq)
	if err != nil {
		return err
	}

	record := domain.Rock{
		ID:        id,
		Name:      rock.Name,
		Weight:    rock.Weight,
		TypeID:    rock.TypeID,
		UserID:    rock.UserID,
		CreatedAt: rock.CreatedAt,
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		if _, err := s.Types.Get(txn, FormatID(rock.TypeID)); err != nil {
			return err
		}
		if _, err := s.Users.Get(txn, rock.UserID); err != nil {
			return err
		}
		return s.Rocks.Create(txn, FormatID(id), &record)
	})
	if err != nil {
		return err
	}
	rock.ID = id
	return nil
}

// resolve fills in the rock's type and owner from the same transaction.
func (s *Store) resolve(txn *badger.Txn, r *domain.Rock) error {
	typ, err := s.Types.Get(txn, FormatID(r.TypeID))
	if err != nil {
		return err
	}
	owner, err := s.Users.Get(txn, r.UserID)
	if err != nil {
		return err
	}

	r.Type = typ
	r.Owner = &domain.User{
		ID:        owner.ID,
		Email:     owner.Email,
		FirstName: owner.FirstName,
		LastName:  owner.LastName,
	}
	return nil
}

// GetRock retrieves a rock with its type and owner.
func (s *Store) GetRock(ctx context.Context, id int64) (r *domain.Rock, err error) {
	err = s.view(ctx, func(txn *badger.Txn) error {
		if r, err = s.Rocks.Get(txn, FormatID(id)); err != nil {
			return err
		}
		return s.resolve(txn, r)
	})
	return r, err
}

// GetRocksByIDs returns the rocks that exist among ids, in the order given.
func (s *Store) GetRocksByIDs(ctx context.Context, ids []int64) ([]*domain.Rock, error) {
	rocks := make([]*domain.Rock, 0, len(ids))
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, id := range ids {
			r, err := s.Rocks.Get(txn, FormatID(id))
			if errors.Is(err, store.ErrRockNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := s.resolve(txn, r); err != nil {
				return err
			}
			rocks = append(rocks, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.OrderByIDs(rocks, ids), nil
}

// ListRocks returns rocks matching filter in ascending ID order.
func (s *Store) ListRocks(ctx context.Context, filter domain.RockFilter) ([]*domain.Rock, error) {
	rocks := []*domain.Rock{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		seq := s.Rocks.List(ctx, txn)
		if filter.OwnerID != "" {
			seq = s.Rocks.ListByIndex(ctx, txn, "user", filter.OwnerID)
		}

		for r, err := range seq {
			if err != nil {
				return err
			}
			if err := s.resolve(txn, r); err != nil {
				return err
			}
			rocks = append(rocks, r)
		}
		return nil
	})
	return rocks, err
}

// DeleteRock removes a rock.
func (s *Store) DeleteRock(ctx context.Context, id int64) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return s.Rocks.Delete(txn, FormatID(id))
	})
}

func sortUsers(users []*domain.User) {
	slices.SortStableFunc(users, func(a, b *domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortSessionsByLastSeen(sessions []*domain.Session) {
	slices.SortStableFunc(sessions, func(a, b *domain.Session) int {
		return b.LastSeenAt.Compare(a.LastSeenAt)
	})
}
