package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// CreateType inserts a type and sets its ID.
// Returns store.ErrTypeExists if the label is taken, ignoring case.
func (s *Store) CreateType(ctx context.Context, t *domain.Type) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO types (label, label_lower) VALUES (?, ?)`,
		t.Label, store.NormalizeLabel(t.Label))
	if isUniqueViolation(err) {
		return store.ErrTypeExists.WithCause(err)
	}
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("type id: %w", err)
	}
	t.ID = id
	return nil
}

func (s *Store) getTypeWhere(ctx context.Context, where string, arg any) (*domain.Type, error) {
	var t domain.Type
	err := s.db.QueryRowContext(ctx, `SELECT id, label FROM types WHERE `+where, arg).Scan(&t.ID, &t.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan type: %w", err)
	}
	return &t, nil
}

// GetType retrieves a type by ID.
func (s *Store) GetType(ctx context.Context, id int64) (*domain.Type, error) {
	return s.getTypeWhere(ctx, `id = ?`, id)
}

// GetTypeByLabel retrieves a type by label, ignoring case.
func (s *Store) GetTypeByLabel(ctx context.Context, label string) (*domain.Type, error) {
	return s.getTypeWhere(ctx, `label_lower = ?`, store.NormalizeLabel(label))
}

// ListTypes returns all types ordered by ID.
func (s *Store) ListTypes(ctx context.Context) ([]*domain.Type, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label FROM types ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []*domain.Type{}
	for rows.Next() {
		var t domain.Type
		if err := rows.Scan(&t.ID, &t.Label); err != nil {
			return nil, err
		}
		types = append(types, &t)
	}
	return types, rows.Err()
}
