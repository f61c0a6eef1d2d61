package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// rockSelect joins each rock to its type and owner. Column order must match
// scanRock.
const rockSelect = `
	SELECT r.id, r.name, r.weight, r.type_id, r.user_id, r.created_at,
		t.label, u.email, u.first_name, u.last_name
	FROM rocks r
	JOIN types t ON t.id = r.type_id
	JOIN users u ON u.id = r.user_id`

func scanRock(scanner rowScanner) (*domain.Rock, error) {
	var (
		r         domain.Rock
		createdAt string
		typ       domain.Type
		owner     domain.User
	)

	err := scanner.Scan(
		&r.ID,
		&r.Name,
		&r.Weight,
		&r.TypeID,
		&r.UserID,
		&createdAt,
		&typ.Label,
		&owner.Email,
		&owner.FirstName,
		&owner.LastName,
	)
	if err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	typ.ID = r.TypeID
	owner.ID = r.UserID
	r.Type = &typ
	r.Owner = &owner
	return &r, nil
}

func (s *Store) queryRocks(ctx context.Context, query string, args ...any) ([]*domain.Rock, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rocks := []*domain.Rock{}
	for rows.Next() {
		r, err := scanRock(rows)
		if err != nil {
			return nil, err
		}
		rocks = append(rocks, r)
	}
	return rocks, rows.Err()
}

// CreateRock inserts a rock and sets its ID. The referenced type and owner
// are checked in the same transaction so a failed create leaves no row.
func (s *Store) CreateRock(ctx context.Context, rock *domain.Rock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM types WHERE id = ?`, rock.TypeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("check type: %w", err)
	}

	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, rock.UserID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("check owner: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rocks (name, weight, type_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rock.Name, rock.Weight, rock.TypeID, rock.UserID, formatTime(rock.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert rock: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("rock id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	rock.ID = id
	return nil
}

// GetRock retrieves a rock with its type and owner.
func (s *Store) GetRock(ctx context.Context, id int64) (*domain.Rock, error) {
	r, err := scanRock(s.db.QueryRowContext(ctx, rockSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rock: %w", err)
	}
	return r, nil
}

// GetRocksByIDs returns the rocks that exist among ids, in the order given.
func (s *Store) GetRocksByIDs(ctx context.Context, ids []int64) ([]*domain.Rock, error) {
	if len(ids) == 0 {
		return []*domain.Rock{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	found, err := s.queryRocks(ctx, rockSelect+` WHERE r.id IN (`+placeholders[:len(placeholders)-1]+`)`, args...)
	if err != nil {
		return nil, err
	}
	return store.OrderByIDs(found, ids), nil
}

// ListRocks returns rocks matching filter in ascending ID order.
func (s *Store) ListRocks(ctx context.Context, filter domain.RockFilter) ([]*domain.Rock, error) {
	if filter.OwnerID != "" {
		return s.queryRocks(ctx, rockSelect+` WHERE r.user_id = ? ORDER BY r.id ASC`, filter.OwnerID)
	}
	return s.queryRocks(ctx, rockSelect+` ORDER BY r.id ASC`)
}

// DeleteRock removes a rock.
func (s *Store) DeleteRock(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rocks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result, store.ErrRockNotFound)
}
