package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// CreateType inserts a type and sets its ID.
func (s *Store) CreateType(ctx context.Context, t *domain.Type) error {
	m := typeModel{Label: t.Label, LabelLower: store.NormalizeLabel(t.Label)}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return mapError(err, store.ErrTypeNotFound, store.ErrTypeExists)
	}
	t.ID = m.ID
	return nil
}

func (s *Store) firstType(ctx context.Context, query string, arg any) (*domain.Type, error) {
	var m typeModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		return nil, mapError(err, store.ErrTypeNotFound, store.ErrTypeExists)
	}
	return m.toDomain(), nil
}

// GetType retrieves a type by ID.
func (s *Store) GetType(ctx context.Context, id int64) (*domain.Type, error) {
	return s.firstType(ctx, "id = ?", id)
}

// GetTypeByLabel retrieves a type by label, ignoring case.
func (s *Store) GetTypeByLabel(ctx context.Context, label string) (*domain.Type, error) {
	return s.firstType(ctx, "label_lower = ?", store.NormalizeLabel(label))
}

// ListTypes returns all types ordered by ID.
func (s *Store) ListTypes(ctx context.Context) ([]*domain.Type, error) {
	var models []typeModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	types := make([]*domain.Type, 0, len(models))
	for i := range models {
		types = append(types, models[i].toDomain())
	}
	return types, nil
}

// CreateRock checks the referenced type and owner and inserts the rock in a
// single transaction, then sets its ID.
func (s *Store) CreateRock(ctx context.Context, rock *domain.Rock) error {
	m := rockModel{
		Name:      rock.Name,
		Weight:    rock.Weight,
		TypeID:    rock.TypeID,
		UserID:    rock.UserID,
		CreatedAt: rock.CreatedAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var typ typeModel
		if err := tx.Select("id").Where("id = ?", rock.TypeID).First(&typ).Error; err != nil {
			return mapError(err, store.ErrTypeNotFound, store.ErrAlreadyExists)
		}
		var owner userModel
		if err := tx.Select("id").Where("id = ?", rock.UserID).First(&owner).Error; err != nil {
			return mapError(err, store.ErrUserNotFound, store.ErrAlreadyExists)
		}
		if err := tx.Omit("Type", "Owner").Create(&m).Error; err != nil {
			return fmt.Errorf("insert rock: %w", mapError(err, store.ErrRockNotFound, store.ErrAlreadyExists))
		}
		return nil
	})
	if err != nil {
		return err
	}

	rock.ID = m.ID
	return nil
}

func (s *Store) rocks(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Type").Preload("Owner")
}

func toDomainRocks(models []rockModel) []*domain.Rock {
	rocks := make([]*domain.Rock, 0, len(models))
	for i := range models {
		rocks = append(rocks, models[i].toDomain())
	}
	return rocks
}

// GetRock retrieves a rock with its type and owner.
func (s *Store) GetRock(ctx context.Context, id int64) (*domain.Rock, error) {
	var m rockModel
	if err := s.rocks(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err, store.ErrRockNotFound, store.ErrAlreadyExists)
	}
	return m.toDomain(), nil
}

// GetRocksByIDs returns the rocks that exist among ids, in the order given.
func (s *Store) GetRocksByIDs(ctx context.Context, ids []int64) ([]*domain.Rock, error) {
	if len(ids) == 0 {
		return []*domain.Rock{}, nil
	}

	var models []rockModel
	if err := s.rocks(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return store.OrderByIDs(toDomainRocks(models), ids), nil
}

// ListRocks returns rocks matching filter in ascending ID order.
func (s *Store) ListRocks(ctx context.Context, filter domain.RockFilter) ([]*domain.Rock, error) {
	q := s.rocks(ctx).Order("id ASC")
	if filter.OwnerID != "" {
		q = q.Where("user_id = ?", filter.OwnerID)
	}

	var models []rockModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return toDomainRocks(models), nil
}

// DeleteRock removes a rock.
func (s *Store) DeleteRock(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&rockModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrRockNotFound
	}
	return nil
}
