package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	domainerrors "github.com/clairecatohanson/rock-of-ages-api/internal/errors"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// MaxTypeLabelLength bounds a type label.
const MaxTypeLabelLength = 50

// DefaultTypeLabels are seeded on startup.
var DefaultTypeLabels = []string{"Igneous", "Sedimentary", "Metamorphic", "Mineral"}

// TypeService manages the rock type catalogue. Rocks only ever read it.
type TypeService struct {
	store  store.Store
	logger *slog.Logger
}

// NewTypeService creates a new type service.
func NewTypeService(store store.Store, logger *slog.Logger) *TypeService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TypeService{store: store, logger: logger}
}

// NormalizeTypeLabel trims and title-cases a label, so "  igneous" and
// "IGNEOUS" both become "Igneous".
func NormalizeTypeLabel(label string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(label), " "))
}

// EnsureDefaults creates any missing DefaultTypeLabels and reports how many
// were created.
func (s *TypeService) EnsureDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, label := range DefaultTypeLabels {
		_, err := s.store.GetTypeByLabel(ctx, label)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrTypeNotFound) {
			return created, fmt.Errorf("lookup type %q: %w", label, err)
		}

		if err := s.store.CreateType(ctx, &domain.Type{Label: label}); err != nil && !errors.Is(err, store.ErrTypeExists) {
			return created, fmt.Errorf("create type %q: %w", label, err)
		}
		created++
	}

	if created > 0 {
		s.logger.Info("seeded default rock types", "created", created)
	}
	return created, nil
}

// Add creates a type with a normalized label.
func (s *TypeService) Add(ctx context.Context, label string) (*domain.Type, error) {
	label = NormalizeTypeLabel(label)
	switch {
	case label == "":
		return nil, domainerrors.Validation("label must not be blank")
	case len([]rune(label)) > MaxTypeLabelLength:
		return nil, domainerrors.Validationf("label must not exceed %d characters", MaxTypeLabelLength)
	}

	t := &domain.Type{Label: label}
	if err := s.store.CreateType(ctx, t); err != nil {
		if errors.Is(err, store.ErrTypeExists) {
			return nil, domainerrors.AlreadyExists(fmt.Sprintf("type %q already exists", label))
		}
		return nil, fmt.Errorf("create type: %w", err)
	}

	s.logger.Info("rock type added", "type_id", t.ID, "label", t.Label)
	return t, nil
}

// List returns every type ordered by id.
func (s *TypeService) List(ctx context.Context) ([]*domain.Type, error) {
	types, err := s.store.ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	return types, nil
}

// Get returns a type by id.
func (s *TypeService) Get(ctx context.Context, id int64) (*domain.Type, error) {
	t, err := s.store.GetType(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTypeNotFound) {
			return nil, domainerrors.NotFoundf("type %d not found", id)
		}
		return nil, fmt.Errorf("get type: %w", err)
	}
	return t, nil
}
