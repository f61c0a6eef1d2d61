package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
	domainerrors "github.com/clairecatohanson/rock-of-ages-api/internal/errors"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

func (s *Server) registerTypeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTypes",
		Method:      http.MethodGet,
		Path:        "/types",
		Summary:     "List rock types",
		Tags:        []string{"Types"},
		Security:    bearerSecurity,
	}, s.handleListTypes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getType",
		Method:      http.MethodGet,
		Path:        "/types/{id}",
		Summary:     "Get rock type",
		Tags:        []string{"Types"},
		Security:    bearerSecurity,
	}, s.handleGetType)
}

// TypesOutput wraps the type catalogue for Huma.
type TypesOutput struct {
	Body []dto.Type
}

// TypeIDInput identifies a type by path.
type TypeIDInput struct {
	ID string `path:"id" doc:"Type ID"`
}

// TypeOutput wraps a single type for Huma.
type TypeOutput struct {
	Body dto.Type
}

func (s *Server) handleListTypes(ctx context.Context, _ *struct{}) (*TypesOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	types, err := s.services.Type.List(ctx)
	if err != nil {
		return nil, err
	}

	return &TypesOutput{Body: dto.NewTypes(types)}, nil
}

func (s *Server) handleGetType(ctx context.Context, input *TypeIDInput) (*TypeOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	typeID, err := strconv.ParseInt(input.ID, 10, 64)
	if err != nil || typeID <= 0 {
		return nil, domainerrors.NotFound(service.MsgTypeNotFound)
	}

	t, err := s.services.Type.Get(ctx, typeID)
	if err != nil {
		return nil, err
	}

	return &TypeOutput{Body: dto.NewType(t)}, nil
}
