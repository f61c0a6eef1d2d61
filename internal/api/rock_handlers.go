package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
)

func (s *Server) registerRockRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:      "createRock",
		Method:           http.MethodPost,
		Path:             "/rocks",
		Summary:          "Create rock",
		Description:      "Records a rock owned by the current user. Any failure, including an unknown type, is a 400 with a reason.",
		Tags:             []string{"Rocks"},
		Security:         bearerSecurity,
		DefaultStatus:    http.StatusCreated,
		SkipValidateBody: true, // decoded and validated by the rock service
	}, s.handleCreateRock)
	// An empty body reaches the service and gets a reason like any other failure.
	s.api.OpenAPI().Paths["/rocks"].Post.RequestBody.Required = false

	huma.Register(s.api, huma.Operation{
		OperationID: "listRocks",
		Method:      http.MethodGet,
		Path:        "/rocks",
		Summary:     "List rocks",
		Description: "Returns every rock, or only the caller's rocks with owner=current. A failure is a text/plain 500.",
		Tags:        []string{"Rocks"},
		Security:    bearerSecurity,
	}, s.handleListRocks)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchRocks",
		Method:      http.MethodGet,
		Path:        "/rocks/search",
		Summary:     "Search rocks",
		Description: "Full-text search over rock names, type labels and owner names",
		Tags:        []string{"Rocks"},
		Security:    bearerSecurity,
	}, s.handleSearchRocks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRock",
		Method:      http.MethodGet,
		Path:        "/rocks/{id}",
		Summary:     "Get rock",
		Tags:        []string{"Rocks"},
		Security:    bearerSecurity,
	}, s.handleGetRock)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteRock",
		Method:        http.MethodDelete,
		Path:          "/rocks/{id}",
		Summary:       "Delete rock",
		Description:   "Deletes a rock. Only its owner may delete it.",
		Tags:          []string{"Rocks"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteRock)
}

// === DTOs ===

// CreateRockInput carries the raw create body so that every decoding
// problem is reported by the rock service as a reason.
type CreateRockInput struct {
	RawBody []byte `contentType:"application/json"`
}

// RockOutput wraps a single rock for Huma.
type RockOutput struct {
	Body dto.Rock
}

// ListRocksInput contains parameters for listing rocks.
type ListRocksInput struct {
	Owner string `query:"owner" doc:"Set to 'current' to list only your rocks"`
}

// RocksOutput wraps a list of rocks for Huma.
type RocksOutput struct {
	Body []dto.Rock
}

// SearchRocksInput contains parameters for searching rocks.
type SearchRocksInput struct {
	Query string `query:"q" doc:"Search text"`
	Owner string `query:"owner" doc:"Set to 'current' to search only your rocks"`
	Limit int    `query:"limit" minimum:"0" doc:"Maximum results (default 20, at most 100)"`
}

// RockIDInput identifies a rock by path.
type RockIDInput struct {
	ID string `path:"id" doc:"Rock ID"`
}

// === Handlers ===

func (s *Server) handleCreateRock(ctx context.Context, input *CreateRockInput) (*RockOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	rock, err := s.services.Rock.Create(ctx, input.RawBody, user)
	if err != nil {
		return nil, rockResponseError(err, rockErrorJSON)
	}

	return &RockOutput{Body: dto.NewRock(rock)}, nil
}

func (s *Server) handleListRocks(ctx context.Context, input *ListRocksInput) (*RocksOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	rocks, err := s.services.Rock.List(ctx, input.Owner, user)
	if err != nil {
		return nil, rockResponseError(err, rockErrorPlainText)
	}

	return &RocksOutput{Body: dto.NewRocks(rocks)}, nil
}

func (s *Server) handleSearchRocks(ctx context.Context, input *SearchRocksInput) (*RocksOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	rocks, err := s.services.Rock.Search(ctx, input.Query, input.Owner, input.Limit, user)
	if err != nil {
		return nil, rockResponseError(err, rockErrorJSON)
	}

	return &RocksOutput{Body: dto.NewRocks(rocks)}, nil
}

func (s *Server) handleGetRock(ctx context.Context, input *RockIDInput) (*RockOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	rock, err := s.services.Rock.Get(ctx, input.ID, user)
	if err != nil {
		return nil, rockResponseError(err, rockErrorJSON)
	}

	return &RockOutput{Body: dto.NewRock(rock)}, nil
}

func (s *Server) handleDeleteRock(ctx context.Context, input *RockIDInput) (*struct{}, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Rock.Destroy(ctx, input.ID, user); err != nil {
		return nil, rockResponseError(err, rockErrorJSON)
	}

	return nil, nil
}
