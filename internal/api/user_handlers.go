package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Users"},
		Security:    bearerSecurity,
	}, s.handleGetCurrentUser)
}

// UserOutput wraps a user for Huma.
type UserOutput struct {
	Body dto.User
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: dto.NewUser(user)}, nil
}
