package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
	domainerrors "github.com/clairecatohanson/rock-of-ages-api/internal/errors"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register new user",
		Description:   "Creates an account and signs it in",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.rateLimitAuth},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns access and refresh tokens",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitAuth},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for new tokens. The old refresh token stops working.",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitAuth},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Summary:       "Logout",
		Description:   "Revokes a session. Without a session_id, the session of the bearer token is revoked.",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleLogout)
}

// === DTOs ===

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email     string `json:"email" doc:"User email address"`
	Password  string `json:"password" doc:"User password, at least 8 characters"`
	FirstName string `json:"first_name" doc:"User first name"`
	LastName  string `json:"last_name" doc:"User last name"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body RegisterRequest
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" doc:"User email"`
	Password string `json:"password" doc:"User password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" doc:"Refresh token"`
}

// RefreshInput wraps the refresh request for Huma.
type RefreshInput struct {
	Body RefreshRequest
}

// LogoutRequest is the request body for logout.
type LogoutRequest struct {
	SessionID string `json:"session_id,omitempty" maxLength:"100" doc:"Session ID to revoke"`
}

// LogoutInput wraps the logout request for Huma.
type LogoutInput struct {
	Body LogoutRequest `required:"false"`
}

// AuthResponse contains the tokens of a new session and its user.
type AuthResponse struct {
	AccessToken  string   `json:"access_token" doc:"PASETO access token"`
	RefreshToken string   `json:"refresh_token" doc:"Opaque refresh token"`
	SessionID    string   `json:"session_id" doc:"Session ID"`
	TokenType    string   `json:"token_type" doc:"Always Bearer"`
	ExpiresIn    int      `json:"expires_in" doc:"Seconds until the access token expires"`
	User         dto.User `json:"user" doc:"Signed-in user"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Register(ctx, service.RegisterRequest{
		Email:     input.Body.Email,
		Password:  input.Body.Password,
		FirstName: input.Body.FirstName,
		LastName:  input.Body.LastName,
		Client:    getClientInfo(ctx),
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: newAuthResponse(resp)}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
		Client:   getClientInfo(ctx),
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: newAuthResponse(resp)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.RefreshTokens(ctx, service.RefreshRequest{
		RefreshToken: input.Body.RefreshToken,
		Client:       getClientInfo(ctx),
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: newAuthResponse(resp)}, nil
}

func (s *Server) handleLogout(ctx context.Context, input *LogoutInput) (*struct{}, error) {
	sessionID := input.Body.SessionID
	if sessionID == "" {
		sessionID = getSessionID(ctx)
	}
	if sessionID == "" {
		return nil, domainerrors.Validation("session_id is required without a bearer token")
	}

	if err := s.services.Auth.Logout(ctx, sessionID); err != nil {
		return nil, err
	}
	return nil, nil
}

func newAuthResponse(resp *service.AuthResponse) AuthResponse {
	return AuthResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		SessionID:    resp.SessionID,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		User:         dto.NewUser(resp.User),
	}
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(contextKeySessionID).(string); ok {
		return sessionID
	}
	return ""
}
