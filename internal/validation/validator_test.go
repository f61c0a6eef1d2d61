package validation_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/clairecatohanson/rock-of-ages-api/internal/errors"
	"github.com/clairecatohanson/rock-of-ages-api/internal/validation"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"first_name" validate:"notblank,max=50"`
}

type rockRequest struct {
	Name   string  `json:"name" validate:"notblank,max=155"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(registerRequest{
		Email:    "test@example.com",
		Password: "password123",
		Name:     "Test",
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       registerRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank name",
			req:       registerRequest{Email: "test@example.com", Password: "password123", Name: "   "},
			wantField: "first_name",
			wantMsg:   "must not be blank",
		},
		{
			name:      "invalid email",
			req:       registerRequest{Email: "not-an-email", Password: "password123", Name: "Test"},
			wantField: "email",
			wantMsg:   "must be a valid email address",
		},
		{
			name:      "password too short",
			req:       registerRequest{Email: "test@example.com", Password: "short", Name: "Test"},
			wantField: "password",
			wantMsg:   "must be at least 8 characters",
		},
		{
			name:      "password too long",
			req:       registerRequest{Email: "test@example.com", Password: strings.Repeat("x", 1025), Name: "Test"},
			wantField: "password",
			wantMsg:   "must not exceed 1024 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_NumericMessages(t *testing.T) {
	v := validation.New()

	err := v.Validate(rockRequest{Name: "Basalt", Weight: -1})
	require.Error(t, err)
	assert.Equal(t, "weight must be greater than or equal to 0", validation.Summary(err))
}

func TestSummary_SortsFields(t *testing.T) {
	v := validation.New()

	err := v.Validate(rockRequest{Name: "", Weight: -3})
	require.Error(t, err)
	assert.Equal(t, "name must not be blank; weight must be greater than or equal to 0", validation.Summary(err))
}

func TestSummary_PlainError(t *testing.T) {
	assert.Equal(t, "boom", validation.Summary(errors.New("boom")))
	assert.Equal(t, "nope", validation.Summary(domainerrors.Validation("nope")))
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(registerRequest{Email: "", Password: "password123", Name: "Test"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.True(t, errors.As(err, &domainErr))
	details := domainErr.Details.(map[string]string)
	assert.Contains(t, details, "email")
	assert.NotContains(t, details, "Email")
}
