package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/clairecatohanson/rock-of-ages-api/internal/errors"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

const plainTextContentType = "text/plain"

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this before creating the huma.API.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	var details map[string]string

	for _, err := range errs {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return &APIError{
				status:  domainErr.HTTPStatus(),
				Code:    string(domainErr.Code),
				Message: domainErr.Message,
				Details: domainErr.Details,
			}
		}

		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return &APIError{
				status:  storeErr.HTTPCode(),
				Code:    string(domainerrors.CodeForStatus(storeErr.HTTPCode())),
				Message: storeErr.Message,
			}
		}

		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			if details == nil {
				details = make(map[string]string)
			}
			details[detail.Location] = detail.Message
		}
	}

	// Input validation failures are 400 across the API, whoever caught them.
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	apiErr := &APIError{
		status:  status,
		Code:    string(domainerrors.CodeForStatus(status)),
		Message: message,
	}
	if details != nil {
		apiErr.Details = details
	}
	return apiErr
}

// reasonError renders a failed rock create as {"reason": ...}.
type reasonError struct {
	status int
	Reason string `json:"reason" doc:"Why the rock could not be created"`
}

func (e *reasonError) Error() string             { return e.Reason }
func (e *reasonError) GetStatus() int            { return e.status }
func (e *reasonError) ContentType(string) string { return "application/json" }

// messageError renders rock lookups and deletes as {"message": ...}.
type messageError struct {
	status  int
	Message string `json:"message" doc:"What went wrong"`
}

func (e *messageError) Error() string             { return e.Message }
func (e *messageError) GetStatus() int            { return e.status }
func (e *messageError) ContentType(string) string { return "application/json" }

// plainTextError is written as the raw error text with a text/plain body.
type plainTextError struct {
	status int
	text   string
}

func (e *plainTextError) Error() string             { return e.text }
func (e *plainTextError) GetStatus() int            { return e.status }
func (e *plainTextError) ContentType(string) string { return plainTextContentType }

// rockErrorStyle selects how a RockError server failure is written.
type rockErrorStyle int

const (
	rockErrorJSON rockErrorStyle = iota
	rockErrorPlainText
)

// rockResponseError converts a RockService error into its HTTP rendering.
// Errors that are not RockErrors fall through to the API error handler.
func rockResponseError(err error, style rockErrorStyle) error {
	rockErr, ok := service.AsRockError(err)
	if !ok {
		return err
	}

	switch rockErr.Kind {
	case service.RockErrInvalid:
		return &reasonError{status: http.StatusBadRequest, Reason: rockErr.Error()}
	case service.RockErrNotFound:
		return &messageError{status: http.StatusNotFound, Message: rockErr.Error()}
	case service.RockErrForbidden:
		return &messageError{status: http.StatusForbidden, Message: rockErr.Error()}
	}

	if style == rockErrorPlainText {
		return &plainTextError{status: http.StatusInternalServerError, text: rockErr.Error()}
	}
	return &messageError{status: http.StatusInternalServerError, Message: rockErr.Error()}
}
