// Package apperror maps service and storage errors onto HTTP responses.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"kincore/internal/blob"
	"kincore/internal/core"
	"kincore/internal/export"
	"kincore/pkg/domain"
)

// Error represents an application error with HTTP status and error code
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: e.Message, Internal: err, Details: e.Details}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: message, Internal: e.Internal, Details: e.Details}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: e.Message, Internal: e.Internal, Details: details}
}

// Body is the JSON error envelope.
func (e *Error) Body() map[string]any {
	errBody := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		errBody["details"] = e.Details
	}
	return map[string]any{"error": errBody}
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

// Common error definitions
var (
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Viewer identity required")
	ErrForbidden    = New(http.StatusForbidden, "forbidden", "Access denied")
	ErrNotFound     = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrConflict     = New(http.StatusConflict, "conflict", "Resource already exists")
	ErrBadRequest   = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrValidation   = New(http.StatusUnprocessableEntity, "validation_error", "Validation failed")
	ErrUnsupported  = New(http.StatusNotImplemented, "unsupported", "Operation not supported by the configured backend")
	ErrCanceled     = New(499, "canceled", "Request canceled")
	ErrInternal     = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
)

// NewBadRequest creates a bad request error with a custom message
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewInternal creates an internal error with a message and optional wrapped error
func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}

// From converts an error returned by the service, exporter or blob layer
// into an *Error. Unknown errors become ErrInternal with err attached.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var notFound core.ErrNotFound
	if errors.As(err, &notFound) {
		return NewNotFound(string(notFound.Entity), notFound.ID).WithInternal(err)
	}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		return ErrValidation.WithMessage("Transaction blocked by rules").
			WithDetails(map[string]any{"violations": violationDetails(violation.Result)}).
			WithInternal(err)
	}
	switch {
	case errors.Is(err, core.ErrForbidden), errors.Is(err, export.ErrForbidden):
		return ErrForbidden.WithInternal(err)
	case errors.Is(err, export.ErrInvalidID):
		return NewBadRequest("Owner and root ids must be single path segments").WithInternal(err)
	case errors.Is(err, export.ErrEmptyTree):
		return NewBadRequest("Tree has no visible members to export").WithInternal(err)
	case errors.Is(err, blob.ErrNotFound):
		return ErrNotFound.WithMessage("Export not found").WithInternal(err)
	case errors.Is(err, blob.ErrExists):
		return ErrConflict.WithInternal(err)
	case errors.Is(err, blob.ErrUnsupported):
		return ErrUnsupported.WithInternal(err)
	case errors.Is(err, context.Canceled):
		return ErrCanceled.WithInternal(err)
	}
	return ErrInternal.WithInternal(err)
}

func violationDetails(res domain.Result) []map[string]any {
	out := make([]map[string]any, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, map[string]any{
			"rule":      v.Rule,
			"severity":  string(v.Severity),
			"message":   v.Message,
			"entity":    string(v.Entity),
			"entity_id": v.EntityID,
		})
	}
	return out
}
