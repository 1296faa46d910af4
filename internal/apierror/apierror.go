// Package apierror provides the error envelopes written to HTTP clients.
// Domain errors are mapped here so internal details (SQL errors, stack
// traces) never reach a response body.
package apierror

import (
	"errors"
	"net/http"

	"stockreserve/internal/model"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func NewWithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{model.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{model.ErrReservationNotFound, http.StatusNotFound, "reservation_not_found"},
	{model.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{model.ErrReservationCannotBeCancelled, http.StatusConflict, "reservation_cannot_be_cancelled"},
	{model.ErrInvalidReservationState, http.StatusConflict, "invalid_reservation_state"},
	{model.ErrInvalidQuantity, http.StatusUnprocessableEntity, "invalid_quantity"},
	{model.ErrEmptyOrder, http.StatusBadRequest, "empty_order"},
}

// FromDomain maps an engine error to its HTTP status and envelope.
// Unknown errors become a generic 500.
func FromDomain(err error) (int, *APIError) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.status, NewWithCode(d.code, err.Error())
		}
	}
	return http.StatusInternalServerError, NewWithCode("internal", "internal server error")
}
