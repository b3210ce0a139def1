// Package response provides standardized HTTP response structures and
// helpers for the gradekeep server. Successful responses carry a data
// field; failures carry an error field.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error carries an error code, message, and optional details.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) Response {
	return Response{Data: data}
}

// Fail creates an error response.
func Fail(code, message, details string) Response {
	return Response{
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; encoding errors are best effort.
	_ = json.NewEncoder(w).Encode(resp)
}

// OK writes a successful response with 200 status.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Success(data))
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, ""))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		"METHOD_NOT_ALLOWED",
		"Method not allowed",
		"Method "+method+" is not supported for this endpoint",
	))
}

// InternalError writes a 500 error response without exposing the cause.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		"An unexpected error occurred",
	))
}

// FromError maps typed errors to appropriate HTTP responses.
func FromError(w http.ResponseWriter, err error) {
	var (
		validationErr *errors.ValidationError
		columnErr     *errors.ColumnError
		parseErr      *errors.ParseError
	)
	switch {
	case errors.As(err, &validationErr):
		BadRequest(w, validationErr.Error(), "")
	case errors.As(err, &columnErr):
		JSON(w, http.StatusUnprocessableEntity, Fail("COLUMN_NOT_FOUND", columnErr.Error(), ""))
	case errors.As(err, &parseErr):
		BadRequest(w, parseErr.Error(), "")
	case errors.IsNotFound(err):
		NotFound(w, err.Error())
	default:
		InternalError(w, err)
	}
}
