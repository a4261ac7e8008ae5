package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is a parsed, response-ready error.
type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError converts a lower-layer error into a response code and message.
// Database internals stay hidden; the caller names the resource the request
// was about so not-found and duplicate messages read naturally.
func ParseError(err error, resource string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "an internal error occurred",
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: notFoundMessage(resource),
		}
	}

	errStr := strings.ToLower(err.Error())

	// Postgres unique violation (23505).
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "unique constraint") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: duplicateMessage(resource),
		}
	}

	// Postgres foreign key violation (23503).
	if strings.Contains(errStr, "foreign key constraint") {
		return ErrorInfo{
			Code:    ResourceConflict,
			Message: "the referenced record does not exist",
		}
	}

	// Postgres not-null violation (23502).
	if strings.Contains(errStr, "violates not-null constraint") {
		return ErrorInfo{
			Code:    ValidationInvalidInput,
			Message: "a required field is missing",
		}
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "an upstream service is unreachable, please retry later",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: "an internal error occurred, please retry later",
	}
}

func notFoundMessage(resource string) string {
	if resource == "" {
		return "the requested record was not found"
	}
	return resource + " not found"
}

func duplicateMessage(resource string) string {
	if resource == "" {
		return "the record already exists"
	}
	return resource + " already exists"
}
