package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"travelsync/internal/repository"
	"travelsync/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error      string `json:"error"`
	ConflictID string `json:"conflict_id,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	var conflict *service.ConflictDetectedError
	if errors.As(err, &conflict) {
		// A queued conflict is a normal outcome; the caller gets the
		// queue entry to resolve.
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), ConflictID: conflict.ConflictID})
		return
	}

	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOwnerID),
		errors.Is(err, service.ErrInvalidClientID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidExpenseID),
		errors.Is(err, service.ErrInvalidConflictID),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrMissingBaseRevision),
		errors.Is(err, service.ErrInvalidResolution),
		errors.Is(err, service.ErrMissingMergedFields),
		errors.Is(err, service.ErrMalformedRecord):
		return http.StatusBadRequest

	// Batch-level rejections
	case errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrBatchTooLarge),
		errors.Is(err, service.ErrConflictAlreadyResolved):
		return http.StatusConflict

	// Ownership violations
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	// Auth failures
	case errors.Is(err, service.ErrInvalidOTP),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized

	// Transient - caller should retry with backoff
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrAggregateCommitFailed):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
