package http

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/telemetry"
)

// Response is a standard API response wrapper.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries pagination for list responses.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// JSON sends a JSON response.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// The status line is already written; nothing useful to do on error.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK sends a 200 OK response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Created sends a 201 Created response.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// PaginatedResponse creates a paginated response.
func PaginatedResponse(data interface{}, page, perPage, total int) Response {
	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}

	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

// Paginated sends a paginated response.
func Paginated(w http.ResponseWriter, data interface{}, page, perPage, total int) {
	JSON(w, http.StatusOK, PaginatedResponse(data, page, perPage, total))
}

// Error writes err as a coded error response carrying the request's trace
// id. Server-side failures are logged.
func Error(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	if status := apperrors.HTTPStatus(err); status >= http.StatusInternalServerError {
		telemetry.SetSpanError(r.Context(), err)
		if logger != nil {
			logger.Error("request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"trace_id", telemetry.TraceID(r.Context()),
				"span_id", telemetry.SpanID(r.Context()),
				"error", err.Error(),
			)
		}
	}
	apperrors.WriteError(w, err, telemetry.TraceID(r.Context()))
}
