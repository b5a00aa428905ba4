package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/logging"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusAccepted, map[string]int{"pothole": 3})

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	var got map[string]int
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["pothole"] != 3 {
		t.Errorf("body = %v", got)
	}
}

func TestJSON_NilBody(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, nil)
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestOKAndCreated(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, interface{})
		status int
	}{
		{"ok", OK, http.StatusOK},
		{"created", Created, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, map[string]string{"id": "abc"})

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var resp struct {
				Success bool              `json:"success"`
				Data    map[string]string `json:"data"`
				Meta    *Meta             `json:"meta"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if !resp.Success || resp.Data["id"] != "abc" || resp.Meta != nil {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestPaginatedResponse(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		perPage   int
		total     int
		wantPages int
	}{
		{"exact", 1, 10, 30, 3},
		{"remainder", 2, 10, 31, 4},
		{"single partial page", 1, 50, 7, 1},
		{"empty", 1, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := PaginatedResponse([]string{}, tt.page, tt.perPage, tt.total)
			if resp.Meta.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", resp.Meta.TotalPages, tt.wantPages)
			}
			if resp.Meta.Page != tt.page || resp.Meta.Total != tt.total {
				t.Errorf("unexpected meta %+v", resp.Meta)
			}
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		status   int
		logged   bool
	}{
		{"unknown region", apperrors.UnknownRegion("nc", "99"), apperrors.CodeUnknownRegion, http.StatusNotFound, false},
		{"validation", apperrors.Validation("bad radius"), apperrors.CodeValidation, http.StatusBadRequest, false},
		{"plain error", errors.New("disk on fire"), apperrors.CodeInternal, http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLoggerWithWriter("info", &buf)

			w := httptest.NewRecorder()
			Error(w, httptest.NewRequest("GET", "/v1/boundaries/nc/99", nil), logger, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var resp apperrors.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
			if logged := buf.Len() > 0; logged != tt.logged {
				t.Errorf("logged = %v, want %v", logged, tt.logged)
			}
		})
	}
}
