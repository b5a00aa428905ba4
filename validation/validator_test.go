package validation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
)

func TestValidateLatitude(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		wantErr bool
	}{
		{"valid positive", 34.0522, false},
		{"valid negative", -33.8688, false},
		{"zero", 0, false},
		{"max", 90, false},
		{"min", -90, false},
		{"too high", 91, true},
		{"too low", -91, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVar(tt.lat, "latitude")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVar(%v, 'latitude') error = %v, wantErr %v", tt.lat, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLongitude(t *testing.T) {
	tests := []struct {
		name    string
		lng     float64
		wantErr bool
	}{
		{"valid negative", -118.2437, false},
		{"valid positive", 122.4194, false},
		{"zero", 0, false},
		{"max", 180, false},
		{"min", -180, false},
		{"too high", 181, true},
		{"too low", -181, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVar(tt.lng, "longitude")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVar(%v, 'longitude') error = %v, wantErr %v", tt.lng, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRadius(t *testing.T) {
	tests := []struct {
		name    string
		radius  float64
		wantErr bool
	}{
		{"one mile", 1, false},
		{"fraction", 0.25, false},
		{"max", MaxRadiusMiles, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", MaxRadiusMiles + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVar(tt.radius, "radius_miles")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVar(%v, 'radius_miles') error = %v, wantErr %v", tt.radius, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegionType(t *testing.T) {
	tests := []struct {
		name       string
		regionType string
		wantErr    bool
	}{
		{"address", "address", false},
		{"neighborhood council", "nc", false},
		{"council district", "cc", false},
		{"upper case", "NC", true},
		{"invalid", "zip", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVar(tt.regionType, "region_type")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVar(%q, 'region_type') error = %v, wantErr %v", tt.regionType, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegionKind(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		wantErr bool
	}{
		{"nc", "nc", false},
		{"cc", "cc", false},
		{"address is not a boundary kind", "address", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVar(tt.kind, "region_kind")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVar(%q, 'region_kind') error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUUID4(t *testing.T) {
	if err := ValidateVar("3f2b8c1e-6d4a-4b7e-9a21-0c5d7e8f9a10", "uuid4"); err != nil {
		t.Errorf("expected valid uuid4, got %v", err)
	}
	if err := ValidateVar("not-a-uuid", "uuid4"); err == nil {
		t.Error("expected error for invalid uuid4")
	}
}

type circleRequest struct {
	Lat    float64 `json:"lat" validate:"latitude"`
	Lng    float64 `json:"lng" validate:"longitude"`
	Radius float64 `json:"radius_miles" validate:"required,radius_miles"`
	Kind   string  `json:"kind" validate:"omitempty,region_kind"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        circleRequest
		wantErr    bool
		wantFields []string
	}{
		{
			name:    "valid request",
			req:     circleRequest{Lat: 34.05, Lng: -118.24, Radius: 1},
			wantErr: false,
		},
		{
			name:       "invalid latitude",
			req:        circleRequest{Lat: 134.05, Lng: -118.24, Radius: 1},
			wantErr:    true,
			wantFields: []string{"lat"},
		},
		{
			name:       "invalid kind and radius",
			req:        circleRequest{Lat: 34.05, Lng: -118.24, Radius: 100, Kind: "zip"},
			wantErr:    true,
			wantFields: []string{"radius_miles", "kind"},
		},
		{
			name:       "missing radius",
			req:        circleRequest{},
			wantErr:    true,
			wantFields: []string{"radius_miles"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := ValidateStruct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("ValidateStruct() got %d errors, want %d: %v", len(errs), len(tt.wantFields), errs)
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("error %d field = %q, want %q", i, errs[i].Field, field)
				}
			}
		})
	}
}

func TestValidationErrors_AppError(t *testing.T) {
	errs := ValidationErrors{
		{Field: "lat", Message: "must be a valid latitude (-90 to 90)"},
		{Field: "kind", Message: "must be one of: nc, cc"},
	}

	if got := errs.Error(); got != "lat: must be a valid latitude (-90 to 90); kind: must be one of: nc, cc" {
		t.Errorf("Error() = %q", got)
	}

	appErr := errs.AppError()
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("Code = %q, want %q", appErr.Code, apperrors.CodeValidation)
	}
	if appErr.Details["kind"] != "must be one of: nc, cc" {
		t.Errorf("Details = %v", appErr.Details)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantOK      bool
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "valid request",
			body:        `{"lat": 34.05, "lng": -118.24, "radius_miles": 1}`,
			contentType: "application/json",
			wantOK:      true,
		},
		{
			name:        "charset parameter",
			body:        `{"lat": 34.05, "lng": -118.24, "radius_miles": 1}`,
			contentType: "application/json; charset=utf-8",
			wantOK:      true,
		},
		{
			name:        "invalid json",
			body:        `{"lat": invalid}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    apperrors.CodeBadRequest,
		},
		{
			name:        "unknown field",
			body:        `{"lat": 34.05, "lng": -118.24, "radius_miles": 1, "zoom": 3}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    apperrors.CodeBadRequest,
		},
		{
			name:        "validation error",
			body:        `{"lat": 34.05, "lng": -118.24, "radius_miles": -2}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    apperrors.CodeValidation,
		},
		{
			name:        "wrong content type",
			body:        `lat=34.05`,
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    apperrors.CodeUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/circle", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			var got circleRequest
			ok := DecodeAndValidate(w, req, &got)

			if ok != tt.wantOK {
				t.Fatalf("DecodeAndValidate() = %v, want %v", ok, tt.wantOK)
			}
			if ok {
				return
			}
			if w.Code != tt.wantStatus {
				t.Errorf("DecodeAndValidate() status = %v, want %v", w.Code, tt.wantStatus)
			}

			var resp apperrors.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestParseValidationErrors(t *testing.T) {
	type nested struct {
		Center struct {
			Lat float64 `json:"lat" validate:"latitude"`
		} `json:"center"`
	}

	var s nested
	s.Center.Lat = -95
	err := Validate(s)
	if err == nil {
		t.Fatal("expected validation error")
	}

	errs := ParseValidationErrors(err)
	if len(errs) != 1 {
		t.Fatalf("expected one validation error, got %v", errs)
	}
	if errs[0].Field != "center.lat" {
		t.Errorf("Field = %q, want center.lat", errs[0].Field)
	}

	if ParseValidationErrors(nil) != nil {
		t.Error("expected nil for nil error")
	}
}
