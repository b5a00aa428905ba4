// Package validation validates API input with go-playground/validator and
// the map's custom tags.
package validation

import (
	"encoding/json"
	"math"
	"mime"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/region"
)

// MaxRadiusMiles bounds address circles accepted from clients.
const MaxRadiusMiles = 50

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Use JSON tag names for error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerCustomValidations(validate)
	})

	return validate
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("latitude", validateLatitude)
	v.RegisterValidation("longitude", validateLongitude)
	v.RegisterValidation("radius_miles", validateRadius)
	v.RegisterValidation("region_type", validateRegionType)
	v.RegisterValidation("region_kind", validateRegionKind)
	v.RegisterValidation("uuid4", validateUUID4)
}

// Latitude validates latitude values (-90 to 90).
func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

// Longitude validates longitude values (-180 to 180).
func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

func validateRadius(fl validator.FieldLevel) bool {
	r := fl.Field().Float()
	return r > 0 && r <= MaxRadiusMiles && !math.IsInf(r, 0)
}

func validateRegionType(fl validator.FieldLevel) bool {
	switch region.Type(fl.Field().String()) {
	case region.TypeAddress, region.TypeNC, region.TypeCC:
		return true
	}
	return false
}

func validateRegionKind(fl validator.FieldLevel) bool {
	_, err := region.ParseKind(fl.Field().String())
	return err == nil
}

var uuid4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

func validateUUID4(fl validator.FieldLevel) bool {
	return uuid4Regex.MatchString(fl.Field().String())
}

// Validate validates a struct and returns validation errors.
func Validate(s interface{}) error {
	return GetValidator().Struct(s)
}

// ValidateStruct validates s and converts failures to ValidationErrors.
func ValidateStruct(s interface{}) (ValidationErrors, error) {
	err := Validate(s)
	if err == nil {
		return nil, nil
	}
	return ParseValidationErrors(err), err
}

// ValidateVar validates a single variable.
func ValidateVar(field interface{}, tag string) error {
	return GetValidator().Var(field, tag)
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.Field)
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// AppError converts the failures to a VALIDATION_ERROR keyed by field.
func (ve ValidationErrors) AppError() *apperrors.AppError {
	details := make(map[string]string, len(ve))
	for _, e := range ve {
		details[e.Field] = e.Message
	}
	return apperrors.ValidationWithDetails("request validation failed", details)
}

// ParseValidationErrors converts validator.ValidationErrors to our format.
func ParseValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var validationErrors ValidationErrors
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, e := range ve {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Namespace()[strings.IndexByte(e.Namespace(), '.')+1:],
				Message: getErrorMessage(e),
			})
		}
	}
	return validationErrors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + strings.Replace(e.Param(), " ", " is ", 1)
	case "latitude":
		return "must be a valid latitude (-90 to 90)"
	case "longitude":
		return "must be a valid longitude (-180 to 180)"
	case "radius_miles":
		return "must be a positive radius of at most 50 miles"
	case "region_type":
		return "must be one of: address, nc, cc"
	case "region_kind":
		return "must be one of: nc, cc"
	case "uuid4":
		return "must be a valid UUID v4"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	default:
		return "is invalid"
	}
}

// DecodeAndValidate decodes a JSON body into dst and validates it. On
// failure it writes the error response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			apperrors.WriteError(w, apperrors.UnsupportedMediaType("expected application/json"), "")
			return false
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apperrors.WriteError(w, apperrors.BadRequest("invalid JSON body: "+err.Error()), "")
		return false
	}

	if errs, err := ValidateStruct(dst); err != nil {
		if len(errs) == 0 {
			apperrors.WriteError(w, apperrors.Validation(err.Error()), "")
			return false
		}
		apperrors.WriteError(w, errs.AppError(), "")
		return false
	}
	return true
}

// Validator wraps the go-playground validator for easier use.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{v: GetValidator()}
}

// Struct validates a struct.
func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

// Var validates a single variable.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.v.Var(field, tag)
}
