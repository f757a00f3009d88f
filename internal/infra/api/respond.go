package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"vip-key-shop/internal/domain"
)

type errorBody struct {
	Status string            `json:"status"`
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCredentialNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCredentialInactive),
		errors.Is(err, domain.ErrCredentialExpired),
		errors.Is(err, domain.ErrCredentialExhausted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		// storage details stay in the logs
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Status: "error", Error: msg, Code: domain.ErrorCode(err)})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body of at most limit bytes into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Error: "invalid JSON body", Code: "VALIDATION_ERROR"})
		return false
	}
	if fields := validationErrors(validate.Struct(dst)); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Error: "invalid request", Code: "VALIDATION_ERROR", Fields: fields})
		return false
	}
	return true
}

func validationErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if err == nil || !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required", "required_without":
			out[fe.Field()] = "this field is required"
		case "min":
			out[fe.Field()] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			out[fe.Field()] = fmt.Sprintf("must be at most %s", fe.Param())
		default:
			out[fe.Field()] = "invalid value"
		}
	}
	return out
}
