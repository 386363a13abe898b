package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/ayush/expense-tracker/internal/validate"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string                `json:"message"`
	Errors  []validate.FieldError `json:"errors,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Message: msg})
}

// WriteValidation answers 400 with the per-field detail of err when it is a
// validation error, or a plain message otherwise.
func WriteValidation(w http.ResponseWriter, err error) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Errors: verr.Fields})
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error())
}

// WriteInternal answers 500 without leaking detail. Callers log the cause.
func WriteInternal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}

var errInvalidBody = errors.New("invalid request body")

// DecodeJSON reads a JSON request body into v, rejecting unknown trailing data.
// A field of the wrong type comes back as a *validate.Error naming it.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return validate.Fail(typeErr.Field, typeMessage(typeErr.Type))
		}
		return errInvalidBody
	}
	if dec.More() {
		return errInvalidBody
	}
	return nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func typeMessage(t reflect.Type) string {
	if t == nil {
		return "has the wrong type"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == decimalType:
		return "must be a number"
	case t.Kind() == reflect.String:
		return "must be a string"
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Float64:
		return "must be a number"
	}
	return "has the wrong type"
}
