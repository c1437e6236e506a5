package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
)

// validate is shared across handlers — validator.New() builds its
// struct-field cache once and is safe for concurrent use.
var validate = validator.New()

// validateStruct runs struct-tag validation on a decoded request body
// and reports the first failing field as a field-level input error
// (spec.md §7's "field-level messages" contract).
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		return apperr.InputField(field, field+" failed validation: "+fe.Tag())
	}
	return apperr.Input("invalid request body")
}

// writeError renders err as the classified JSON envelope (spec.md §7);
// anything that isn't an *apperr.Error falls back to a 500.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal("internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]any{"error": appErr.Message, "field": appErr.Field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
