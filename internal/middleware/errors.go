package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
)

// writeAppError renders err as the classified JSON envelope every
// handler in this service uses, falling back to 500 for anything that
// isn't an *apperr.Error.
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal("internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]any{
		"error": appErr.Message,
		"field": appErr.Field,
	})
}
