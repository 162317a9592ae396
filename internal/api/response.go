package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/inventory"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps an inventory or backend error to a status code.
func writeError(w http.ResponseWriter, err error) {
	var (
		authErr   *inventory.AuthError
		uploadErr *inventory.UploadError
		writeErr  *inventory.WriteError
	)
	switch {
	case errors.As(err, &authErr):
		if authErr.Op == "register" {
			jsonError(w, http.StatusBadRequest, authErr.Error())
			return
		}
		jsonError(w, http.StatusUnauthorized, authErr.Error())
	case errors.Is(err, inventory.ErrNotAuthenticated), errors.Is(err, backend.ErrNotAuthenticated), errors.Is(err, backend.ErrUserNotFound):
		jsonError(w, http.StatusUnauthorized, "not signed in")
	case errors.Is(err, backend.ErrPermissionDenied):
		jsonError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, backend.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrNoEditSession), errors.Is(err, inventory.ErrSaving):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrIndexOutOfRange):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &uploadErr), errors.As(err, &writeErr):
		slog.Warn("backend request failed", "error", err)
		jsonError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
