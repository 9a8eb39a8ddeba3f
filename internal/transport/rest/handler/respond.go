package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexdean/worst-idea/internal/service"
	"github.com/alexdean/worst-idea/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps store and service failures to HTTP statuses. A rule
// rejection is always permission denied; the caller must treat it as "the
// action did not happen".
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrGameNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGameExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
