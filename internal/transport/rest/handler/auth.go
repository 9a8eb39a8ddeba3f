package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alexdean/worst-idea/internal/identity"
)

// AuthHandler handles identity acquisition
type AuthHandler struct {
	provider *identity.Provider
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(provider *identity.Provider) *AuthHandler {
	return &AuthHandler{provider: provider}
}

// Anonymous handles POST /v1/auth/anonymous. This is step one of the player
// login protocol: acquire a principal before attempting to join.
func (h *AuthHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	resp, err := h.provider.SignInAnonymously(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// OperatorLoginRequest is the request body for operator login
type OperatorLoginRequest struct {
	Key string `json:"key"`
}

// Operator handles POST /v1/auth/operator
func (h *AuthHandler) Operator(w http.ResponseWriter, r *http.Request) {
	var req OperatorLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.provider.OperatorLogin(req.Key)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid operator key")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
