package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/store"
)

// PlayerHandler handles the player write surface. Bodies are passed to the
// store as raw documents on purpose: the rule engine is the validator, and it
// must see exactly what the client sent (including a non-integer answer_id).
type PlayerHandler struct {
	docs store.DocumentStore
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(docs store.DocumentStore) *PlayerHandler {
	return &PlayerHandler{docs: docs}
}

// JoinRequest is the request body for joining a game
type JoinRequest struct {
	Name      string `json:"name"`
	ShortCode string `json:"short_code,omitempty"`
}

// Join handles POST /v1/games/{id}/join. The principal comes from the token;
// the player document id is the principal id, which is what makes the
// self-only write rule enforceable.
func (h *PlayerHandler) Join(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	principal := identity.FromContext(r.Context())

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := store.Document{
		"name":      req.Name,
		"is_active": true,
	}
	if req.ShortCode != "" {
		doc["short_code"] = req.ShortCode
	}

	if err := h.docs.Set(r.Context(), store.PlayerRef(gameID, principal.ID), doc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"playerId": principal.ID})
}

// Answer handles PUT /v1/games/{id}/answer. The body's answer_id is forwarded
// untyped so out-of-range and non-integer submissions are rejected by the
// rules, not by JSON decoding.
func (h *PlayerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	principal := identity.FromContext(r.Context())

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := store.Document{"answer_id": body["answer_id"]}
	if err := h.docs.Set(r.Context(), store.PlayerAnswerRef(gameID, principal.ID), doc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answerId": body["answer_id"]})
}
