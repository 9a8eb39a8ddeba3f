package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/alexdean/worst-idea/internal/cache"
	"github.com/alexdean/worst-idea/internal/service"
)

// GameHandler handles the public game read surface
type GameHandler struct {
	gameSvc *service.GameService
	lobby   cache.LobbyCache
	joinURL string
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameSvc *service.GameService, lobby cache.LobbyCache, joinURL string) *GameHandler {
	return &GameHandler{
		gameSvc: gameSvc,
		lobby:   lobby,
		joinURL: joinURL,
	}
}

// List handles GET /v1/games: the lobby. Only games still in the joining
// stage are returned, and the result reads through Redis.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	if games, ok, err := h.lobby.GetOpenGames(r.Context()); err == nil && ok {
		writeJSON(w, http.StatusOK, games)
		return
	} else if err != nil {
		log.Printf("lobby cache read failed: %v", err)
	}

	games, err := h.gameSvc.ListOpenGames(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.lobby.SetOpenGames(r.Context(), games); err != nil {
		log.Printf("lobby cache write failed: %v", err)
	}
	writeJSON(w, http.StatusOK, games)
}

// Get handles GET /v1/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	if game, err := h.lobby.GetGame(r.Context(), gameID); err == nil && game != nil {
		writeJSON(w, http.StatusOK, game)
		return
	}

	game, err := h.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.lobby.SetGame(r.Context(), game); err != nil {
		log.Printf("game cache write failed: %v", err)
	}
	writeJSON(w, http.StatusOK, game)
}

// Questions handles GET /v1/games/{id}/questions
func (h *GameHandler) Questions(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	questions, err := h.gameSvc.GetQuestions(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// JoinQR handles GET /v1/games/{id}/qr: a QR code pointing players at the
// join page, for the projector's joining screen.
func (h *GameHandler) JoinQR(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	if _, err := h.gameSvc.GetGame(r.Context(), gameID); err != nil {
		writeServiceError(w, err)
		return
	}

	png, err := qrcode.Encode(h.joinURL+"/join/"+gameID, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
