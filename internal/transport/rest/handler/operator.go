package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/service"
)

// OperatorHandler handles the trusted-operator write surface
type OperatorHandler struct {
	gameSvc *service.GameService
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(gameSvc *service.GameService) *OperatorHandler {
	return &OperatorHandler{gameSvc: gameSvc}
}

// CreateGameRequest is the request body for creating a game
type CreateGameRequest struct {
	Title string `json:"title"`
}

// CreateGame handles POST /v1/games
func (h *OperatorHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	game, err := h.gameSvc.CreateGame(r.Context(), req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// AddQuestion handles POST /v1/games/{id}/questions
func (h *OperatorHandler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var q model.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(q.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "a question needs at least one answer option")
		return
	}

	if err := h.gameSvc.AddQuestion(r.Context(), gameID, q); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// StageRequest is the request body for a stage transition
type StageRequest struct {
	Stage string `json:"stage"`
}

// AdvanceStage handles POST /v1/games/{id}/stage
func (h *OperatorHandler) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var req StageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next := model.Stage(req.Stage)
	if !next.Valid() {
		writeError(w, http.StatusBadRequest, "unknown stage")
		return
	}

	if err := h.gameSvc.AdvanceStage(r.Context(), gameID, next); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": req.Stage})
}

// OpenQuestion handles POST /v1/games/{id}/questions/{qid}/open
func (h *OperatorHandler) OpenQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.gameSvc.OpenQuestion(r.Context(), vars["id"], vars["qid"]); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": model.StageQuestionOpen.String()})
}

// CloseQuestion handles POST /v1/games/{id}/close
func (h *OperatorHandler) CloseQuestion(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	if err := h.gameSvc.CloseQuestion(r.Context(), gameID); err != nil {
		writeServiceError(w, err)
		return
	}

	// Freeze the summary alongside the stage so the results screen shows the
	// final counts.
	if _, err := h.gameSvc.RecomputeSummary(r.Context(), gameID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": model.StageQuestionClosed.String()})
}

// ShowResults handles POST /v1/games/{id}/results
func (h *OperatorHandler) ShowResults(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	if err := h.gameSvc.ShowResults(r.Context(), gameID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": model.StageQuestionResults.String()})
}

// Finish handles POST /v1/games/{id}/finish
func (h *OperatorHandler) Finish(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	if err := h.gameSvc.FinishGame(r.Context(), gameID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": model.StageFinished.String()})
}

// LeaderRequest is the request body for setting the round leader
type LeaderRequest struct {
	PlayerID string `json:"player_id"`
}

// SetLeader handles POST /v1/games/{id}/leader
func (h *OperatorHandler) SetLeader(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var req LeaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.gameSvc.SetLeader(r.Context(), gameID, req.PlayerID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"leaderPlayerId": req.PlayerID})
}

// EliminateRequest is the request body for an elimination round. When
// SurviveAnswerID is nil the leader's committed answer decides.
type EliminateRequest struct {
	SurviveAnswerID *int `json:"survive_answer_id,omitempty"`
}

// Eliminate handles POST /v1/games/{id}/eliminate
func (h *OperatorHandler) Eliminate(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var req EliminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var eliminated int
	var err error
	if req.SurviveAnswerID != nil {
		eliminated, err = h.gameSvc.EliminateByAnswer(r.Context(), gameID, *req.SurviveAnswerID)
	} else {
		eliminated, err = h.gameSvc.EliminateByLeaderAnswer(r.Context(), gameID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"eliminated": eliminated})
}

// RecomputeSummary handles POST /v1/games/{id}/summary/recompute
func (h *OperatorHandler) RecomputeSummary(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	summary, err := h.gameSvc.RecomputeSummary(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary.ToDocument())
}
