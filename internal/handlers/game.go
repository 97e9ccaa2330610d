package handlers

import (
	"net/http"

	"memevault-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// GameHandler handles game session requests
type GameHandler struct {
	games *services.GameService
}

// NewGameHandler creates a new game handler
func NewGameHandler(games *services.GameService) *GameHandler {
	return &GameHandler{games: games}
}

type createGameRequest struct {
	Name        string `json:"name"`
	CreatorName string `json:"creatorName"`
}

type joinGameRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

type nextPhaseRequest struct {
	PlayerName string `json:"playerName"`
}

// CreateGame handles POST /api/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	game, err := h.games.CreateGame(r.Context(), req.Name, req.CreatorName)
	if err != nil {
		respondServiceError(w, err, map[string]any{"creator": req.CreatorName})
		return
	}
	respondJSON(w, http.StatusCreated, game)
}

// ListGames handles GET /api/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListGames(r.Context())
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, games)
}

// JoinGame handles POST /api/games/join
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	game, err := h.games.JoinGame(r.Context(), req.Code, req.PlayerName)
	if err != nil {
		respondServiceError(w, err, map[string]any{"code": req.Code, "player": req.PlayerName})
		return
	}
	respondJSON(w, http.StatusOK, game)
}

// GetGame handles GET /api/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	game, err := h.games.GetGame(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	respondJSON(w, http.StatusOK, game)
}

// NextPhase handles POST /api/games/{id}/next-phase. The body is optional.
func (h *GameHandler) NextPhase(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	var req nextPhaseRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	game, err := h.games.AdvancePhase(r.Context(), gameID, req.PlayerName)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	respondJSON(w, http.StatusOK, game)
}
