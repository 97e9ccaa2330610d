package handlers

import (
	"net/http"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// VoteHandler handles votes and results
type VoteHandler struct {
	votes *services.VoteService
}

// NewVoteHandler creates a new vote handler
func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type castVoteRequest struct {
	Voter string `json:"voter"`
}

// legacyVoteRequest accepts {"upvote": bool} or {"voteType": bool}
type legacyVoteRequest struct {
	Upvote   *bool `json:"upvote"`
	VoteType *bool `json:"voteType"`
}

// CastVote handles POST /api/games/{id}/memes/{memeId}/vote
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	memeID := chi.URLParam(r, "memeId")
	var req castVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ip := middleware.ClientIP(r)
	vote, err := h.votes.CastVote(r.Context(), gameID, memeID, req.Voter, ip)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID, "meme_id": memeID, "ip": ip})
		return
	}
	respondJSON(w, http.StatusCreated, vote)
}

// Results handles GET /api/games/{id}/results
func (h *VoteHandler) Results(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	results, err := h.votes.TallyResults(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// CastLegacyVote handles POST /api/memes/{memeId}/vote
func (h *VoteHandler) CastLegacyVote(w http.ResponseWriter, r *http.Request) {
	memeID := chi.URLParam(r, "memeId")
	var req legacyVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upvote := req.Upvote
	if upvote == nil {
		upvote = req.VoteType
	}
	if upvote == nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "upvote is required", Code: string(services.KindValidation), Field: "upvote"})
		return
	}

	ip := middleware.ClientIP(r)
	vote, err := h.votes.CastLegacyVote(r.Context(), memeID, *upvote, ip)
	if err != nil {
		respondServiceError(w, err, map[string]any{"meme_id": memeID, "ip": ip})
		return
	}
	respondJSON(w, http.StatusCreated, vote)
}

// Score handles GET /api/memes/{memeId}/score
func (h *VoteHandler) Score(w http.ResponseWriter, r *http.Request) {
	memeID := chi.URLParam(r, "memeId")
	score, err := h.votes.MemeScore(r.Context(), memeID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"meme_id": memeID})
		return
	}
	respondJSON(w, http.StatusOK, score)
}
