package handlers

import (
	"net/http"
	"time"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/models"
	"memevault-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// AdminHandler serves the moderation surface
type AdminHandler struct {
	games     *services.GameService
	votes     *services.VoteService
	images    services.ImageRepository
	dashboard *services.DashboardService
	sweeper   *services.Sweeper
	identity  *services.IdentityService
	audit     *services.AuditService
}

// AdminDeps groups the services the admin surface needs
type AdminDeps struct {
	Games     *services.GameService
	Votes     *services.VoteService
	Images    services.ImageRepository
	Dashboard *services.DashboardService
	Sweeper   *services.Sweeper
	Identity  *services.IdentityService
	Audit     *services.AuditService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{
		games:     deps.Games,
		votes:     deps.Votes,
		images:    deps.Images,
		dashboard: deps.Dashboard,
		sweeper:   deps.Sweeper,
		identity:  deps.Identity,
		audit:     deps.Audit,
	}
}

type setStatusRequest struct {
	Status models.GameStatus `json:"status"`
}

type cleanupRequest struct {
	Type string `json:"type"`
}

type createUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (h *AdminHandler) record(r *http.Request, action string, details map[string]any) {
	ev := services.AuditEvent{
		Action:    action,
		Details:   details,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		ev.UserID = claims.UserID
	}
	h.audit.Record(r.Context(), ev)
}

// ListGames handles GET /api/admin/games
func (h *AdminHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListGamesWithStats(r.Context())
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	h.record(r, services.ActionViewedGames, map[string]any{"count": len(games)})
	respondJSON(w, http.StatusOK, games)
}

// GameDetails handles GET /api/admin/games/{id}/details
func (h *AdminHandler) GameDetails(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	details, err := h.votes.GameDetails(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// SetGameStatus handles PATCH /api/admin/games/{id}/status
func (h *AdminHandler) SetGameStatus(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	var req setStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	game, err := h.games.SetStatus(r.Context(), gameID, req.Status)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID, "status": req.Status})
		return
	}
	h.record(r, services.ActionChangedGameStatus, map[string]any{
		"targetResource": "Game",
		"gameId":         gameID,
		"newStatus":      string(req.Status),
	})
	respondJSON(w, http.StatusOK, game)
}

// DeleteGame handles DELETE /api/admin/games/{id}
func (h *AdminHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	result, err := h.sweeper.DeleteGame(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	h.record(r, services.ActionDeletedGame, map[string]any{
		"targetResource": "Game",
		"gameId":         gameID,
		"deletedFiles":   result.DeletedFiles,
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"message":      "Game deleted successfully",
		"deletedFiles": result.DeletedFiles,
		"details":      result,
	})
}

// Cleanup handles POST /api/admin/maintenance/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = "all"
	}

	ctx := r.Context()
	sweeps := map[string]func() (any, error){
		"games":  func() (any, error) { return h.sweeper.SweepExpiredGames(ctx, 0) },
		"images": func() (any, error) { return h.sweeper.SweepOrphanedBlobs(ctx) },
		"all":    func() (any, error) { return h.sweeper.RunFullSweep(ctx) },
	}
	sweep, ok := sweeps[req.Type]
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid cleanup type. Use: games, images, or all",
			Code:  string(services.KindValidation),
			Field: "type",
		})
		return
	}

	// recorded up front so a sweep that fails midway is still attributed
	h.record(r, services.ActionInitiatedCleanup, map[string]any{"type": req.Type})
	result, err := sweep()
	if err != nil {
		respondServiceError(w, err, map[string]any{"type": req.Type})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Cleanup completed",
		"type":    req.Type,
		"result":  result,
	})
}

// StorageStatus handles GET /api/admin/storage-status
func (h *AdminHandler) StorageStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.ReportStorageUsage(r.Context())
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Dashboard handles GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.dashboard.Summary(ctx)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	report, err := h.sweeper.ReportStorageUsage(ctx)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"overview":       summary.Overview,
		"recentActivity": summary.RecentActivity,
		"gamesByStatus":  summary.GamesByStatus,
		"totalGames":     summary.Overview.TotalGames,
		"totalImages":    summary.Overview.TotalImages,
		"storage":        report,
	})
}

// Health handles GET /api/admin/health
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if _, err := h.images.Count(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// CreateUser handles POST /api/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := middleware.GetClaims(r.Context())
	user, err := h.identity.CreateUser(r.Context(), claims, req.Username, req.Password, req.Role, requestMeta(r))
	if err != nil {
		respondServiceError(w, err, map[string]any{"username": req.Username})
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// ToggleUserStatus handles PATCH /api/admin/users/{id}/toggle-status
func (h *AdminHandler) ToggleUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	claims := middleware.GetClaims(r.Context())
	user, err := h.identity.ToggleUserStatus(r.Context(), claims, userID, requestMeta(r))
	if err != nil {
		respondServiceError(w, err, map[string]any{"target_user_id": userID})
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	claims := middleware.GetClaims(r.Context())
	if err := h.identity.DeleteUser(r.Context(), claims, userID, requestMeta(r)); err != nil {
		respondServiceError(w, err, map[string]any{"target_user_id": userID})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// AuditLogs handles GET /api/admin/audit-logs
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	logs, total, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// AuditStats handles GET /api/admin/audit-stats. startDate and endDate
// accept RFC 3339 timestamps or plain dates.
func (h *AdminHandler) AuditStats(w http.ResponseWriter, r *http.Request) {
	start, ok := parseDate(w, r, "startDate")
	if !ok {
		return
	}
	end, ok := parseDate(w, r, "endDate")
	if !ok {
		return
	}

	stats, err := h.audit.Stats(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func parseDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: "Invalid date",
		Code:  string(services.KindValidation),
		Field: name,
	})
	return time.Time{}, false
}
