package handlers

import (
	"net/http"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/services"
)

// AuthHandler handles admin surface authentication
type AuthHandler struct {
	identity *services.IdentityService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.identity.Login(r.Context(), req.Username, req.Password, requestMeta(r))
	if err != nil {
		respondServiceError(w, err, map[string]any{"username": req.Username, "ip": middleware.ClientIP(r)})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SetupAdmin handles POST /api/auth/setup-admin. The generated password is
// only ever returned here.
func (h *AuthHandler) SetupAdmin(w http.ResponseWriter, r *http.Request) {
	user, password, err := h.identity.SetupAdmin(r.Context(), requestMeta(r))
	if err != nil {
		respondServiceError(w, err, map[string]any{"ip": middleware.ClientIP(r)})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":  "Admin user created. Change this password after the first login.",
		"user":     user,
		"password": password,
	})
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.identity.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, requestMeta(r)); err != nil {
		respondServiceError(w, err, map[string]any{"user_id": claims.UserID})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so the client
// discards its own; the server only keeps the audit trail.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.identity.Logout(r.Context(), middleware.GetClaims(r.Context()), requestMeta(r))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Validate handles GET /api/auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  middleware.GetClaims(r.Context()),
	})
}
