package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"memevault-backend/internal/models"
	"memevault-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const claimsKey contextKey = "claims"

// AuthMiddleware requires a valid Bearer token and stores its claims in the
// request context
func AuthMiddleware(identity *services.IdentityService, audit *services.AuditService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := identity.ValidateToken(parts[1])
			if err != nil {
				audit.Record(r.Context(), services.AuditEvent{
					Action:    services.ActionInvalidToken,
					Details:   map[string]any{"path": r.URL.Path, "reason": services.AsError(err).Message},
					IPAddress: ClientIP(r),
					UserAgent: r.UserAgent(),
				})
				respondError(w, services.AsError(err).Message, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers without the given role. It must
// run after AuthMiddleware.
func RequireRole(role models.Role, audit *services.AuditService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				respondError(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if claims.Role != role {
				log.Warn().
					Str("user_id", claims.UserID).
					Str("role", string(claims.Role)).
					Str("path", r.URL.Path).
					Msg("Access denied")
				audit.Record(r.Context(), services.AuditEvent{
					UserID:    claims.UserID,
					Action:    services.ActionUnauthorizedAccess,
					Details:   map[string]any{"path": r.URL.Path, "requiredRole": string(role)},
					IPAddress: ClientIP(r),
					UserAgent: r.UserAgent(),
				})
				respondError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims extracts the token claims from context
func GetClaims(ctx context.Context) *services.Claims {
	claims, ok := ctx.Value(claimsKey).(*services.Claims)
	if !ok {
		return nil
	}
	return claims
}

// ClientIP returns the caller's address without the port. RealIP has already
// applied forwarding headers from trusted proxies to RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
