package handlers

import (
	"net/http"
	"net/netip"
	"time"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/models"
	"memevault-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps holds everything the HTTP surface is built from
type RouterDeps struct {
	Games          *services.GameService
	Content        *services.ContentService
	Votes          *services.VoteService
	Dashboard      *services.DashboardService
	Images         services.ImageRepository
	Sweeper        *services.Sweeper
	Identity       *services.IdentityService
	Audit          *services.AuditService
	Hub            *services.GameHub
	MaxUploadBytes int64
	// UploadDir is served under /uploads when set
	UploadDir string
	// RequestLogging enables chi's access log
	RequestLogging bool
	// TrustedProxies are the peers whose forwarding headers are honored
	TrustedProxies []netip.Prefix
}

// NewRouter wires every route
func NewRouter(deps RouterDeps) http.Handler {
	gameHandler := NewGameHandler(deps.Games)
	contentHandler := NewContentHandler(deps.Content, deps.MaxUploadBytes)
	voteHandler := NewVoteHandler(deps.Votes)
	authHandler := NewAuthHandler(deps.Identity)
	adminHandler := NewAdminHandler(AdminDeps{
		Games:     deps.Games,
		Votes:     deps.Votes,
		Images:    deps.Images,
		Dashboard: deps.Dashboard,
		Sweeper:   deps.Sweeper,
		Identity:  deps.Identity,
		Audit:     deps.Audit,
	})
	wsHandler := NewWebSocketHandler(deps.Hub, deps.Games)
	requireAuth := middleware.AuthMiddleware(deps.Identity, deps.Audit)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.RealIP(deps.TrustedProxies))
	if deps.RequestLogging {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameHandler.ListGames)
			r.Post("/", gameHandler.CreateGame)
			r.Post("/create", gameHandler.CreateGame)
			r.Post("/join", gameHandler.JoinGame)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", gameHandler.GetGame)
				r.Post("/next-phase", gameHandler.NextPhase)
				r.Post("/upload", contentHandler.UploadGameImage)
				r.Get("/images", contentHandler.ListGameImages)
				r.Get("/memes", contentHandler.ListGameMemes)
				r.Post("/memes/create", contentHandler.CreateGameMeme)
				r.Post("/memes/{memeId}/vote", voteHandler.CastVote)
				r.Get("/results", voteHandler.Results)
			})
		})

		r.Post("/images/upload", contentHandler.UploadImage)
		r.Get("/images", contentHandler.ListImages)
		r.Post("/memes", contentHandler.CreateMeme)
		r.Get("/memes", contentHandler.ListMemes)
		r.Post("/memes/{memeId}/vote", voteHandler.CastLegacyVote)
		r.Get("/memes/{memeId}/score", voteHandler.Score)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/setup-admin", authHandler.SetupAdmin)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/change-password", authHandler.ChangePassword)
				r.Post("/logout", authHandler.Logout)
				r.Get("/validate", authHandler.Validate)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(models.RoleAdmin, deps.Audit))

			r.Get("/dashboard", adminHandler.Dashboard)
			r.Get("/health", adminHandler.Health)
			r.Get("/storage-status", adminHandler.StorageStatus)
			r.Post("/maintenance/cleanup", adminHandler.Cleanup)

			r.Get("/games", adminHandler.ListGames)
			r.Get("/games/{id}/details", adminHandler.GameDetails)
			r.Patch("/games/{id}/status", adminHandler.SetGameStatus)
			r.Delete("/games/{id}", adminHandler.DeleteGame)

			r.Get("/users", adminHandler.ListUsers)
			r.Post("/users", adminHandler.CreateUser)
			r.Patch("/users/{id}/toggle-status", adminHandler.ToggleUserStatus)
			r.Delete("/users/{id}", adminHandler.DeleteUser)

			r.Get("/audit-logs", adminHandler.AuditLogs)
			r.Get("/audit-stats", adminHandler.AuditStats)
		})
	})

	r.Get("/ws/games/{id}", wsHandler.HandleWebSocket)

	if deps.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Handle("/uploads/*", fs)
	}

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
