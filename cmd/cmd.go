package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memevault-backend/internal/config"
	"memevault-backend/internal/handlers"
	"memevault-backend/internal/middleware"
	"memevault-backend/internal/repository"
	"memevault-backend/internal/repository/memory"
	"memevault-backend/internal/services"
	"memevault-backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sweepLeaseKey = "memevault:cleanup-lease"

// repositories is the persistence backend the services run on
type repositories struct {
	games  services.GameRepository
	images services.ImageRepository
	memes  services.MemeRepository
	votes  services.VoteRepository
	users  services.UserRepository
	audit  services.AuditRepository
	close  func()
}

func Run() {
	configPath := os.Getenv("MEMEVAULT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer repos.close()

	blobs, uploadDir, err := openBlobStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob storage")
	}

	locker, closeLocker, err := openLocker(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer closeLocker()

	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT secret is empty; admin tokens are insecure")
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid trusted proxy list")
	}

	// Initialize services
	hub := services.NewGameHub()
	games := services.NewGameService(repos.games, services.GameOptions{
		PhaseDuration:         cfg.Game.PhaseDuration,
		EnforceCreatorAdvance: cfg.Game.EnforceCreatorAdvance,
		Notifier:              hub,
	})
	audit := services.NewAuditService(repos.audit)
	content := services.NewContentService(games, repos.images, repos.memes, blobs)
	votes := services.NewVoteService(games, repos.images, repos.memes, repos.votes)
	dashboard := services.NewDashboardService(services.DashboardRepos{
		Games:  repos.games,
		Images: repos.images,
		Memes:  repos.memes,
		Votes:  repos.votes,
		Users:  repos.users,
		Audit:  repos.audit,
	})
	identity := services.NewIdentityService(repos.users, audit, cfg.JWT.Secret, cfg.JWT.Expiry)
	sweeper := services.NewSweeper(repos.games, repos.images, blobs, audit, services.SweeperOptions{
		GameRetentionDays:  cfg.Retention.GameDays,
		AuditRetentionDays: cfg.Retention.AuditLogDays,
		WarnBytes:          cfg.Retention.StorageWarnBytes,
		Locker:             locker,
	})

	scheduler, err := services.NewScheduler(sweeper, games, services.SchedulerOptions{
		CleanupSchedule: cfg.Retention.Schedule,
		Timezone:        cfg.Retention.Timezone,
		AutoAdvance:     cfg.Game.AutoAdvance,
		RunOnStart:      cfg.Retention.RunOnStart,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	scheduler.Start()

	router := handlers.NewRouter(handlers.RouterDeps{
		Games:          games,
		Content:        content,
		Votes:          votes,
		Dashboard:      dashboard,
		Images:         repos.images,
		Sweeper:        sweeper,
		Identity:       identity,
		Audit:          audit,
		Hub:            hub,
		MaxUploadBytes: cfg.Game.MaxUploadBytes,
		UploadDir:      uploadDir,
		RequestLogging: true,
		TrustedProxies: trustedProxies,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	scheduler.Stop()
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openRepositories connects to Postgres when configured and falls back to
// the in-memory store otherwise
func openRepositories(ctx context.Context, cfg config.DatabaseConfig) (*repositories, error) {
	if !cfg.UsesDatabase() {
		log.Warn().Msg("No database configured, using in-memory storage")
		db := memory.New()
		return &repositories{
			games:  db.Games(),
			images: db.Images(),
			memes:  db.Memes(),
			votes:  db.Votes(),
			users:  db.Users(),
			audit:  db.Audit(),
			close:  func() {},
		}, nil
	}

	if cfg.Migrate {
		if err := repository.Migrate(cfg.URLForm()); err != nil {
			return nil, err
		}
		log.Info().Msg("Database migrations applied")
	}

	pool, err := repository.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connection established")

	return &repositories{
		games:  repository.NewGameRepository(pool),
		images: repository.NewImageRepository(pool),
		memes:  repository.NewMemeRepository(pool),
		votes:  repository.NewVoteRepository(pool),
		users:  repository.NewUserRepository(pool),
		audit:  repository.NewAuditRepository(pool),
		close:  pool.Close,
	}, nil
}

// openBlobStore returns the configured store and, for the local driver, the
// directory to serve under /uploads
func openBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, string, error) {
	if cfg.Driver == "s3" {
		store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Using S3 blob storage")
		return store, "", nil
	}

	store, err := storage.NewLocalStore(cfg.LocalDir)
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("dir", store.Dir()).Msg("Using local blob storage")
	return store, store.Dir(), nil
}

// openLocker returns a Redis lease when Redis is configured, so that only one
// replica sweeps at a time
func openLocker(ctx context.Context, cfg config.RedisConfig) (services.Locker, func(), error) {
	if cfg.Addr == "" {
		return &services.LocalLocker{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Addr).Msg("Using Redis cleanup lease")
	return services.NewRedisLocker(client, sweepLeaseKey, cfg.LeaseTTL), func() { client.Close() }, nil
}

// setupLogger configures zerolog logger
func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
