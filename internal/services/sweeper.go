package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"
	"memevault-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// SweeperOptions configure retention
type SweeperOptions struct {
	GameRetentionDays  int
	AuditRetentionDays int
	WarnBytes          int64
	// OrphanGracePeriod spares blobs younger than this, so an upload whose
	// record is still being written is not reclaimed
	OrphanGracePeriod time.Duration
	Locker            Locker
}

// AuditCleaner removes old audit entries
type AuditCleaner interface {
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// GameDeletion is the outcome of deleting one game
type GameDeletion struct {
	GameID       string `json:"gameId"`
	DeletedFiles int    `json:"deletedFiles"`
	MissingFiles int    `json:"missingFiles"`
	FailedFiles  int    `json:"failedFiles"`
	Images       int64  `json:"images"`
	Memes        int64  `json:"memes"`
	Votes        int64  `json:"votes"`
}

// SweepFailure records one game the sweep could not delete
type SweepFailure struct {
	GameID string `json:"gameId"`
	Error  string `json:"error"`
}

// GameSweepResult summarizes one expired-game sweep
type GameSweepResult struct {
	DeletedGames  int            `json:"deletedGames"`
	DeletedImages int            `json:"deletedImages"`
	MissingImages int            `json:"missingImages"`
	RetentionDays int            `json:"retentionDays"`
	Failures      []SweepFailure `json:"failures,omitempty"`
}

// OrphanSweepResult summarizes one orphan sweep
type OrphanSweepResult struct {
	Checked int `json:"checked"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// StorageReport is a read-only inventory of the blob store
type StorageReport struct {
	TotalFiles     int     `json:"totalFiles"`
	TotalSizeBytes int64   `json:"totalSizeBytes"`
	TotalSizeMB    float64 `json:"totalSizeMB"`
	OverThreshold  bool    `json:"overThreshold"`
}

// TaskResult is the outcome of one sub-task of a full sweep
type TaskResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// FullSweepResult aggregates all sub-tasks of a full sweep
type FullSweepResult struct {
	AuditLogs      TaskResult `json:"auditLogs"`
	Games          TaskResult `json:"games"`
	OrphanedImages TaskResult `json:"orphanedImages"`
	Storage        TaskResult `json:"storage"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     time.Time  `json:"finishedAt"`
}

// Sweeper reclaims expired games and orphaned blobs
type Sweeper struct {
	games  GameRepository
	images ImageRepository
	blobs  storage.BlobStore
	audit  AuditCleaner
	opts   SweeperOptions
	now    func() time.Time
}

// NewSweeper creates a new sweeper
func NewSweeper(games GameRepository, images ImageRepository, blobs storage.BlobStore, audit AuditCleaner, opts SweeperOptions) *Sweeper {
	if opts.Locker == nil {
		opts.Locker = &LocalLocker{}
	}
	if opts.GameRetentionDays <= 0 {
		opts.GameRetentionDays = 30
	}
	if opts.AuditRetentionDays <= 0 {
		opts.AuditRetentionDays = 90
	}
	if opts.WarnBytes <= 0 {
		opts.WarnBytes = 1 << 30
	}
	if opts.OrphanGracePeriod == 0 {
		opts.OrphanGracePeriod = time.Hour
	}
	return &Sweeper{
		games:  games,
		images: images,
		blobs:  blobs,
		audit:  audit,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *Sweeper) exclusive(ctx context.Context, fn func() error) error {
	unlock, ok, err := s.opts.Locker.TryLock(ctx)
	if err != nil {
		return storageFailure("acquire sweep lease", err)
	}
	if !ok {
		return ErrSweepInProgress
	}
	defer unlock()
	return fn()
}

// DeleteGame removes one game with its blobs and rows
func (s *Sweeper) DeleteGame(ctx context.Context, id string) (*GameDeletion, error) {
	game, err := s.games.GetByID(ctx, id)
	if err != nil {
		return nil, lookupFailure("game", err)
	}
	return s.deleteGame(ctx, game)
}

// deleteGame deletes blobs first, then every row in one transaction. Both
// steps tolerate work already done, so a crashed run can simply be repeated.
func (s *Sweeper) deleteGame(ctx context.Context, game *models.Game) (*GameDeletion, error) {
	result := &GameDeletion{GameID: game.ID}

	images, err := s.images.List(ctx, &game.ID)
	if err != nil {
		return nil, storageFailure("list game images", err)
	}
	for _, img := range images {
		err := s.blobs.Delete(ctx, img.ImagePath)
		switch {
		case err == nil:
			result.DeletedFiles++
		case errors.Is(err, storage.ErrBlobNotFound):
			result.MissingFiles++
		default:
			// left for the orphan sweep once the row is gone
			result.FailedFiles++
			log.Error().Err(err).Str("game_id", game.ID).Str("key", img.ImagePath).Msg("Failed to delete image file")
		}
	}

	rows, err := s.games.DeleteCascade(ctx, game.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storageFailure("delete game rows", err)
	}
	result.Images, result.Memes, result.Votes = rows.Images, rows.Memes, rows.Votes

	log.Info().
		Str("game_id", game.ID).
		Int("deleted_files", result.DeletedFiles).
		Int("missing_files", result.MissingFiles).
		Int64("images", rows.Images).
		Int64("memes", rows.Memes).
		Int64("votes", rows.Votes).
		Msg("Game deleted")
	return result, nil
}

// SweepExpiredGames deletes completed games created more than retentionDays
// ago. A zero retentionDays uses the configured window.
func (s *Sweeper) SweepExpiredGames(ctx context.Context, retentionDays int) (*GameSweepResult, error) {
	var result *GameSweepResult
	err := s.exclusive(ctx, func() error {
		var err error
		result, err = s.sweepExpiredGames(ctx, retentionDays)
		return err
	})
	return result, err
}

func (s *Sweeper) sweepExpiredGames(ctx context.Context, retentionDays int) (*GameSweepResult, error) {
	if retentionDays <= 0 {
		retentionDays = s.opts.GameRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	games, err := s.games.ListCompletedBefore(ctx, cutoff)
	if err != nil {
		return nil, storageFailure("list expired games", err)
	}
	log.Info().Int("count", len(games)).Time("cutoff", cutoff).Msg("Sweeping expired games")

	result := &GameSweepResult{RetentionDays: retentionDays}
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return result, storageFailure("finish game sweep", err)
		}
		deleted, err := s.deleteGame(ctx, g)
		if err != nil {
			log.Error().Err(err).Str("game_id", g.ID).Msg("Failed to clean up game")
			result.Failures = append(result.Failures, SweepFailure{GameID: g.ID, Error: err.Error()})
			continue
		}
		result.DeletedGames++
		result.DeletedImages += deleted.DeletedFiles
		result.MissingImages += deleted.MissingFiles
	}

	log.Info().
		Int("deleted_games", result.DeletedGames).
		Int("deleted_images", result.DeletedImages).
		Int("failures", len(result.Failures)).
		Int("retention_days", retentionDays).
		Msg("Game cleanup completed")
	return result, nil
}

// SweepOrphanedBlobs deletes image blobs that no record references
func (s *Sweeper) SweepOrphanedBlobs(ctx context.Context) (*OrphanSweepResult, error) {
	var result *OrphanSweepResult
	err := s.exclusive(ctx, func() error {
		var err error
		result, err = s.sweepOrphanedBlobs(ctx)
		return err
	})
	return result, err
}

func (s *Sweeper) sweepOrphanedBlobs(ctx context.Context) (*OrphanSweepResult, error) {
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return nil, storageFailure("list blobs", err)
	}

	result := &OrphanSweepResult{}
	youngest := s.now().Add(-s.opts.OrphanGracePeriod)
	for _, b := range blobs {
		if !storage.IsImageFile(b.Key) {
			continue
		}
		result.Checked++
		if !b.ModTime.IsZero() && b.ModTime.After(youngest) {
			continue
		}

		exists, err := s.images.ExistsByPath(ctx, b.Key)
		if err != nil {
			result.Failed++
			log.Error().Err(err).Str("key", b.Key).Msg("Failed to look up image record")
			continue
		}
		if exists {
			continue
		}

		if err := s.blobs.Delete(ctx, b.Key); err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				continue
			}
			result.Failed++
			log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete orphaned image")
			continue
		}
		result.Deleted++
		log.Info().Str("key", b.Key).Msg("Deleted orphaned image")
	}

	log.Info().
		Int("orphaned", result.Deleted).
		Int("checked", result.Checked).
		Msg("Orphaned image cleanup completed")
	return result, nil
}

// ReportStorageUsage inventories the blob store and warns past the
// configured threshold
func (s *Sweeper) ReportStorageUsage(ctx context.Context) (*StorageReport, error) {
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return nil, storageFailure("list blobs", err)
	}
	report := &StorageReport{TotalFiles: len(blobs)}
	for _, b := range blobs {
		report.TotalSizeBytes += b.Size
	}
	report.TotalSizeMB = float64(report.TotalSizeBytes*100/(1<<20)) / 100
	report.OverThreshold = report.TotalSizeBytes > s.opts.WarnBytes

	event := log.Info()
	if report.OverThreshold {
		event = log.Warn().Int64("threshold_bytes", s.opts.WarnBytes)
	}
	event.
		Int("total_files", report.TotalFiles).
		Int64("total_bytes", report.TotalSizeBytes).
		Msg("Upload storage size check")
	return report, nil
}

// RunFullSweep runs audit cleanup, the game sweep, the orphan sweep, and the
// usage report. A failing task does not stop the others.
func (s *Sweeper) RunFullSweep(ctx context.Context) (*FullSweepResult, error) {
	result := &FullSweepResult{StartedAt: s.now().UTC()}
	err := s.exclusive(ctx, func() error {
		log.Info().Msg("Starting cleanup jobs")
		result.AuditLogs = runTask("audit_logs", func() (any, error) {
			if s.audit == nil {
				return map[string]int64{"deleted": 0}, nil
			}
			n, err := s.audit.Cleanup(ctx, s.opts.AuditRetentionDays)
			return map[string]int64{"deleted": n}, err
		})
		result.Games = runTask("games", func() (any, error) {
			return s.sweepExpiredGames(ctx, 0)
		})
		result.OrphanedImages = runTask("orphaned_images", func() (any, error) {
			return s.sweepOrphanedBlobs(ctx)
		})
		result.Storage = runTask("storage", func() (any, error) {
			return s.ReportStorageUsage(ctx)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.FinishedAt = s.now().UTC()

	log.Info().
		Bool("audit_logs", result.AuditLogs.Success).
		Bool("games", result.Games.Success).
		Bool("orphaned_images", result.OrphanedImages.Success).
		Bool("storage", result.Storage.Success).
		Dur("took", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Cleanup jobs completed")
	return result, nil
}

func runTask(name string, fn func() (any, error)) (result TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("task", name).Msg("Cleanup task panicked")
			result = TaskResult{Error: fmt.Sprint(r)}
		}
	}()
	out, err := fn()
	if err != nil {
		log.Error().Err(err).Str("task", name).Msg("Cleanup task failed")
		return TaskResult{Error: err.Error()}
	}
	return TaskResult{Success: true, Result: out}
}
