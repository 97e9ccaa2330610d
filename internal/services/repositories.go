package services

import (
	"context"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"
)

// GameRepository is implemented by repository.GameRepository and memory.GameRepository
type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id string) (*models.Game, error)
	GetByCode(ctx context.Context, code string) (*models.Game, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	AddParticipant(ctx context.Context, id, name string) (*models.Game, bool, error)
	AdvanceStatus(ctx context.Context, id string, from, to models.GameStatus, phaseEnd time.Time) (*models.Game, error)
	SetStatus(ctx context.Context, id string, status models.GameStatus, phaseEnd time.Time) (*models.Game, error)
	List(ctx context.Context) ([]*models.Game, error)
	CountByStatus(ctx context.Context) (map[models.GameStatus]int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Game, error)
	ListPhaseExpired(ctx context.Context, now time.Time) ([]*models.Game, error)
	Stats(ctx context.Context, id string) (models.GameStats, error)
	DeleteCascade(ctx context.Context, id string) (repository.CascadeResult, error)
}

// ImageRepository stores image metadata
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	List(ctx context.Context, gameID *string) ([]*models.Image, error)
	ExistsByPath(ctx context.Context, imagePath string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// MemeRepository stores memes
type MemeRepository interface {
	Create(ctx context.Context, meme *models.Meme) error
	GetByID(ctx context.Context, id string) (*models.Meme, error)
	List(ctx context.Context, gameID *string) ([]*models.MemeWithImage, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// VoteRepository stores votes. Insert returns repository.ErrConflict for a
// repeat vote in the same scope.
type VoteRepository interface {
	Insert(ctx context.Context, vote *models.Vote) error
	CountByMeme(ctx context.Context, gameID string) (map[string]int, error)
	Score(ctx context.Context, memeID string) (up, down int, err error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// UserRepository stores admin surface accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role models.Role) (int, error)
	CountActive(ctx context.Context) (total, active int, err error)
}

// AuditRepository persists audit entries
type AuditRepository interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, int, error)
	CountByAction(ctx context.Context, start, end time.Time) (map[string]int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier receives game events for live subscribers
type Notifier interface {
	Publish(gameID, eventType string, data any)
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, string, any) {}
