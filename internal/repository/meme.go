package repository

import (
	"context"
	"fmt"
	"time"

	"memevault-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memeColumns = `id, image_id, top_text, bottom_text, font_type, creator, ip_address, game_id, created_at`

// MemeRepository handles database operations for memes
type MemeRepository struct {
	db *pgxpool.Pool
}

// NewMemeRepository creates a new meme repository
func NewMemeRepository(db *pgxpool.Pool) *MemeRepository {
	return &MemeRepository{db: db}
}

// Create creates a new meme
func (r *MemeRepository) Create(ctx context.Context, meme *models.Meme) error {
	query := `
		INSERT INTO memes (` + memeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		meme.ID, meme.ImageID, meme.TopText, meme.BottomText, meme.FontType,
		meme.Creator, meme.IPAddress, meme.GameID, meme.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create meme: %w", err)
	}
	return nil
}

// GetByID retrieves a meme by ID
func (r *MemeRepository) GetByID(ctx context.Context, id string) (*models.Meme, error) {
	query := `SELECT ` + memeColumns + ` FROM memes WHERE id = $1`
	var meme models.Meme
	err := r.db.QueryRow(ctx, query, id).Scan(
		&meme.ID, &meme.ImageID, &meme.TopText, &meme.BottomText, &meme.FontType,
		&meme.Creator, &meme.IPAddress, &meme.GameID, &meme.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "meme")
	}
	return &meme, nil
}

// List returns the memes of a game, or standalone memes when gameID is nil,
// newest first, each with its image joined
func (r *MemeRepository) List(ctx context.Context, gameID *string) ([]*models.MemeWithImage, error) {
	base := `
		SELECT m.id, m.image_id, m.top_text, m.bottom_text, m.font_type, m.creator,
		       m.ip_address, m.game_id, m.created_at,
		       i.id, i.title, i.image_path, i.game_id, i.created_at
		FROM memes m
		LEFT JOIN images i ON i.id = m.image_id
	`
	var (
		rows pgx.Rows
		err  error
	)
	if gameID != nil {
		rows, err = r.db.Query(ctx, base+` WHERE m.game_id = $1 ORDER BY m.created_at DESC`, *gameID)
	} else {
		rows, err = r.db.Query(ctx, base+` WHERE m.game_id IS NULL ORDER BY m.created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list memes: %w", err)
	}
	defer rows.Close()

	memes := []*models.MemeWithImage{}
	for rows.Next() {
		var meme models.Meme
		var (
			imageID, title, imagePath *string
			imageGameID               *string
			imageCreatedAt            pgtype.Timestamptz
		)
		err := rows.Scan(
			&meme.ID, &meme.ImageID, &meme.TopText, &meme.BottomText, &meme.FontType,
			&meme.Creator, &meme.IPAddress, &meme.GameID, &meme.CreatedAt,
			&imageID, &title, &imagePath, &imageGameID, &imageCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meme: %w", err)
		}
		entry := &models.MemeWithImage{Meme: &meme}
		if imageID != nil {
			entry.Image = &models.Image{
				ID:        *imageID,
				Title:     deref(title),
				ImagePath: deref(imagePath),
				GameID:    imageGameID,
				CreatedAt: imageCreatedAt.Time,
			}
		}
		memes = append(memes, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memes: %w", err)
	}
	return memes, nil
}

// CountSince counts memes created at or after since; the zero time counts
// every meme
func (r *MemeRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM memes WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memes: %w", err)
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
