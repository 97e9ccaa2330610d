package repository

import (
	"context"
	"fmt"

	"memevault-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const imageColumns = `id, title, image_path, ip_address, game_id, created_at`

// ImageRepository handles database operations for images
type ImageRepository struct {
	db *pgxpool.Pool
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{db: db}
}

func scanImage(row pgx.Row) (*models.Image, error) {
	var image models.Image
	err := row.Scan(
		&image.ID, &image.Title, &image.ImagePath, &image.IPAddress,
		&image.GameID, &image.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// Create creates a new image record
func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (` + imageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		image.ID, image.Title, image.ImagePath, image.IPAddress, image.GameID, image.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("image path %s: %w", image.ImagePath, ErrConflict)
		}
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetByID retrieves an image by ID
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	image, err := scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "image")
	}
	return image, nil
}

// List returns the images of a game, or standalone images when gameID is
// nil, newest first
func (r *ImageRepository) List(ctx context.Context, gameID *string) ([]*models.Image, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if gameID != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+imageColumns+` FROM images WHERE game_id = $1 ORDER BY created_at DESC`, *gameID)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+imageColumns+` FROM images WHERE game_id IS NULL ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := []*models.Image{}
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// ExistsByPath checks whether any record references the stored blob
func (r *ImageRepository) ExistsByPath(ctx context.Context, imagePath string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM images WHERE image_path = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, imagePath).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check image path: %w", err)
	}
	return exists, nil
}

// Count returns the total number of image records
func (r *ImageRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}
