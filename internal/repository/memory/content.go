package memory

import (
	"context"
	"fmt"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"
)

// ImageRepository stores image records in memory
type ImageRepository struct {
	db *DB
}

// Create creates a new image record
func (r *ImageRepository) Create(_ context.Context, image *models.Image) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.images {
		if i.ImagePath == image.ImagePath {
			return fmt.Errorf("image path %s: %w", image.ImagePath, repository.ErrConflict)
		}
	}
	r.db.images = append(r.db.images, cloneImage(image))
	return nil
}

// GetByID retrieves an image by ID
func (r *ImageRepository) GetByID(_ context.Context, id string) (*models.Image, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.images {
		if i.ID == id {
			return cloneImage(i), nil
		}
	}
	return nil, fmt.Errorf("image: %w", repository.ErrNotFound)
}

// List returns the images of a game, or standalone images, newest first
func (r *ImageRepository) List(_ context.Context, gameID *string) ([]*models.Image, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	images := []*models.Image{}
	for _, i := range r.db.images {
		if sameGame(i.GameID, gameID) {
			images = append(images, cloneImage(i))
		}
	}
	newestFirst(images, func(i *models.Image) int64 { return i.CreatedAt.UnixNano() })
	return images, nil
}

// ExistsByPath checks whether any record references the stored blob
func (r *ImageRepository) ExistsByPath(_ context.Context, imagePath string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.images {
		if i.ImagePath == imagePath {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the total number of image records
func (r *ImageRepository) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.images), nil
}

// MemeRepository stores memes in memory
type MemeRepository struct {
	db *DB
}

// Create creates a new meme
func (r *MemeRepository) Create(_ context.Context, meme *models.Meme) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.memes = append(r.db.memes, cloneMeme(meme))
	return nil
}

// GetByID retrieves a meme by ID
func (r *MemeRepository) GetByID(_ context.Context, id string) (*models.Meme, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.memes {
		if m.ID == id {
			return cloneMeme(m), nil
		}
	}
	return nil, fmt.Errorf("meme: %w", repository.ErrNotFound)
}

// List returns the memes of a game, or standalone memes, newest first, each
// with its image joined
func (r *MemeRepository) List(_ context.Context, gameID *string) ([]*models.MemeWithImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	memes := []*models.MemeWithImage{}
	for _, m := range r.db.memes {
		if !sameGame(m.GameID, gameID) {
			continue
		}
		entry := &models.MemeWithImage{Meme: cloneMeme(m)}
		for _, i := range r.db.images {
			if i.ID == m.ImageID {
				entry.Image = cloneImage(i)
				break
			}
		}
		memes = append(memes, entry)
	}
	newestFirst(memes, func(m *models.MemeWithImage) int64 { return m.CreatedAt.UnixNano() })
	return memes, nil
}

// CountSince counts memes created at or after since
func (r *MemeRepository) CountSince(_ context.Context, since time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, m := range r.db.memes {
		if !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// VoteRepository stores votes in memory
type VoteRepository struct {
	db *DB
}

// Insert stores a vote unless the same origin already voted for the meme in
// the same scope
func (r *VoteRepository) Insert(_ context.Context, vote *models.Vote) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, v := range r.db.votes {
		if v.MemeID == vote.MemeID && v.IPAddress == vote.IPAddress && sameGame(v.GameID, vote.GameID) {
			return fmt.Errorf("vote on meme %s: %w", vote.MemeID, repository.ErrConflict)
		}
	}
	c := *vote
	r.db.votes = append(r.db.votes, &c)
	return nil
}

// CountByMeme returns vote counts per meme within a game
func (r *VoteRepository) CountByMeme(_ context.Context, gameID string) (map[string]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[string]int)
	for _, v := range r.db.votes {
		if v.GameID != nil && *v.GameID == gameID {
			counts[v.MemeID]++
		}
	}
	return counts, nil
}

// CountSince counts votes cast at or after since
func (r *VoteRepository) CountSince(_ context.Context, since time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, v := range r.db.votes {
		if !v.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Score partitions the standalone votes of a meme into up and down
func (r *VoteRepository) Score(_ context.Context, memeID string) (up, down int, err error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, v := range r.db.votes {
		if v.MemeID != memeID || v.GameID != nil || v.VoteType == nil {
			continue
		}
		if *v.VoteType {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}
