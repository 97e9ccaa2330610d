package services

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"memevault-backend/internal/models"
	"memevault-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventImageUploaded = "image_uploaded"
	EventMemeCreated   = "meme_created"

	defaultImageTitle = "Untitled"
)

// UploadInput is one image upload. A nil GameID uploads a standalone image.
type UploadInput struct {
	GameID    *string
	Title     string
	Filename  string
	Size      int64
	Body      io.Reader
	IPAddress string
}

// ContentService stores images and memes and gates them by phase
type ContentService struct {
	games    *GameService
	images   ImageRepository
	memes    MemeRepository
	blobs    storage.BlobStore
	notifier Notifier
	now      func() time.Time
}

// NewContentService creates a new content service
func NewContentService(games *GameService, images ImageRepository, memes MemeRepository, blobs storage.BlobStore) *ContentService {
	return &ContentService{
		games:    games,
		images:   images,
		memes:    memes,
		blobs:    blobs,
		notifier: games.notifier,
		now:      time.Now,
	}
}

// UploadImage stores the blob, then its record. If the record cannot be
// written the blob is removed again; anything left behind is caught by the
// orphan sweep.
func (s *ContentService) UploadImage(ctx context.Context, in UploadInput) (*models.Image, error) {
	if in.Body == nil || in.Filename == "" {
		return nil, validation("image", "No image uploaded")
	}
	if !storage.IsImageFile(in.Filename) {
		return nil, validation("image", "Only image files are allowed (jpg, jpeg, png, gif)")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultImageTitle
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return nil, validation("title", "title is too long")
	}
	if in.GameID != nil {
		if _, err := s.games.requirePhase(ctx, *in.GameID, models.StatusCollecting); err != nil {
			return nil, err
		}
	}

	key := uuid.New().String() + strings.ToLower(filepath.Ext(in.Filename))
	if err := s.blobs.Put(ctx, key, in.Body, in.Size, storage.ContentType(key)); err != nil {
		return nil, storageFailure("store image", err)
	}

	image := &models.Image{
		ID:        uuid.New().String(),
		Title:     title,
		ImagePath: key,
		IPAddress: in.IPAddress,
		GameID:    in.GameID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.images.Create(ctx, image); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			log.Error().Err(derr).Str("key", key).Msg("Failed to remove blob after record failure")
		}
		return nil, storageFailure("save image", err)
	}

	log.Info().Str("image_id", image.ID).Str("key", key).Msg("Image uploaded")
	if in.GameID != nil {
		s.notifier.Publish(*in.GameID, EventImageUploaded, image)
	}
	return image, nil
}

// ListImages returns a game's images, or standalone images for a nil gameID
func (s *ContentService) ListImages(ctx context.Context, gameID *string) ([]*models.Image, error) {
	images, err := s.images.List(ctx, gameID)
	if err != nil {
		return nil, storageFailure("list images", err)
	}
	return images, nil
}

// CreateMeme captions an image. In a game the game must be creating and
// the image must belong to it.
func (s *ContentService) CreateMeme(ctx context.Context, gameID *string, in models.MemeInput, ip string) (*models.Meme, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}
	if gameID != nil {
		if _, err := s.games.requirePhase(ctx, *gameID, models.StatusCreating); err != nil {
			return nil, err
		}
	}

	image, err := s.images.GetByID(ctx, in.ImageID)
	if err != nil {
		return nil, lookupFailure("image", err)
	}
	if !sameScope(image.GameID, gameID) {
		return nil, validation("imageId", "Image does not belong to this game")
	}

	meme := &models.Meme{
		ID:         uuid.New().String(),
		ImageID:    image.ID,
		TopText:    in.TopText,
		BottomText: in.BottomText,
		FontType:   in.FontType,
		Creator:    in.Creator,
		IPAddress:  ip,
		GameID:     gameID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.memes.Create(ctx, meme); err != nil {
		return nil, storageFailure("save meme", err)
	}

	log.Info().Str("meme_id", meme.ID).Str("creator", meme.Creator).Msg("Meme created")
	if gameID != nil {
		s.notifier.Publish(*gameID, EventMemeCreated, meme)
	}
	return meme, nil
}

// ListMemes returns memes with their images, newest first
func (s *ContentService) ListMemes(ctx context.Context, gameID *string) ([]*models.MemeWithImage, error) {
	memes, err := s.memes.List(ctx, gameID)
	if err != nil {
		return nil, storageFailure("list memes", err)
	}
	return memes, nil
}

func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
