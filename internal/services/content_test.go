package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"memevault-backend/internal/models"
	"memevault-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadImageGuardsPhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game, err := env.games.CreateGame(ctx, "Friday Memes", "Alice")
	require.NoError(t, err)

	img := env.upload(t, &game.ID, "cat.PNG")
	assert.Equal(t, "Untitled", img.Title)
	assert.True(t, strings.HasSuffix(img.ImagePath, ".png"))
	assert.Equal(t, game.ID, *img.GameID)

	env.advanceTo(t, game, models.StatusCreating)
	_, err = env.content.UploadImage(ctx, UploadInput{
		GameID: &game.ID, Filename: "dog.png", Body: strings.NewReader("x"), Size: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	blobs, err := env.blobs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, blobs, 1, "a rejected upload stores nothing")
}

func TestUploadImageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.content.UploadImage(ctx, UploadInput{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.content.UploadImage(ctx, UploadInput{Filename: "notes.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrValidation)

	missing := "missing"
	_, err = env.content.UploadImage(ctx, UploadInput{GameID: &missing, Filename: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingImages struct {
	ImageRepository
}

func (failingImages) Create(context.Context, *models.Image) error {
	return errors.New("db down")
}

func TestUploadImageRemovesBlobWhenRecordFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content := NewContentService(env.games, failingImages{env.db.Images()}, env.db.Memes(), env.blobs)

	_, err := content.UploadImage(ctx, UploadInput{Filename: "a.png", Body: strings.NewReader("x"), Size: 1})
	assert.ErrorIs(t, err, ErrStorage)

	blobs, err := env.blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestCreateMemeGuardsPhaseAndScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game, err := env.games.CreateGame(ctx, "g", "Alice")
	require.NoError(t, err)
	other, err := env.games.CreateGame(ctx, "other", "Carol")
	require.NoError(t, err)
	img := env.upload(t, &game.ID, "a.png")
	foreign := env.upload(t, &other.ID, "b.png")

	input := models.MemeInput{ImageID: img.ID, TopText: "WOW", Creator: "Bob"}
	_, err = env.content.CreateMeme(ctx, &game.ID, input, "10.0.0.2")
	assert.ErrorIs(t, err, ErrInvalidState)

	env.advanceTo(t, game, models.StatusCreating)
	meme, err := env.content.CreateMeme(ctx, &game.ID, input, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, "Bob", meme.Creator)
	assert.Equal(t, models.DefaultFontType, meme.FontType)

	_, err = env.content.CreateMeme(ctx, &game.ID, models.MemeInput{ImageID: foreign.ID, Creator: "Bob"}, "x")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.content.CreateMeme(ctx, &game.ID, models.MemeInput{ImageID: "nope", Creator: "Bob"}, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	memes, err := env.content.ListMemes(ctx, &game.ID)
	require.NoError(t, err)
	require.Len(t, memes, 1)
	assert.Equal(t, img.ID, memes[0].Image.ID)
}

func TestStandaloneContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	img := env.upload(t, nil, "solo.gif")
	assert.Nil(t, img.GameID)

	meme, err := env.content.CreateMeme(ctx, nil, models.MemeInput{ImageID: img.ID, BottomText: "hi", Creator: "anon"}, "1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, meme.GameID)

	images, err := env.content.ListImages(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

type countingStore struct {
	storage.BlobStore
	puts int
}

func (c *countingStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	c.puts++
	return c.BlobStore.Put(ctx, key, body, size, contentType)
}

func TestUploadWritesBlobUnderGeneratedKey(t *testing.T) {
	env := newTestEnv(t)
	store := &countingStore{BlobStore: env.blobs}
	content := NewContentService(env.games, env.db.Images(), env.db.Memes(), store)

	img, err := content.UploadImage(context.Background(), UploadInput{Filename: "../../etc/x.jpg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)
	assert.NotContains(t, img.ImagePath, "/")
}
