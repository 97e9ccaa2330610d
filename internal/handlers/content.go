package handlers

import (
	"errors"
	"net/http"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/models"
	"memevault-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

// ContentHandler handles image and meme requests, in games and standalone
type ContentHandler struct {
	content        *services.ContentService
	maxUploadBytes int64
}

// NewContentHandler creates a new content handler
func NewContentHandler(content *services.ContentService, maxUploadBytes int64) *ContentHandler {
	return &ContentHandler{content: content, maxUploadBytes: maxUploadBytes}
}

// UploadGameImage handles POST /api/games/{id}/upload
func (h *ContentHandler) UploadGameImage(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	h.upload(w, r, &gameID)
}

// UploadImage handles POST /api/images/upload
func (h *ContentHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, nil)
}

func (h *ContentHandler) upload(w http.ResponseWriter, r *http.Request, gameID *string) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, "File too large", http.StatusBadRequest)
			return
		}
		respondError(w, "No image uploaded", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := services.UploadInput{
		GameID:    gameID,
		Title:     r.FormValue("title"),
		IPAddress: middleware.ClientIP(r),
	}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		in.Body = file
		in.Filename = header.Filename
		in.Size = header.Size
	case errors.Is(err, http.ErrMissingFile):
	default:
		respondError(w, "No image uploaded", http.StatusBadRequest)
		return
	}

	image, err := h.content.UploadImage(r.Context(), in)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID, "ip": in.IPAddress, "filename": in.Filename})
		return
	}
	respondJSON(w, http.StatusCreated, image)
}

// ListGameImages handles GET /api/games/{id}/images
func (h *ContentHandler) ListGameImages(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	h.listImages(w, r, &gameID)
}

// ListImages handles GET /api/images
func (h *ContentHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	h.listImages(w, r, nil)
}

func (h *ContentHandler) listImages(w http.ResponseWriter, r *http.Request, gameID *string) {
	images, err := h.content.ListImages(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	respondJSON(w, http.StatusOK, images)
}

// CreateGameMeme handles POST /api/games/{id}/memes/create
func (h *ContentHandler) CreateGameMeme(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	h.createMeme(w, r, &gameID)
}

// CreateMeme handles POST /api/memes
func (h *ContentHandler) CreateMeme(w http.ResponseWriter, r *http.Request) {
	h.createMeme(w, r, nil)
}

func (h *ContentHandler) createMeme(w http.ResponseWriter, r *http.Request, gameID *string) {
	var in models.MemeInput
	if !decodeJSON(w, r, &in) {
		return
	}

	ip := middleware.ClientIP(r)
	meme, err := h.content.CreateMeme(r.Context(), gameID, in, ip)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID, "image_id": in.ImageID, "ip": ip})
		return
	}
	respondJSON(w, http.StatusCreated, meme)
}

// ListGameMemes handles GET /api/games/{id}/memes
func (h *ContentHandler) ListGameMemes(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	h.listMemes(w, r, &gameID)
}

// ListMemes handles GET /api/memes
func (h *ContentHandler) ListMemes(w http.ResponseWriter, r *http.Request) {
	h.listMemes(w, r, nil)
}

func (h *ContentHandler) listMemes(w http.ResponseWriter, r *http.Request, gameID *string) {
	memes, err := h.content.ListMemes(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}
	respondJSON(w, http.StatusOK, memes)
}
