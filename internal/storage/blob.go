// Package storage holds uploaded image blobs.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrBlobNotFound is returned when deleting or reading a key that is absent
var ErrBlobNotFound = errors.New("blob not found")

// ImageExtensions are the file extensions accepted for uploads and scanned
// by the orphan sweep
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// BlobInfo describes one stored object
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// BlobStore is the shared image store. Implementations must tolerate
// concurrent puts and deletes of different keys.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]BlobInfo, error)
}

// IsImageFile reports whether key has a known image extension
func IsImageFile(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ContentType guesses the MIME type from an image key
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
