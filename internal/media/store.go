// Package media stores uploaded post images on local disk.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"inkwell/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// Dir is the subdirectory of the media root holding post images.
	Dir = "blog_media"

	DefaultMaxUploadSizeMB = 5
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store writes images under Root and hands out paths relative to it.
type Store struct {
	Root           string
	MaxUploadBytes int64
}

// NewStore returns a Store rooted at root. A non-positive maxMB selects the default limit.
func NewStore(root string, maxMB int) *Store {
	if maxMB <= 0 {
		maxMB = DefaultMaxUploadSizeMB
	}
	return &Store{
		Root:           root,
		MaxUploadBytes: int64(maxMB) * 1024 * 1024,
	}
}

func invalid(msg string) error {
	return models.NewFieldValidationError(map[string][]string{"media": {msg}})
}

// Save validates that r holds a supported image and writes it under Dir with a random name.
// The original filename only appears in error messages; the extension follows the detected type.
func (s *Store) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	content, err := io.ReadAll(io.LimitReader(r, s.MaxUploadBytes+1))
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if len(content) == 0 {
		return "", invalid("The submitted file is empty.")
	}
	if int64(len(content)) > s.MaxUploadBytes {
		return "", invalid(fmt.Sprintf("File too large (max %dMB).", s.MaxUploadBytes/(1024*1024)))
	}

	ext, ok := allowedTypes[mimetype.Detect(content).String()]
	if !ok {
		return "", invalid("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(content)); err != nil {
		return "", invalid("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	rel := filepath.ToSlash(filepath.Join(Dir, uuid.NewString()+ext))
	abs := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", models.NewInternalError(fmt.Errorf("create media dir for %q: %w", filename, err))
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return "", models.NewInternalError(fmt.Errorf("write media %q: %w", filename, err))
	}
	return rel, nil
}

// Delete removes a file previously returned by Save. Missing files are not an error.
func (s *Store) Delete(_ context.Context, rel string) error {
	abs, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve maps a stored path to disk, refusing anything outside Root.
func (s *Store) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("media path %q escapes the media root", rel)
	}
	return filepath.Join(s.Root, clean), nil
}
