package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/utils"
	"github.com/google/uuid"
)

var (
	ErrMediaTooLarge   = errors.New("media exceeds the size limit")
	ErrInvalidMediaKey = errors.New("invalid media key")
)

// MediaStorage persists inbound media and returns a public URL for it
type MediaStorage interface {
	Save(ctx context.Context, data []byte, mimeType, mediaType string) (string, error)
	// Resolve maps a key produced by Save to the path of the stored file
	Resolve(key string) (string, error)
}

// LocalMediaStorage stores media files under a directory served by the HTTP layer
type LocalMediaStorage struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewLocalMediaStorage creates a disk backed storage
func NewLocalMediaStorage(cfg config.MediaConfig) *LocalMediaStorage {
	return &LocalMediaStorage{
		dir:      cfg.Dir,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: cfg.MaxBytes,
	}
}

// Save writes data to <dir>/<mediaType>/<date>/<uuid><ext> and returns its URL
func (s *LocalMediaStorage) Save(ctx context.Context, data []byte, mimeType, mediaType string) (string, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", ErrMediaTooLarge
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	dateDir := utils.UTCNow().Format("2006-01-02")
	relDir := filepath.Join(mediaType, dateDir)
	if err := os.MkdirAll(filepath.Join(s.dir, relDir), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	name := uuid.New().String() + extensionFor(mimeType, mediaType)
	rel := filepath.Join(relDir, name)
	if err := os.WriteFile(filepath.Join(s.dir, rel), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	return s.baseURL + "/" + filepath.ToSlash(rel), nil
}

// Resolve returns the absolute path of a stored file by its key relative to the storage directory.
// Keys escaping the directory yield ErrInvalidMediaKey; missing files and directories yield os.ErrNotExist.
func (s *LocalMediaStorage) Resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidMediaKey
	}

	path, err := filepath.Abs(filepath.Join(s.dir, cleaned))
	if err != nil {
		return "", fmt.Errorf("failed to resolve media path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("media key %s: %w", key, os.ErrNotExist)
	}
	return path, nil
}

func extensionFor(mimeType, mediaType string) string {
	base := strings.TrimSpace(strings.Split(mimeType, ";")[0])
	switch base {
	case "image/jpeg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	case "audio/ogg":
		return ".ogg"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	switch mediaType {
	case string(MediaKindImage):
		return ".jpg"
	case string(MediaKindVideo):
		return ".mp4"
	case string(MediaKindAudio):
		return ".ogg"
	}
	return ".bin"
}
