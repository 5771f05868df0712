package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cantalab/leadflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMediaStorage_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	storage := NewLocalMediaStorage(config.MediaConfig{
		Dir:           dir,
		PublicBaseURL: "http://localhost:3000/media/",
		MaxBytes:      1024,
	})

	data := []byte("\xff\xd8\xff\xe0 jpeg-ish payload")
	url, err := storage.Save(context.Background(), data, "image/jpeg", "image")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://localhost:3000/media/image/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	key := strings.TrimPrefix(url, "http://localhost:3000/media/")
	onDisk, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	path, err := storage.Resolve(key)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalMediaStorage_Extensions(t *testing.T) {
	tests := []struct {
		name      string
		mimeType  string
		mediaType string
		want      string
	}{
		{name: "voice note with codec", mimeType: "audio/ogg; codecs=opus", mediaType: "audio", want: ".ogg"},
		{name: "mp4 video", mimeType: "video/mp4", mediaType: "video", want: ".mp4"},
		{name: "png image", mimeType: "image/png", mediaType: "image", want: ".png"},
		{name: "unknown mime falls back to media type", mimeType: "application/x-whatsapp", mediaType: "video", want: ".mp4"},
		{name: "nothing known", mimeType: "application/x-whatsapp", mediaType: "document", want: ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extensionFor(tt.mimeType, tt.mediaType))
		})
	}
}

func TestLocalMediaStorage_Limits(t *testing.T) {
	dir := t.TempDir()
	storage := NewLocalMediaStorage(config.MediaConfig{Dir: dir, PublicBaseURL: "http://x/media", MaxBytes: 4})

	_, err := storage.Save(context.Background(), []byte("12345"), "image/jpeg", "image")
	assert.ErrorIs(t, err, ErrMediaTooLarge)

	for _, key := range []string{"", "../secret", "/etc/passwd", "image/../../secret"} {
		_, err := storage.Resolve(key)
		assert.ErrorIs(t, err, ErrInvalidMediaKey, key)
	}

	_, err = storage.Resolve("image/2025-01-01/missing.jpg")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "image"), 0o755))
	_, err = storage.Resolve("image")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
