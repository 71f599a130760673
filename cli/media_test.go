package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/richinex/steward/brain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadMediaByExtension(t *testing.T) {
	path := writeFile(t, "memo.OGG", []byte("OggS...."))

	media, err := LoadMedia(brain.MediaVoice, path)
	require.NoError(t, err)
	assert.Equal(t, brain.MediaVoice, media.Kind)
	assert.Equal(t, "audio/ogg", media.MIMEType)
	assert.Equal(t, []byte("OggS...."), media.Data)
}

func TestLoadMediaSniffsUnknownExtension(t *testing.T) {
	path := writeFile(t, "photo.bin", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"))

	media, err := LoadMedia(brain.MediaImage, path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", media.MIMEType)
}

func TestLoadMediaRejectsWrongKind(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("plain text"))

	_, err := LoadMedia(brain.MediaImage, path)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	path = writeFile(t, "cat.png", []byte("\x89PNG\r\n\x1a\n"))
	_, err = LoadMedia(brain.MediaVoice, path)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestLoadMediaMissingFile(t *testing.T) {
	_, err := LoadMedia(brain.MediaVoice, filepath.Join(t.TempDir(), "gone.ogg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read media file")

	_, err = LoadMedia(brain.MediaVoice, t.TempDir())
	require.Error(t, err)
}
