package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/richinex/steward/brain"
)

// MaxMediaBytes bounds attachments read from disk.
const MaxMediaBytes = 20 << 20

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrMediaTooLarge    = errors.New("media file is too large")
)

var mediaTypes = map[string]string{
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".flac": "audio/flac",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// LoadMedia reads an attachment of the given kind from path.
func LoadMedia(kind brain.MediaKind, path string) (*brain.Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to read media file: %s is a directory", path)
	}
	if info.Size() > MaxMediaBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMediaTooLarge, info.Size(), MaxMediaBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}

	mimeType := detectMediaType(path, data)
	if !matchesKind(kind, mimeType) {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrUnsupportedMedia, filepath.Base(path), mimeType, kind)
	}
	return &brain.Media{Kind: kind, MIMEType: mimeType, Data: data}, nil
}

// detectMediaType prefers the file extension and falls back to content sniffing.
func detectMediaType(path string, data []byte) string {
	if t, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	t := http.DetectContentType(data)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

func matchesKind(kind brain.MediaKind, mimeType string) bool {
	switch kind {
	case brain.MediaVoice:
		return strings.HasPrefix(mimeType, "audio/") || mimeType == "application/ogg" || mimeType == "video/webm"
	case brain.MediaImage:
		return strings.HasPrefix(mimeType, "image/")
	default:
		return false
	}
}
