package files

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"gram/internal/backend"
)

// NewHandle builds a local handle for a file path, probing image
// dimensions when the file decodes as one. Non-images get a plain handle.
func NewHandle(path string) (*backend.LocalHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	h := &backend.LocalHandle{
		Token: uuid.NewString(),
		Name:  filepath.Base(path),
		Path:  path,
		Size:  info.Size(),
	}
	if w, ht, ok := imageSize(path); ok {
		h.Width = w
		h.Height = ht
	}
	return h, nil
}

// imageSize decodes just the image header.
func imageSize(path string) (w, h int, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
