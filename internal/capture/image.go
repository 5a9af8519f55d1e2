package capture

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"listcart/internal/platform/config"
)

// Normalize decodes a captured frame, applies its EXIF orientation, shrinks
// it to fit the configured bounds and re-encodes it as JPEG.
func Normalize(raw []byte, cfg config.ImageConfig) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	b := img.Bounds()
	if cfg.MaxWidth > 0 && cfg.MaxHeight > 0 && (b.Dx() > cfg.MaxWidth || b.Dy() > cfg.MaxHeight) {
		img = imaging.Fit(img, cfg.MaxWidth, cfg.MaxHeight, imaging.Lanczos)
	}
	quality := cfg.Quality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	return buf.Bytes(), nil
}
