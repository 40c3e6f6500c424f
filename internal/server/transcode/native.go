package transcode

import (
	"bytes"
	"fmt"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/autolot/internal/common"
)

// NativeEngine transcodes in pure Go. It reads JPEG, PNG, GIF and WebP;
// HEIC/HEIF inputs fail with common.ErrDecodeFailed.
type NativeEngine struct{}

func NewNativeEngine() *NativeEngine {
	return &NativeEngine{}
}

func (NativeEngine) Transcode(raw []byte, mediaType string, p Profile) ([]byte, error) {
	if mediaType == MediaHEIC || mediaType == MediaHEIF {
		return nil, fmt.Errorf("%w: %s not supported by the native engine", common.ErrDecodeFailed, mediaType)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecodeFailed, err)
	}

	// AutoOrientation already rotated the pixels, so orientation 1 applies.
	b := img.Bounds()
	if w := TargetWidth(b.Dx(), b.Dy(), 1, p.MaxWidth); w > 0 {
		img = imaging.Resize(img, w, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(p.Quality)}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
