package transcode

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/autolot/internal/common"
)

// Canonical media types accepted for upload.
const (
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"
	MediaGIF  = "image/gif"
	MediaWebP = "image/webp"
	MediaHEIC = "image/heic"
	MediaHEIF = "image/heif"
)

var declaredTypes = map[string]string{
	"image/jpeg":  MediaJPEG,
	"image/jpg":   MediaJPEG,
	"image/pjpeg": MediaJPEG,
	"image/png":   MediaPNG,
	"image/gif":   MediaGIF,
	"image/webp":  MediaWebP,
	"image/heic":  MediaHEIC,
	"image/heif":  MediaHEIF,
}

var extensionTypes = map[string]string{
	".jpg":  MediaJPEG,
	".jpeg": MediaJPEG,
	".png":  MediaPNG,
	".gif":  MediaGIF,
	".webp": MediaWebP,
	".heic": MediaHEIC,
	".heif": MediaHEIF,
}

// ResolveMediaType maps a declared content type, or the filename extension
// when nothing useful was declared, onto a canonical allowed type. Anything
// outside the allow-list fails with common.ErrUnsupportedMediaType.
func ResolveMediaType(declared, filename string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}

	if mt != "" && mt != "application/octet-stream" {
		if canonical, ok := declaredTypes[mt]; ok {
			return canonical, nil
		}
		return "", fmt.Errorf("%w: %s", common.ErrUnsupportedMediaType, declared)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if canonical, ok := extensionTypes[ext]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnsupportedMediaType, filename)
}
