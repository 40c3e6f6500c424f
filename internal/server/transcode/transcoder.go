// Package transcode turns uploaded images into bounded-width webp files.
//
// Small webp inputs that already satisfy the output profile are passed
// through untouched; everything else is decoded, auto-oriented, downscaled
// and re-encoded by an Engine.
package transcode

import (
	"bytes"
	"fmt"

	xwebp "golang.org/x/image/webp"

	"github.com/dmitrijs2005/autolot/internal/common"
)

// Outcome tells how Normalize produced its output.
type Outcome int

const (
	OutcomeTranscoded Outcome = iota
	OutcomeCopied
)

func (o Outcome) String() string {
	if o == OutcomeCopied {
		return "copied"
	}
	return "transcoded"
}

// Profile is the target shape of every normalized asset.
type Profile struct {
	MaxWidth     int
	Quality      int
	SkipMaxBytes int64
	SkipMaxWidth int
}

// DefaultProfile matches the listing pages: 1400px wide webp at quality 75.
var DefaultProfile = Profile{
	MaxWidth:     1400,
	Quality:      75,
	SkipMaxBytes: 400 << 10,
	SkipMaxWidth: 1400,
}

// Engine decodes raw image bytes of the given canonical media type,
// applies EXIF orientation, downscales to p.MaxWidth without enlarging and
// encodes webp at p.Quality. Decode failures must wrap common.ErrDecodeFailed.
type Engine interface {
	Transcode(raw []byte, mediaType string, p Profile) ([]byte, error)
}

// Transcoder applies a Profile using an Engine. It is safe for concurrent
// use if the Engine is.
type Transcoder struct {
	engine  Engine
	profile Profile
}

func New(engine Engine, p Profile) *Transcoder {
	return &Transcoder{engine: engine, profile: p}
}

func (t *Transcoder) Profile() Profile {
	return t.profile
}

// Normalize returns webp bytes for raw. mediaType must be a canonical type
// from ResolveMediaType. The declared type is not cross-checked against the
// content: any decodable allowed image is accepted.
func (t *Transcoder) Normalize(raw []byte, mediaType string) ([]byte, Outcome, error) {
	if len(raw) == 0 {
		return nil, OutcomeTranscoded, fmt.Errorf("%w: empty input", common.ErrDecodeFailed)
	}

	if t.canSkip(raw, mediaType) {
		return raw, OutcomeCopied, nil
	}

	out, err := t.engine.Transcode(raw, mediaType, t.profile)
	if err != nil {
		return nil, OutcomeTranscoded, err
	}
	return out, OutcomeTranscoded, nil
}

func (t *Transcoder) canSkip(raw []byte, mediaType string) bool {
	if mediaType != MediaWebP || int64(len(raw)) > t.profile.SkipMaxBytes {
		return false
	}
	cfg, err := xwebp.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	return cfg.Width > 0 && cfg.Width <= t.profile.SkipMaxWidth
}

// TargetWidth returns the output width for an image of the given stored
// dimensions and EXIF orientation, or 0 when no downscale is needed.
// Orientations 5 to 8 are rotated by 90 degrees, so their displayed width
// is the stored height.
func TargetWidth(width, height, orientation, maxWidth int) int {
	if orientation >= 5 && orientation <= 8 {
		width = height
	}
	if maxWidth <= 0 || width <= maxWidth {
		return 0
	}
	return maxWidth
}
