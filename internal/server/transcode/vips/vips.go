// Package vips provides a libvips-backed transcode engine via bimg. It
// handles every allowed input type, HEIC/HEIF included. Importing the
// package registers the engine as "vips".
package vips

import (
	"fmt"

	"github.com/h2non/bimg"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/server/transcode"
)

func init() {
	transcode.Register("vips", func() transcode.Engine { return NewEngine() })
}

// Engine transcodes with libvips. libvips keeps its own thread pool; the
// ingestor's concurrency bound still limits how many images are in flight.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (Engine) Transcode(raw []byte, mediaType string, p transcode.Profile) ([]byte, error) {
	img := bimg.NewImage(raw)

	meta, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecodeFailed, err)
	}

	opts := bimg.Options{
		Type:          bimg.WEBP,
		Quality:       p.Quality,
		StripMetadata: true,
	}
	if w := transcode.TargetWidth(meta.Size.Width, meta.Size.Height, meta.Orientation, p.MaxWidth); w > 0 {
		opts.Width = w
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecodeFailed, err)
	}
	return out, nil
}
