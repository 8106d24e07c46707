// Package imageproc provides post-processing of provider results: format detection and resizing.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// Resizer scales the image; a zero side keeps the aspect ratio.
func Resizer(r io.Reader, x, y int, format imaging.Format) (io.Reader, int64, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader provided to Resizer")
	}
	if x <= 0 && y <= 0 {
		return nil, -1, errors.New("both sides are empty in Resizer")
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to DEcode image in Resizer: %w", err)
	}

	resized := imaging.Resize(img, x, y, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode image in Resizer: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
