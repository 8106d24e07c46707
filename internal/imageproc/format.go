package imageproc

import (
	"bytes"
	"errors"
	"image"

	// декодеры для DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// DetectFormat reads only the header of data; PNG, JPEG and GIF are accepted.
func DetectFormat(data []byte) (imaging.Format, error) {
	if len(data) == 0 {
		return -1, errors.New("empty image data")
	}

	_, f, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return -1, err
	}

	format, err := imaging.FormatFromExtension(f)
	if err != nil {
		return -1, err
	}

	switch format {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
		return format, nil
	default:
		return -1, ErrUnsupportedFormat
	}
}
