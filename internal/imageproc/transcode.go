// Package imageproc contains pure image operations: dimension probing and transcoding
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// webp-декодер не входит в imaging - регистрируем отдельно
	_ "golang.org/x/image/webp"
)

// Codec is the stateless ImageCodec used by the pipeline and export.
type Codec struct{}

// DecodeDimensions probes pixel dimensions without decoding the full image.
func (Codec) DecodeDimensions(blob []byte) (int, int, error) {
	if len(blob) == 0 {
		return 0, 0, model.ErrEmptySource
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Transcode re-encodes blob to the target format/quality, rescaling to the
// target dimensions when given. Both targets must be set together - the codec
// never infers aspect ratio, that is the caller's job. Quality is [0.0, 1.0]
// and applies to lossy formats only.
func (Codec) Transcode(blob []byte, targetW, targetH *int, format model.Format, quality float64) ([]byte, error) {
	if len(blob) == 0 {
		return nil, model.ErrEmptySource
	}
	if !model.FormatsMap[format] {
		return nil, fmt.Errorf("%w: %q", model.ErrBadFormat, format)
	}
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return nil, model.ErrBadQuality
	}
	if (targetW == nil) != (targetH == nil) {
		return nil, fmt.Errorf("%w: codec needs both target dimensions or none", model.ErrBadDimension)
	}
	if targetW != nil && (*targetW <= 0 || *targetH <= 0) {
		return nil, model.ErrBadDimension
	}

	img, err := imaging.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	if targetW != nil {
		img = imaging.Resize(img, *targetW, *targetH, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch format {
	case model.FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(percentQuality(quality)))
	case model.FormatPNG:
		// png - лоссless, quality игнорируем
		err = imaging.Encode(&buf, img, imaging.PNG)
	case model.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(percentQuality(quality))})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEncode, err)
	}

	return buf.Bytes(), nil
}

// IsDecodable reports whether the blob is a supported image container at all.
// Used to tell a corrupt upload from a valid image that simply has no metadata.
func (c Codec) IsDecodable(blob []byte) bool {
	_, _, err := c.DecodeDimensions(blob)
	return err == nil
}

// percentQuality maps [0.0, 1.0] onto encoder scale 1-100.
func percentQuality(q float64) int {
	p := int(math.Round(q * 100))
	if p < 1 {
		p = 1
	}
	if p > 100 {
		p = 100
	}
	return p
}
