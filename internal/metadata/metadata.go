// Package metadata reads embedded descriptive fields from image blobs
package metadata

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/UnendingLoop/ImageCompressor/internal/imageproc"
	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/evanoberholster/imagemeta"
)

// Extractor is the read-only MetadataExtractor. Stateless.
type Extractor struct{}

// Extract returns the fixed descriptive field set for the blob. Every field
// is always present in the result; a valid image without EXIF yields an
// all-empty map and no error. ErrMetadata is returned only when the blob is
// not a readable image container at all.
//
// imagemeta exposes the classic EXIF descriptive tags; fields the container
// simply doesn't carry (subject, rating, tags, comments живут в XMP/XP-тегах)
// stay empty strings.
func (Extractor) Extract(blob []byte) (map[string]string, error) {
	fields := model.EmptyMetadata()

	exif, err := imagemeta.Decode(bytes.NewReader(blob))
	if err != nil {
		// отличаем битый контейнер от валидной картинки просто без EXIF
		if !(imageproc.Codec{}).IsDecodable(blob) {
			return nil, fmt.Errorf("%w: %v", model.ErrMetadata, err)
		}
		return fields, nil
	}

	fields["title"] = strings.TrimSpace(exif.ImageDescription)
	fields["authors"] = strings.TrimSpace(exif.Artist)
	fields["copyright"] = strings.TrimSpace(exif.Copyright)

	return fields, nil
}
