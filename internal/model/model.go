// Package model provides data-structs for internal app-usage
package model

import (
	"errors"

	"github.com/google/uuid"
)

// Status reflects where a record is in the recompression lifecycle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

var StatusMap = map[Status]bool{
	StatusIdle:       true,
	StatusPending:    true,
	StatusProcessing: true,
	StatusReady:      true,
	StatusFailed:     true,
}

//---------------------

// Format is the target encoding of processed images.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

var FormatsMap = map[Format]bool{
	FormatJPEG: true,
	FormatPNG:  true,
	FormatWebP: true,
}

var GetFormatExt = map[Format]string{
	FormatJPEG: ".jpeg",
	FormatPNG:  ".png",
	FormatWebP: ".webp",
}

var GetFormatMIME = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatWebP: "image/webp",
}

//---------------------

// MetadataFields - фиксированный набор полей, которые достаем из картинки и даем редактировать
var MetadataFields = []string{"title", "subject", "rating", "tags", "comments", "authors", "copyright"}

var MetadataFieldsMap = func() map[string]bool {
	m := make(map[string]bool, len(MetadataFields))
	for _, f := range MetadataFields {
		m[f] = true
	}
	return m
}()

// EmptyMetadata returns the full field set mapped to empty strings -
// missing fields are never absent keys.
func EmptyMetadata() map[string]string {
	m := make(map[string]string, len(MetadataFields))
	for _, f := range MetadataFields {
		m[f] = ""
	}
	return m
}

//---------------------

// AppliedParams remembers what an artifact was actually produced with,
// so export can tell a stale artifact from a current one.
type AppliedParams struct {
	Quality      float64
	TargetWidth  *int
	TargetHeight *int
	Format       Format
}

// Equal compares by value, nil target means "preserve source dimension".
func (a *AppliedParams) Equal(b *AppliedParams) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Quality == b.Quality &&
		a.Format == b.Format &&
		intPtrEqual(a.TargetWidth, b.TargetWidth) &&
		intPtrEqual(a.TargetHeight, b.TargetHeight)
}

func intPtrEqual(x, y *int) bool {
	if x == nil || y == nil {
		return x == y
	}
	return *x == *y
}

// ImageRecord - one per uploaded image, lives in the ItemStore for the whole session.
type ImageRecord struct {
	UID           uuid.UUID         `json:"uid"`
	Name          string            `json:"name"`
	OriginalBlob  []byte            `json:"-"`
	OriginalSize  int64             `json:"original_size"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	ProcessedBlob []byte            `json:"-"`
	ProcessedSize int64             `json:"processed_size"`
	Quality       *float64          `json:"quality,omitempty"` // явный пер-айтем оверрайд; nil = берем глобальное значение
	Metadata      map[string]string `json:"metadata"`
	RenameTarget  string            `json:"rename,omitempty"`
	Status        Status            `json:"status"`

	// Seq grows with every recompression request for this record;
	// a completion carrying an older value is discarded.
	Seq uint64 `json:"-"`

	// Requested - параметры последнего запроса; доставка читает их из записи,
	// а не из полезной нагрузки, пережившей окно дебаунса
	Requested *AppliedParams `json:"-"`
	Applied   *AppliedParams `json:"-"`
}

// ResolveQuality - оверрайд всегда важнее глобального значения
func (r *ImageRecord) ResolveQuality(global float64) float64 {
	if r.Quality != nil {
		return *r.Quality
	}
	return global
}

// BatchParams - process-wide transcoding parameters.
type BatchParams struct {
	Quality      float64 `json:"quality"`
	TargetWidth  *int    `json:"target_width,omitempty"`  // nil = preserve source width
	TargetHeight *int    `json:"target_height,omitempty"` // nil = preserve source height
	OutputFormat Format  `json:"output_format"`
}

// DefaultBatchParams - webp на полном качестве без ресайза, как при старте сессии
func DefaultBatchParams() BatchParams {
	return BatchParams{Quality: 1.0, OutputFormat: FormatWebP}
}

// ------------------

var (
	ErrCommon500      error = errors.New("something went wrong. Try again later")          // 500
	ErrImageNotFound  error = errors.New("specified image doesn't exist in the batch")     // 404
	ErrResultNotReady error = errors.New("requested image is not processed yet")           // 404
	ErrEmptySource    error = errors.New("empty/incorrect source image provided")          // 400
	ErrDecode         error = errors.New("unreadable source image")                        // 400
	ErrEncode         error = errors.New("failed to encode image with given parameters")   // 500
	ErrMetadata       error = errors.New("unreadable metadata container")                  // 400
	ErrCollision      error = errors.New("unresolved filename collision during export")    // 500
	ErrBadQuality     error = errors.New("quality must be a number within [0.0, 1.0]")     // 400
	ErrBadDimension   error = errors.New("target dimensions must be positive integers")    // 400
	ErrBadFormat      error = errors.New("output format is not supported")                 // 400
	ErrBadField       error = errors.New("metadata field is not supported")                // 400
	ErrEmptyBatch     error = errors.New("no images uploaded yet - nothing to export")     // 404
	ErrBatchCleared   error = errors.New("batch was cleared while the request was queued") // 409
)

// ------------------

// ArchiveName is the fixed filename of the batch export zip.
const ArchiveName = "compressed_images.zip"
