// Package export assembles named output artifacts and zip archives from the batch
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/UnendingLoop/ImageCompressor/internal/mwlogger"
	"github.com/klauspost/compress/flate"
)

// Batch - контракт к пайплайну: всё что нужно экспорту
type Batch interface {
	Snapshot() []model.ImageRecord
	Params() model.BatchParams
	EnsureCurrent(ctx context.Context, name string) (model.ImageRecord, error)
	WaitQuiescent(ctx context.Context) error
}

// Assembler reads the batch and packages artifacts. It never mutates records
// beyond the synchronous refresh EnsureCurrent performs.
type Assembler struct {
	batch Batch
}

func NewAssembler(b Batch) *Assembler {
	return &Assembler{batch: b}
}

// BuildFilename resolves the output name: renameTarget if set, else the
// original base name, with the extension swapped for the output format's one.
func BuildFilename(rec model.ImageRecord, format model.Format) string {
	base := strings.TrimSpace(rec.RenameTarget)
	if base == "" {
		base = strings.TrimSuffix(rec.Name, filepath.Ext(rec.Name))
	}
	if base == "" {
		base = rec.Name
	}
	return base + model.GetFormatExt[format]
}

// ExportSingle packages one record under its resolved filename, refreshing
// the artifact first if it is stale relative to current batch parameters.
func (a *Assembler) ExportSingle(ctx context.Context, name string) (string, []byte, string, error) {
	rec, err := a.batch.EnsureCurrent(ctx, name)
	if err != nil {
		return "", nil, "", err
	}

	format := a.batch.Params().OutputFormat
	return BuildFilename(rec, format), rec.ProcessedBlob, model.GetFormatMIME[format], nil
}

// ExportBatch builds one archive entry per record in upload order. Waits for
// all pending compressions to settle first. Filename collisions get a numeric
// disambiguator in record order; a failing entry is skipped and reported,
// never aborting the rest of the archive. Empty names means "everything".
func (a *Assembler) ExportBatch(ctx context.Context, names ...string) (string, []byte, []string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := a.batch.WaitQuiescent(ctx); err != nil {
		return "", nil, nil, err
	}

	var include map[string]bool
	if len(names) > 0 {
		include = make(map[string]bool, len(names))
		for _, n := range names {
			include[n] = true
		}
	}

	format := a.batch.Params().OutputFormat

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// дефлейтим силами klauspost вместо стокового компрессора
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	var skipped []string
	seen := make(map[string]int)
	entries := 0

	for _, rec := range a.batch.Snapshot() {
		if include != nil && !include[rec.Name] {
			continue
		}

		fresh, err := a.batch.EnsureCurrent(ctx, rec.Name)
		if err != nil {
			logger.Warn().Err(err).Str("image", rec.Name).Msg("Skipping image in batch export")
			skipped = append(skipped, rec.Name)
			continue
		}

		entryName := disambiguate(BuildFilename(fresh, format), seen)
		w, err := zw.Create(entryName)
		if err != nil {
			logger.Warn().Err(err).Str("image", rec.Name).Msg("Failed to create archive entry")
			skipped = append(skipped, rec.Name)
			continue
		}
		if _, err := w.Write(fresh.ProcessedBlob); err != nil {
			// сам writer сломан - дальше писать некуда
			_ = zw.Close()
			return "", nil, skipped, fmt.Errorf("failed to write archive entry %q: %w", entryName, err)
		}
		entries++
	}

	if err := zw.Close(); err != nil {
		return "", nil, skipped, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if entries == 0 {
		return "", nil, skipped, model.ErrEmptyBatch
	}

	return model.ArchiveName, buf.Bytes(), skipped, nil
}

// disambiguate appends -2, -3... to repeated filenames, in record order.
func disambiguate(name string, seen map[string]int) string {
	n := seen[name]
	seen[name]++
	if n == 0 {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if seen[candidate] == 0 {
			seen[candidate]++
			return candidate
		}
	}
}
