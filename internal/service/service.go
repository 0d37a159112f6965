// Package service provides business-logic for the app: the compression pipeline
package service

import (
	"context"
	"sync"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/debounce"
	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/UnendingLoop/ImageCompressor/internal/mwlogger"
	"github.com/UnendingLoop/ImageCompressor/internal/store"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// ImageCodec - контракт для работы с транскодером
type ImageCodec interface {
	DecodeDimensions(blob []byte) (int, int, error)
	Transcode(blob []byte, targetW, targetH *int, format model.Format, quality float64) ([]byte, error)
}

// MetadataSource - контракт для чтения EXIF-полей из исходника
type MetadataSource interface {
	Extract(blob []byte) (map[string]string, error)
}

// seedQuality - стартовое качество для только что загруженной картинки,
// пока юзер не выставил свой оверрайд
const seedQuality = 1.0

// Pipeline orchestrates codec, metadata extraction, debounce and the record
// store. It guarantees that a record only ever reflects the most recently
// requested parameters: every request stamps a fresh per-record sequence
// number and its parameters onto the record, delivery executes whatever the
// record's latest request asks for, and a completion carrying an older
// sequence is dropped, not applied.
type Pipeline struct {
	store    *store.ItemStore
	codec    ImageCodec
	meta     MetadataSource
	requests *debounce.Coalescer[string, struct{}]

	paramsMu sync.RWMutex
	params   model.BatchParams

	quietMu sync.Mutex
	quiet   *sync.Cond

	inflight sync.WaitGroup
}

// compressJob - билет на один энкод: параметры плюс uid+seq,
// по которым коммит отсекает устаревший результат
type compressJob struct {
	uid     uuid.UUID
	seq     uint64
	quality float64
	width   *int
	height  *int
	format  model.Format
}

// NewPipeline wires the pipeline. window <= 0 falls back to the default
// quiescence window (300ms).
func NewPipeline(codec ImageCodec, meta MetadataSource, window time.Duration) *Pipeline {
	p := &Pipeline{
		store:  store.New(),
		codec:  codec,
		meta:   meta,
		params: model.DefaultBatchParams(),
	}
	p.quiet = sync.NewCond(&p.quietMu)
	p.requests = debounce.New(window, p.deliver)
	return p
}

// Seed creates a record for an uploaded image and immediately requests the
// initial compression at full quality with the current batch targets.
// Metadata extraction failure is not fatal - the record starts with an
// empty field set instead.
func (p *Pipeline) Seed(ctx context.Context, name string, blob []byte) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if name == "" || len(blob) == 0 {
		return model.ErrEmptySource
	}

	// размеры исходника нужны сразу - и для рендера, и для достройки пропорций
	w, h, err := p.codec.DecodeDimensions(blob)
	if err != nil {
		return err
	}

	fields, err := p.meta.Extract(blob)
	if err != nil {
		logger.Warn().Err(err).Str("image", name).Msg("Metadata extraction failed, seeding with empty fields")
		fields = model.EmptyMetadata()
	}

	p.store.Seed(&model.ImageRecord{
		UID:          uuid.New(),
		Name:         name,
		OriginalBlob: blob,
		OriginalSize: int64(len(blob)),
		Width:        w,
		Height:       h,
		Metadata:     fields,
		Status:       model.StatusIdle,
	})

	params := p.Params()
	return p.RequestRecompression(ctx, name, seedQuality, params.TargetWidth, params.TargetHeight)
}

// RequestRecompression is the single entry point for every parameter change.
// It stamps the next sequence number and the requested parameters onto the
// record, marks it pending and nudges the coalescer - a rapid burst for one
// name ends up as exactly one transcode with the last requested parameters.
func (p *Pipeline) RequestRecompression(ctx context.Context, name string, quality float64, width, height *int) error {
	if err := validateQuality(quality); err != nil {
		return err
	}
	if err := validateTargets(width, height); err != nil {
		return err
	}

	format := p.Params().OutputFormat

	if err := p.store.Upsert(name, func(rec *model.ImageRecord) {
		rec.Seq++
		rec.Status = model.StatusPending
		rec.Requested = &model.AppliedParams{
			Quality:      quality,
			TargetWidth:  width,
			TargetHeight: height,
			Format:       format,
		}
	}); err != nil {
		return err
	}

	p.requests.Submit(name, struct{}{})
	return nil
}

// deliver runs when a key survives its quiescence window. The queued payload
// carries nothing - the job is rebuilt from the record's latest stamped
// request, so the submit order of concurrent requests for one name cannot
// strand a newer stamp behind an older payload.
func (p *Pipeline) deliver(name string, _ struct{}) {
	var (
		taken      bool
		job        compressJob
		blob       []byte
		srcW, srcH int
	)
	if err := p.store.Upsert(name, func(rec *model.ImageRecord) {
		if rec.Status != model.StatusPending || rec.Requested == nil {
			return // запись уже забрал более свежий путь
		}
		taken = true
		rec.Status = model.StatusProcessing
		job = compressJob{
			uid:     rec.UID,
			seq:     rec.Seq,
			quality: rec.Requested.Quality,
			width:   rec.Requested.TargetWidth,
			height:  rec.Requested.TargetHeight,
			format:  rec.Requested.Format,
		}
		blob = rec.OriginalBlob
		srcW, srcH = rec.Width, rec.Height
	}); err != nil || !taken {
		p.wakeWaiters()
		return
	}

	// недостающую ось достраиваем по пропорциям исходника - кодек этого не делает
	tw, th := resolveTargets(job.width, job.height, srcW, srcH)
	applied := &model.AppliedParams{
		Quality:      job.quality,
		TargetWidth:  job.width,
		TargetHeight: job.height,
		Format:       job.format,
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		out, err := p.codec.Transcode(blob, tw, th, job.format, job.quality)
		p.commit(name, job, out, applied, err)
	}()
}

// commit writes a completed transcode back, unless a newer request took over
// the record while we were encoding.
func (p *Pipeline) commit(name string, job compressJob, out []byte, applied *model.AppliedParams, encErr error) {
	stale := true
	err := p.store.Upsert(name, func(rec *model.ImageRecord) {
		if rec.UID != job.uid || rec.Seq != job.seq {
			return
		}
		stale = false
		if encErr != nil {
			// прежний годный превью не трогаем - только статус
			rec.Status = model.StatusFailed
			return
		}
		rec.ProcessedBlob = out
		rec.ProcessedSize = int64(len(out))
		rec.Status = model.StatusReady
		rec.Applied = applied
	})

	switch {
	case err != nil:
		zlog.Logger.Debug().Str("image", name).Msg("Dropping completion for a record that left the batch")
	case stale:
		zlog.Logger.Debug().Str("image", name).Uint64("seq", job.seq).Msg("Dropping stale completion")
	case encErr != nil:
		zlog.Logger.Error().Err(encErr).Str("image", name).Msg("Compression failed")
	}

	p.wakeWaiters()
}

// SetQualityOverride stores an explicit per-item quality and triggers the
// per-item recompression path.
func (p *Pipeline) SetQualityOverride(ctx context.Context, name string, quality float64) error {
	if err := validateQuality(quality); err != nil {
		return err
	}

	if err := p.store.Upsert(name, func(rec *model.ImageRecord) {
		q := quality
		rec.Quality = &q
	}); err != nil {
		return err
	}

	params := p.Params()
	return p.RequestRecompression(ctx, name, quality, params.TargetWidth, params.TargetHeight)
}

// SetBatchParams swaps the global parameters and fans recompression out.
// Gating rule: a format change always propagates to every record; quality
// and dimension changes reprocess only records without an explicit quality
// override - those are under manual control until their own quality changes.
func (p *Pipeline) SetBatchParams(ctx context.Context, params model.BatchParams) error {
	if err := validateBatchParams(params); err != nil {
		return err
	}

	p.paramsMu.Lock()
	old := p.params
	p.params = params
	p.paramsMu.Unlock()

	formatChanged := old.OutputFormat != params.OutputFormat
	tuningChanged := old.Quality != params.Quality ||
		!intPtrEqual(old.TargetWidth, params.TargetWidth) ||
		!intPtrEqual(old.TargetHeight, params.TargetHeight)

	if !formatChanged && !tuningChanged {
		return nil
	}

	logger := mwlogger.LoggerFromContext(ctx)
	for _, rec := range p.store.Snapshot() {
		if !formatChanged && rec.Quality != nil {
			continue // ручной оверрайд - глобальный тюнинг его не трогает
		}
		q := rec.ResolveQuality(params.Quality)
		if err := p.RequestRecompression(ctx, rec.Name, q, params.TargetWidth, params.TargetHeight); err != nil {
			logger.Warn().Err(err).Str("image", rec.Name).Msg("Failed to fan out batch-param change")
		}
	}
	return nil
}

// SetMetadataField applies a pure metadata edit. No recompression.
func (p *Pipeline) SetMetadataField(name, field, value string) error {
	if !model.MetadataFieldsMap[field] {
		return model.ErrBadField
	}
	return p.store.Upsert(name, func(rec *model.ImageRecord) {
		rec.Metadata[field] = value
	})
}

// SetRenameTarget stores the user-supplied base filename (no extension).
func (p *Pipeline) SetRenameTarget(name, target string) error {
	return p.store.Upsert(name, func(rec *model.ImageRecord) {
		rec.RenameTarget = target
	})
}

// Snapshot exposes a consistent copy of the batch for rendering and export.
func (p *Pipeline) Snapshot() []model.ImageRecord {
	return p.store.Snapshot()
}

// Params returns a copy of the current batch parameters.
func (p *Pipeline) Params() model.BatchParams {
	p.paramsMu.RLock()
	defer p.paramsMu.RUnlock()
	return cloneParams(p.params)
}

// EnsureCurrent re-runs compression synchronously when the record's artifact
// is stale relative to the current batch parameters, and returns the fresh
// record. Export goes through here so a download always matches the knobs.
func (p *Pipeline) EnsureCurrent(ctx context.Context, name string) (model.ImageRecord, error) {
	params := p.Params()

	rec, ok := p.store.Get(name)
	if !ok {
		return model.ImageRecord{}, model.ErrImageNotFound
	}

	want := &model.AppliedParams{
		Quality:      rec.ResolveQuality(params.Quality),
		TargetWidth:  params.TargetWidth,
		TargetHeight: params.TargetHeight,
		Format:       params.OutputFormat,
	}
	if rec.ProcessedBlob != nil && want.Equal(rec.Applied) {
		return rec, nil
	}

	// свежий seq делает устаревшей любую доставку, зависшую в дебаунсере
	var job compressJob
	if err := p.store.Upsert(name, func(r *model.ImageRecord) {
		r.Seq++
		r.Status = model.StatusProcessing
		job = compressJob{uid: r.UID, seq: r.Seq, quality: want.Quality, width: want.TargetWidth, height: want.TargetHeight, format: want.Format}
	}); err != nil {
		return model.ImageRecord{}, err
	}

	tw, th := resolveTargets(want.TargetWidth, want.TargetHeight, rec.Width, rec.Height)
	out, err := p.codec.Transcode(rec.OriginalBlob, tw, th, want.Format, want.Quality)
	p.commit(name, job, out, want, err)
	if err != nil {
		return model.ImageRecord{}, err
	}

	fresh, ok := p.store.Get(name)
	if !ok {
		return model.ImageRecord{}, model.ErrBatchCleared
	}
	return fresh, nil
}

// WaitQuiescent blocks until no record is pending or processing. Pending
// debounce windows are flushed instead of waited out; after that the wait
// rides commit broadcasts, windows opened mid-wait fire on their own timers.
func (p *Pipeline) WaitQuiescent(ctx context.Context) error {
	p.requests.FlushAll()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.wakeWaiters()
		case <-done:
		}
	}()

	p.quietMu.Lock()
	defer p.quietMu.Unlock()
	for !p.settled() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.quiet.Wait()
	}
	return nil
}

// wakeWaiters nudges WaitQuiescent after every state change towards quiescence.
func (p *Pipeline) wakeWaiters() {
	p.quietMu.Lock()
	p.quiet.Broadcast()
	p.quietMu.Unlock()
}

func (p *Pipeline) settled() bool {
	if p.requests.PendingCount() > 0 {
		return false
	}
	for _, rec := range p.store.Snapshot() {
		if rec.Status == model.StatusPending || rec.Status == model.StatusProcessing {
			return false
		}
	}
	return true
}

// Clear drops the batch: pending debounce windows are cancelled and any
// in-flight completion finds no record to write to. The pipeline stays
// usable for the next upload.
func (p *Pipeline) Clear() {
	p.requests.CancelAll()
	p.store.Clear()
	p.wakeWaiters()
}

// Close is the terminal teardown for app shutdown.
func (p *Pipeline) Close() {
	p.requests.Stop()
	p.inflight.Wait()
	p.store.Clear()
	p.wakeWaiters()
}
