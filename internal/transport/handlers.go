// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type BatchHandler struct {
	service  BatchService
	exporter ExportService
}

// BatchService - контракт к пайплайну компрессии
type BatchService interface {
	Seed(ctx context.Context, name string, blob []byte) error
	RequestRecompression(ctx context.Context, name string, quality float64, width, height *int) error
	SetQualityOverride(ctx context.Context, name string, quality float64) error
	SetBatchParams(ctx context.Context, params model.BatchParams) error
	SetMetadataField(name, field, value string) error
	SetRenameTarget(name, target string) error
	Snapshot() []model.ImageRecord
	Params() model.BatchParams
	Clear()
}

// ExportService - контракт к сборщику выгрузки
type ExportService interface {
	ExportSingle(ctx context.Context, name string) (string, []byte, string, error)
	ExportBatch(ctx context.Context, names ...string) (string, []byte, []string, error)
}

func NewBatchHandler(svc BatchService, exp ExportService) *BatchHandler {
	return &BatchHandler{
		service:  svc,
		exporter: exp,
	}
}

func (h BatchHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// Upload - принимает мультипарт с полем images (можно несколько файлов),
// сидит записи в порядке загрузки. Ошибки по отдельным файлам не валят остальных.
func (h BatchHandler) Upload(ctx *ginext.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse multipart form"})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		ctx.JSON(400, map[string]string{"error": "at least one image is required"})
		return
	}

	failed := map[string]string{}
	uploaded := 0
	for _, fh := range files {
		blob, err := readFileHeader(fh)
		if err != nil {
			failed[fh.Filename] = err.Error()
			continue
		}
		if err := h.service.Seed(ctx.Request.Context(), fh.Filename, blob); err != nil {
			failed[fh.Filename] = err.Error()
			continue
		}
		uploaded++
	}

	if uploaded == 0 {
		ctx.JSON(400, map[string]any{"error": "no image could be loaded", "failed": failed})
		return
	}

	ctx.JSON(201, map[string]any{"uploaded": uploaded, "failed": failed})
}

// GetBatch - снапшот всей пачки + текущие глобальные параметры
func (h BatchHandler) GetBatch(ctx *ginext.Context) {
	ctx.JSON(200, map[string]any{
		"params": h.service.Params(),
		"images": h.service.Snapshot(),
	})
}

type paramsRequest struct {
	Quality      *float64 `json:"quality"`
	TargetWidth  *int     `json:"target_width"`
	TargetHeight *int     `json:"target_height"`
	OutputFormat *string  `json:"output_format"`
}

// SetParams - глобальные параметры. Отсутствующее поле не трогаем,
// нулевой размер снимает ограничение по этой оси.
func (h BatchHandler) SetParams(ctx *ginext.Context) {
	var req paramsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	params := h.service.Params()
	if req.Quality != nil {
		params.Quality = *req.Quality
	}
	if req.TargetWidth != nil {
		params.TargetWidth = dimensionOrNil(*req.TargetWidth)
	}
	if req.TargetHeight != nil {
		params.TargetHeight = dimensionOrNil(*req.TargetHeight)
	}
	if req.OutputFormat != nil {
		params.OutputFormat = model.Format(strings.ToLower(strings.TrimSpace(*req.OutputFormat)))
	}

	if err := h.service.SetBatchParams(ctx.Request.Context(), params); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, h.service.Params())
}

type qualityRequest struct {
	Quality float64 `json:"quality"`
}

// SetQuality - пер-айтем оверрайд качества
func (h BatchHandler) SetQuality(ctx *ginext.Context) {
	name := ctx.Param("name")

	var req qualityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	if err := h.service.SetQualityOverride(ctx.Request.Context(), name, req.Quality); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(202)
}

type recompressRequest struct {
	Quality *float64 `json:"quality"`
	Width   *int     `json:"width"`
	Height  *int     `json:"height"`
}

// Recompress - прямой запрос на перекомпрессию одной записи
func (h BatchHandler) Recompress(ctx *ginext.Context) {
	name := ctx.Param("name")

	var req recompressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	params := h.service.Params()
	quality := params.Quality
	if req.Quality != nil {
		quality = *req.Quality
	}
	width, height := params.TargetWidth, params.TargetHeight
	if req.Width != nil {
		width = dimensionOrNil(*req.Width)
	}
	if req.Height != nil {
		height = dimensionOrNil(*req.Height)
	}

	if err := h.service.RequestRecompression(ctx.Request.Context(), name, quality, width, height); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(202)
}

type metadataRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SetMetadata - правка одного поля метаданных, перекомпрессию не триггерит
func (h BatchHandler) SetMetadata(ctx *ginext.Context) {
	name := ctx.Param("name")

	var req metadataRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	if err := h.service.SetMetadataField(name, req.Field, req.Value); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

type renameRequest struct {
	Rename string `json:"rename"`
}

// Rename - базовое имя выходного файла без расширения
func (h BatchHandler) Rename(ctx *ginext.Context) {
	name := ctx.Param("name")

	var req renameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	if err := h.service.SetRenameTarget(name, req.Rename); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

// DownloadOne - один готовый файл, при устаревших параметрах пережимается синхронно
func (h BatchHandler) DownloadOne(ctx *ginext.Context) {
	name := ctx.Param("name")

	filename, data, mime, err := h.exporter.ExportSingle(ctx.Request.Context(), name)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(200, mime, data)
}

// DownloadAll - zip всей пачки (или выбранных ?names=), пропущенные - в заголовке
func (h BatchHandler) DownloadAll(ctx *ginext.Context) {
	names := ctx.QueryArray("names")

	archive, data, skipped, err := h.exporter.ExportBatch(ctx.Request.Context(), names...)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	if len(skipped) > 0 {
		ctx.Writer.Header().Set("X-Skipped-Images", strings.Join(skipped, ","))
	}
	ctx.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive))
	ctx.Data(200, "application/zip", data)
}

// ClearBatch - снести всю пачку вместе с висящими задачами
func (h BatchHandler) ClearBatch(ctx *ginext.Context) {
	h.service.Clear()
	ctx.Status(204)
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer closeFileFlow(f)
	return io.ReadAll(f)
}
