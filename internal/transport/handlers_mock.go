package transport

import (
	"context"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/gin-gonic/gin"
)

type mockBatchService struct {
	seedFn        func(ctx context.Context, name string, blob []byte) error
	recompressFn  func(ctx context.Context, name string, quality float64, width, height *int) error
	setQualityFn  func(ctx context.Context, name string, quality float64) error
	setParamsFn   func(ctx context.Context, params model.BatchParams) error
	setMetadataFn func(name, field, value string) error
	setRenameFn   func(name, target string) error
	snapshotFn    func() []model.ImageRecord
	paramsFn      func() model.BatchParams
	clearFn       func()
}

func (m *mockBatchService) Seed(ctx context.Context, name string, blob []byte) error {
	return m.seedFn(ctx, name, blob)
}

func (m *mockBatchService) RequestRecompression(ctx context.Context, name string, quality float64, width, height *int) error {
	return m.recompressFn(ctx, name, quality, width, height)
}

func (m *mockBatchService) SetQualityOverride(ctx context.Context, name string, quality float64) error {
	return m.setQualityFn(ctx, name, quality)
}

func (m *mockBatchService) SetBatchParams(ctx context.Context, params model.BatchParams) error {
	return m.setParamsFn(ctx, params)
}

func (m *mockBatchService) SetMetadataField(name, field, value string) error {
	return m.setMetadataFn(name, field, value)
}

func (m *mockBatchService) SetRenameTarget(name, target string) error {
	return m.setRenameFn(name, target)
}

func (m *mockBatchService) Snapshot() []model.ImageRecord {
	if m.snapshotFn == nil {
		return nil
	}
	return m.snapshotFn()
}

func (m *mockBatchService) Params() model.BatchParams {
	if m.paramsFn == nil {
		return model.DefaultBatchParams()
	}
	return m.paramsFn()
}

func (m *mockBatchService) Clear() {
	if m.clearFn != nil {
		m.clearFn()
	}
}

type mockExportService struct {
	exportSingleFn func(ctx context.Context, name string) (string, []byte, string, error)
	exportBatchFn  func(ctx context.Context, names ...string) (string, []byte, []string, error)
}

func (m *mockExportService) ExportSingle(ctx context.Context, name string) (string, []byte, string, error) {
	return m.exportSingleFn(ctx, name)
}

func (m *mockExportService) ExportBatch(ctx context.Context, names ...string) (string, []byte, []string, error) {
	return m.exportBatchFn(ctx, names...)
}

func init() {
	gin.SetMode(gin.TestMode)
}
