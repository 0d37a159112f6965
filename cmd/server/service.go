package main

import (
	"context"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

type BatchPipeline interface {
	Seed(ctx context.Context, name string, blob []byte) error
	RequestRecompression(ctx context.Context, name string, quality float64, width, height *int) error
	SetQualityOverride(ctx context.Context, name string, quality float64) error
	SetBatchParams(ctx context.Context, params model.BatchParams) error
	SetMetadataField(name, field, value string) error
	SetRenameTarget(name, target string) error
	Snapshot() []model.ImageRecord
	Params() model.BatchParams
	Clear()
	Close()
}

type BatchExporter interface {
	ExportSingle(ctx context.Context, name string) (string, []byte, string, error)
	ExportBatch(ctx context.Context, names ...string) (string, []byte, []string, error)
}
