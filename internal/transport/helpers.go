package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrEncode),
		errors.Is(err, model.ErrCollision):
		return 500
	case errors.Is(err, model.ErrImageNotFound),
		errors.Is(err, model.ErrResultNotReady),
		errors.Is(err, model.ErrEmptyBatch):
		return 404
	case errors.Is(err, model.ErrBatchCleared):
		return 409
	case errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrDecode),
		errors.Is(err, model.ErrMetadata),
		errors.Is(err, model.ErrBadQuality),
		errors.Is(err, model.ErrBadDimension),
		errors.Is(err, model.ErrBadFormat),
		errors.Is(err, model.ErrBadField):
		return 400
	default:
		return 500
	}
}

// dimensionOrNil - ноль с фронта означает "ось не ограничиваем"
func dimensionOrNil(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
