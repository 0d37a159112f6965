package service

import (
	"math"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

func validateQuality(q float64) error {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return model.ErrBadQuality
	}
	return nil
}

func validateTargets(w, h *int) error {
	if (w != nil && *w <= 0) || (h != nil && *h <= 0) {
		return model.ErrBadDimension
	}
	return nil
}

func validateBatchParams(p model.BatchParams) error {
	if !model.FormatsMap[p.OutputFormat] {
		return model.ErrBadFormat
	}
	if err := validateQuality(p.Quality); err != nil {
		return err
	}
	return validateTargets(p.TargetWidth, p.TargetHeight)
}

// resolveTargets достраивает недостающую ось по пропорциям исходника.
// Обе оси заданы или обе пустые - возвращаем как есть.
func resolveTargets(w, h *int, srcW, srcH int) (*int, *int) {
	switch {
	case w == nil && h == nil:
		return nil, nil
	case w != nil && h != nil:
		return intPtr(*w), intPtr(*h)
	case w != nil:
		inferred := *w
		if srcW > 0 {
			inferred = int(math.Round(float64(*w) * float64(srcH) / float64(srcW)))
		}
		if inferred < 1 {
			inferred = 1
		}
		return intPtr(*w), intPtr(inferred)
	default:
		inferred := *h
		if srcH > 0 {
			inferred = int(math.Round(float64(*h) * float64(srcW) / float64(srcH)))
		}
		if inferred < 1 {
			inferred = 1
		}
		return intPtr(inferred), intPtr(*h)
	}
}

func intPtr(v int) *int {
	return &v
}

func intPtrEqual(x, y *int) bool {
	if x == nil || y == nil {
		return x == y
	}
	return *x == *y
}

func cloneParams(p model.BatchParams) model.BatchParams {
	cp := p
	if p.TargetWidth != nil {
		cp.TargetWidth = intPtr(*p.TargetWidth)
	}
	if p.TargetHeight != nil {
		cp.TargetHeight = intPtr(*p.TargetHeight)
	}
	return cp
}
