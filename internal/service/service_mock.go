package service

import (
	"fmt"
	"sync"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

// MOCK CODEC

// countingCodec записывает каждый фактический транскод
type countingCodec struct {
	mu        sync.Mutex
	calls     []float64 // качество каждого вызова
	transcode func(blob []byte, w, h *int, f model.Format, q float64) ([]byte, error)
	dims      func(blob []byte) (int, int, error)
}

func (c *countingCodec) DecodeDimensions(blob []byte) (int, int, error) {
	if c.dims != nil {
		return c.dims(blob)
	}
	return 100, 100, nil
}

func (c *countingCodec) Transcode(blob []byte, w, h *int, f model.Format, q float64) ([]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, q)
	c.mu.Unlock()
	if c.transcode != nil {
		return c.transcode(blob, w, h, f, q)
	}
	return []byte(fmt.Sprintf("out-%.2f", q)), nil
}

func (c *countingCodec) qualities() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]float64, len(c.calls))
	copy(res, c.calls)
	return res
}

// MOCK METADATA SOURCE

type mockMeta struct {
	extractFn func(blob []byte) (map[string]string, error)
}

func (m *mockMeta) Extract(blob []byte) (map[string]string, error) {
	if m.extractFn == nil {
		return model.EmptyMetadata(), nil
	}
	return m.extractFn(blob)
}
