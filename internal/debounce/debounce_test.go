package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type capture struct {
	mu    sync.Mutex
	items map[string][]int
}

func newCapture() *capture {
	return &capture{items: map[string][]int{}}
}

func (c *capture) emit(key string, v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append(c.items[key], v)
}

func (c *capture) get(key string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]int, len(c.items[key]))
	copy(res, c.items[key])
	return res
}

func TestCoalescer_BurstDeliversLastOnly(t *testing.T) {
	sink := newCapture()
	c := New(30*time.Millisecond, sink.emit)
	defer c.Stop()

	c.Submit("a", 1)
	c.Submit("a", 2)
	c.Submit("a", 3)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, []int{3}, sink.get("a"))
}

func TestCoalescer_KeysAreIndependent(t *testing.T) {
	sink := newCapture()
	c := New(30*time.Millisecond, sink.emit)
	defer c.Stop()

	c.Submit("a", 1)
	c.Submit("b", 2)
	c.Submit("a", 10)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, []int{10}, sink.get("a"))
	require.Equal(t, []int{2}, sink.get("b"))
}

func TestCoalescer_ResubmitRestartsWindow(t *testing.T) {
	sink := newCapture()
	c := New(60*time.Millisecond, sink.emit)
	defer c.Stop()

	c.Submit("a", 1)
	time.Sleep(40 * time.Millisecond)
	c.Submit("a", 2) // окно перезапустилось - первая доставка отменена

	time.Sleep(40 * time.Millisecond)
	require.Empty(t, sink.get("a"))

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, []int{2}, sink.get("a"))
}

func TestCoalescer_Flush(t *testing.T) {
	sink := newCapture()
	c := New(time.Hour, sink.emit)
	defer c.Stop()

	c.Submit("a", 7)
	require.Equal(t, 1, c.PendingCount())

	c.Flush("a")
	require.Equal(t, []int{7}, sink.get("a"))
	require.Equal(t, 0, c.PendingCount())

	c.Flush("a") // повторный флаш пустого ключа - no-op
	require.Equal(t, []int{7}, sink.get("a"))
}

func TestCoalescer_FlushAll(t *testing.T) {
	sink := newCapture()
	c := New(time.Hour, sink.emit)
	defer c.Stop()

	c.Submit("a", 1)
	c.Submit("b", 2)
	c.FlushAll()

	require.Equal(t, []int{1}, sink.get("a"))
	require.Equal(t, []int{2}, sink.get("b"))
	require.Equal(t, 0, c.PendingCount())
}

func TestCoalescer_CancelAllDropsPending(t *testing.T) {
	sink := newCapture()
	c := New(30*time.Millisecond, sink.emit)
	defer c.Stop()

	c.Submit("a", 1)
	c.CancelAll()

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, sink.get("a"))

	// коалессер живой - новые сабмиты работают
	c.Submit("a", 2)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, []int{2}, sink.get("a"))
}

func TestCoalescer_StopIsTerminal(t *testing.T) {
	sink := newCapture()
	c := New(10*time.Millisecond, sink.emit)

	c.Submit("a", 1)
	c.Stop()
	c.Submit("a", 2)

	time.Sleep(60 * time.Millisecond)
	require.Empty(t, sink.get("a"))
}
