package envelope

import "sync"

// Source exposes the most recent output window.
type Source interface {
	Window() []float32
}

// Tap keeps the last WindowSize samples written to the output device.
type Tap struct {
	mu     sync.Mutex
	ring   [WindowSize]float32
	pos    int
	filled int
}

// NewTap returns an empty output tap.
func NewTap() *Tap {
	return &Tap{}
}

// WriteInt16 records PCM16 samples as they are handed to the device.
func (t *Tap) WriteInt16(samples []int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range samples {
		t.ring[t.pos] = float32(s) / 32768
		t.pos = (t.pos + 1) % WindowSize
		if t.filled < WindowSize {
			t.filled++
		}
	}
}

// Reset drops buffered samples.
func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos = 0
	t.filled = 0
}

// Window returns the buffered samples oldest first.
func (t *Tap) Window() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]float32, 0, t.filled)
	start := (t.pos - t.filled + WindowSize) % WindowSize
	for i := 0; i < t.filled; i++ {
		out = append(out, t.ring[(start+i)%WindowSize])
	}
	return out
}
