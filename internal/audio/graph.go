package audio

import (
	"errors"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
)

// graph records float32 samples and re-blocks them to a fixed length.
type graph struct {
	source     *Stream
	sampleRate int
	blockSize  int

	mu      sync.Mutex
	stream  *pulse.RecordStream
	blocks  *blocker
	stopped bool
}

func newGraph(source *Stream, sampleRate, blockSize int) *graph {
	return &graph{source: source, sampleRate: sampleRate, blockSize: blockSize}
}

func (g *graph) SampleRate() int {
	return g.sampleRate
}

func (g *graph) Start(onBlock func([]float32)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stream != nil {
		return errors.New("capture graph already started")
	}
	if g.stopped {
		return errors.New("capture graph closed")
	}
	g.blocks = newBlocker(g.blockSize, onBlock)
	stream, err := g.source.record(pulse.Float32Writer(g.onSamples), g.sampleRate, uint32(g.blockSize*4), "orb utterance (raw)")
	if err != nil {
		return err
	}
	g.stream = stream
	stream.Start()
	return nil
}

func (g *graph) onSamples(buf []float32) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return 0, io.EOF
	}
	g.blocks.push(buf)
	return len(buf), nil
}

// Close stops recording and delivers any partial trailing block.
func (g *graph) Close() error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return nil
	}
	stream := g.stream
	g.stream = nil
	g.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}

	g.mu.Lock()
	g.stopped = true
	if g.blocks != nil {
		g.blocks.flush()
	}
	g.mu.Unlock()
	return nil
}

// blocker splits an arbitrary sample stream into size-length blocks.
type blocker struct {
	size    int
	pending []float32
	emit    func([]float32)
}

func newBlocker(size int, emit func([]float32)) *blocker {
	return &blocker{size: size, pending: make([]float32, 0, size), emit: emit}
}

func (b *blocker) push(samples []float32) {
	for len(samples) > 0 {
		n := min(b.size-len(b.pending), len(samples))
		b.pending = append(b.pending, samples[:n]...)
		samples = samples[n:]
		if len(b.pending) == b.size {
			b.emit(b.pending)
			b.pending = b.pending[:0]
		}
	}
}

func (b *blocker) flush() {
	if len(b.pending) == 0 {
		return
	}
	b.emit(b.pending)
	b.pending = b.pending[:0]
}
