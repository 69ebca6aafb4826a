package capture

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/rbright/orb/internal/wav"
)

// Session is one open recording regardless of encoder path.
type Session interface {
	Kind() Kind
	MIMEType() string
	Stop(ctx context.Context) (Blob, error)
	Abort()
}

// nativeSession records through a platform encoder.
type nativeSession struct {
	encoder Encoder
}

func (s *nativeSession) Kind() Kind { return KindNative }

func (s *nativeSession) MIMEType() string { return s.encoder.MIMEType() }

func (s *nativeSession) Stop(ctx context.Context) (Blob, error) {
	chunks, err := s.encoder.Finish(ctx)
	if err != nil {
		return Blob{}, fmt.Errorf("finalize %s encoder: %w", candidateName(s.encoder.MIMEType()), err)
	}
	var buf bytes.Buffer
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		buf.Write(chunk)
	}
	return Blob{Data: buf.Bytes(), MIMEType: s.encoder.MIMEType()}, nil
}

func (s *nativeSession) Abort() {
	_ = s.encoder.Abort()
}

// manualSession accumulates raw blocks delivered by a processing graph.
type manualSession struct {
	graph Graph

	mu     sync.Mutex
	blocks [][]float32
	closed bool
}

func startManual(graph Graph) (*manualSession, error) {
	s := &manualSession{graph: graph}
	if err := graph.Start(s.onBlock); err != nil {
		_ = graph.Close()
		return nil, err
	}
	return s, nil
}

// onBlock copies each delivered block; graphs may reuse their buffers.
func (s *manualSession) onBlock(block []float32) {
	if len(block) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.blocks = append(s.blocks, append([]float32(nil), block...))
}

func (s *manualSession) Kind() Kind { return KindManual }

func (s *manualSession) MIMEType() string { return wav.MIMEType }

func (s *manualSession) Stop(context.Context) (Blob, error) {
	closeErr := s.graph.Close()

	s.mu.Lock()
	s.closed = true
	blocks := s.blocks
	s.blocks = nil
	s.mu.Unlock()

	if closeErr != nil {
		return Blob{}, fmt.Errorf("close capture graph: %w", closeErr)
	}
	if len(blocks) == 0 {
		return Blob{}, nil
	}
	return Blob{
		Data:     wav.Encode(wav.Flatten(blocks), s.graph.SampleRate()),
		MIMEType: wav.MIMEType,
	}, nil
}

func (s *manualSession) Abort() {
	_ = s.graph.Close()
	s.mu.Lock()
	s.closed = true
	s.blocks = nil
	s.mu.Unlock()
}
