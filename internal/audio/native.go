package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/pulse"
)

const (
	wavMIMEType = "audio/wav"

	// 20ms @ 16kHz mono s16.
	recorderFragmentBytes = 640
)

// recorder is the platform default encoder: it records s16 samples and
// writes a WAV container on Finish.
type recorder struct {
	source     *Stream
	sampleRate int

	mu      sync.Mutex
	stream  *pulse.RecordStream
	samples []int16
	stopped bool
}

func newRecorder(source *Stream, sampleRate int) *recorder {
	return &recorder{source: source, sampleRate: sampleRate}
}

func (r *recorder) MIMEType() string {
	return wavMIMEType
}

func (r *recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return errors.New("recorder already started")
	}
	stream, err := r.source.record(pulse.Int16Writer(r.onSamples), r.sampleRate, recorderFragmentBytes, "orb utterance")
	if err != nil {
		return err
	}
	r.stream = stream
	stream.Start()
	return nil
}

func (r *recorder) onSamples(buf []int16) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0, io.EOF
	}
	r.samples = append(r.samples, buf...)
	return len(buf), nil
}

// Finish stops recording and returns the WAV file as a single chunk.
func (r *recorder) Finish(ctx context.Context) ([][]byte, error) {
	samples := r.halt()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	data, err := EncodeWAV(samples, r.sampleRate)
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

func (r *recorder) Abort() error {
	r.halt()
	return nil
}

func (r *recorder) halt() []int16 {
	r.mu.Lock()
	r.stopped = true
	stream := r.stream
	r.stream = nil
	samples := r.samples
	r.samples = nil
	r.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	return samples
}

// EncodeWAV writes mono s16 samples through the go-audio encoder, which
// needs a seekable sink to patch chunk sizes.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	file, err := os.CreateTemp("", "orb-recording-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create wav temp file: %w", err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind wav temp file: %w", err)
	}
	out, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read wav temp file: %w", err)
	}
	return out, nil
}
