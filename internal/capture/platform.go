// Package capture records one microphone utterance at a time, preferring native
// encoders and falling back to raw sample collection plus WAV encoding.
package capture

import "context"

// Platform is the capability probe the controller records through.
type Platform interface {
	// Identifier describes the platform for diagnostics.
	Identifier() string
	// OpenStream acquires the microphone stream.
	OpenStream(ctx context.Context) (Stream, error)
	// Supports reports whether a native encoder can produce mimeType.
	Supports(mimeType string) bool
	// NewEncoder builds a native encoder; an empty mimeType selects the platform default.
	NewEncoder(stream Stream, mimeType string) (Encoder, error)
	// NewGraph builds a raw processing graph delivering fixed-size float blocks.
	NewGraph(stream Stream, blockSize int) (Graph, error)
}

// Stream is an open microphone stream.
type Stream interface {
	AudioTracks() int
	Close() error
}

// Encoder is a platform-provided container encoder.
type Encoder interface {
	MIMEType() string
	Start() error
	// Finish finalizes the encoder and returns every delivered chunk in order.
	Finish(ctx context.Context) ([][]byte, error)
	Abort() error
}

// Graph is a raw audio processing graph for manual capture.
type Graph interface {
	SampleRate() int
	Start(onBlock func([]float32)) error
	Close() error
}

// Blob is one finished recording.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Size returns the blob length in bytes.
func (b Blob) Size() int {
	return len(b.Data)
}

// Kind names the encoder path a session used.
type Kind string

const (
	KindNative Kind = "native"
	KindManual Kind = "manual"
)

// DefaultCandidates is the native encoder priority order; the empty entry is the platform default.
var DefaultCandidates = []string{
	"audio/ogg;codecs=opus",
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"",
}

// DefaultBlockSize is the manual graph block length in samples.
const DefaultBlockSize = 4096

// candidateName renders a candidate for diagnostics.
func candidateName(mimeType string) string {
	if mimeType == "" {
		return "default"
	}
	return mimeType
}
