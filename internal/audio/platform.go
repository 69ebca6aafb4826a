package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/orb/internal/capture"
)

// DefaultSampleRate is the capture rate used when none is configured.
const DefaultSampleRate = 16000

// PlatformOptions selects the capture source and format.
type PlatformOptions struct {
	Input      string
	Fallback   string
	SampleRate int
	Logger     *slog.Logger
}

// Platform records from PulseAudio through the capture.Platform contract.
//
// The only native encoder is the uncompressed WAV recorder, offered as the
// platform default. Compressed container candidates are reported unsupported.
type Platform struct {
	opts PlatformOptions

	mu     sync.Mutex
	server string
}

var _ capture.Platform = (*Platform)(nil)

// NewPlatform builds a pulse capture platform.
func NewPlatform(opts PlatformOptions) *Platform {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	return &Platform{opts: opts}
}

// Identifier reports the pulse server seen on the last stream open plus the host platform.
func (p *Platform) Identifier() string {
	p.mu.Lock()
	server := p.server
	p.mu.Unlock()
	if server == "" {
		server = "pulse"
	}
	return fmt.Sprintf("%s %s/%s", server, runtime.GOOS, runtime.GOARCH)
}

// OpenStream connects to pulse and resolves the configured input source.
func (p *Platform) OpenStream(_ context.Context) (capture.Stream, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	p.rememberServer(client)

	devices, err := listDevices(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	selection, err := sourcePicker(devices).pick(p.opts.Input, p.opts.Fallback)
	if err != nil {
		client.Close()
		return nil, err
	}
	if selection.Warning != "" && p.opts.Logger != nil {
		p.opts.Logger.Warn("audio input fallback", "warning", selection.Warning)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selection.Device.ID, err)
	}

	return &Stream{client: client, source: source, device: selection.Device}, nil
}

func (p *Platform) rememberServer(client *pulse.Client) {
	var info pulseproto.GetServerInfoReply
	if err := client.RawRequest(&pulseproto.GetServerInfo{}, &info); err != nil {
		return
	}
	name := strings.TrimSpace(info.PackageName + "/" + info.PackageVersion)
	p.mu.Lock()
	p.server = name
	p.mu.Unlock()
}

// Supports reports native encoder availability per MIME type.
func (p *Platform) Supports(mimeType string) bool {
	switch baseMIMEType(mimeType) {
	case "", wavMIMEType:
		return true
	default:
		return false
	}
}

// NewEncoder returns the WAV recorder for the platform default.
func (p *Platform) NewEncoder(stream capture.Stream, mimeType string) (capture.Encoder, error) {
	if !p.Supports(mimeType) {
		return nil, fmt.Errorf("no pulse encoder for %s", mimeType)
	}
	s, err := asStream(stream)
	if err != nil {
		return nil, err
	}
	return newRecorder(s, p.opts.SampleRate), nil
}

// NewGraph returns a float block graph on the stream's source.
func (p *Platform) NewGraph(stream capture.Stream, blockSize int) (capture.Graph, error) {
	s, err := asStream(stream)
	if err != nil {
		return nil, err
	}
	if blockSize <= 0 {
		blockSize = capture.DefaultBlockSize
	}
	return newGraph(s, p.opts.SampleRate, blockSize), nil
}

// Stream is one pulse connection bound to an input source.
type Stream struct {
	client *pulse.Client
	source *pulse.Source
	device Device

	closeOnce sync.Once
}

// Device returns the selected input device.
func (s *Stream) Device() Device {
	return s.device
}

// AudioTracks reports one track while a source is bound.
func (s *Stream) AudioTracks() int {
	if s == nil || s.source == nil {
		return 0
	}
	return 1
}

// Close releases the pulse connection.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.client.Close()
		}
	})
	return nil
}

func (s *Stream) record(writer pulse.Writer, sampleRate int, fragmentBytes uint32, mediaName string) (*pulse.RecordStream, error) {
	stream, err := s.client.NewRecord(
		writer,
		pulse.RecordSource(s.source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName(mediaName),
	)
	if err != nil {
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	return stream, nil
}

func asStream(stream capture.Stream) (*Stream, error) {
	s, ok := stream.(*Stream)
	if !ok || s == nil {
		return nil, errors.New("stream was not opened by the pulse platform")
	}
	return s, nil
}

func baseMIMEType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
}
