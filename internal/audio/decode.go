package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrUnsupportedFormat reports audio the decoder cannot identify.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format names a recognized container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatOgg     Format = "ogg"
	FormatMP3     Format = "mp3"
)

// Sniff identifies the container from magic bytes, falling back to the content type.
func Sniff(data []byte, contentType string) Format {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && string(data[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOgg
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		return FormatMP3
	}
	switch baseMIMEType(contentType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return FormatWAV
	case "audio/ogg", "audio/vorbis":
		return FormatOgg
	case "audio/mpeg", "audio/mp3":
		return FormatMP3
	}
	return FormatUnknown
}

// Decode turns synthesized speech into a mono clip.
func Decode(data []byte, contentType string) (Clip, error) {
	switch format := Sniff(data, contentType); format {
	case FormatWAV:
		return decodeWAV(data)
	case FormatOgg:
		return decodeOgg(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return Clip{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
	}
}

func decodeWAV(data []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, errors.New("decode wav: invalid file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	shift := int(dec.BitDepth) - 16

	frames := len(buf.Data) / channels
	out := make([]int16, frames)
	for i := range frames {
		sum := 0
		for c := range channels {
			sum += buf.Data[i*channels+c]
		}
		v := sum / channels
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			// 8-bit wav is unsigned.
			v = (v - 128) << -shift
		}
		out[i] = int16(v)
	}
	return Clip{Samples: out, SampleRate: int(dec.SampleRate)}, nil
}

func decodeOgg(data []byte) (Clip, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("decode ogg: %w", err)
	}
	return Clip{
		Samples:    downmixFloat(samples, format.Channels),
		SampleRate: format.SampleRate,
	}, nil
}

func decodeMP3(data []byte) (Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, fmt.Errorf("decode mp3: %w", err)
	}
	return Clip{Samples: downmixStereo16(pcm), SampleRate: dec.SampleRate()}, nil
}

// downmixFloat averages interleaved float frames into s16 mono.
func downmixFloat(samples []float32, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = floatToInt16(sum / float32(channels))
	}
	return out
}

// downmixStereo16 averages little-endian stereo s16 frames into mono.
func downmixStereo16(pcm []byte) []int16 {
	frames := len(pcm) / 4
	out := make([]int16, frames)
	for i := range frames {
		l := int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8)
		r := int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8)
		out[i] = int16((int(l) + int(r)) / 2)
	}
	return out
}

func floatToInt16(v float32) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7fff)
}
