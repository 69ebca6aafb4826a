// Package wav encodes captured float samples into a mono PCM16 WAV container.
package wav

import "encoding/binary"

const (
	// HeaderSize is the fixed canonical RIFF/WAVE header length.
	HeaderSize    = 44
	bitsPerSample = 16
	blockAlign    = bitsPerSample / 8
)

// MIMEType is the content type of Encode output.
const MIMEType = "audio/wav"

// Encode writes samples as little-endian mono PCM16 with a 44-byte header.
//
// Samples are clamped to [-1, 1]; negative values scale by 32768 and
// non-negative values by 32767.
func Encode(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * blockAlign
	out := make([]byte, HeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	offset := HeaderSize
	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[offset:offset+2], uint16(ToPCM16(s)))
		offset += blockAlign
	}
	return out
}

// ToPCM16 clamps one float sample and scales it to a signed 16-bit value.
func ToPCM16(s float32) int16 {
	v := float64(s)
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

// Flatten concatenates ordered sample blocks into one buffer.
func Flatten(blocks [][]float32) []float32 {
	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	merged := make([]float32, 0, total)
	for _, b := range blocks {
		merged = append(merged, b...)
	}
	return merged
}

// DataLength reads the declared data sub-chunk length from an encoded header.
func DataLength(encoded []byte) (int, bool) {
	if len(encoded) < HeaderSize || string(encoded[36:40]) != "data" {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(encoded[40:44])), true
}
