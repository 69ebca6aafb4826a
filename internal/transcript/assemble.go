// Package transcript turns a speech-to-text response into one utterance.
package transcript

import (
	"strings"

	"github.com/rbright/orb/internal/backend"
)

// Assemble returns the recognized text with whitespace collapsed.
//
// The response text wins; segments are joined only when it is blank.
func Assemble(res backend.Transcription) string {
	if text := normalize(res.Text); text != "" {
		return text
	}
	parts := make([]string, 0, len(res.Segments))
	for _, seg := range res.Segments {
		parts = append(parts, seg.Text)
	}
	return normalize(strings.Join(parts, " "))
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
