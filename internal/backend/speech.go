package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// Speak synthesizes text and returns the encoded audio.
func (c *Client) Speak(ctx context.Context, text string) (Audio, error) {
	payload, err := json.Marshal(textBody{Text: text})
	if err != nil {
		return Audio{}, fmt.Errorf("encode tts body: %w", err)
	}
	data, contentType, err := c.do(ctx, http.MethodPost, "tts", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, ContentType: contentType}, nil
}

// Transcribe uploads one recording as multipart field "file".
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcription, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+recordingName(mimeType)+`"`)
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return Transcription{}, fmt.Errorf("create stt form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcription{}, fmt.Errorf("write stt audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Transcription{}, fmt.Errorf("close stt form: %w", err)
	}

	data, _, err := c.do(ctx, http.MethodPost, "stt", nil, &buf, writer.FormDataContentType())
	if err != nil {
		return Transcription{}, err
	}
	var out Transcription
	if err := json.Unmarshal(data, &out); err != nil {
		return Transcription{}, fmt.Errorf("decode stt response: %w", err)
	}
	return out, nil
}

func recordingName(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "recording.wav"
	case "audio/ogg":
		return "recording.ogg"
	case "audio/webm":
		return "recording.webm"
	case "audio/mp4":
		return "recording.m4a"
	default:
		return "recording.bin"
	}
}
