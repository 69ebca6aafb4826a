package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// stripJSONC blanks comments and trailing commas with spaces. The result has
// the same length as src, so decoder offsets still map to the user's file.
func stripJSONC(src string) (string, error) {
	out := []byte(src)
	pendingComma := -1

	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c == '"':
			i = stringEnd(out, i)
			pendingComma = -1
		case c == '/' && i+1 < len(out) && out[i+1] == '/':
			end := i
			for end < len(out) && out[end] != '\n' && out[end] != '\r' {
				end++
			}
			blank(out[i:end])
			i = end - 1
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			n := strings.Index(src[i+2:], "*/")
			if n < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			end := i + 2 + n + 2
			blank(out[i:end])
			i = end - 1
		case c == ',':
			pendingComma = i
		case c == '}' || c == ']':
			if pendingComma >= 0 {
				out[pendingComma] = ' '
			}
			pendingComma = -1
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			pendingComma = -1
		}
	}
	return string(out), nil
}

// stringEnd returns the index of the quote closing the string opened at
// start, or the last index when the string never closes.
func stringEnd(b []byte, start int) int {
	for i := start + 1; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(b) - 1
}

// blank overwrites b with spaces, keeping line breaks.
func blank(b []byte) {
	for i, c := range b {
		if c != '\n' && c != '\r' {
			b[i] = ' '
		}
	}
}

// expectEOF fails when the decoder holds anything after the first value.
func expectEOF(dec *json.Decoder) error {
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errors.New("multiple JSON values are not allowed")
	default:
		return err
	}
}

// locateDecodeError prefixes syntax and type errors with their position.
func locateDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol converts a decoder byte offset, which points just past the
// offending byte, into a 1-based line and column.
func lineCol(content string, offset int64) (int, int) {
	end := int(min(offset, int64(len(content)))) - 1
	if end < 0 {
		return 1, 1
	}
	prefix := content[:end]
	return 1 + strings.Count(prefix, "\n"), len(prefix) - strings.LastIndexByte(prefix, '\n')
}
