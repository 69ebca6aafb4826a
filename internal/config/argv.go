package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// parseArgv splits a shell-like command line. A leading # disables the command.
//
// $VAR and ${VAR} expand outside single quotes, and a leading ~/ expands to
// the home directory. Nothing else of the shell is supported.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	t := argvTokenizer{lookup: os.Getenv}
	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case t.escape:
			t.word.WriteRune(r)
			t.escape = false
			t.started = true
		case r == '\\' && t.quote != '\'':
			t.escape = true
		case t.quote != 0 && r == t.quote:
			t.quote = 0
		case r == '$' && t.quote != '\'':
			i = t.expandVar(runes, i)
		case t.quote != 0:
			t.word.WriteRune(r)
		case r == '\'' || r == '"':
			t.quote = r
			t.started = true
		case unicode.IsSpace(r):
			t.flush()
		case r == '~' && !t.started && (i+1 == len(runes) || runes[i+1] == '/'):
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("expand ~ in command %q: %w", input, err)
			}
			t.word.WriteString(home)
			t.started = true
		default:
			t.word.WriteRune(r)
			t.started = true
		}
	}

	if t.escape {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if t.quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	t.flush()
	return t.argv, nil
}

type argvTokenizer struct {
	lookup func(string) string

	argv    []string
	word    strings.Builder
	started bool
	quote   rune
	escape  bool
}

// flush ends the current word. Quoted empty strings survive as empty args.
func (t *argvTokenizer) flush() {
	if !t.started && t.word.Len() == 0 {
		return
	}
	t.argv = append(t.argv, t.word.String())
	t.word.Reset()
	t.started = false
}

// expandVar writes the variable starting at runes[i] ('$') and returns the
// index of its last rune. A lone $ is kept literally.
func (t *argvTokenizer) expandVar(runes []rune, i int) int {
	t.started = true
	if i+1 < len(runes) && runes[i+1] == '{' {
		end := i + 2
		for end < len(runes) && runes[end] != '}' {
			end++
		}
		if end < len(runes) {
			t.word.WriteString(t.lookup(string(runes[i+2 : end])))
			return end
		}
		t.word.WriteRune('$')
		return i
	}

	end := i + 1
	for end < len(runes) && (runes[end] == '_' || unicode.IsLetter(runes[end]) || (end > i+1 && unicode.IsDigit(runes[end]))) {
		end++
	}
	if end == i+1 {
		t.word.WriteRune('$')
		return i
	}
	t.word.WriteString(t.lookup(string(runes[i+1 : end])))
	return end - 1
}
