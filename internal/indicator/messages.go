package indicator

import (
	"os"
	"strings"
)

type messages struct {
	listening    string
	transcribing string
	thinking     string
	errorText    string
}

var english = messages{
	listening:    "Listening…",
	transcribing: "Transcribing…",
	thinking:     "Thinking…",
	errorText:    "Something went wrong",
}

// catalog is keyed by ISO 639-1 language code.
var catalog = map[string]messages{
	"en": english,
	"de": {
		listening:    "Höre zu…",
		transcribing: "Transkribiere…",
		thinking:     "Denke nach…",
		errorText:    "Etwas ist schiefgelaufen",
	},
	"es": {
		listening:    "Escuchando…",
		transcribing: "Transcribiendo…",
		thinking:     "Pensando…",
		errorText:    "Algo salió mal",
	},
	"fr": {
		listening:    "À l'écoute…",
		transcribing: "Transcription…",
		thinking:     "Réflexion…",
		errorText:    "Un problème est survenu",
	},
}

// messagesFromEnv follows the POSIX precedence LC_ALL, LC_MESSAGES, LANG.
func messagesFromEnv() messages {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return messagesFor(v)
		}
	}
	return english
}

// messagesFor maps a locale such as "de_DE.UTF-8" to its catalog entry.
func messagesFor(locale string) messages {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "_.@-"); i >= 0 {
		lang = lang[:i]
	}
	if m, ok := catalog[lang]; ok {
		return m
	}
	return english
}
