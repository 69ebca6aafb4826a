// Package feed pushes live daemon state to renderers over a websocket.
package feed

import (
	"time"

	"github.com/rbright/orb/internal/envelope"
)

// Frame types.
const (
	TypeLevel     = "level"
	TypeText      = "text"
	TypeState     = "state"
	TypeDashboard = "dashboard"
	TypeError     = "error"
)

// Frame is one JSON message on the feed.
type Frame struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	Level    *float64 `json:"level,omitempty"`
	Pulse    *float64 `json:"pulse,omitempty"`
	Speaking *bool    `json:"speaking,omitempty"`

	Text string `json:"text,omitempty"`
	Done bool   `json:"done,omitempty"`

	State string `json:"state,omitempty"`

	Dashboard any `json:"dashboard,omitempty"`

	Error string `json:"error,omitempty"`
}

// LevelFrame carries the envelope level and its visual pulse.
func LevelFrame(level float64) Frame {
	pulse, speaking := envelope.Visual(level)
	return Frame{Type: TypeLevel, At: time.Now(), Level: &level, Pulse: &pulse, Speaking: &speaking}
}

// TextFrame carries the revealed prefix of a reply.
func TextFrame(text string, done bool) Frame {
	return Frame{Type: TypeText, At: time.Now(), Text: text, Done: done}
}

// StateFrame carries the voice lifecycle state.
func StateFrame(state string) Frame {
	return Frame{Type: TypeState, At: time.Now(), State: state}
}

// DashboardFrame carries a dashboard snapshot.
func DashboardFrame(snapshot any) Frame {
	return Frame{Type: TypeDashboard, At: time.Now(), Dashboard: snapshot}
}

// ErrorFrame carries a user-facing error.
func ErrorFrame(message string) Frame {
	return Frame{Type: TypeError, At: time.Now(), Error: message}
}

// sticky reports whether late joiners should receive the last frame of this type.
func sticky(frameType string) bool {
	switch frameType {
	case TypeText, TypeState, TypeDashboard:
		return true
	default:
		return false
	}
}
