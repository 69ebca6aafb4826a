// Package fsm defines the voice lifecycle: record, transcribe, dispatch.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateDispatching  State = "dispatching"
	StateError        State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventCancel      Event = "cancel"
	EventTranscribed Event = "transcribed"
	// EventEmpty ends a recording that produced nothing to dispatch.
	EventEmpty      Event = "empty"
	EventDispatched Event = "dispatched"
	EventFail       Event = "fail"
	EventReset      Event = "reset"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid transition")

// edges lists every accepted event per state. EventFail is accepted
// everywhere and is handled outside the table.
var edges = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateRecording,
	},
	StateRecording: {
		EventStop:   StateTranscribing,
		EventCancel: StateIdle,
		EventEmpty:  StateIdle,
	},
	StateTranscribing: {
		EventTranscribed: StateDispatching,
		EventEmpty:       StateIdle,
	},
	StateDispatching: {
		EventDispatched: StateIdle,
	},
	StateError: {
		EventReset: StateIdle,
		EventStart: StateRecording,
	},
}

// Transition returns the state reached from current on event. On error the
// state is unchanged.
func Transition(current State, event Event) (State, error) {
	out, known := edges[current]
	if !known {
		return current, fmt.Errorf("unknown state %q", current)
	}
	if event == EventFail {
		return StateError, nil
	}
	next, ok := out[event]
	if !ok {
		return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
	}
	return next, nil
}

// Busy reports whether the state holds an utterance in progress.
func Busy(state State) bool {
	return state == StateRecording || state == StateTranscribing || state == StateDispatching
}
