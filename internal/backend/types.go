package backend

import (
	"bytes"
	"encoding/json"
)

// Dashboard is the summary shown at the top of the screen.
type Dashboard struct {
	Now          string  `json:"now"`
	TodaySummary string  `json:"today_summary"`
	Alerts       []Alert `json:"alerts"`
	NextTask     *string `json:"next_task"`
}

// Alert is one dashboard alert line.
type Alert struct {
	Message string `json:"message"`
}

// Workday is the work schedule for one date. Hours are nil on days off.
type Workday struct {
	Date      string  `json:"date"`
	IsWork    bool    `json:"is_work"`
	StartHHMM *string `json:"start_hhmm"`
	EndHHMM   *string `json:"end_hhmm"`
}

// ReminderStatus is the server-side reminder status.
type ReminderStatus string

const (
	ReminderActive ReminderStatus = "active"
	ReminderDone   ReminderStatus = "done"
	ReminderMissed ReminderStatus = "missed"
)

// Reminder is one scheduled reminder occurrence.
type Reminder struct {
	ID            int64          `json:"id"`
	ReminderKey   string         `json:"reminder_key"`
	Label         string         `json:"label"`
	SpeakText     string         `json:"speak_text"`
	DoseDate      string         `json:"dose_date"`
	ScheduledHHMM string         `json:"scheduled_hhmm"`
	NextFireAt    string         `json:"next_fire_at"`
	Status        ReminderStatus `json:"status"`
	DueNow        bool           `json:"due_now"`
}

// Reminders is the active reminder listing for one date.
type Reminders struct {
	Date      string     `json:"date"`
	Now       string     `json:"now"`
	Reminders []Reminder `json:"reminders"`
}

// Event is a calendar entry.
type Event struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	EventDate string  `json:"event_date"`
	StartHHMM *string `json:"start_hhmm"`
	EndHHMM   *string `json:"end_hhmm"`
	AllDay    Flag    `json:"all_day"`
}

// Task is one open task; the list arrives priority-ordered.
type Task struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

// OKResult is the bare acknowledgement most mutations return.
type OKResult struct {
	OK bool `json:"ok"`
}

// RespondResult is a free-form reply.
type RespondResult struct {
	Text string `json:"text"`
}

// ScheduleResult reports what the schedule call created. Singular fields are
// kept raw so presence can be tested without committing to their shape.
type ScheduleResult struct {
	OK        bool              `json:"ok"`
	Action    string            `json:"action"`
	Event     json.RawMessage   `json:"event,omitempty"`
	Events    []json.RawMessage `json:"events,omitempty"`
	Reminder  json.RawMessage   `json:"reminder,omitempty"`
	Reminders []json.RawMessage `json:"reminders,omitempty"`
	Task      json.RawMessage   `json:"task,omitempty"`
	Tasks     []json.RawMessage `json:"tasks,omitempty"`
	Workdays  []json.RawMessage `json:"workdays,omitempty"`
}

// ReclassifyOption is one candidate when a move is ambiguous.
type ReclassifyOption struct {
	ItemType string `json:"item_type"`
	ItemID   int64  `json:"item_id"`
	Label    string `json:"label"`
}

// ReclassifyResult is the outcome of a move request.
type ReclassifyResult struct {
	OK                bool               `json:"ok"`
	NeedsConfirmation bool               `json:"needs_confirmation,omitempty"`
	Target            string             `json:"target,omitempty"`
	Options           []ReclassifyOption `json:"options,omitempty"`
}

// PriorityResult is the outcome of a priority update.
type PriorityResult struct {
	OK       bool            `json:"ok"`
	Priority string          `json:"priority,omitempty"`
	Task     json.RawMessage `json:"task,omitempty"`
}

// Segment is one timed span of a transcription.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the speech-to-text response.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Audio is a synthesized speech payload.
type Audio struct {
	Data        []byte
	ContentType string
}

// Present reports whether a raw field carries a non-null value.
func Present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Flag is a boolean that also accepts 0/1 integers.
type Flag bool

func (b *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*b = n != 0
	}
	return nil
}
