// Package agenda derives the time-relative views the dashboard shows:
// reminder windows, workday status and event labels.
package agenda

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rbright/orb/internal/backend"
)

const (
	// ReminderWindow is how long a reminder stays actionable after it is due.
	ReminderWindow = 30 * time.Minute

	DefaultWorkStart = "08:00"
	DefaultWorkEnd   = "16:30"

	dayLayout   = "2006-01-02"
	localLayout = "2006-01-02T15:04:05"
)

// ParseNow parses the backend clock. Offsets are honored; naive values are read in loc.
func ParseNow(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.In(loc), true
	}
	if t, err := time.ParseInLocation(localLayout, value, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Day returns the YYYY-MM-DD calendar date of t.
func Day(t time.Time) string {
	return t.Format(dayLayout)
}

// at combines a YYYY-MM-DD date and an HH:MM clock in loc.
func at(date, hhmm string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(localLayout, date+"T"+hhmm+":00", loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Relative renders a positive lead time as "in Hh Mm" or "in M mins".
func Relative(d time.Duration) string {
	mins := int(math.Floor(d.Minutes() + 0.5))
	hours := mins / 60
	mins %= 60
	if hours > 0 {
		return fmt.Sprintf("in %dh %dm", hours, mins)
	}
	return fmt.Sprintf("in %d mins", mins)
}

// Reminder is one reminder with its derived window.
type Reminder struct {
	backend.Reminder
	DueAt     time.Time              `json:"due_at"`
	WindowEnd time.Time              `json:"window_end"`
	InWindow  bool                   `json:"in_window"`
	Overdue   bool                   `json:"overdue"`
	Derived   backend.ReminderStatus `json:"derived_status"`
}

// Actionable reports whether the reminder can still be marked done.
func (r Reminder) Actionable() bool {
	return r.Derived == backend.ReminderActive && r.InWindow
}

// Alert reports whether the reminder belongs in the alert list rather than the event list.
func (r Reminder) Alert() bool {
	return !strings.HasPrefix(r.ReminderKey, "event:")
}

// Reminders derives windows and returns the visible reminders, in-window first then by due time.
//
// With a zero now every reminder is visible and none is in window.
func Reminders(items []backend.Reminder, now time.Time) []Reminder {
	loc := now.Location()
	if now.IsZero() {
		loc = time.Local
	}

	out := make([]Reminder, 0, len(items))
	for _, item := range items {
		r := Reminder{Reminder: item, Derived: item.Status}
		if due, ok := at(item.DoseDate, item.ScheduledHHMM, loc); ok {
			r.DueAt = due
			r.WindowEnd = due.Add(ReminderWindow)
			if !now.IsZero() {
				r.InWindow = !now.Before(r.DueAt) && !now.After(r.WindowEnd)
				r.Overdue = now.After(r.WindowEnd)
			}
		}
		if item.Status == backend.ReminderActive && r.Overdue {
			r.Derived = backend.ReminderMissed
		}
		if !now.IsZero() && item.Status == backend.ReminderActive && !r.InWindow && !r.Overdue {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].InWindow != out[j].InWindow {
			return out[i].InWindow
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

// Alerts filters derived reminders down to the alert list.
func Alerts(reminders []Reminder) []Reminder {
	out := make([]Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.Alert() {
			out = append(out, r)
		}
	}
	return out
}

// Work is the workday header.
type Work struct {
	IsWork   bool   `json:"is_work"`
	Start    string `json:"start_hhmm"`
	End      string `json:"end_hhmm"`
	Status   string `json:"status"`
	Finished bool   `json:"finished"`
}

// Label names the kind of day.
func (w Work) Label() string {
	if w.IsWork {
		return "Work day"
	}
	return "Day off"
}

// Workday fills default hours and derives the status relative to now.
func Workday(wd backend.Workday, now time.Time) Work {
	w := Work{IsWork: wd.IsWork, Start: DefaultWorkStart, End: DefaultWorkEnd}
	if wd.StartHHMM != nil {
		w.Start = *wd.StartHHMM
	}
	if wd.EndHHMM != nil {
		w.End = *wd.EndHHMM
	}
	if !w.IsWork || now.IsZero() {
		return w
	}

	date := Day(now)
	start, okStart := at(date, w.Start, now.Location())
	end, okEnd := at(date, w.End, now.Location())
	if !okStart || !okEnd {
		return w
	}
	switch {
	case now.Before(start):
		w.Status = Relative(start.Sub(now))
	case !now.After(end):
		w.Status = "now"
	default:
		w.Finished = true
	}
	return w
}

// Event is a calendar entry with display labels.
type Event struct {
	backend.Event
	TimeLabel string `json:"time_label"`
	Relative  string `json:"relative"`
	Now       bool   `json:"now"`
	Upcoming  bool   `json:"upcoming"`
	Done      bool   `json:"done"`
}

// Events labels each event relative to now.
func Events(items []backend.Event, now time.Time) []Event {
	out := make([]Event, 0, len(items))
	for _, item := range items {
		out = append(out, event(item, now))
	}
	return out
}

func event(item backend.Event, now time.Time) Event {
	e := Event{Event: item}
	switch {
	case bool(item.AllDay):
		e.TimeLabel = "All day"
	case item.StartHHMM != nil && item.EndHHMM != nil:
		e.TimeLabel = *item.StartHHMM + "-" + *item.EndHHMM
	case item.StartHHMM != nil:
		e.TimeLabel = *item.StartHHMM
	default:
		e.TimeLabel = "TBD"
	}

	if item.AllDay {
		e.Relative = "now"
		e.Now = true
		return e
	}
	if item.StartHHMM == nil || now.IsZero() {
		return e
	}

	start, ok := at(item.EventDate, *item.StartHHMM, now.Location())
	if !ok {
		return e
	}
	end := start
	if item.EndHHMM != nil {
		if t, ok := at(item.EventDate, *item.EndHHMM, now.Location()); ok {
			end = t
		}
	}

	lead := start.Sub(now)
	switch {
	case !now.Before(start) && !now.After(end):
		e.Relative = "now"
		e.Now = true
	case math.Floor(lead.Minutes()+0.5) >= 0:
		e.Relative = Relative(lead)
		e.Upcoming = true
	default:
		e.Done = true
	}
	return e
}
