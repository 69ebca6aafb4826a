package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/orb/internal/backend"
)

var london = time.FixedZone("BST", 3600)

func clock(t *testing.T, value string) time.Time {
	t.Helper()
	now, ok := ParseNow(value, london)
	require.True(t, ok)
	return now
}

func hhmm(s string) *string { return &s }

func TestParseNow(t *testing.T) {
	naive, ok := ParseNow("2026-03-01T09:30:00.123456", london)
	require.True(t, ok)
	require.Equal(t, 9, naive.Hour())
	require.Equal(t, london, naive.Location())

	offset, ok := ParseNow("2026-03-01T23:30:00Z", london)
	require.True(t, ok)
	require.Equal(t, "2026-03-02", Day(offset))

	_, ok = ParseNow("", london)
	require.False(t, ok)
	_, ok = ParseNow("yesterday", london)
	require.False(t, ok)
}

func TestRelative(t *testing.T) {
	tests := []struct {
		lead time.Duration
		want string
	}{
		{lead: 5 * time.Minute, want: "in 5 mins"},
		{lead: 59*time.Minute + 40*time.Second, want: "in 1h 0m"},
		{lead: 2*time.Hour + 15*time.Minute, want: "in 2h 15m"},
		{lead: 20 * time.Second, want: "in 0 mins"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			require.Equal(t, tc.want, Relative(tc.lead))
		})
	}
}

func TestWorkdayStatus(t *testing.T) {
	tests := []struct {
		name     string
		now      string
		day      backend.Workday
		status   string
		finished bool
	}{
		{name: "before start", now: "2026-03-01T06:45:00", day: backend.Workday{IsWork: true}, status: "in 1h 15m"},
		{name: "minutes before", now: "2026-03-01T07:50:00", day: backend.Workday{IsWork: true}, status: "in 10 mins"},
		{name: "during", now: "2026-03-01T12:00:00", day: backend.Workday{IsWork: true}, status: "now"},
		{name: "end inclusive", now: "2026-03-01T16:30:00", day: backend.Workday{IsWork: true}, status: "now"},
		{name: "after", now: "2026-03-01T17:00:00", day: backend.Workday{IsWork: true}, finished: true},
		{name: "custom hours", now: "2026-03-01T09:00:00", day: backend.Workday{IsWork: true, StartHHMM: hhmm("10:00"), EndHHMM: hhmm("18:00")}, status: "in 1h 0m"},
		{name: "day off", now: "2026-03-01T12:00:00", day: backend.Workday{IsWork: false}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := Workday(tc.day, clock(t, tc.now))
			require.Equal(t, tc.status, w.Status)
			require.Equal(t, tc.finished, w.Finished)
		})
	}
}

func TestWorkdayDefaults(t *testing.T) {
	w := Workday(backend.Workday{IsWork: true}, time.Time{})
	require.Equal(t, DefaultWorkStart, w.Start)
	require.Equal(t, DefaultWorkEnd, w.End)
	require.Empty(t, w.Status)
	require.Equal(t, "Work day", w.Label())
	require.Equal(t, "Day off", Work{}.Label())
}

func TestRemindersWindowAndOrdering(t *testing.T) {
	items := []backend.Reminder{
		{ID: 1, ReminderKey: "meds:am", DoseDate: "2026-03-01", ScheduledHHMM: "08:00", Status: backend.ReminderActive},
		{ID: 2, ReminderKey: "meds:noon", DoseDate: "2026-03-01", ScheduledHHMM: "09:50", Status: backend.ReminderActive},
		{ID: 3, ReminderKey: "meds:pm", DoseDate: "2026-03-01", ScheduledHHMM: "18:00", Status: backend.ReminderActive},
		{ID: 4, ReminderKey: "water", DoseDate: "2026-03-01", ScheduledHHMM: "07:00", Status: backend.ReminderDone},
		{ID: 5, ReminderKey: "event:3", DoseDate: "2026-03-01", ScheduledHHMM: "10:00", Status: backend.ReminderActive},
	}

	views := Reminders(items, clock(t, "2026-03-01T10:00:00"))

	ids := make([]int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	// in window: 2 (09:50) and 5 (10:00); then by due: 4 (07:00), 1 (08:00). 3 is not yet due.
	require.Equal(t, []int64{2, 5, 4, 1}, ids)

	require.True(t, views[0].Actionable())
	require.Equal(t, backend.ReminderMissed, views[3].Derived)
	require.False(t, views[3].Actionable())
	require.Equal(t, backend.ReminderDone, views[2].Derived)

	alerts := Alerts(views)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		require.NotEqual(t, "event:3", a.ReminderKey)
	}
}

func TestRemindersWindowBoundary(t *testing.T) {
	items := []backend.Reminder{{ID: 1, DoseDate: "2026-03-01", ScheduledHHMM: "09:00", Status: backend.ReminderActive}}

	atEnd := Reminders(items, clock(t, "2026-03-01T09:30:00"))
	require.Len(t, atEnd, 1)
	require.True(t, atEnd[0].InWindow)
	require.Equal(t, backend.ReminderActive, atEnd[0].Derived)

	past := Reminders(items, clock(t, "2026-03-01T09:30:01"))
	require.Len(t, past, 1)
	require.False(t, past[0].InWindow)
	require.Equal(t, backend.ReminderMissed, past[0].Derived)
}

func TestRemindersWithoutNowShowsEverything(t *testing.T) {
	items := []backend.Reminder{
		{ID: 1, DoseDate: "2026-03-01", ScheduledHHMM: "18:00", Status: backend.ReminderActive},
		{ID: 2, DoseDate: "2026-03-01", ScheduledHHMM: "08:00", Status: backend.ReminderActive},
	}
	views := Reminders(items, time.Time{})
	require.Len(t, views, 2)
	require.Equal(t, int64(2), views[0].ID)
	require.False(t, views[0].InWindow)
	require.Equal(t, backend.ReminderActive, views[1].Derived)
}

func TestEvents(t *testing.T) {
	now := clock(t, "2026-03-01T10:30:00")
	items := []backend.Event{
		{ID: 1, Title: "Holiday", EventDate: "2026-03-01", AllDay: true},
		{ID: 2, Title: "Dentist", EventDate: "2026-03-01", StartHHMM: hhmm("10:00"), EndHHMM: hhmm("11:00")},
		{ID: 3, Title: "Call", EventDate: "2026-03-01", StartHHMM: hhmm("12:45")},
		{ID: 4, Title: "Gym", EventDate: "2026-03-01", StartHHMM: hhmm("07:00"), EndHHMM: hhmm("08:00")},
		{ID: 5, Title: "Someday", EventDate: "2026-03-01"},
	}

	got := Events(items, now)
	require.Len(t, got, 5)

	require.Equal(t, "All day", got[0].TimeLabel)
	require.True(t, got[0].Now)

	require.Equal(t, "10:00-11:00", got[1].TimeLabel)
	require.Equal(t, "now", got[1].Relative)

	require.Equal(t, "12:45", got[2].TimeLabel)
	require.Equal(t, "in 2h 15m", got[2].Relative)
	require.True(t, got[2].Upcoming)

	require.True(t, got[3].Done)
	require.Empty(t, got[3].Relative)

	require.Equal(t, "TBD", got[4].TimeLabel)
	require.False(t, got[4].Now || got[4].Upcoming || got[4].Done)
}
