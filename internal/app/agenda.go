package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/rbright/orb/internal/pipeline"
)

// renderAgenda prints one refreshed snapshot as plain text.
func renderAgenda(w io.Writer, snap pipeline.Snapshot) {
	header := snap.Date
	if snap.Now != "" {
		header = snap.Now
	}
	fmt.Fprintln(w, header)
	if summary := strings.TrimSpace(snap.Summary); summary != "" {
		fmt.Fprintln(w, summary)
	}

	work := snap.Work.Label()
	if snap.Work.IsWork {
		work = fmt.Sprintf("%s %s-%s", work, snap.Work.Start, snap.Work.End)
		switch {
		case snap.Work.Finished:
			work += " (finished)"
		case snap.Work.Status != "":
			work += " (" + snap.Work.Status + ")"
		}
	}
	fmt.Fprintln(w, work)

	if len(snap.Alerts) > 0 || len(snap.ReminderAlerts) > 0 {
		fmt.Fprintln(w, "\nAlerts")
		for _, alert := range snap.Alerts {
			fmt.Fprintf(w, "  ! %s\n", alert.Message)
		}
		for _, r := range snap.ReminderAlerts {
			fmt.Fprintf(w, "  ! %s\n", r.Label)
		}
	}

	if len(snap.Reminders) > 0 {
		fmt.Fprintln(w, "\nReminders")
		for _, r := range snap.Reminders {
			due := r.ScheduledHHMM
			if due == "" {
				due = "--:--"
			}
			fmt.Fprintf(w, "  %s %-24s %s (id=%d key=%s)\n", due, r.Label, r.Derived, r.ID, r.ReminderKey)
		}
	}

	if len(snap.Events) > 0 {
		fmt.Fprintln(w, "\nEvents")
		for _, e := range snap.Events {
			line := fmt.Sprintf("  %-11s %s", e.TimeLabel, e.Title)
			if e.Relative != "" {
				line += " (" + e.Relative + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w, "\nTasks")
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, task := range snap.Tasks {
		mark := " "
		if snap.CurrentTask != nil && snap.CurrentTask.ID == task.ID {
			mark = ">"
		}
		title := task.Title
		if task.Priority != "" {
			title += " [" + task.Priority + "]"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, title)
	}
}
